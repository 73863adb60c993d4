package domain

import "time"

// RunStatistics are process-local counters, reset only on restart.
type RunStatistics struct {
	TotalRuns         int       `json:"totalRuns"`
	TokensProcessed   int       `json:"tokensProcessed"`
	UpdatesSuccessful int       `json:"updatesSuccessful"`
	UpdatesSkipped    int       `json:"updatesSkipped"`
	UpdatesFailed     int       `json:"updatesFailed"`
	LastError         string    `json:"lastError,omitempty"`
	LastRunTime       time.Time `json:"lastRunTime"`
}

// CycleReport is the structured result of one pipeline cycle.
type CycleReport struct {
	Pipeline   string            `json:"pipeline"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	Collected  int               `json:"collected"`
	Valuations []ValuationResult `json:"valuations,omitempty"`
	Summary    BroadcastSummary  `json:"summary"`
	Err        error             `json:"-"`
}

// ErrMessage returns the cycle error message, or "" on success.
func (r CycleReport) ErrMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Duration returns how long the cycle took.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
