package worker

import (
	"sync"

	"github.com/domalend/oracle/internal/domain"
)

// Stats aggregates run statistics across pipelines. Safe for concurrent use.
type Stats struct {
	mu sync.Mutex
	s  domain.RunStatistics
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{}
}

// Record folds a finished cycle into the counters.
func (s *Stats) Record(r domain.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.s.TotalRuns++
	s.s.TokensProcessed += r.Summary.Total()
	s.s.UpdatesSuccessful += r.Summary.Successful
	s.s.UpdatesSkipped += r.Summary.Skipped
	s.s.UpdatesFailed += r.Summary.Failed
	s.s.LastRunTime = r.FinishedAt

	if r.Err != nil {
		s.s.LastError = r.ErrMessage()
		return
	}
	for i := len(r.Summary.Outcomes) - 1; i >= 0; i-- {
		if o := r.Summary.Outcomes[i]; o.Status == domain.UpdateFailed {
			s.s.LastError = o.Error
			break
		}
	}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() domain.RunStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}
