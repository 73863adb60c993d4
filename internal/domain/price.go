package domain

import "time"

// PriceUpdate is a single oracle write request.
type PriceUpdate struct {
	TokenAddress        string `json:"tokenAddress"`
	ValuationFixedPoint string `json:"valuationFixedPoint"`
	Label               string `json:"label,omitempty"` // name or symbol, for logs only
}

// UpdateStatus is the result class of one PriceUpdate.
type UpdateStatus string

const (
	UpdateSuccessful UpdateStatus = "successful"
	UpdateSkipped    UpdateStatus = "skipped"
	UpdateFailed     UpdateStatus = "failed"
)

// UpdateOutcome describes what happened to one PriceUpdate.
type UpdateOutcome struct {
	TokenAddress  string       `json:"tokenAddress"`
	Label         string       `json:"label,omitempty"`
	Status        UpdateStatus `json:"status"`
	OldValue      string       `json:"oldValue"`
	NewValue      string       `json:"newValue"`
	PercentChange float64      `json:"percentChange"`
	TxHash        string       `json:"txHash,omitempty"`
	BlockNumber   uint64       `json:"blockNumber,omitempty"`
	GasUsed       uint64       `json:"gasUsed,omitempty"`
	Error         string       `json:"error,omitempty"`
	At            time.Time    `json:"at"`
}

// BroadcastSummary aggregates the outcomes of one batch.
type BroadcastSummary struct {
	Successful int             `json:"successful"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Outcomes   []UpdateOutcome `json:"outcomes"`
}

// Add records an outcome and bumps the matching counter.
func (s *BroadcastSummary) Add(o UpdateOutcome) {
	switch o.Status {
	case UpdateSuccessful:
		s.Successful++
	case UpdateSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Outcomes = append(s.Outcomes, o)
}

// Total returns the number of processed items.
func (s BroadcastSummary) Total() int {
	return s.Successful + s.Skipped + s.Failed
}
