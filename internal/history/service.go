package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/domalend/oracle/internal/domain"
)

// Recorder persists every finished cycle. It is used as an after-cycle hook.
type Recorder struct {
	repo Repository
}

// NewRecorder creates a new Recorder.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// AfterCycle stores the report as a Run.
func (r *Recorder) AfterCycle(ctx context.Context, report domain.CycleReport) error {
	run, err := FromReport(report)
	if err != nil {
		return err
	}

	id, err := r.repo.Save(ctx, run)
	if err != nil {
		return fmt.Errorf("recording %s cycle: %w", report.Pipeline, err)
	}
	slog.Debug("History: cycle recorded", "pipeline", report.Pipeline, "id", id, "outcomes", len(run.Outcomes))
	return nil
}

// List retrieves recent runs.
func (r *Recorder) List(ctx context.Context, pipeline string, limit int) ([]Run, error) {
	return r.repo.List(ctx, pipeline, limit)
}

// Get retrieves one run with its outcomes.
func (r *Recorder) Get(ctx context.Context, id int64) (*Run, error) {
	return r.repo.Get(ctx, id)
}

// FromReport converts a cycle report into its stored form.
func FromReport(report domain.CycleReport) (Run, error) {
	run := Run{
		Pipeline:   report.Pipeline,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Collected:  report.Collected,
		Successful: report.Summary.Successful,
		Skipped:    report.Summary.Skipped,
		Failed:     report.Summary.Failed,
		Error:      report.ErrMessage(),
		Outcomes:   report.Summary.Outcomes,
	}

	if len(report.Valuations) > 0 {
		data, err := json.Marshal(report.Valuations)
		if err != nil {
			return Run{}, fmt.Errorf("marshaling valuations: %w", err)
		}
		run.Valuations = data
	}
	return run, nil
}
