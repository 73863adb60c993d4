package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/domalend/oracle/internal/domain"
)

type mockRepo struct {
	saved   []Run
	saveErr error
	list    []Run
	listErr error
	get     *Run
	getErr  error
}

func (m *mockRepo) Save(_ context.Context, run Run) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	m.saved = append(m.saved, run)
	return int64(len(m.saved)), nil
}

func (m *mockRepo) List(_ context.Context, _ string, _ int) ([]Run, error) {
	return m.list, m.listErr
}

func (m *mockRepo) Get(_ context.Context, _ int64) (*Run, error) {
	return m.get, m.getErr
}

func testReport() domain.CycleReport {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var summary domain.BroadcastSummary
	summary.Add(domain.UpdateOutcome{TokenAddress: "0x01", Status: domain.UpdateSuccessful, TxHash: "0xabc"})
	summary.Add(domain.UpdateOutcome{TokenAddress: "0x02", Status: domain.UpdateSkipped})
	summary.Add(domain.UpdateOutcome{TokenAddress: "0x03", Status: domain.UpdateFailed, Error: "reverted"})

	return domain.CycleReport{
		Pipeline:   "assets",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Collected:  3,
		Valuations: []domain.ValuationResult{
			{TokenAddress: "0x01", DisplayName: "alpha.com", CompositeRank: 80},
		},
		Summary: summary,
	}
}

func TestRecorderAfterCycle(t *testing.T) {
	repo := &mockRepo{}
	rec := NewRecorder(repo)

	if err := rec.AfterCycle(context.Background(), testReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("saved = %d, want 1", len(repo.saved))
	}

	run := repo.saved[0]
	if run.Pipeline != "assets" || run.Collected != 3 {
		t.Errorf("run = %+v", run)
	}
	if run.Successful != 1 || run.Skipped != 1 || run.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", run.Successful, run.Skipped, run.Failed)
	}
	if len(run.Outcomes) != 3 {
		t.Errorf("outcomes = %d, want 3", len(run.Outcomes))
	}

	var vals []domain.ValuationResult
	if err := json.Unmarshal(run.Valuations, &vals); err != nil {
		t.Fatalf("valuations not valid JSON: %v", err)
	}
	if len(vals) != 1 || vals[0].DisplayName != "alpha.com" {
		t.Errorf("valuations = %+v", vals)
	}
}

func TestRecorderStoresCycleError(t *testing.T) {
	repo := &mockRepo{}
	rec := NewRecorder(repo)

	report := domain.CycleReport{Pipeline: "crypto", Err: domain.ErrDiscovery}
	if err := rec.AfterCycle(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.saved[0].Error; got != domain.ErrDiscovery.Error() {
		t.Errorf("Error = %q, want %q", got, domain.ErrDiscovery.Error())
	}
	if repo.saved[0].Valuations != nil {
		t.Error("valuations should be empty for a run without valuations")
	}
}

func TestRecorderSaveError(t *testing.T) {
	repo := &mockRepo{saveErr: errors.New("db down")}
	rec := NewRecorder(repo)

	if err := rec.AfterCycle(context.Background(), testReport()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecorderGetNotFound(t *testing.T) {
	repo := &mockRepo{getErr: ErrNotFound}
	rec := NewRecorder(repo)

	if _, err := rec.Get(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
