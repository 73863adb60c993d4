package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/domalend/oracle/internal/domain"
)

// ErrCycleInProgress is returned when a cycle is requested while the previous one is still running.
var ErrCycleInProgress = errors.New("cycle already in progress")

// Pipeline is one scheduled source -> broadcast flow.
type Pipeline interface {
	Name() string
	RunCycle(ctx context.Context) (domain.CycleReport, error)
}

// AssetCollector gathers the inputs for valuation.
type AssetCollector interface {
	Collect(ctx context.Context) ([]domain.AssetRecord, error)
}

// Scorer turns an asset record into a valuation.
type Scorer interface {
	Score(rec domain.AssetRecord) (domain.ValuationResult, error)
}

// Broadcaster publishes price updates on-chain.
type Broadcaster interface {
	Broadcast(ctx context.Context, batch []domain.PriceUpdate) (domain.BroadcastSummary, error)
}

// PriceSource produces ready-to-publish updates for fungible tokens.
type PriceSource interface {
	PriceUpdates(ctx context.Context) ([]domain.PriceUpdate, error)
}

// AfterCycleHook is called after every cycle, successful or not.
type AfterCycleHook interface {
	AfterCycle(ctx context.Context, report domain.CycleReport) error
}

// runner holds the bookkeeping shared by all pipelines.
type runner struct {
	name    string
	running atomic.Bool
	stats   *Stats
	hooks   []AfterCycleHook
	now     func() time.Time
}

func newRunner(name string, stats *Stats, hooks []AfterCycleHook) *runner {
	if stats == nil {
		stats = NewStats()
	}
	return &runner{name: name, stats: stats, hooks: hooks, now: time.Now}
}

// run executes body unless a cycle is already running, then records stats and calls hooks.
func (r *runner) run(ctx context.Context, body func(ctx context.Context, report *domain.CycleReport) error) (domain.CycleReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		slog.Warn("Pipeline: previous cycle still running, skipping", "pipeline", r.name)
		return domain.CycleReport{Pipeline: r.name}, ErrCycleInProgress
	}
	defer r.running.Store(false)

	report := domain.CycleReport{Pipeline: r.name, StartedAt: r.now()}
	slog.Info("Pipeline: cycle started", "pipeline", r.name)

	err := body(ctx, &report)
	report.FinishedAt = r.now()
	report.Err = err

	r.stats.Record(report)

	if err != nil {
		slog.Error("Pipeline: cycle failed", "pipeline", r.name, "duration", report.Duration(), "error", err)
	} else {
		slog.Info("Pipeline: cycle completed", "pipeline", r.name,
			"duration", report.Duration(), "collected", report.Collected,
			"successful", report.Summary.Successful, "skipped", report.Summary.Skipped,
			"failed", report.Summary.Failed)
	}

	// Hooks still run when ctx was cancelled by shutdown.
	hookCtx := context.WithoutCancel(ctx)
	for _, h := range r.hooks {
		if hookErr := h.AfterCycle(hookCtx, report); hookErr != nil {
			slog.Error("Pipeline: after-cycle hook failed", "pipeline", r.name, "error", hookErr)
		}
	}

	return report, err
}

// AssetPipeline collects tokenized assets, scores them and publishes the valuations.
type AssetPipeline struct {
	*runner
	collector   AssetCollector
	scorer      Scorer
	broadcaster Broadcaster
}

// NewAssetPipeline creates the asset pipeline. stats may be shared with other pipelines.
func NewAssetPipeline(collector AssetCollector, scorer Scorer, broadcaster Broadcaster, stats *Stats, hooks ...AfterCycleHook) *AssetPipeline {
	return &AssetPipeline{
		runner:      newRunner("assets", stats, hooks),
		collector:   collector,
		scorer:      scorer,
		broadcaster: broadcaster,
	}
}

func (p *AssetPipeline) Name() string { return p.name }

// RunCycle runs collect -> score -> broadcast once.
func (p *AssetPipeline) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	return p.run(ctx, func(ctx context.Context, report *domain.CycleReport) error {
		if err := p.valuate(ctx, report); err != nil {
			return err
		}

		batch := lo.Map(report.Valuations, func(v domain.ValuationResult, _ int) domain.PriceUpdate {
			return v.PriceUpdate()
		})
		summary, err := p.broadcaster.Broadcast(ctx, batch)
		for _, o := range summary.Outcomes {
			report.Summary.Add(o)
		}
		if err != nil {
			return fmt.Errorf("broadcasting valuations: %w", err)
		}
		return nil
	})
}

// DryRun collects and scores without broadcasting. It does not touch stats or hooks.
func (p *AssetPipeline) DryRun(ctx context.Context) (domain.CycleReport, error) {
	report := domain.CycleReport{Pipeline: p.name, StartedAt: p.now()}
	err := p.valuate(ctx, &report)
	report.FinishedAt = p.now()
	report.Err = err
	return report, err
}

// valuate fills the report with scored records. Scoring failures are recorded as failed outcomes.
func (p *AssetPipeline) valuate(ctx context.Context, report *domain.CycleReport) error {
	records, err := p.collector.Collect(ctx)
	if err != nil {
		return err
	}
	report.Collected = len(records)

	for _, rec := range records {
		v, err := p.scorer.Score(rec)
		if err != nil {
			slog.Error("Pipeline: scoring failed", "token", rec.TokenAddress, "name", rec.DisplayName, "error", err)
			report.Summary.Add(domain.UpdateOutcome{
				TokenAddress: rec.TokenAddress,
				Label:        rec.DisplayName,
				Status:       domain.UpdateFailed,
				Error:        err.Error(),
				At:           p.now(),
			})
			continue
		}
		report.Valuations = append(report.Valuations, v)
	}
	return nil
}

// CryptoPipeline publishes public index prices for configured fungible tokens.
type CryptoPipeline struct {
	*runner
	source      PriceSource
	broadcaster Broadcaster
}

// NewCryptoPipeline creates the crypto price pipeline.
func NewCryptoPipeline(source PriceSource, broadcaster Broadcaster, stats *Stats, hooks ...AfterCycleHook) *CryptoPipeline {
	return &CryptoPipeline{
		runner:      newRunner("crypto", stats, hooks),
		source:      source,
		broadcaster: broadcaster,
	}
}

func (p *CryptoPipeline) Name() string { return p.name }

// RunCycle fetches index prices and broadcasts them once.
func (p *CryptoPipeline) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	return p.run(ctx, func(ctx context.Context, report *domain.CycleReport) error {
		updates, err := p.source.PriceUpdates(ctx)
		if err != nil {
			return err
		}
		report.Collected = len(updates)

		summary, err := p.broadcaster.Broadcast(ctx, updates)
		report.Summary = summary
		if err != nil {
			return fmt.Errorf("broadcasting crypto prices: %w", err)
		}
		return nil
	})
}
