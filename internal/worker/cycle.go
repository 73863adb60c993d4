package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// CycleWorker runs a pipeline on a fixed interval.
type CycleWorker struct {
	pipeline Pipeline
	interval time.Duration
	wg       sync.WaitGroup
}

// NewCycleWorker creates a new CycleWorker.
func NewCycleWorker(pipeline Pipeline, interval time.Duration) *CycleWorker {
	return &CycleWorker{
		pipeline: pipeline,
		interval: interval,
	}
}

// Run starts the worker loop. It blocks until the context is cancelled and the in-flight cycle returns.
// Ticks that arrive while a cycle is running are dropped, not queued.
func (w *CycleWorker) Run(ctx context.Context) {
	name := w.pipeline.Name()
	slog.Info("CycleWorker: starting", "pipeline", name, "interval", w.interval)

	// Run immediately on startup
	w.start(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("CycleWorker: shutting down, waiting for in-flight cycle", "pipeline", name)
			ticker.Stop()
			w.wg.Wait()
			slog.Info("CycleWorker: stopped", "pipeline", name)
			return
		case <-ticker.C:
			w.start(ctx)
		}
	}
}

func (w *CycleWorker) start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if _, err := w.pipeline.RunCycle(ctx); errors.Is(err, ErrCycleInProgress) {
			slog.Debug("CycleWorker: tick skipped", "pipeline", w.pipeline.Name())
		}
	}()
}
