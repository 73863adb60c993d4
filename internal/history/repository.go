package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/domalend/oracle/internal/domain"
)

// ErrNotFound indicates that the requested run was not found.
var ErrNotFound = errors.New("run not found")

// Run is a stored pipeline cycle.
type Run struct {
	ID         int64                  `json:"id"`
	Pipeline   string                 `json:"pipeline"`
	StartedAt  time.Time              `json:"startedAt"`
	FinishedAt time.Time              `json:"finishedAt"`
	Collected  int                    `json:"collected"`
	Successful int                    `json:"successful"`
	Skipped    int                    `json:"skipped"`
	Failed     int                    `json:"failed"`
	Error      string                 `json:"error,omitempty"`
	Valuations json.RawMessage        `json:"valuations,omitempty"`
	Outcomes   []domain.UpdateOutcome `json:"outcomes,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// Repository defines persistent storage for cycle runs.
type Repository interface {
	Save(ctx context.Context, run Run) (int64, error)
	List(ctx context.Context, pipeline string, limit int) ([]Run, error)
	Get(ctx context.Context, id int64) (*Run, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL run repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Save stores the run and its outcomes in one transaction.
func (r *PgRepository) Save(ctx context.Context, run Run) (int64, error) {
	valuations := run.Valuations
	if len(valuations) == 0 {
		valuations = json.RawMessage("[]")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO cycle_runs (pipeline, started_at, finished_at, collected, successful, skipped, failed, error, valuations)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
		 RETURNING id`,
		run.Pipeline, run.StartedAt, run.FinishedAt, run.Collected,
		run.Successful, run.Skipped, run.Failed, run.Error, valuations).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("saving run: %w", err)
	}

	if len(run.Outcomes) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"update_outcomes"},
			[]string{"run_id", "token_address", "label", "status", "old_value", "new_value",
				"percent_change", "tx_hash", "block_number", "gas_used", "error", "at"},
			pgx.CopyFromSlice(len(run.Outcomes), func(i int) ([]any, error) {
				o := run.Outcomes[i]
				return []any{id, o.TokenAddress, o.Label, string(o.Status), o.OldValue, o.NewValue,
					o.PercentChange, o.TxHash, int64(o.BlockNumber), int64(o.GasUsed), o.Error, o.At}, nil
			}))
		if err != nil {
			return 0, fmt.Errorf("saving outcomes: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// List returns the most recent runs, newest first, without outcomes.
// An empty pipeline lists all pipelines.
func (r *PgRepository) List(ctx context.Context, pipeline string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, pipeline, started_at, finished_at, collected, successful, skipped, failed, error, valuations, created_at
		 FROM cycle_runs
		 WHERE $1 = '' OR pipeline = $1
		 ORDER BY started_at DESC
		 LIMIT $2`, pipeline, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Pipeline, &run.StartedAt, &run.FinishedAt, &run.Collected,
			&run.Successful, &run.Skipped, &run.Failed, &run.Error, &run.Valuations, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Get returns one run with its outcomes.
func (r *PgRepository) Get(ctx context.Context, id int64) (*Run, error) {
	var run Run
	err := r.pool.QueryRow(ctx,
		`SELECT id, pipeline, started_at, finished_at, collected, successful, skipped, failed, error, valuations, created_at
		 FROM cycle_runs WHERE id = $1`, id).Scan(&run.ID, &run.Pipeline, &run.StartedAt, &run.FinishedAt,
		&run.Collected, &run.Successful, &run.Skipped, &run.Failed, &run.Error, &run.Valuations, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting run: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT token_address, label, status, old_value, new_value, percent_change, tx_hash, block_number, gas_used, error, at
		 FROM update_outcomes WHERE run_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("getting outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o           domain.UpdateOutcome
			status      string
			block, used int64
		)
		if err := rows.Scan(&o.TokenAddress, &o.Label, &status, &o.OldValue, &o.NewValue,
			&o.PercentChange, &o.TxHash, &block, &used, &o.Error, &o.At); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Status = domain.UpdateStatus(status)
		o.BlockNumber = uint64(block)
		o.GasUsed = uint64(used)
		run.Outcomes = append(run.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outcomes: %w", err)
	}
	return &run, nil
}
