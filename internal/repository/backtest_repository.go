package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"macmarket/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// BacktestRepository stores run summaries. Trades and equity curves are
// returned to the caller and not persisted.
type BacktestRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewBacktestRepository(pool PgxPool, tracer trace.Tracer) *BacktestRepository {
	return &BacktestRepository{pool: pool, tracer: tracer}
}

func (r *BacktestRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "backtest-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS backtest_runs (
			id          UUID PRIMARY KEY,
			symbol      TEXT NOT NULL,
			timeframe   TEXT NOT NULL,
			strategy    TEXT NOT NULL,
			bars        INTEGER NOT NULL,
			stats       JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_backtest_runs_symbol_created ON backtest_runs (symbol, created_at DESC)`)
	return err
}

func (r *BacktestRepository) SaveRun(ctx context.Context, run domain.BacktestRun) error {
	_, span := r.tracer.Start(ctx, "backtest-repo.save-run")
	defer span.End()

	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO backtest_runs (id, symbol, timeframe, strategy, bars, stats, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Symbol, run.Timeframe, run.Strategy, run.Bars, stats, run.CreatedAt.UTC(),
	)
	return err
}

func (r *BacktestRepository) ListRuns(ctx context.Context, symbol string, limit int) ([]domain.BacktestRun, error) {
	_, span := r.tracer.Start(ctx, "backtest-repo.list-runs")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	sql := `SELECT id::text, symbol, timeframe, strategy, bars, stats, created_at FROM backtest_runs`
	args := []any{}
	if symbol = strings.ToUpper(strings.TrimSpace(symbol)); symbol != "" {
		args = append(args, symbol)
		sql += ` WHERE symbol = $1`
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.BacktestRun, 0)
	for rows.Next() {
		var run domain.BacktestRun
		var raw []byte
		if err := rows.Scan(&run.ID, &run.Symbol, &run.Timeframe, &run.Strategy, &run.Bars, &raw, &run.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &run.Stats); err != nil {
			return nil, fmt.Errorf("decode stats for run %s: %w", run.ID, err)
		}
		run.CreatedAt = run.CreatedAt.UTC()
		out = append(out, run)
	}
	return out, rows.Err()
}

// DeleteRunsBefore removes run summaries created before cutoff.
func (r *BacktestRepository) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "backtest-repo.delete-runs-before")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM backtest_runs WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
