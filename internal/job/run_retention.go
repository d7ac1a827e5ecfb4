package job

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const retentionTick = time.Hour

type RunPruner interface {
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunRetention prunes persisted backtest run summaries older than maxAge.
type RunRetention struct {
	tracer trace.Tracer
	runs   RunPruner
	maxAge time.Duration
	now    func() time.Time
}

func NewRunRetention(tracer trace.Tracer, runs RunPruner, maxAge time.Duration) *RunRetention {
	return &RunRetention{
		tracer: tracer,
		runs:   runs,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (j *RunRetention) Start(ctx context.Context) {
	if j == nil || j.runs == nil || j.maxAge <= 0 {
		<-ctx.Done()
		return
	}

	log.Info().Dur("max_age", j.maxAge).Msg("backtest run retention starting")
	ticker := time.NewTicker(retentionTick)
	defer ticker.Stop()

	j.runCleanup(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("backtest run retention stopped")
			return
		case <-ticker.C:
			j.runCleanup(ctx)
		}
	}
}

func (j *RunRetention) runCleanup(ctx context.Context) {
	if j.tracer != nil {
		var span trace.Span
		ctx, span = j.tracer.Start(ctx, "run-retention.cleanup")
		defer span.End()
		span.SetAttributes(attribute.Float64("max_age_hours", j.maxAge.Hours()))
	}
	cutoff := j.now().Add(-j.maxAge)
	deleted, err := j.runs.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("backtest run cleanup failed")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("backtest run cleanup removed rows")
	}
}
