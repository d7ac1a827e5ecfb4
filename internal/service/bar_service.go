package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"macmarket/internal/domain"
	"macmarket/internal/metrics"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type BarStore interface {
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error)
}

type SeriesCache interface {
	Get(ctx context.Context, symbol, timeframe string, limit int) (domain.BarSeries, bool, error)
	Set(ctx context.Context, series domain.BarSeries, limit int) error
}

// BarService serves validated bar series, reading through the cache to
// the bar store.
type BarService struct {
	tracer  trace.Tracer
	store   BarStore
	cache   SeriesCache
	metrics *metrics.Recorder
}

func NewBarService(tracer trace.Tracer, store BarStore, cache SeriesCache, rec *metrics.Recorder) *BarService {
	return &BarService{tracer: tracer, store: store, cache: cache, metrics: rec}
}

func (s *BarService) GetBars(ctx context.Context, symbol, timeframe string, limit int) (domain.BarSeries, error) {
	ctx, span := s.tracer.Start(ctx, "bar-service.get-bars")
	defer span.End()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("timeframe", timeframe))

	if s.store == nil {
		return domain.BarSeries{}, fmt.Errorf("bar service is not fully initialized")
	}
	if err := ctx.Err(); err != nil {
		return domain.BarSeries{}, domain.NewProviderError(symbol, err)
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, symbol, timeframe, limit)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("bar cache read failed")
		}
		s.metrics.CacheLookup(ok)
		if ok {
			return cached, nil
		}
	}

	start := time.Now()
	bars, err := s.store.GetBars(ctx, symbol, timeframe, limit)
	s.metrics.Since("bars.fetch", start)
	if err != nil {
		return domain.BarSeries{}, domain.NewProviderError(symbol, err)
	}
	if len(bars) == 0 {
		return domain.BarSeries{}, domain.NewProviderError(symbol, domain.ErrNoData)
	}

	series := domain.BarSeries{Symbol: symbol, Timeframe: timeframe, Bars: bars}
	if err := series.Validate(); err != nil {
		return domain.BarSeries{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, series, limit); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("bar cache write failed")
		}
	}
	return series, nil
}
