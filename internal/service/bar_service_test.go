package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"macmarket/internal/domain"
)

type stubStore struct {
	bars  []domain.Bar
	err   error
	calls int
}

func (s *stubStore) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	s.calls++
	return s.bars, s.err
}

type stubSeriesCache struct {
	series  map[string]domain.BarSeries
	getErr  error
	setErr  error
	setKeys []string
}

func (c *stubSeriesCache) Get(ctx context.Context, symbol, timeframe string, limit int) (domain.BarSeries, bool, error) {
	if c.getErr != nil {
		return domain.BarSeries{}, false, c.getErr
	}
	s, ok := c.series[symbol+":"+timeframe]
	return s, ok, nil
}

func (c *stubSeriesCache) Set(ctx context.Context, series domain.BarSeries, limit int) error {
	if c.series == nil {
		c.series = make(map[string]domain.BarSeries)
	}
	key := series.Symbol + ":" + series.Timeframe
	c.series[key] = series
	c.setKeys = append(c.setKeys, key)
	return c.setErr
}

func TestBarServiceReadsThroughCache(t *testing.T) {
	store := &stubStore{bars: waveBars(5)}
	cache := &stubSeriesCache{}
	svc := NewBarService(testTracer, store, cache, nil)

	got, err := svc.GetBars(context.Background(), " aapl ", "1d", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Symbol != "AAPL" || got.Len() != 5 {
		t.Fatalf("unexpected series: %s %d", got.Symbol, got.Len())
	}
	if len(cache.setKeys) != 1 || cache.setKeys[0] != "AAPL:1d" {
		t.Fatalf("expected cache fill, got %v", cache.setKeys)
	}

	if _, err := svc.GetBars(context.Background(), "AAPL", "1d", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected cached second read, store calls=%d", store.calls)
	}
}

func TestBarServiceCacheFailuresFallBackToStore(t *testing.T) {
	store := &stubStore{bars: waveBars(3)}
	cache := &stubSeriesCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	svc := NewBarService(testTracer, store, cache, nil)

	if _, err := svc.GetBars(context.Background(), "MSFT", "1h", 3); err != nil {
		t.Fatalf("expected store fallback, got %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected one store call, got %d", store.calls)
	}
}

func TestBarServiceErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewBarService(testTracer, &stubStore{}, nil, nil)
	if _, err := svc.GetBars(ctx, "BADSYM", "1d", 10); !errors.Is(err, domain.ErrNoData) || !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected no-data provider failure, got %v", err)
	}

	svc = NewBarService(testTracer, &stubStore{err: errors.New("connection refused")}, nil, nil)
	if _, err := svc.GetBars(ctx, "AAPL", "1d", 10); !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}

	bars := waveBars(3)
	bars[2].Time = bars[1].Time.Add(-time.Hour)
	svc = NewBarService(testTracer, &stubStore{bars: bars}, nil, nil)
	if _, err := svc.GetBars(ctx, "AAPL", "1d", 10); !errors.Is(err, domain.ErrMalformedSeries) {
		t.Fatalf("expected malformed series, got %v", err)
	}

	if _, err := NewBarService(testTracer, nil, nil, nil).GetBars(ctx, "AAPL", "1d", 10); err == nil {
		t.Fatal("expected uninitialized error")
	}
}
