package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"macmarket/internal/config"
	"macmarket/internal/domain"
	"macmarket/internal/readiness"
	"macmarket/internal/repository"
	"macmarket/internal/signal"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func waveBars(n int) []domain.Bar {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	open := 99.5
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/6) + float64(i)*0.2
		bars[i] = domain.Bar{
			Time:   base.AddDate(0, 0, i),
			Open:   open,
			High:   max(open, c) + 1,
			Low:    min(open, c) - 1,
			Close:  c,
			Volume: 1000 + float64(i%7)*50,
		}
		open = c
	}
	return bars
}

type stubProvider struct {
	mu     sync.Mutex
	series map[string][]domain.Bar
	err    map[string]error
	calls  []string
}

func (p *stubProvider) GetBars(ctx context.Context, symbol, timeframe string, limit int) (domain.BarSeries, error) {
	p.mu.Lock()
	p.calls = append(p.calls, fmt.Sprintf("%s:%s:%d", symbol, timeframe, limit))
	p.mu.Unlock()
	if err := p.err[symbol]; err != nil {
		return domain.BarSeries{}, err
	}
	bars, ok := p.series[symbol]
	if !ok {
		return domain.BarSeries{}, domain.NewProviderError(symbol, domain.ErrNoData)
	}
	return domain.BarSeries{Symbol: symbol, Timeframe: timeframe, Bars: bars}, nil
}

func newTestSignalService(t *testing.T, provider *stubProvider) *SignalService {
	t.Helper()
	engine, err := signal.NewEngine(signal.DefaultParams(), signal.DefaultLongTermParams())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	scorer, err := readiness.NewScorer(readiness.DefaultConfig())
	if err != nil {
		t.Fatalf("scorer: %v", err)
	}
	modes, err := config.LoadModes("")
	if err != nil {
		t.Fatalf("modes: %v", err)
	}
	return NewSignalService(testTracer, provider, engine, scorer, modes, nil, 2)
}

type stubRunRepo struct {
	saved     []domain.BacktestRun
	saveErr   error
	listSym   string
	listLimit int
}

func (r *stubRunRepo) SaveRun(ctx context.Context, run domain.BacktestRun) error {
	r.saved = append(r.saved, run)
	return r.saveErr
}

func (r *stubRunRepo) ListRuns(ctx context.Context, symbol string, limit int) ([]domain.BacktestRun, error) {
	r.listSym, r.listLimit = symbol, limit
	return r.saved, nil
}

type stubRuleRepo struct {
	created []domain.AlertRule
	filter  repository.AlertFilter
	deleted []int64
}

func (r *stubRuleRepo) CreateAlertRule(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	rule.ID = int64(len(r.created) + 1)
	r.created = append(r.created, rule)
	return rule, nil
}

func (r *stubRuleRepo) ListAlertRules(ctx context.Context, filter repository.AlertFilter) ([]domain.AlertRule, error) {
	r.filter = filter
	return r.created, nil
}

func (r *stubRuleRepo) DeleteAlertRule(ctx context.Context, id int64) (bool, error) {
	r.deleted = append(r.deleted, id)
	return id <= int64(len(r.created)), nil
}

type stubCursorStore struct {
	cursors map[string]domain.AlertCursor
}

func (s *stubCursorStore) Get(ctx context.Context, key string) (*domain.AlertCursor, error) {
	c, ok := s.cursors[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *stubCursorStore) Set(ctx context.Context, key string, cursor domain.AlertCursor) error {
	if s.cursors == nil {
		s.cursors = make(map[string]domain.AlertCursor)
	}
	s.cursors[key] = cursor
	return nil
}
