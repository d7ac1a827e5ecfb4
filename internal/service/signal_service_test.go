package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"macmarket/internal/domain"
	"macmarket/internal/scan"
	"macmarket/internal/signal"
)

func TestSignalServiceHACOSeries(t *testing.T) {
	provider := &stubProvider{series: map[string][]domain.Bar{"AAPL": waveBars(120)}}
	svc := newTestSignalService(t, provider)

	got, err := svc.HACO(context.Background(), HACORequest{Symbol: "aapl", Timeframe: "1d", Params: signal.DefaultParams()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Symbol != "AAPL" || got.Timeframe != "1d" || len(got.Series) != 120 {
		t.Fatalf("unexpected series header: %s %s %d", got.Symbol, got.Timeframe, len(got.Series))
	}
	if provider.calls[0] != "AAPL:1d:500" {
		t.Fatalf("expected default lookback, got %v", provider.calls)
	}
	for i, p := range got.Series {
		if p.Value != 0 && p.Value != 50 && p.Value != 100 {
			t.Fatalf("bar %d: unexpected encoded value %d", i, p.Value)
		}
		if i == 0 && (p.Upw || p.Dnw) {
			t.Fatal("bar 0 must never trigger")
		}
		if i > 0 && p.Changed != (p.State != got.Series[i-1].State) {
			t.Fatalf("bar %d: changed flag disagrees with state", i)
		}
		if p.Reason == "" {
			t.Fatalf("bar %d: missing reason", i)
		}
	}
	last := got.Series[len(got.Series)-1]
	if got.Last.State != last.State || got.Last.Changed != last.Changed || got.Last.Upw != last.Upw {
		t.Fatalf("last summary %+v disagrees with last point %+v", got.Last, last)
	}
	if got.Anomalies == nil {
		t.Fatal("expected a non-nil anomalies slice")
	}
}

func TestSignalServiceHACOErrors(t *testing.T) {
	provider := &stubProvider{series: map[string][]domain.Bar{"AAPL": waveBars(120), "TINY": waveBars(10)}}
	svc := newTestSignalService(t, provider)
	ctx := context.Background()

	if _, err := svc.HACO(ctx, HACORequest{Symbol: "AAPL", Timeframe: "2d", Params: signal.DefaultParams()}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected invalid timeframe, got %v", err)
	}
	bad := signal.DefaultParams()
	bad.LengthUp = 0
	if _, err := svc.HACO(ctx, HACORequest{Symbol: "AAPL", Timeframe: "1d", Params: bad}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected invalid params, got %v", err)
	}
	if len(provider.calls) != 0 {
		t.Fatalf("expected no fetch before validation, got %v", provider.calls)
	}
	if _, err := svc.HACO(ctx, HACORequest{Symbol: "TINY", Timeframe: "1d", Params: signal.DefaultParams()}); !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
	if _, err := svc.HACO(ctx, HACORequest{Symbol: "NONE", Timeframe: "1d", Params: signal.DefaultParams()}); !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("expected no data, got %v", err)
	}
}

func TestSignalServiceScanIsolatesFailures(t *testing.T) {
	provider := &stubProvider{series: map[string][]domain.Bar{"AAPL": waveBars(120)}}
	svc := newTestSignalService(t, provider)

	rows, err := svc.Scan(context.Background(), scan.Request{
		Symbols:   []string{"AAPL", "BADSYM"},
		Timeframe: "1d",
		Params:    signal.DefaultParams(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[0].Symbol != "AAPL" || rows[1].Symbol != "BADSYM" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].Failed() || !rows[1].Failed() {
		t.Fatalf("expected only BADSYM to fail: %+v", rows)
	}
	if rows[0].Readiness < 0 || rows[0].Readiness > 100 {
		t.Fatalf("readiness out of range: %v", rows[0].Readiness)
	}

	if _, err := svc.Scan(context.Background(), scan.Request{Timeframe: "1d", Params: signal.DefaultParams()}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected missing symbols error, got %v", err)
	}
}

func TestSignalServiceDashboard(t *testing.T) {
	provider := &stubProvider{series: map[string][]domain.Bar{"AAPL": waveBars(120)}}
	svc := newTestSignalService(t, provider)

	d, err := svc.Dashboard(context.Background(), "AAPL", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Mode != "swing" || d.Timeframe != "1d" || len(d.AvailableModes) != 4 {
		t.Fatalf("unexpected mode info: %s %s %v", d.Mode, d.Timeframe, d.AvailableModes)
	}
	if len(d.Candles) != 120 || len(d.HACO) != 120 || len(d.HACOLT) != 120 {
		t.Fatalf("unexpected series lengths: %d %d %d", len(d.Candles), len(d.HACO), len(d.HACOLT))
	}
	if len(d.Indicators.SMA20) != 101 || len(d.Indicators.SMA50) != 71 || len(d.Indicators.Trend) != 120 {
		t.Fatalf("unexpected indicator lengths: %d %d %d", len(d.Indicators.SMA20), len(d.Indicators.SMA50), len(d.Indicators.Trend))
	}
	if len(d.Panels) != 5 || len(d.AdvancedTabs) == 0 || len(d.Watchlist) == 0 {
		t.Fatalf("expected panels, tabs and watchlist: %+v", d)
	}
	if len(d.Exits) != 2 || d.Exits[0].Type != "atr_stop" || d.Exits[1].Value == nil {
		t.Fatalf("unexpected exits: %+v", d.Exits)
	}
	if d.Exits[0].Price >= d.Candles[119].Close {
		t.Fatalf("ATR stop %v should sit below the close %v", d.Exits[0].Price, d.Candles[119].Close)
	}
	wantEntry := d.Readiness.Score >= 60
	if wantEntry != (len(d.Entries) == 1) {
		t.Fatalf("entries %+v disagree with readiness %v", d.Entries, d.Readiness.Score)
	}
	if wantEntry && !strings.HasPrefix(d.Entries[0].Rationale, "Readiness ") {
		t.Fatalf("unexpected rationale: %q", d.Entries[0].Rationale)
	}
}

func TestSignalServiceDashboardModes(t *testing.T) {
	provider := &stubProvider{series: map[string][]domain.Bar{"AAPL": waveBars(120)}}
	svc := newTestSignalService(t, provider)

	if _, err := svc.Dashboard(context.Background(), "AAPL", "day"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls[0] != "AAPL:15m:500" {
		t.Fatalf("expected the day profile timeframe, got %v", provider.calls)
	}
	if _, err := svc.Dashboard(context.Background(), "AAPL", "scalp"); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected invalid mode, got %v", err)
	}
}

func TestSignalServiceNotInitialized(t *testing.T) {
	svc := NewSignalService(testTracer, nil, nil, nil, nil, nil, 0)
	if _, err := svc.HACO(context.Background(), HACORequest{Symbol: "AAPL", Timeframe: "1d"}); err == nil {
		t.Fatal("expected initialization error")
	}
	if _, err := svc.Dashboard(context.Background(), "AAPL", ""); err == nil {
		t.Fatal("expected initialization error")
	}
}
