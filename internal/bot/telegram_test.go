package bot

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"macmarket/internal/chart"
	"macmarket/internal/domain"
	"macmarket/internal/scan"
	"macmarket/internal/service"
	"macmarket/internal/signal"

	tele "gopkg.in/telebot.v3"
)

type stubSignals struct {
	series   *service.HACOSeries
	analysis *signal.Analysis
	rows     []domain.ScanRow
	err      error
	lastReq  service.HACORequest
	lastScn  scan.Request
}

func (s *stubSignals) DefaultParams() signal.Params { return signal.DefaultParams() }
func (s *stubSignals) DefaultLookback() int         { return 500 }

func (s *stubSignals) Analyze(ctx context.Context, req service.HACORequest) (*signal.Analysis, error) {
	s.lastReq = req
	return s.analysis, s.err
}

func (s *stubSignals) HACO(ctx context.Context, req service.HACORequest) (*service.HACOSeries, error) {
	s.lastReq = req
	return s.series, s.err
}

func (s *stubSignals) Scan(ctx context.Context, req scan.Request) ([]domain.ScanRow, error) {
	s.lastScn = req
	return s.rows, s.err
}

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	if d := StartTelegramBot("", nil); d != nil {
		t.Fatal("expected no dispatcher without a token")
	}
}

func TestHACOReply(t *testing.T) {
	sig := &stubSignals{series: &service.HACOSeries{
		Symbol:    "AAPL",
		Timeframe: "4h",
		Series:    []service.HACOPoint{{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Close: 181.5}},
		Last:      service.HACOLast{State: domain.StateUp, Changed: true, Upw: true, LTState: domain.StateDown, Reason: "upw fired"},
	}}

	reply := hacoReply(context.Background(), sig, []string{"aapl", "4h"})
	if sig.lastReq.Symbol != "AAPL" || sig.lastReq.Timeframe != "4h" || sig.lastReq.Lookback != 500 {
		t.Fatalf("unexpected request: %+v", sig.lastReq)
	}
	for _, want := range []string{"AAPL 4h HACO UP (changed)", "HACOLT: DOWN", "Buy trigger fired", "Close 181.50", "upw fired"} {
		if !strings.Contains(reply, want) {
			t.Fatalf("expected %q in reply:\n%s", want, reply)
		}
	}
}

func TestHACOReplyErrors(t *testing.T) {
	if got := hacoReply(context.Background(), &stubSignals{}, nil); !strings.HasPrefix(got, "Usage") {
		t.Fatalf("expected usage, got %q", got)
	}
	if got := hacoReply(context.Background(), &stubSignals{}, []string{"AAPL", "5m"}); !strings.Contains(got, "Unsupported timeframe") {
		t.Fatalf("expected timeframe error, got %q", got)
	}
	sig := &stubSignals{err: &domain.InsufficientDataError{Have: 10, Need: 36}}
	if got := hacoReply(context.Background(), sig, []string{"NEW"}); got != "NEW: not enough bars (have 10, need 36)" {
		t.Fatalf("unexpected reply: %q", got)
	}
	sig = &stubSignals{err: domain.NewProviderError("ZZZ", domain.ErrNoData)}
	if got := hacoReply(context.Background(), sig, []string{"zzz"}); got != "ZZZ: no data" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestParseScanArgs(t *testing.T) {
	got := parseScanArgs([]string{"aapl,msft", "nvda", "AAPL,,"})
	if !reflect.DeepEqual(got, []string{"AAPL", "MSFT", "NVDA"}) {
		t.Fatalf("unexpected symbols: %v", got)
	}
}

func TestScanReply(t *testing.T) {
	sig := &stubSignals{rows: []domain.ScanRow{
		{Symbol: "AAPL", State: domain.StateUp, Upw: true, Changed: true, LTState: domain.StateUp, Readiness: 80},
		{Symbol: "BADSYM", Error: "no bars available"},
	}}
	reply := scanReply(context.Background(), sig, []string{"AAPL,BADSYM"})

	if !reflect.DeepEqual(sig.lastScn.Symbols, []string{"AAPL", "BADSYM"}) || sig.lastScn.Timeframe != "1d" {
		t.Fatalf("unexpected scan request: %+v", sig.lastScn)
	}
	if !strings.Contains(reply, "AAPL: UP BUY * (LT UP, readiness 80)") {
		t.Fatalf("unexpected reply:\n%s", reply)
	}
	if !strings.Contains(reply, "BADSYM: error: no bars available") {
		t.Fatalf("expected failed row in reply:\n%s", reply)
	}

	if got := scanReply(context.Background(), sig, nil); !strings.HasPrefix(got, "Usage") {
		t.Fatalf("expected usage, got %q", got)
	}
	if got := scanReply(context.Background(), nil, []string{"AAPL"}); got != "Signal service unavailable" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestChartReply(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 80)
	for i := range bars {
		c := 50 + float64(i)
		bars[i] = domain.Bar{Time: base.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	engine, err := signal.NewEngine(signal.DefaultParams(), signal.DefaultLongTermParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := engine.Analyze(domain.BarSeries{Symbol: "NVDA", Timeframe: "1d", Bars: bars})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sig := &stubSignals{analysis: a}
	reply := chartReply(context.Background(), sig, chart.NewRenderer(), []string{"nvda"})
	photo, ok := reply.(*tele.Photo)
	if !ok {
		t.Fatalf("expected a photo, got %#v", reply)
	}
	if !strings.HasPrefix(photo.Caption, "NVDA 1d HACO ") || !strings.Contains(photo.Caption, "HACOLT") {
		t.Fatalf("unexpected caption: %q", photo.Caption)
	}
	if sig.lastReq.Symbol != "NVDA" || sig.lastReq.Timeframe != "1d" {
		t.Fatalf("unexpected request: %+v", sig.lastReq)
	}
}

func TestChartReplyErrors(t *testing.T) {
	r := chart.NewRenderer()
	if got := chartReply(context.Background(), nil, r, []string{"AAPL"}); got != "Signal service unavailable" {
		t.Fatalf("unexpected reply: %#v", got)
	}
	if got := chartReply(context.Background(), &stubSignals{}, r, nil); got != "Usage: /chart AAPL [timeframe]" {
		t.Fatalf("unexpected reply: %#v", got)
	}
	sig := &stubSignals{err: domain.NewProviderError("ZZZ", domain.ErrNoData)}
	if got := chartReply(context.Background(), sig, r, []string{"zzz"}); got != "ZZZ: no data" {
		t.Fatalf("unexpected reply: %#v", got)
	}
	if got := chartReply(context.Background(), &stubSignals{}, r, []string{"EMPTY"}); got != "EMPTY: chart unavailable" {
		t.Fatalf("unexpected reply: %#v", got)
	}
}
