package mcp

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"macmarket/internal/config"
	"macmarket/internal/domain"
	"macmarket/internal/readiness"
	"macmarket/internal/service"
	"macmarket/internal/signal"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"
)

type stubBarStore struct {
	mu    sync.Mutex
	bars  map[string][]domain.Bar
	calls []string
}

func (s *stubBarStore) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	s.mu.Lock()
	s.calls = append(s.calls, symbol+":"+timeframe)
	s.mu.Unlock()
	bars := s.bars[symbol]
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return append([]domain.Bar(nil), bars...), nil
}

type stubRunRepo struct {
	saved []domain.BacktestRun
}

func (r *stubRunRepo) SaveRun(ctx context.Context, run domain.BacktestRun) error {
	r.saved = append(r.saved, run)
	return nil
}

func (r *stubRunRepo) ListRuns(ctx context.Context, symbol string, limit int) ([]domain.BacktestRun, error) {
	return r.saved, nil
}

func trendingBars(n int) []domain.Bar {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		c := 100 + 8*math.Sin(float64(i)/5) + float64(i)*0.3
		bars[i] = domain.Bar{
			Time:   base.AddDate(0, 0, i),
			Open:   c - 0.4,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000 + float64(i%5)*40,
		}
	}
	return bars
}

type testDeps struct {
	store *stubBarStore
	runs  *stubRunRepo
}

func testServer(t *testing.T) (*sdkmcp.Server, *testDeps) {
	t.Helper()
	return newTestServer(t, nil)
}

// newTestServer wires the services to stub stores. A non-nil serverTracer
// traces MCP requests; the services always use a no-op tracer.
func newTestServer(t *testing.T, serverTracer trace.Tracer) (*sdkmcp.Server, *testDeps) {
	t.Helper()
	tracer := trace.NewNoopTracerProvider().Tracer("test")

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

	deps := &testDeps{
		store: &stubBarStore{bars: map[string][]domain.Bar{
			"AAPL": trendingBars(200),
			"TINY": trendingBars(10),
		}},
		runs: &stubRunRepo{},
	}
	bars := service.NewBarService(tracer, deps.store, nil, nil)
	signals := service.NewSignalService(tracer, bars, engine, scorer, modes, nil, 2)
	backtests := service.NewBacktestService(tracer, signals, deps.runs, nil, 75)
	alerts := service.NewAlertService(tracer, signals, nil, nil, nil)

	srv := NewServer(serverTracer, signals, backtests, alerts, ServerConfig{RequestTimeout: 2 * time.Second})
	return srv, deps
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func openSession(t *testing.T) (context.Context, *sdkmcp.ClientSession, *testDeps) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	srv, deps := testServer(t)
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() {
		_ = session.Close()
		shutdown()
	})
	return ctx, session, deps
}

type authRoundTripper struct {
	token string
	base  http.RoundTripper
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.token != "" {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}

func decodeStructured(t *testing.T, res *sdkmcp.CallToolResult, out any) {
	t.Helper()
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(res))
	}
	body, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("decode structured content: %v", err)
	}
}

func toolText(res *sdkmcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
