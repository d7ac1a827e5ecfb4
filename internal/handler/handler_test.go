package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"macmarket/internal/config"
	"macmarket/internal/domain"
	"macmarket/internal/readiness"
	"macmarket/internal/repository"
	"macmarket/internal/service"
	"macmarket/internal/signal"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errUpstream = errors.New("upstream timeout")

func waveBars(n int) []domain.Bar {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/6) + float64(i)*0.2
		bars[i] = domain.Bar{Time: base.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

type stubStore struct {
	bars      map[string][]domain.Bar
	err       error
	lastLimit int
}

func (s *stubStore) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.bars[symbol], nil
}

type stubRuleRepo struct {
	rules []domain.AlertRule
}

func (r *stubRuleRepo) CreateAlertRule(ctx context.Context, rule domain.AlertRule) (domain.AlertRule, error) {
	rule.ID = int64(len(r.rules) + 1)
	r.rules = append(r.rules, rule)
	return rule, nil
}

func (r *stubRuleRepo) ListAlertRules(ctx context.Context, filter repository.AlertFilter) ([]domain.AlertRule, error) {
	return r.rules, nil
}

func (r *stubRuleRepo) DeleteAlertRule(ctx context.Context, id int64) (bool, error) {
	return id <= int64(len(r.rules)), nil
}

func newTestHandler(t *testing.T, store *stubStore) *Handler {
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
	bars := service.NewBarService(tracer, store, nil, nil)
	signals := service.NewSignalService(tracer, bars, engine, scorer, modes, nil, 2)
	return New(
		tracer,
		bars,
		signals,
		service.NewBacktestService(tracer, signals, nil, nil, 75),
		service.NewAlertService(tracer, signals, &stubRuleRepo{}, nil, nil),
	)
}

func serve(h *Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router := gin.New()
	h.RegisterRoutes(router)
	router.ServeHTTP(w, req)
	return w
}

func TestGetHACOSuccess(t *testing.T) {
	h := newTestHandler(t, &stubStore{bars: map[string][]domain.Bar{"AAPL": waveBars(120)}})

	w := serve(h, http.MethodGet, "/api/signals/haco?symbol=aapl&timeframe=1d&lengthUp=21&lengthDown=21", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp service.HACOSeries
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Symbol != "AAPL" || len(resp.Series) != 120 {
		t.Fatalf("unexpected payload: %s %d", resp.Symbol, len(resp.Series))
	}
}

func TestGetHACOErrorStatuses(t *testing.T) {
	store := &stubStore{bars: map[string][]domain.Bar{"AAPL": waveBars(120), "TINY": waveBars(10)}}
	h := newTestHandler(t, store)

	cases := map[string]int{
		"/api/signals/haco":                               http.StatusBadRequest,
		"/api/signals/haco?symbol=AAPL&lengthUp=abc":      http.StatusBadRequest,
		"/api/signals/haco?symbol=AAPL&lengthUp=0":        http.StatusBadRequest,
		"/api/signals/haco?symbol=AAPL&lookback=-1":       http.StatusBadRequest,
		"/api/signals/haco?symbol=AAPL&timeframe=2d":      http.StatusBadRequest,
		"/api/signals/haco?symbol=TINY":                   http.StatusUnprocessableEntity,
		"/api/signals/haco?symbol=NONE":                   http.StatusNotFound,
		"/api/signals/haco?symbol=AAPL&alertLookback=abc": http.StatusBadRequest,
	}
	for target, want := range cases {
		if w := serve(h, http.MethodGet, target, nil); w.Code != want {
			t.Fatalf("%s: expected %d, got %d: %s", target, want, w.Code, w.Body.String())
		}
	}

	store.err = errUpstream
	if w := serve(h, http.MethodGet, "/api/signals/haco?symbol=AAPL", nil); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestGetHACOInsufficientDataBody(t *testing.T) {
	h := newTestHandler(t, &stubStore{bars: map[string][]domain.Bar{"TINY": waveBars(10)}})

	w := serve(h, http.MethodGet, "/api/signals/haco?symbol=TINY", nil)
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body["have"] != float64(10) || body["need"] != float64(36) {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestScanHACO(t *testing.T) {
	h := newTestHandler(t, &stubStore{bars: map[string][]domain.Bar{"AAPL": waveBars(120)}})

	w := serve(h, http.MethodGet, "/api/signals/haco/scan?symbols=AAPL,BADSYM", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rows []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(rows) != 2 || rows[0]["symbol"] != "AAPL" || rows[1]["symbol"] != "BADSYM" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if _, ok := rows[0]["state"]; !ok {
		t.Fatalf("expected signal fields for AAPL: %v", rows[0])
	}
	if _, ok := rows[1]["error"]; !ok {
		t.Fatalf("expected an error for BADSYM: %v", rows[1])
	}

	if w := serve(h, http.MethodGet, "/api/signals/haco/scan?symbols=,", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without symbols, got %d", w.Code)
	}
}

func TestGetDashboardAndModes(t *testing.T) {
	h := newTestHandler(t, &stubStore{bars: map[string][]domain.Bar{"AAPL": waveBars(120)}})

	w := serve(h, http.MethodGet, "/api/dashboard/aapl?mode=swing", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var d map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	for _, key := range []string{"candles", "haco", "hacolt", "indicators", "readiness", "panels", "available_modes", "advanced_tabs", "entries", "exits"} {
		if _, ok := d[key]; !ok {
			t.Fatalf("dashboard missing %q", key)
		}
	}

	if w := serve(h, http.MethodGet, "/api/dashboard/AAPL?mode=scalp", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", w.Code)
	}

	w = serve(h, http.MethodGet, "/api/modes", nil)
	var modes struct {
		Modes []domain.ModeProfile `json:"modes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &modes); err != nil || len(modes.Modes) != 4 {
		t.Fatalf("unexpected modes: %v %s", err, w.Body.String())
	}
}

func TestGetCandles(t *testing.T) {
	store := &stubStore{bars: map[string][]domain.Bar{"MSFT": waveBars(3)}}
	h := newTestHandler(t, store)

	w := serve(h, http.MethodGet, "/api/candles/msft?timeframe=1h&limit=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if store.lastLimit != 3 {
		t.Fatalf("expected limit=3, got %d", store.lastLimit)
	}
	if w := serve(h, http.MethodGet, "/api/candles/MSFT?timeframe=2h", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := serve(h, http.MethodGet, "/api/candles/MSFT?limit=0", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRunBacktest(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	w := serve(h, http.MethodPost, "/api/backtest", map[string]any{
		"symbol":    "SPY",
		"timeframe": "1d",
		"bars":      waveBars(150),
		"params":    map[string]any{"strategy": "haco", "lengthUp": 8, "lengthDown": 8},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp service.BacktestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if resp.ID == "" || len(resp.EquityCurve) != 150 || resp.Stats.TradeCount != len(resp.Trades) {
		t.Fatalf("unexpected response: id=%q curve=%d", resp.ID, len(resp.EquityCurve))
	}

	w = serve(h, http.MethodPost, "/api/backtest", map[string]any{"bars": waveBars(150), "params": map[string]any{"strategy": "nope"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown strategy, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/backtest", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router := gin.New()
	h.RegisterRoutes(router)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rec.Code)
	}

	if w := serve(h, http.MethodGet, "/api/strategies", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAlertRoutes(t *testing.T) {
	h := newTestHandler(t, &stubStore{bars: map[string][]domain.Bar{"AAPL": waveBars(120)}})

	w := serve(h, http.MethodPost, "/api/alerts/test", map[string]any{"symbol": "aapl", "mode": "swing", "rules": map[string]any{"require_trend_pass": false}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if res["triggered"] != true || res["message"] == "" {
		t.Fatalf("unexpected alert result: %v", res)
	}

	if w := serve(h, http.MethodPost, "/api/alerts/test", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without symbol, got %d", w.Code)
	}

	w = serve(h, http.MethodPost, "/api/alerts", map[string]any{"symbol": "aapl", "chat_id": 42})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w := serve(h, http.MethodGet, "/api/alerts?chat_id=42", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := serve(h, http.MethodGet, "/api/alerts?chat_id=x", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := serve(h, http.MethodDelete, "/api/alerts/1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := serve(h, http.MethodDelete, "/api/alerts/99", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := serve(h, http.MethodDelete, "/api/alerts/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestNilServicesReturnUnavailable(t *testing.T) {
	h := New(trace.NewNoopTracerProvider().Tracer("test"), nil, nil, nil, nil)

	for _, target := range []string{"/api/signals/haco?symbol=AAPL", "/api/signals/haco/scan?symbols=AAPL", "/api/dashboard/AAPL", "/api/candles/AAPL", "/api/backtests", "/api/alerts"} {
		if w := serve(h, http.MethodGet, target, nil); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", target, w.Code)
		}
	}
	if w := serve(h, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", w.Code)
	}
}
