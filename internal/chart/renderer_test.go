package chart

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"macmarket/internal/domain"
	"macmarket/internal/signal"
)

func analyse(t *testing.T, count int) *signal.Analysis {
	t.Helper()
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, count)
	for i := range bars {
		c := 200 + 15*math.Sin(float64(i)/7)
		bars[i] = domain.Bar{Time: base.AddDate(0, 0, i), Open: c - 0.5, High: c + 2, Low: c - 2, Close: c, Volume: 500 + float64(i%7)*25}
	}
	engine, err := signal.NewEngine(signal.DefaultParams(), signal.DefaultLongTermParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := engine.Analyze(domain.BarSeries{Symbol: "SPY", Timeframe: "1d", Bars: bars})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func TestRenderHACO(t *testing.T) {
	out, err := NewRenderer().RenderHACO(analyse(t, 160))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if out.MimeType != "image/png" || len(out.Bytes) == 0 {
		t.Fatalf("unexpected image: %s %d bytes", out.MimeType, len(out.Bytes))
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out.Bytes))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != defaultChartWidth || cfg.Height != defaultChartHeight {
		t.Fatalf("unexpected size %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRenderHACOShortSeriesWithoutLongTerm(t *testing.T) {
	a := analyse(t, 40)
	if a.HACOLT != nil {
		t.Fatal("expected no long-term run for 40 bars")
	}
	if _, err := NewRenderer().RenderHACO(a); err != nil {
		t.Fatalf("render failed: %v", err)
	}
}

func TestRenderHACORejectsEmpty(t *testing.T) {
	if _, err := NewRenderer().RenderHACO(nil); err == nil {
		t.Fatal("expected error for nil analysis")
	}
	if _, err := NewRenderer().RenderHACO(&signal.Analysis{}); err == nil {
		t.Fatal("expected error for empty analysis")
	}
}

func TestRibbonColoursFollowState(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 10))
	drawRibbon(img, img.Bounds(), []domain.TrendState{domain.StateUp, domain.StateDown, domain.StateUnknown, domain.StateUp})
	for x, want := range map[int]color.RGBA{5: colUp, 15: colDown, 25: colUnknown, 35: colUp} {
		if got := img.RGBAAt(x, 5); got != want {
			t.Fatalf("pixel %d: expected %v, got %v", x, want, got)
		}
	}
}

func TestFiniteBounds(t *testing.T) {
	if lo, hi := finiteBounds([]float64{math.NaN(), math.Inf(1)}); lo != 0 || hi != 1 {
		t.Fatalf("expected [0,1], got [%v,%v]", lo, hi)
	}
	if lo, hi := finiteBounds([]float64{3, 3}); lo != 3 || hi != 4 {
		t.Fatalf("expected [3,4], got [%v,%v]", lo, hi)
	}
	if lo, hi := finiteBounds([]float64{2, math.NaN(), -1}); lo != -1 || hi != 2 {
		t.Fatalf("expected [-1,2], got [%v,%v]", lo, hi)
	}
}
