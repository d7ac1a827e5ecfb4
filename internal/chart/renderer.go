// Package chart draws HACO analyses as PNG images for chat clients.
package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"macmarket/internal/domain"
	"macmarket/internal/signal"
)

const (
	defaultChartWidth  = 960
	defaultChartHeight = 640
	maxChartBars       = 120
	ribbonHeight       = 14
)

var (
	colBackground = color.RGBA{R: 250, G: 252, B: 255, A: 255}
	colGrid       = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	colUp         = color.RGBA{R: 18, G: 140, B: 126, A: 255}
	colDown       = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colUnknown    = color.RGBA{R: 168, G: 176, B: 190, A: 255}
	colWick       = color.RGBA{R: 58, G: 64, B: 90, A: 255}
	colMarker     = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colFast       = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colSlow       = color.RGBA{R: 255, G: 149, B: 0, A: 255}
	colVolume     = color.RGBA{R: 120, G: 139, B: 164, A: 255}
)

// Image is an encoded chart.
type Image struct {
	MimeType string
	Width    int
	Height   int
	Bytes    []byte
}

type Renderer struct {
	width   int
	height  int
	maxBars int
}

func NewRenderer() *Renderer {
	return &Renderer{width: defaultChartWidth, height: defaultChartHeight, maxBars: maxChartBars}
}

// RenderHACO draws the most recent bars of a as Heikin-Ashi candles
// coloured by HACO state, with the up-side zero-lag pair, state-change
// markers, HACO and HACOLT ribbons, and a volume panel.
func (r *Renderer) RenderHACO(a *signal.Analysis) (*Image, error) {
	if a == nil || a.HACO == nil {
		return nil, fmt.Errorf("nothing to render")
	}
	n := len(a.Bars)
	if n < 2 || a.HACO.Len() != n {
		return nil, fmt.Errorf("need at least 2 analysed bars to render chart")
	}
	start := 0
	if n > r.maxBars {
		start = n - r.maxBars
	}
	w := window{a: a, start: start, n: n - start}

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	fillRect(img, img.Bounds(), colBackground)

	mainRect := image.Rect(60, 20, r.width-20, (r.height*66)/100)
	hacoRibbon := image.Rect(60, mainRect.Max.Y+8, r.width-20, mainRect.Max.Y+8+ribbonHeight)
	ltRibbon := image.Rect(60, hacoRibbon.Max.Y+4, r.width-20, hacoRibbon.Max.Y+4+ribbonHeight)
	volRect := image.Rect(60, ltRibbon.Max.Y+12, r.width-20, r.height-30)

	drawGrid(img, mainRect, 8, 6)
	drawGrid(img, volRect, 8, 3)

	minP, maxP := w.priceBounds()
	drawMarkers(img, mainRect, w)
	drawComposite(img, mainRect, w, minP, maxP)
	drawSeries(img, mainRect, w.band(func(b domain.ZeroLagBand) float64 { return b.FastUp }), minP, maxP, colFast)
	drawSeries(img, mainRect, w.band(func(b domain.ZeroLagBand) float64 { return b.SlowUp }), minP, maxP, colSlow)

	drawRibbon(img, hacoRibbon, w.states(a.HACO.EncodedAt))
	drawRibbon(img, ltRibbon, w.states(a.LTStateAt))

	volumes := w.volumes()
	_, maxV := finiteBounds(volumes)
	drawBars(img, volRect, volumes, 0, maxV, colVolume)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &Image{MimeType: "image/png", Width: r.width, Height: r.height, Bytes: buf.Bytes()}, nil
}

// window is the visible tail of an analysis.
type window struct {
	a     *signal.Analysis
	start int
	n     int
}

func (w window) priceBounds() (float64, float64) {
	values := make([]float64, 0, 4*w.n)
	for i := w.start; i < w.start+w.n; i++ {
		c := w.a.HACO.Composite[i]
		b := w.a.HACO.Bands[i]
		values = append(values, c.HAHigh, c.HALow, b.FastUp, b.SlowUp)
	}
	return finiteBounds(values)
}

func (w window) band(pick func(domain.ZeroLagBand) float64) []float64 {
	out := make([]float64, w.n)
	for i := range out {
		out[i] = pick(w.a.HACO.Bands[w.start+i])
	}
	return out
}

func (w window) states(at func(int) domain.TrendState) []domain.TrendState {
	out := make([]domain.TrendState, w.n)
	for i := range out {
		out[i] = at(w.start + i)
	}
	return out
}

func (w window) volumes() []float64 {
	out := make([]float64, w.n)
	for i := range out {
		out[i] = w.a.Bars[w.start+i].Volume
	}
	return out
}

func stateColor(s domain.TrendState) color.RGBA {
	switch s {
	case domain.StateUp:
		return colUp
	case domain.StateDown:
		return colDown
	default:
		return colUnknown
	}
}

func drawComposite(img *image.RGBA, rect image.Rectangle, w window, minP, maxP float64) {
	candleWidth := max(3, (rect.Dx()-10)/w.n-1)
	for i := 0; i < w.n; i++ {
		c := w.a.HACO.Composite[w.start+i]
		x := mapIndexToX(i, w.n, rect)
		drawLine(img, x, mapValueToY(c.HAHigh, minP, maxP, rect), x, mapValueToY(c.HALow, minP, maxP, rect), colWick)

		openY := mapValueToY(c.HAOpen, minP, maxP, rect)
		closeY := mapValueToY(c.HAClose, minP, maxP, rect)
		top := min(openY, closeY)
		bottom := max(openY, closeY)
		if bottom-top < 2 {
			bottom = top + 2
		}
		body := image.Rect(x-candleWidth/2, top, x+candleWidth/2+1, bottom+1)
		fillRect(img, body, stateColor(w.a.HACO.EncodedAt(w.start+i)))
	}
}

func drawMarkers(img *image.RGBA, rect image.Rectangle, w window) {
	for i := 0; i < w.n; i++ {
		if !w.a.HACO.States[w.start+i].Changed {
			continue
		}
		x := mapIndexToX(i, w.n, rect)
		drawLine(img, x, rect.Min.Y, x, rect.Max.Y, colMarker)
	}
}

func drawRibbon(img *image.RGBA, rect image.Rectangle, states []domain.TrendState) {
	if len(states) == 0 {
		return
	}
	for i, s := range states {
		x0 := rect.Min.X + (i*rect.Dx())/len(states)
		x1 := rect.Min.X + ((i+1)*rect.Dx())/len(states)
		fillRect(img, image.Rect(x0, rect.Min.Y, max(x1, x0+1), rect.Max.Y), stateColor(s))
	}
}

func drawSeries(img *image.RGBA, rect image.Rectangle, series []float64, minV, maxV float64, col color.RGBA) {
	lastX, lastY := -1, -1
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			lastX, lastY = -1, -1
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(v, minV, maxV, rect)
		if lastX >= 0 {
			drawLine(img, lastX, lastY, x, y, col)
		}
		lastX, lastY = x, y
	}
}

func drawBars(img *image.RGBA, rect image.Rectangle, series []float64, minV, maxV float64, col color.RGBA) {
	barW := max(1, (rect.Dx()-10)/len(series)-1)
	zeroY := mapValueToY(0, minV, maxV, rect)
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(v, minV, maxV, rect)
		fillRect(img, image.Rect(x-barW/2, min(y, zeroY), x+barW/2+1, max(y, zeroY)+1), col)
	}
}

func drawGrid(img *image.RGBA, rect image.Rectangle, verticalLines, horizontalLines int) {
	for i := 0; i <= verticalLines; i++ {
		x := rect.Min.X + (rect.Dx()*i)/max(1, verticalLines)
		drawLine(img, x, rect.Min.Y, x, rect.Max.Y, colGrid)
	}
	for i := 0; i <= horizontalLines; i++ {
		y := rect.Min.Y + (rect.Dy()*i)/max(1, horizontalLines)
		drawLine(img, rect.Min.X, y, rect.Max.X, y, colGrid)
	}
}

func mapIndexToX(idx, total int, rect image.Rectangle) int {
	if total <= 1 {
		return rect.Min.X
	}
	return rect.Min.X + (idx*(rect.Dx()-1))/(total-1)
}

func mapValueToY(value, minV, maxV float64, rect image.Rectangle) int {
	if maxV <= minV {
		return rect.Max.Y
	}
	ratio := (value - minV) / (maxV - minV)
	ratio = math.Max(0, math.Min(1, ratio))
	return rect.Max.Y - int(ratio*float64(rect.Dy()-1))
}

// finiteBounds ignores NaN and Inf. An all-invalid input maps to [0,1].
func finiteBounds(values []float64) (float64, float64) {
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	if math.IsInf(minV, 1) || math.IsInf(maxV, -1) {
		return 0, 1
	}
	if minV == maxV {
		return minV, maxV + 1
	}
	return minV, maxV
}

func fillRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	r := rect.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// drawLine is Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	bounds := img.Bounds()
	for {
		if image.Pt(x0, y0).In(bounds) {
			img.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
