// Package chart rasterizes a market series into the conditioning image
// for generation.
//
// The output is deliberately high-contrast and sparse: a dark background
// with a single bright price line (or candlesticks) reads well as an edge
// map for image-conditioned generation, and the annotations stay legible
// when the stylized result is displayed on its own.
package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/mhartmeier/chartmorph/pkg/errors"
	"github.com/mhartmeier/chartmorph/pkg/market"
)

// Style selects the chart drawing mode.
type Style string

const (
	StyleLine    Style = "line"
	StyleCandles Style = "candles"
)

// Colors used for direction-dependent drawing.
var (
	colorBackground = color.RGBA{12, 14, 20, 255}
	colorGrid       = color.RGBA{40, 44, 56, 255}
	colorUp         = color.RGBA{72, 199, 142, 255}
	colorDown       = color.RGBA{235, 87, 87, 255}
	colorFlat       = color.RGBA{180, 180, 190, 255}
	colorText       = color.RGBA{220, 222, 228, 255}
)

// Options control rendering.
type Options struct {
	Width  int
	Height int
	Style  Style

	// ShowAnnotations draws symbol, price, change and timestamp.
	ShowAnnotations bool

	// GridLines is the number of horizontal guide lines. 0 disables the grid.
	GridLines int
}

// DefaultOptions returns the standard appliance chart setup.
func DefaultOptions() Options {
	return Options{
		Width:           768,
		Height:          512,
		Style:           StyleLine,
		ShowAnnotations: true,
		GridLines:       4,
	}
}

// Renderer draws series charts at a fixed resolution.
type Renderer struct {
	opts Options
}

// NewRenderer validates opts and creates a renderer.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"%s", fmt.Sprintf("chart resolution %dx%d is not positive", opts.Width, opts.Height))
	}
	if opts.Style == "" {
		opts.Style = StyleLine
	}
	if opts.Style != StyleLine && opts.Style != StyleCandles {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s", fmt.Sprintf("unknown chart style %q", opts.Style))
	}
	return &Renderer{opts: opts}, nil
}

// Render draws the series and returns an RGBA image at the configured
// resolution.
func (r *Renderer) Render(s *market.Series) (*image.RGBA, error) {
	if s == nil || len(s.Candles) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "series has no candles")
	}

	w, h := r.opts.Width, r.opts.Height
	dc := gg.NewContext(w, h)
	dc.SetColor(colorBackground)
	dc.Clear()

	// Plot area with margins for annotations.
	top, bottom, left, right := 24.0, 24.0, 16.0, 16.0
	if r.opts.ShowAnnotations {
		top = 64.0
		bottom = 40.0
	}
	plotW := float64(w) - left - right
	plotH := float64(h) - top - bottom

	lo, hi := priceRange(s)
	toY := func(price float64) float64 {
		if hi == lo {
			return top + plotH/2
		}
		return top + plotH*(1-(price-lo)/(hi-lo))
	}

	r.drawGrid(dc, left, top, plotW, plotH)

	lineColor := directionColor(s.Direction())
	switch r.opts.Style {
	case StyleCandles:
		r.drawCandles(dc, s, left, plotW, toY)
	default:
		r.drawLine(dc, s, lineColor, left, plotW, toY)
	}

	if r.opts.ShowAnnotations {
		r.drawAnnotations(dc, s, lineColor)
	}

	return toRGBA(dc.Image()), nil
}

// RenderResized renders and then resizes to the target resolution with
// Lanczos resampling. Used when the generation backend wants a different
// size than the chart's native one.
func (r *Renderer) RenderResized(s *market.Series, width, height int) (*image.RGBA, error) {
	img, err := r.Render(s)
	if err != nil {
		return nil, err
	}
	if width == r.opts.Width && height == r.opts.Height {
		return img, nil
	}
	if width <= 0 || height <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"%s", fmt.Sprintf("target resolution %dx%d is not positive", width, height))
	}
	return toRGBA(imaging.Resize(img, width, height, imaging.Lanczos)), nil
}

func (r *Renderer) drawGrid(dc *gg.Context, left, top, plotW, plotH float64) {
	if r.opts.GridLines <= 0 {
		return
	}
	dc.SetColor(colorGrid)
	dc.SetLineWidth(1)
	for i := 0; i <= r.opts.GridLines; i++ {
		y := top + plotH*float64(i)/float64(r.opts.GridLines)
		dc.DrawLine(left, y, left+plotW, y)
		dc.Stroke()
	}
}

func (r *Renderer) drawLine(dc *gg.Context, s *market.Series, c color.Color, left, plotW float64, toY func(float64) float64) {
	n := len(s.Candles)
	dc.SetColor(c)
	dc.SetLineWidth(3)
	for i, candle := range s.Candles {
		x := left + plotW*pos(i, n)
		y := toY(candle.Close)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()
}

func (r *Renderer) drawCandles(dc *gg.Context, s *market.Series, left, plotW float64, toY func(float64) float64) {
	n := len(s.Candles)
	bodyW := math.Max(1, plotW/float64(n)*0.6)
	for i, candle := range s.Candles {
		x := left + plotW*pos(i, n)
		c := colorUp
		if candle.Close < candle.Open {
			c = colorDown
		}
		dc.SetColor(c)

		// Wick
		dc.SetLineWidth(1)
		dc.DrawLine(x, toY(candle.High), x, toY(candle.Low))
		dc.Stroke()

		// Body
		yOpen, yClose := toY(candle.Open), toY(candle.Close)
		yTop := math.Min(yOpen, yClose)
		hBody := math.Max(1, math.Abs(yOpen-yClose))
		dc.DrawRectangle(x-bodyW/2, yTop, bodyW, hBody)
		dc.Fill()
	}
}

func (r *Renderer) drawAnnotations(dc *gg.Context, s *market.Series, c color.Color) {
	w := float64(r.opts.Width)
	h := float64(r.opts.Height)

	dc.SetFontFace(basicfont.Face7x13)

	title := s.Symbol
	if s.Name != "" {
		title = fmt.Sprintf("%s  %s", s.Symbol, s.Name)
	}
	dc.SetColor(colorText)
	dc.DrawStringAnchored(title, 16, 24, 0, 0.5)

	quote := fmt.Sprintf("%.2f %s  %+.2f (%+.2f%%)", s.Price, s.Currency, s.Change(), s.ChangePct())
	dc.SetColor(c)
	dc.DrawStringAnchored(quote, 16, 44, 0, 0.5)

	dc.SetColor(colorText)
	ts := s.FetchedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	dc.DrawStringAnchored(ts.Format("2006-01-02 15:04"), w-16, h-16, 1, 0.5)
}

func directionColor(d market.Direction) color.Color {
	switch d {
	case market.Up:
		return colorUp
	case market.Down:
		return colorDown
	default:
		return colorFlat
	}
}

// pos maps candle index i of n onto [0, 1].
func pos(i, n int) float64 {
	if n <= 1 {
		return 0.5
	}
	return float64(i) / float64(n-1)
}

func priceRange(s *market.Series) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range s.Candles {
		low, high := c.Low, c.High
		if low == 0 {
			low = c.Close
		}
		if high == 0 {
			high = c.Close
		}
		lo = math.Min(lo, low)
		hi = math.Max(hi, high)
	}
	return lo, hi
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
