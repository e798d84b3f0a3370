package flow

import (
	"errors"
	"image"
	"math"
	"testing"
)

// blobImage draws a smooth Gaussian blob centered at (cx, cy), which gives
// the solver usable gradients everywhere around the blob.
func blobImage(w, h int, cx, cy float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	sigma := float64(w) / 6
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			v := uint8(255 * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)))
			i := img.PixOffset(x, y)
			img.Pix[i] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = 255
		}
	}
	return img
}

func mustEstimator(t *testing.T, p Params) *Estimator {
	t.Helper()
	e, err := NewEstimator(p)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return e
}

func TestIdenticalImagesZeroField(t *testing.T) {
	img := blobImage(64, 64, 32, 32)
	e := mustEstimator(t, DefaultParams())

	f, err := e.Estimate(img, img)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if !f.IsZero() {
		t.Errorf("field for identical images should be all zero, max magnitude %g", f.MaxMagnitude())
	}
}

func TestRecoverTranslation(t *testing.T) {
	const shift = 4.0
	a := blobImage(80, 80, 36, 40)
	b := blobImage(80, 80, 36+shift, 40)
	e := mustEstimator(t, DefaultParams())

	f, err := e.Estimate(a, b)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	// Average the recovered motion over the central region where the
	// blob provides gradients.
	var sumX, sumY float64
	var n int
	for y := 24; y < 56; y++ {
		for x := 20; x < 52; x++ {
			dx, dy := f.At(x, y)
			sumX += float64(dx)
			sumY += float64(dy)
			n++
		}
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	if meanX < shift/2 || meanX > shift*1.5 {
		t.Errorf("mean dx = %.2f, want roughly %.1f", meanX, shift)
	}
	if math.Abs(meanY) > 1.5 {
		t.Errorf("mean dy = %.2f, want roughly 0", meanY)
	}
}

func TestDimensionMismatch(t *testing.T) {
	a := blobImage(64, 64, 32, 32)
	b := blobImage(32, 64, 16, 32)
	e := mustEstimator(t, DefaultParams())

	if _, err := e.Estimate(a, b); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Estimate with mismatched sizes = %v, want ErrDimensionMismatch", err)
	}
}

func TestFlatImagesStayZero(t *testing.T) {
	// Uniform images have degenerate normal matrices everywhere; the
	// solver must fall back to zero displacement, not NaN.
	a := image.NewRGBA(image.Rect(0, 0, 48, 48))
	b := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for i := range a.Pix {
		a.Pix[i] = 128
		b.Pix[i] = 128
	}
	e := mustEstimator(t, DefaultParams())

	f, err := e.Estimate(a, b)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	for i := range f.Dx {
		if !isFinite(float64(f.Dx[i])) || !isFinite(float64(f.Dy[i])) {
			t.Fatal("field contains non-finite vectors")
		}
	}
	if !f.IsZero() {
		t.Errorf("flat images should produce a zero field, max magnitude %g", f.MaxMagnitude())
	}
}

func TestParamsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{"defaults", func(*Params) {}, true},
		{"zero scale", func(p *Params) { p.PyrScale = 0 }, false},
		{"scale one", func(p *Params) { p.PyrScale = 1 }, false},
		{"no levels", func(p *Params) { p.Levels = 0 }, false},
		{"tiny window", func(p *Params) { p.WinSize = 1 }, false},
		{"no iterations", func(p *Params) { p.Iterations = 0 }, false},
		{"bad poly n", func(p *Params) { p.PolyN = 0 }, false},
		{"bad poly sigma", func(p *Params) { p.PolySigma = -1 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			err := p.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tc.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestFieldResizeScalesVectors(t *testing.T) {
	f := NewField(4, 4)
	for i := range f.Dx {
		f.Dx[i] = 1
		f.Dy[i] = 2
	}
	up := f.resize(8, 8)
	if up.W != 8 || up.H != 8 {
		t.Fatalf("resized dims = %dx%d, want 8x8", up.W, up.H)
	}
	dx, dy := up.At(4, 4)
	if math.Abs(float64(dx)-2) > 1e-3 || math.Abs(float64(dy)-4) > 1e-3 {
		t.Errorf("resized vector = (%g, %g), want (2, 4)", dx, dy)
	}
}
