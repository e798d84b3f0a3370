package flow

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrDimensionMismatch is returned when the two input images do not share
// the same pixel dimensions. It is the only error Estimate can return;
// numerical breakdown inside the solver degrades to zero displacement
// instead of failing.
var ErrDimensionMismatch = errors.New("flow: image dimensions differ")

// Params configures the pyramidal estimator. The zero value is not
// usable; start from DefaultParams.
type Params struct {
	// PyrScale is the per-level image scale factor, in (0, 1).
	// 0.5 builds a classical half-resolution pyramid.
	PyrScale float64

	// Levels is the number of pyramid levels including the original
	// resolution. 1 disables the pyramid.
	Levels int

	// WinSize is the side of the averaging window used for the
	// per-pixel normal equations. Larger values are more robust to
	// noise but blur motion boundaries.
	WinSize int

	// Iterations is the number of refinement passes per level.
	Iterations int

	// PolyN is the pixel neighborhood of the polynomial expansion
	// pre-smoothing (typically 5 or 7).
	PolyN int

	// PolySigma is the Gaussian sigma of that pre-smoothing
	// (typically 1.1 for PolyN=5, 1.5 for PolyN=7).
	PolySigma float64
}

// DefaultParams returns the conventional dense-flow defaults.
func DefaultParams() Params {
	return Params{
		PyrScale:   0.5,
		Levels:     3,
		WinSize:    15,
		Iterations: 3,
		PolyN:      5,
		PolySigma:  1.1,
	}
}

// Validate reports the first configuration problem, or nil.
func (p Params) Validate() error {
	if p.PyrScale <= 0 || p.PyrScale >= 1 {
		return fmt.Errorf("flow: pyr_scale must be in (0, 1), got %g", p.PyrScale)
	}
	if p.Levels < 1 {
		return fmt.Errorf("flow: levels must be >= 1, got %d", p.Levels)
	}
	if p.WinSize < 3 {
		return fmt.Errorf("flow: win_size must be >= 3, got %d", p.WinSize)
	}
	if p.Iterations < 1 {
		return fmt.Errorf("flow: iterations must be >= 1, got %d", p.Iterations)
	}
	if p.PolyN < 1 {
		return fmt.Errorf("flow: poly_n must be >= 1, got %d", p.PolyN)
	}
	if p.PolySigma <= 0 {
		return fmt.Errorf("flow: poly_sigma must be > 0, got %g", p.PolySigma)
	}
	return nil
}

// Estimator computes dense motion fields between same-sized images.
// It is stateless apart from its parameters and safe for concurrent use.
type Estimator struct {
	params Params
}

// NewEstimator returns an estimator with the given parameters.
// Invalid parameters are a construction-time error.
func NewEstimator(p Params) (*Estimator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{params: p}, nil
}

// Params returns the estimator's configuration.
func (e *Estimator) Params() Params { return e.params }

// minLevelSize stops the pyramid before levels become too small to carry
// meaningful gradients.
const minLevelSize = 16

// Estimate computes the dense displacement field from src to dst.
// Both images must have identical dimensions.
func (e *Estimator) Estimate(src, dst *image.RGBA) (*Field, error) {
	sb, db := src.Bounds(), dst.Bounds()
	if sb.Dx() != db.Dx() || sb.Dy() != db.Dy() {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d",
			ErrDimensionMismatch, sb.Dx(), sb.Dy(), db.Dx(), db.Dy())
	}

	radius := e.params.PolyN / 2
	if radius < 1 {
		radius = 1
	}
	a := grayPlane(src).smooth(radius, e.params.PolySigma)
	b := grayPlane(dst).smooth(radius, e.params.PolySigma)

	pyrA := buildPyramid(a, e.params.PyrScale, e.params.Levels)
	pyrB := buildPyramid(b, e.params.PyrScale, e.params.Levels)

	// Coarse to fine. Pyramids are stored finest-first.
	var field *Field
	for lvl := len(pyrA) - 1; lvl >= 0; lvl-- {
		la, lb := pyrA[lvl], pyrB[lvl]
		if field == nil {
			field = NewField(la.w, la.h)
		} else {
			field = field.resize(la.w, la.h)
		}
		for i := 0; i < e.params.Iterations; i++ {
			e.refine(la, lb, field)
		}
	}
	return field, nil
}

// buildPyramid returns planes from finest (index 0) to coarsest, stopping
// early when a level would drop below minLevelSize in either dimension.
func buildPyramid(p *plane, scale float64, levels int) []*plane {
	pyr := []*plane{p}
	for i := 1; i < levels; i++ {
		prev := pyr[i-1]
		w := int(float64(prev.w) * scale)
		h := int(float64(prev.h) * scale)
		if w < minLevelSize || h < minLevelSize {
			break
		}
		pyr = append(pyr, prev.downsample(w, h))
	}
	return pyr
}

// refine runs one pass of the windowed gradient solver, updating field in
// place. The target image is warped by the current field estimate so each
// pass solves for a residual displacement.
func (e *Estimator) refine(a, b *plane, field *Field) {
	w, h := a.w, a.h
	win := e.params.WinSize / 2

	ix := newPlane(w, h)
	iy := newPlane(w, h)
	it := newPlane(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			// Warp the target by the current estimate; the residual
			// brightness difference drives the update.
			wx := float64(x) + float64(field.Dx[i])
			wy := float64(y) + float64(field.Dy[i])
			warped := b.sample(wx, wy)

			gx := (float64(a.at(x+1, y)) - float64(a.at(x-1, y))) / 2
			gy := (float64(a.at(x, y+1)) - float64(a.at(x, y-1))) / 2
			// Average with the warped target gradient for symmetry.
			gx = (gx + (b.sample(wx+1, wy)-b.sample(wx-1, wy))/2) / 2
			gy = (gy + (b.sample(wx, wy+1)-b.sample(wx, wy-1))/2) / 2

			ix.pix[i] = float32(gx)
			iy.pix[i] = float32(gy)
			it.pix[i] = float32(warped - float64(a.pix[i]))
		}
	}

	// Product planes feed summed-area tables so the window sums are O(1)
	// per pixel regardless of WinSize.
	xx := newPlane(w, h)
	xy := newPlane(w, h)
	yy := newPlane(w, h)
	xt := newPlane(w, h)
	yt := newPlane(w, h)
	for i := range ix.pix {
		gx, gy, gt := float64(ix.pix[i]), float64(iy.pix[i]), float64(it.pix[i])
		xx.pix[i] = float32(gx * gx)
		xy.pix[i] = float32(gx * gy)
		yy.pix[i] = float32(gy * gy)
		xt.pix[i] = float32(gx * gt)
		yt.pix[i] = float32(gy * gt)
	}
	sxx := newIntegral(xx)
	sxy := newIntegral(xy)
	syy := newIntegral(yy)
	sxt := newIntegral(xt)
	syt := newIntegral(yt)

	maxStep := float64(e.params.WinSize)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0, x1, y1 := x-win, y-win, x+win, y+win
			axx := sxx.window(x0, y0, x1, y1)
			axy := sxy.window(x0, y0, x1, y1)
			ayy := syy.window(x0, y0, x1, y1)
			axt := sxt.window(x0, y0, x1, y1)
			ayt := syt.window(x0, y0, x1, y1)

			det := axx*ayy - axy*axy
			// Degenerate (flat or aperture-limited) region: keep the
			// current estimate rather than emit garbage.
			if det < 1e-4 {
				continue
			}
			du := (axy*ayt - ayy*axt) / det
			dv := (axy*axt - axx*ayt) / det
			if !isFinite(du) || !isFinite(dv) {
				continue
			}
			if du > maxStep {
				du = maxStep
			} else if du < -maxStep {
				du = -maxStep
			}
			if dv > maxStep {
				dv = maxStep
			} else if dv < -maxStep {
				dv = -maxStep
			}
			i := y*w + x
			field.Dx[i] += float32(du)
			field.Dy[i] += float32(dv)
		}
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
