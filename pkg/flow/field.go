// Package flow estimates dense 2D motion between two frames.
//
// The estimator is a coarse-to-fine pyramidal dense correspondence solver
// in the Farnebäck family: images are reduced to grayscale, pre-smoothed
// with a Gaussian controlled by the polynomial-expansion parameters, and a
// displacement field is solved per level from windowed gradient normal
// equations, with the coarse estimate warped up as the initial guess for
// the next finer level.
//
// Estimation never produces garbage vectors: regions where the normal
// matrix is degenerate (flat or textureless patches) fall back to zero
// displacement, and non-finite intermediate values are discarded. Two
// pixel-identical inputs always yield the all-zero field.
package flow

import "math"

// Field is a dense per-pixel displacement field. The vector at (x, y)
// maps a point in the source image to its estimated position in the
// target image: target ≈ source point + (Dx, Dy).
//
// A Field is only meaningful for the image pair it was computed from and
// must never be reused across unrelated pairs.
type Field struct {
	W, H int
	Dx   []float32
	Dy   []float32
}

// NewField returns an all-zero field of the given dimensions.
func NewField(w, h int) *Field {
	return &Field{
		W:  w,
		H:  h,
		Dx: make([]float32, w*h),
		Dy: make([]float32, w*h),
	}
}

// At returns the displacement vector at integer coordinates, clamped to
// the field bounds.
func (f *Field) At(x, y int) (dx, dy float32) {
	if x < 0 {
		x = 0
	} else if x >= f.W {
		x = f.W - 1
	}
	if y < 0 {
		y = 0
	} else if y >= f.H {
		y = f.H - 1
	}
	i := y*f.W + x
	return f.Dx[i], f.Dy[i]
}

// Sample returns the bilinearly interpolated displacement at fractional
// coordinates, clamped to the field bounds.
func (f *Field) Sample(x, y float64) (dx, dy float64) {
	if x < 0 {
		x = 0
	} else if x > float64(f.W-1) {
		x = float64(f.W - 1)
	}
	if y < 0 {
		y = 0
	} else if y > float64(f.H-1) {
		y = float64(f.H - 1)
	}
	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 >= f.W {
		x1 = f.W - 1
	}
	if y1 >= f.H {
		y1 = f.H - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)

	lerp := func(v []float32) float64 {
		top := float64(v[y0*f.W+x0])*(1-fx) + float64(v[y0*f.W+x1])*fx
		bot := float64(v[y1*f.W+x0])*(1-fx) + float64(v[y1*f.W+x1])*fx
		return top*(1-fy) + bot*fy
	}
	return lerp(f.Dx), lerp(f.Dy)
}

// IsZero reports whether every displacement vector is exactly zero.
func (f *Field) IsZero() bool {
	for i := range f.Dx {
		if f.Dx[i] != 0 || f.Dy[i] != 0 {
			return false
		}
	}
	return true
}

// MaxMagnitude returns the largest displacement magnitude in the field.
func (f *Field) MaxMagnitude() float64 {
	var m float64
	for i := range f.Dx {
		v := math.Hypot(float64(f.Dx[i]), float64(f.Dy[i]))
		if v > m {
			m = v
		}
	}
	return m
}

// resize returns the field resampled to (w, h) with displacement vectors
// rescaled by the size ratio. Used to carry a coarse pyramid estimate up
// to the next finer level.
func (f *Field) resize(w, h int) *Field {
	out := NewField(w, h)
	if f.W == 0 || f.H == 0 {
		return out
	}
	sx := float64(f.W) / float64(w)
	sy := float64(f.H) / float64(h)
	// Vectors scale with the coordinate system.
	vx := float64(w) / float64(f.W)
	vy := float64(h) / float64(f.H)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := f.Sample(float64(x)*sx, float64(y)*sy)
			out.Dx[y*w+x] = float32(dx * vx)
			out.Dy[y*w+x] = float32(dy * vy)
		}
	}
	return out
}
