package morph

import (
	"image"

	"github.com/mhartmeier/chartmorph/pkg/frame"
)

// Synthesizer drains a Plan into frames. It is lazy (each frame is
// computed on demand, not cached), finite, and non-restartable: once
// exhausted it only reports done. Not safe for concurrent use; the
// transition controller owns it exclusively.
type Synthesizer struct {
	plan *Plan
	next int
}

// NewSynthesizer returns a synthesizer positioned before the first frame.
func NewSynthesizer(p *Plan) *Synthesizer {
	return &Synthesizer{plan: p}
}

// Remaining returns how many frames are still to be emitted.
func (s *Synthesizer) Remaining() int {
	return len(s.plan.Steps) - s.next
}

// Next produces the next intermediate frame, or (nil, false) when the
// plan is exhausted.
//
// The frame at parameter t is built by warping the source forward by
// t·field and the destination backward by (1−t)·field, then
// cross-dissolving the two with linear weight t. At t=0 this reproduces
// the source exactly and at t=1 the destination frame itself is returned.
// Emitted frames carry the destination's sequence number so the displayed
// sequence never moves backwards.
func (s *Synthesizer) Next() (*frame.Frame, bool) {
	if s.next >= len(s.plan.Steps) {
		return nil, false
	}
	t := s.plan.Steps[s.next]
	s.next++

	if t >= 1 {
		// Displaying current verbatim; no resampling pass.
		return s.plan.Dst, true
	}

	src, dst := s.plan.Src.Img, s.plan.Dst.Img
	field := s.plan.Field
	w, h := field.W, field.H
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := field.At(x, y)
			fx, fy := float64(dx), float64(dy)

			// Inverse sampling: content moves forward along the field
			// as t grows, so the source is read behind the vector and
			// the destination ahead of the remainder.
			sr, sg, sb, sa := sampleBilinear(src, float64(x)-t*fx, float64(y)-t*fy)
			dr, dg, db, da := sampleBilinear(dst, float64(x)+(1-t)*fx, float64(y)+(1-t)*fy)

			i := out.PixOffset(x, y)
			out.Pix[i] = blend(sr, dr, t)
			out.Pix[i+1] = blend(sg, dg, t)
			out.Pix[i+2] = blend(sb, db, t)
			out.Pix[i+3] = blend(sa, da, t)
		}
	}

	f := frame.New(out, s.plan.Dst.Seq, "morph")
	return f, true
}

// blend cross-dissolves two samples with weight t toward b, clamped to
// the valid color range.
func blend(a, b uint8, t float64) uint8 {
	v := float64(a)*(1-t) + float64(b)*t
	if v < 0 {
		v = 0
	} else if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}

// sampleBilinear reads an RGBA image at fractional coordinates with edge
// clamping: positions outside the bounds take the nearest valid sample,
// so warps never introduce wraparound or black seams.
func sampleBilinear(img *image.RGBA, x, y float64) (r, g, b, a uint8) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if x < 0 {
		x = 0
	} else if x > float64(w-1) {
		x = float64(w - 1)
	}
	if y < 0 {
		y = 0
	} else if y > float64(h-1) {
		y = float64(h - 1)
	}

	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 >= w {
		x1 = w - 1
	}
	if y1 >= h {
		y1 = h - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)

	i00 := img.PixOffset(x0, y0)
	i10 := img.PixOffset(x1, y0)
	i01 := img.PixOffset(x0, y1)
	i11 := img.PixOffset(x1, y1)

	ch := func(off int) uint8 {
		top := float64(img.Pix[i00+off])*(1-fx) + float64(img.Pix[i10+off])*fx
		bot := float64(img.Pix[i01+off])*(1-fx) + float64(img.Pix[i11+off])*fx
		v := top*(1-fy) + bot*fy
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		return uint8(v + 0.5)
	}
	return ch(0), ch(1), ch(2), ch(3)
}
