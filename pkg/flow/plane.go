package flow

import (
	"image"
	"math"
)

// plane is a single-channel float32 image used for pyramid levels.
type plane struct {
	w, h int
	pix  []float32
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]float32, w*h)}
}

// grayPlane reduces an RGBA image to Rec. 601 luma.
func grayPlane(img *image.RGBA) *plane {
	b := img.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride : (y-b.Min.Y)*img.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			r := float32(row[x*4])
			g := float32(row[x*4+1])
			bl := float32(row[x*4+2])
			p.pix[i] = 0.299*r + 0.587*g + 0.114*bl
			i++
		}
	}
	return p
}

func (p *plane) at(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= p.w {
		x = p.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.h {
		y = p.h - 1
	}
	return p.pix[y*p.w+x]
}

// sample bilinearly interpolates with edge clamping.
func (p *plane) sample(x, y float64) float64 {
	if x < 0 {
		x = 0
	} else if x > float64(p.w-1) {
		x = float64(p.w - 1)
	}
	if y < 0 {
		y = 0
	} else if y > float64(p.h-1) {
		y = float64(p.h - 1)
	}
	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 >= p.w {
		x1 = p.w - 1
	}
	if y1 >= p.h {
		y1 = p.h - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)
	top := float64(p.pix[y0*p.w+x0])*(1-fx) + float64(p.pix[y0*p.w+x1])*fx
	bot := float64(p.pix[y1*p.w+x0])*(1-fx) + float64(p.pix[y1*p.w+x1])*fx
	return top*(1-fy) + bot*fy
}

// gaussianKernel builds a normalized 1D kernel of the given radius.
func gaussianKernel(radius int, sigma float64) []float64 {
	if radius < 1 {
		radius = 1
	}
	if sigma <= 0 {
		sigma = float64(radius) / 2
	}
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// smooth applies a separable Gaussian blur and returns a new plane.
func (p *plane) smooth(radius int, sigma float64) *plane {
	k := gaussianKernel(radius, sigma)
	r := len(k) / 2

	tmp := newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float64
			for i := -r; i <= r; i++ {
				acc += float64(p.at(x+i, y)) * k[i+r]
			}
			tmp.pix[y*p.w+x] = float32(acc)
		}
	}
	out := newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float64
			for i := -r; i <= r; i++ {
				acc += float64(tmp.at(x, y+i)) * k[i+r]
			}
			out.pix[y*p.w+x] = float32(acc)
		}
	}
	return out
}

// downsample resamples the plane to (w, h) by area-ish bilinear sampling.
func (p *plane) downsample(w, h int) *plane {
	out := newPlane(w, h)
	sx := float64(p.w) / float64(w)
	sy := float64(p.h) / float64(h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.pix[y*w+x] = float32(p.sample((float64(x)+0.5)*sx-0.5, (float64(y)+0.5)*sy-0.5))
		}
	}
	return out
}

// integral builds a summed-area table with one extra row/column of zeros,
// so windowed sums reduce to four lookups.
type integral struct {
	w, h int
	sum  []float64
}

func newIntegral(p *plane) *integral {
	w, h := p.w+1, p.h+1
	s := make([]float64, w*h)
	for y := 1; y < h; y++ {
		var rowSum float64
		for x := 1; x < w; x++ {
			rowSum += float64(p.pix[(y-1)*p.w+(x-1)])
			s[y*w+x] = s[(y-1)*w+x] + rowSum
		}
	}
	return &integral{w: w, h: h, sum: s}
}

// window returns the sum over the clamped rectangle [x0,x1] × [y0,y1]
// (inclusive pixel coordinates).
func (s *integral) window(x0, y0, x1, y1 int) float64 {
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= s.w-1 {
		x1 = s.w - 2
	}
	if y1 >= s.h-1 {
		y1 = s.h - 2
	}
	if x1 < x0 || y1 < y0 {
		return 0
	}
	x1++
	y1++
	return s.sum[y1*s.w+x1] - s.sum[y0*s.w+x1] - s.sum[y1*s.w+x0] + s.sum[y0*s.w+x0]
}
