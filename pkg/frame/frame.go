// Package frame defines the Frame type and the triple-slot frame buffer
// store that connects the slow generation producer to the fast render
// consumer.
//
// A Frame is an RGBA image stamped with a monotonically increasing sequence
// number. Frames are immutable once created: everything that needs to draw
// on top of one works on a Clone. The Store owns the three named slots
// (previous, current, pending) and enforces the ownership transfer rules
// between them; see Store for the contract.
package frame

import (
	"image"
	"image/color"
	"time"
)

// Frame is a displayable image plus bookkeeping metadata.
//
// The pixel data must not be mutated after construction. The sequence
// number orders frames across the whole process lifetime: a frame with a
// lower Seq is always older than one with a higher Seq, regardless of
// which network round-trip produced it.
type Frame struct {
	// Img holds the pixel data. Never nil for a constructed Frame.
	Img *image.RGBA

	// Seq is the generation sequence number. Assigned when the update
	// that produced this frame was dispatched, not when it completed.
	Seq uint64

	// CreatedAt records when the frame became available.
	CreatedAt time.Time

	// Source describes where the frame came from ("generated", "chart",
	// "placeholder", "morph"). Informational only.
	Source string
}

// New wraps an RGBA image into a Frame with the given sequence number.
func New(img *image.RGBA, seq uint64, source string) *Frame {
	return &Frame{
		Img:       img,
		Seq:       seq,
		CreatedAt: time.Now(),
		Source:    source,
	}
}

// Bounds returns the pixel bounds of the frame image.
func (f *Frame) Bounds() image.Rectangle {
	return f.Img.Bounds()
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.Img.Bounds().Dx() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.Img.Bounds().Dy() }

// SameSize reports whether two frames have identical pixel dimensions.
func (f *Frame) SameSize(other *Frame) bool {
	return other != nil && f.Width() == other.Width() && f.Height() == other.Height()
}

// Clone returns a deep copy of the frame's pixels. The clone carries the
// same sequence number and metadata; it exists so callers can draw over a
// frame without violating the immutability of the original.
func (f *Frame) Clone() *Frame {
	img := image.NewRGBA(f.Img.Bounds())
	copy(img.Pix, f.Img.Pix)
	return &Frame{
		Img:       img,
		Seq:       f.Seq,
		CreatedAt: f.CreatedAt,
		Source:    f.Source,
	}
}

// Placeholder returns the frame displayed before the first generation
// completes: a dark neutral field with a subtle center gradient, so the
// consumer always has something valid to blit.
func Placeholder(width, height int) *Frame {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	cx, cy := float64(width)/2, float64(height)/2
	maxD := cx*cx + cy*cy
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			d := (dx*dx + dy*dy) / maxD
			v := uint8(40 - 18*d)
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v + 6, A: 255})
		}
	}
	return &Frame{
		Img:       img,
		Seq:       0,
		CreatedAt: time.Now(),
		Source:    "placeholder",
	}
}
