// Package morph synthesizes intermediate frames between two endpoint
// images along a dense motion field.
//
// A TransitionPlan fixes the endpoints, the field, and the ordered blend
// parameters; the Synthesizer then produces the frames lazily, one per
// call, because transitions are drained exactly once and never replayed.
package morph

import (
	"fmt"

	"github.com/mhartmeier/chartmorph/pkg/flow"
	"github.com/mhartmeier/chartmorph/pkg/frame"
)

// Plan is an immutable description of one transition: source and
// destination frames, the motion field estimated between them, and the
// blend parameters t0=0 < t1 < … < tk=1. It is consumed strictly in
// order by a Synthesizer.
type Plan struct {
	Src   *frame.Frame
	Dst   *frame.Frame
	Field *flow.Field
	Steps []float64
}

// NewPlan builds a plan with steps+1 evenly spaced blend parameters from
// 0 to 1 inclusive. The endpoints must share dimensions with each other
// and with the field.
func NewPlan(src, dst *frame.Frame, field *flow.Field, steps int) (*Plan, error) {
	if steps < 1 {
		return nil, fmt.Errorf("morph: step count must be >= 1, got %d", steps)
	}
	if !src.SameSize(dst) {
		return nil, fmt.Errorf("morph: endpoint dimensions differ: %dx%d vs %dx%d",
			src.Width(), src.Height(), dst.Width(), dst.Height())
	}
	if field.W != src.Width() || field.H != src.Height() {
		return nil, fmt.Errorf("morph: field dimensions %dx%d do not match images %dx%d",
			field.W, field.H, src.Width(), src.Height())
	}

	ts := make([]float64, steps+1)
	for i := range ts {
		ts[i] = float64(i) / float64(steps)
	}
	return &Plan{Src: src, Dst: dst, Field: field, Steps: ts}, nil
}

// FrameCount returns the number of frames the plan will emit.
func (p *Plan) FrameCount() int { return len(p.Steps) }
