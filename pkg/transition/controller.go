// Package transition turns discrete frame updates into smooth animation.
//
// The controller runs a small state machine (Idle, Morphing, Cut) on its
// own goroutine. When a new frame lands in the pending slot it promotes
// it, estimates a dense motion field between the last displayed frame and
// the new target, and drains a morph sequence at the configured pacing.
// The render side only ever loads an atomic pointer; no state here can
// stall a draw call.
package transition

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mhartmeier/chartmorph/pkg/flow"
	"github.com/mhartmeier/chartmorph/pkg/frame"
	"github.com/mhartmeier/chartmorph/pkg/morph"
	"github.com/mhartmeier/chartmorph/pkg/observability"
)

// State identifies the controller's current mode.
type State int32

const (
	// StateIdle means the current frame is displayed as-is.
	StateIdle State = iota

	// StateMorphing means intermediate frames are being emitted.
	StateMorphing

	// StateCut means the last switch was instantaneous. The controller
	// returns to Idle on the next event; the state is kept for status
	// reporting.
	StateCut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMorphing:
		return "morphing"
	case StateCut:
		return "cut"
	default:
		return "unknown"
	}
}

// Status is a snapshot of controller activity.
type Status struct {
	State         State
	DisplaySeq    uint64
	Morphs        int
	Cuts          int
	Preemptions   int
	LastCutReason string
}

// Controller owns the display frame and the morph state machine.
type Controller struct {
	store    *frame.Store
	est      *flow.Estimator
	duration time.Duration
	steps    int
	logger   *log.Logger

	display atomic.Pointer[frame.Frame]
	wake    chan struct{}

	mu            sync.Mutex
	state         State
	morphs        int
	cuts          int
	preemptions   int
	lastCutReason string
}

// New creates a controller displaying a placeholder of the given size
// until the first frame arrives. duration is the total morph length and
// steps the number of intermediate frames; duration <= 0 or steps < 1
// disables morphing entirely (every update becomes a cut).
func New(store *frame.Store, est *flow.Estimator, duration time.Duration, steps int, width, height int, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(nil)
	}
	c := &Controller{
		store:    store,
		est:      est,
		duration: duration,
		steps:    steps,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
	c.display.Store(frame.Placeholder(width, height))
	return c
}

// DisplayFrame returns the frame to draw right now. It never blocks and
// never returns nil.
func (c *Controller) DisplayFrame() *frame.Frame {
	return c.display.Load()
}

// Notify wakes the controller to check the pending slot. Safe from any
// goroutine; redundant notifications coalesce.
func (c *Controller) Notify(uint64) {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Status returns a snapshot for status reporting.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:         c.state,
		DisplaySeq:    c.display.Load().Seq,
		Morphs:        c.morphs,
		Cuts:          c.cuts,
		Preemptions:   c.preemptions,
		LastCutReason: c.lastCutReason,
	}
}

// Run drives the state machine until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
			c.drainPending(ctx)
		}
	}
}

// drainPending consumes pending frames until the slot is empty. A frame
// arriving while a morph is in progress preempts it: the morph stops
// after the frame being emitted and a new plan starts from there.
func (c *Controller) drainPending(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if c.store.Peek(frame.SlotPending) == nil {
			c.setState(StateIdle)
			return
		}
		if err := c.store.Promote(); err != nil {
			c.setState(StateIdle)
			return
		}
		target := c.store.Peek(frame.SlotCurrent)
		src := c.display.Load()

		plan, cutReason := c.buildPlan(ctx, src, target)
		if plan == nil {
			c.cut(ctx, target, cutReason)
			c.store.ClearPrevious()
			continue
		}
		c.morph(ctx, plan)
		c.store.ClearPrevious()
	}
}

// buildPlan estimates motion and prepares the morph. A nil plan with a
// reason means the switch must be a cut instead.
func (c *Controller) buildPlan(ctx context.Context, src, dst *frame.Frame) (*morph.Plan, string) {
	if c.duration <= 0 || c.steps < 1 {
		return nil, "morphing disabled"
	}
	if !src.SameSize(dst) {
		return nil, "dimension mismatch"
	}

	start := time.Now()
	field, err := c.est.Estimate(src.Img, dst.Img)
	observability.Transition().OnEstimateComplete(ctx, time.Since(start), err)
	if err != nil {
		c.logger.Warn("motion estimation failed, cutting", "err", err)
		return nil, "estimation failed"
	}

	plan, err := morph.NewPlan(src, dst, field, c.steps)
	if err != nil {
		return nil, "plan rejected: " + err.Error()
	}
	return plan, ""
}

// cut switches to the target instantly.
func (c *Controller) cut(ctx context.Context, target *frame.Frame, reason string) {
	c.display.Store(target)
	c.mu.Lock()
	c.state = StateCut
	c.cuts++
	c.lastCutReason = reason
	c.mu.Unlock()
	observability.Transition().OnCut(ctx, target.Seq, reason)
	c.logger.Info("cut to new frame", "seq", target.Seq, "reason", reason)
}

// morph drains the synthesizer at the configured pacing, publishing each
// intermediate frame. Returns early when preempted by a new pending frame
// or when ctx is cancelled.
func (c *Controller) morph(ctx context.Context, plan *morph.Plan) {
	c.setState(StateMorphing)
	synth := morph.NewSynthesizer(plan)
	pace := c.duration / time.Duration(plan.FrameCount())
	observability.Transition().OnMorphStart(ctx, plan.Dst.Seq, plan.FrameCount())
	c.logger.Debug("morph started", "seq", plan.Dst.Seq, "frames", plan.FrameCount(), "pace", pace)

	start := time.Now()
	preempted := false
	ticker := time.NewTicker(pace)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		f, ok := synth.Next()
		if !ok {
			break
		}
		c.display.Store(f)

		if c.store.Peek(frame.SlotPending) != nil {
			preempted = true
			break
		}
	}

	if preempted {
		c.mu.Lock()
		c.preemptions++
		c.mu.Unlock()
	}
	c.mu.Lock()
	c.morphs++
	c.mu.Unlock()
	observability.Transition().OnMorphComplete(ctx, plan.Dst.Seq, preempted, time.Since(start))
	c.logger.Debug("morph finished", "seq", plan.Dst.Seq, "preempted", preempted)
	c.setState(StateIdle)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
