// Package vision assembles the frame store, update scheduler, and
// transition controller into the running appliance core.
//
// The orchestrator owns the tick loop. Consumers (the HTTP server, the
// TUI dashboard) only call DisplayFrame, ForceRefresh, and Status; none
// of those calls can block on fetching, inference, or morph synthesis.
package vision

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mhartmeier/chartmorph/pkg/flow"
	"github.com/mhartmeier/chartmorph/pkg/frame"
	"github.com/mhartmeier/chartmorph/pkg/transition"
	"github.com/mhartmeier/chartmorph/pkg/update"
)

// Options configure the orchestrator core.
type Options struct {
	// Symbol is reported in Status; the pipeline decides what to fetch.
	Symbol string

	// UpdateInterval is the cadence of regeneration.
	UpdateInterval time.Duration

	// TransitionDuration is the total morph length. Zero or negative
	// turns every update into a cut.
	TransitionDuration time.Duration

	// TransitionSteps is the number of intermediate morph frames.
	TransitionSteps int

	// Width and Height are the display resolution (placeholder size).
	Width, Height int

	// TickInterval is the scheduler polling granularity. Default 1s.
	TickInterval time.Duration

	// Flow are the motion estimator knobs.
	Flow flow.Params
}

// Status is a point-in-time snapshot of the whole core.
type Status struct {
	Symbol     string            `json:"symbol"`
	State      string            `json:"state"`
	DisplaySeq uint64            `json:"display_seq"`
	Morphs     int               `json:"morphs"`
	Cuts       int               `json:"cuts"`
	Scheduler  update.Stats      `json:"-"`
	InFlight   bool              `json:"in_flight"`
	Failures   int               `json:"failures"`
	LastError  string            `json:"last_error,omitempty"`
	Uptime     time.Duration     `json:"uptime_ns"`
}

// Orchestrator is the appliance core.
type Orchestrator struct {
	opts    Options
	store   *frame.Store
	sched   *update.Scheduler
	ctrl    *transition.Controller
	logger  *log.Logger
	started time.Time
	runCtx  atomic.Value // context.Context
}

// New builds the core around a Generator. The generator usually is a
// *Pipeline, but tests substitute lightweight fakes.
func New(gen update.Generator, opts Options, logger *log.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = log.New(nil)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}

	est, err := flow.NewEstimator(opts.Flow)
	if err != nil {
		return nil, err
	}

	store := frame.NewStore()
	ctrl := transition.New(store, est, opts.TransitionDuration, opts.TransitionSteps, opts.Width, opts.Height, logger)
	sched := update.New(gen, store, opts.UpdateInterval, ctrl.Notify, logger)

	return &Orchestrator{
		opts:   opts,
		store:  store,
		sched:  sched,
		ctrl:   ctrl,
		logger: logger,
	}, nil
}

// Run drives the core until ctx is cancelled. The first update is
// dispatched immediately.
func (o *Orchestrator) Run(ctx context.Context) {
	o.started = time.Now()
	o.runCtx.Store(ctx)
	o.logger.Info("orchestrator started",
		"symbol", o.opts.Symbol,
		"interval", o.opts.UpdateInterval,
		"transition", o.opts.TransitionDuration,
		"steps", o.opts.TransitionSteps)

	go o.ctrl.Run(ctx)

	ticker := time.NewTicker(o.opts.TickInterval)
	defer ticker.Stop()

	o.sched.Tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			o.sched.Wait()
			o.logger.Info("orchestrator stopped")
			return
		case now := <-ticker.C:
			o.sched.Tick(ctx, now)
		}
	}
}

// DisplayFrame returns the frame to draw right now. Never nil, never
// blocks.
func (o *Orchestrator) DisplayFrame() *frame.Frame {
	return o.ctrl.DisplayFrame()
}

// ForceRefresh abandons any in-flight update and starts a new one. The
// new generation runs under the orchestrator's own context so it
// outlives short-lived callers like HTTP requests.
func (o *Orchestrator) ForceRefresh(ctx context.Context) {
	if v := o.runCtx.Load(); v != nil {
		ctx = v.(context.Context)
	}
	o.sched.ForceRefresh(ctx)
}

// Controller exposes the transition controller for debug tooling.
func (o *Orchestrator) Controller() *transition.Controller {
	return o.ctrl
}

// Status returns a snapshot of core health.
func (o *Orchestrator) Status() Status {
	ss := o.sched.Stats()
	ts := o.ctrl.Status()
	var uptime time.Duration
	if !o.started.IsZero() {
		uptime = time.Since(o.started)
	}
	return Status{
		Symbol:     o.opts.Symbol,
		State:      ts.State.String(),
		DisplaySeq: ts.DisplaySeq,
		Morphs:     ts.Morphs,
		Cuts:       ts.Cuts,
		Scheduler:  ss,
		InFlight:   ss.InFlight,
		Failures:   ss.Failures,
		LastError:  ss.LastError,
		Uptime:     uptime,
	}
}
