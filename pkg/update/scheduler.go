// Package update schedules periodic regeneration of the display frame.
//
// The scheduler owns the cadence: every interval it dispatches the
// Generator on a background goroutine, stamps the result with a
// monotonically increasing sequence number, and installs it into the
// pending slot of the frame store. Generation failures are logged and
// absorbed; the next tick fires regardless. The render path never waits
// on any of this.
package update

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mhartmeier/chartmorph/pkg/frame"
	"github.com/mhartmeier/chartmorph/pkg/observability"
)

// Generator produces a new frame for the given sequence number. It is the
// seam behind which the fetch, chart, and generation pipeline lives.
// Implementations may take a long time and must honor ctx cancellation
// on their blocking calls.
type Generator interface {
	Generate(ctx context.Context, seq uint64) (*frame.Frame, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, seq uint64) (*frame.Frame, error)

func (f GeneratorFunc) Generate(ctx context.Context, seq uint64) (*frame.Frame, error) {
	return f(ctx, seq)
}

// Stats is a snapshot of scheduler health for status reporting.
type Stats struct {
	NextSeq      uint64
	InFlight     bool
	LastSuccess  time.Time
	LastDuration time.Duration
	Failures     int
	LastError    string
}

// Scheduler drives periodic frame regeneration.
type Scheduler struct {
	gen      Generator
	store    *frame.Store
	interval time.Duration
	notify   func(seq uint64)
	logger   *log.Logger

	mu           sync.Mutex
	nextDue      time.Time
	nextSeq      uint64
	inflight     *Request
	lastSuccess  time.Time
	lastDuration time.Duration
	failures     int
	lastErr      error

	wg sync.WaitGroup
}

// New creates a scheduler. notify is invoked (on the worker goroutine)
// after a result lands in the pending slot; pass the transition
// controller's wake function. A nil notify or logger is replaced with a
// no-op.
func New(gen Generator, store *frame.Store, interval time.Duration, notify func(seq uint64), logger *log.Logger) *Scheduler {
	if notify == nil {
		notify = func(uint64) {}
	}
	if logger == nil {
		logger = log.New(nil)
	}
	return &Scheduler{
		gen:      gen,
		store:    store,
		interval: interval,
		notify:   notify,
		logger:   logger,
	}
}

// Tick advances the schedule. If the next update is due and no request is
// in flight, it dispatches one and pushes next-due forward by the
// interval. Ticks while a request is running only reschedule; the running
// attempt is left alone. Tick never blocks on generation.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Before(s.nextDue) {
		return
	}
	s.nextDue = now.Add(s.interval)

	if s.inflight != nil {
		s.logger.Debug("update still in flight, skipping dispatch", "id", s.inflight.ID, "seq", s.inflight.Seq)
		return
	}
	s.dispatchLocked(ctx, now)
}

// ForceRefresh cancels any in-flight request (its result will be dropped
// on delivery) and dispatches a fresh one immediately. The regular
// schedule is pushed forward so the manual refresh does not double up
// with a due tick.
func (s *Scheduler) ForceRefresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.inflight != nil {
		s.logger.Info("cancelling in-flight update", "id", s.inflight.ID, "seq", s.inflight.Seq)
		s.inflight.Cancel()
		s.inflight = nil
	}
	s.nextDue = now.Add(s.interval)
	s.dispatchLocked(ctx, now)
}

// dispatchLocked starts a generation attempt. Caller holds s.mu.
func (s *Scheduler) dispatchLocked(ctx context.Context, now time.Time) {
	s.nextSeq++
	req, reqCtx := newRequest(ctx, s.nextSeq, now)
	s.inflight = req

	s.logger.Debug("dispatching update", "id", req.ID, "seq", req.Seq)
	s.wg.Add(1)
	go s.run(reqCtx, req)
}

func (s *Scheduler) run(ctx context.Context, req *Request) {
	defer s.wg.Done()

	observability.Update().OnGenerateStart(ctx, req.Seq)
	start := time.Now()
	f, err := s.gen.Generate(ctx, req.Seq)
	elapsed := time.Since(start)
	observability.Update().OnGenerateComplete(ctx, req.Seq, elapsed, err)

	s.mu.Lock()
	if s.inflight == req {
		s.inflight = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.mu.Lock()
		s.failures++
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Error("update failed", "id", req.ID, "seq", req.Seq, "elapsed", elapsed, "err", err)
		return
	}

	if req.Cancelled() {
		observability.Update().OnResultDiscarded(ctx, req.Seq, "cancelled")
		s.logger.Debug("discarding cancelled result", "id", req.ID, "seq", req.Seq)
		return
	}

	if !s.store.InstallPending(f) {
		observability.Update().OnResultDiscarded(ctx, req.Seq, "stale")
		s.logger.Debug("discarding stale result", "id", req.ID, "seq", req.Seq)
		return
	}

	s.mu.Lock()
	s.lastSuccess = time.Now()
	s.lastDuration = elapsed
	s.lastErr = nil
	s.mu.Unlock()

	observability.Update().OnResultInstalled(ctx, req.Seq)
	s.logger.Info("update installed", "id", req.ID, "seq", req.Seq, "elapsed", elapsed)
	s.notify(req.Seq)
}

// Stats returns a snapshot of scheduler health.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		NextSeq:      s.nextSeq,
		InFlight:     s.inflight != nil,
		LastSuccess:  s.lastSuccess,
		LastDuration: s.lastDuration,
		Failures:     s.failures,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Wait blocks until all dispatched requests have completed. Intended for
// tests and shutdown.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
