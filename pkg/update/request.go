package update

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Request tracks one in-flight generation attempt.
//
// Cancellation is advisory: the generator may keep running after Cancel,
// but its result is discarded on delivery. The context is cancelled too so
// that cooperative backends (HTTP calls) can abort early.
type Request struct {
	// ID identifies the attempt in logs.
	ID uuid.UUID

	// Seq is the sequence number the resulting frame will carry.
	Seq uint64

	// StartedAt is when the request was dispatched.
	StartedAt time.Time

	cancelled atomic.Bool
	cancel    context.CancelFunc
}

func newRequest(parent context.Context, seq uint64, now time.Time) (*Request, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Request{
		ID:        uuid.New(),
		Seq:       seq,
		StartedAt: now,
		cancel:    cancel,
	}, ctx
}

// Cancel flags the request as cancelled and cancels its context. The
// generator is not interrupted beyond that; a result that still arrives
// is dropped.
func (r *Request) Cancel() {
	r.cancelled.Store(true)
	r.cancel()
}

// Cancelled reports whether Cancel has been called.
func (r *Request) Cancelled() bool {
	return r.cancelled.Load()
}
