package frame

import (
	"errors"
	"sync"
)

// Slot names a position in the Store.
type Slot int

const (
	// SlotPrevious holds the image being morphed away from during an
	// active transition. Empty otherwise.
	SlotPrevious Slot = iota

	// SlotCurrent holds the image the display converges to. Always
	// occupied once the first generation result has been promoted.
	SlotCurrent

	// SlotPending holds a freshly generated image awaiting consumption
	// by the transition controller.
	SlotPending
)

// String returns the slot name for logging.
func (s Slot) String() string {
	switch s {
	case SlotPrevious:
		return "previous"
	case SlotCurrent:
		return "current"
	case SlotPending:
		return "pending"
	}
	return "unknown"
}

// ErrNoPending is returned by Promote when the pending slot is empty.
var ErrNoPending = errors.New("promote: pending slot is empty")

// Store is the triple-slot frame buffer shared between the producer and
// render domains.
//
// All mutating operations are mutually exclusive. Reads take a shared lock
// for the duration of a pointer copy only, so the render consumer is never
// held for longer than a bounded critical section. Slot contents are whole
// *Frame pointers; a reader can never observe a torn slot.
//
// Install ordering is monotonic by sequence number: a result whose Seq is
// not strictly greater than everything already installed is a stale
// leftover from a superseded update and is silently rejected.
type Store struct {
	mu       sync.RWMutex
	previous *Frame
	current  *Frame
	pending  *Frame
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// InstallPending offers a new generation result to the store.
//
// It returns false without mutating anything when the frame's sequence
// number is not strictly greater than both the current and any pending
// frame's sequence number. Out-of-order completions therefore never
// regress the display. A true return means the frame is now owned by the
// pending slot; an existing pending frame (an update the controller had
// not yet consumed) is displaced and discarded.
func (s *Store) InstallPending(f *Frame) bool {
	if f == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && f.Seq <= s.current.Seq {
		return false
	}
	if s.pending != nil && f.Seq <= s.pending.Seq {
		return false
	}
	s.pending = f
	return true
}

// Promote moves current to previous and pending to current, clearing
// pending. It is only legal while pending is occupied.
func (s *Store) Promote() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return ErrNoPending
	}
	s.previous = s.current
	s.current = s.pending
	s.pending = nil
	return nil
}

// ClearPrevious releases the previous slot once a transition has fully
// drained and no morph reads the old image anymore.
func (s *Store) ClearPrevious() {
	s.mu.Lock()
	s.previous = nil
	s.mu.Unlock()
}

// Peek returns the frame currently held by the slot, or nil when the slot
// is empty. The returned frame is a read-only reference; callers must not
// mutate it. Peek never blocks beyond the shared-lock pointer copy.
func (s *Store) Peek(slot Slot) *Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch slot {
	case SlotPrevious:
		return s.previous
	case SlotCurrent:
		return s.current
	case SlotPending:
		return s.pending
	}
	return nil
}

// HighestSeq returns the highest sequence number the store has accepted,
// considering both the current and pending slots. Zero when empty.
func (s *Store) HighestSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var seq uint64
	if s.current != nil {
		seq = s.current.Seq
	}
	if s.pending != nil && s.pending.Seq > seq {
		seq = s.pending.Seq
	}
	return seq
}
