package transition

import (
	"context"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/mhartmeier/chartmorph/pkg/flow"
	"github.com/mhartmeier/chartmorph/pkg/frame"
)

func gradientFrame(seq uint64, w, h int, phase uint8) *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x*8) + phase, uint8(y * 8), phase, 255})
		}
	}
	return frame.New(img, seq, "test")
}

func newTestController(t *testing.T, duration time.Duration, steps, w, h int) (*Controller, *frame.Store) {
	t.Helper()
	est, err := flow.NewEstimator(flow.DefaultParams())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	store := frame.NewStore()
	return New(store, est, duration, steps, w, h, nil), store
}

func TestDisplayFrameNeverNil(t *testing.T) {
	c, _ := newTestController(t, 50*time.Millisecond, 5, 32, 32)
	f := c.DisplayFrame()
	if f == nil {
		t.Fatal("DisplayFrame returned nil before first update")
	}
	if f.Width() != 32 || f.Height() != 32 {
		t.Errorf("placeholder size = %dx%d, want 32x32", f.Width(), f.Height())
	}
}

func TestMorphDrainsToTarget(t *testing.T) {
	c, store := newTestController(t, 10*time.Millisecond, 4, 32, 32)

	target := gradientFrame(1, 32, 32, 40)
	if !store.InstallPending(target) {
		t.Fatal("install failed")
	}
	c.drainPending(context.Background())

	f := c.DisplayFrame()
	if f.Seq != 1 {
		t.Errorf("display Seq = %d, want 1", f.Seq)
	}
	st := c.Status()
	if st.State != StateIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
	if st.Morphs != 1 {
		t.Errorf("morphs = %d, want 1", st.Morphs)
	}
	if store.Peek(frame.SlotPrevious) != nil {
		t.Error("previous slot should be cleared after transition")
	}
}

func TestCutOnDimensionMismatch(t *testing.T) {
	c, store := newTestController(t, 10*time.Millisecond, 4, 32, 32)

	// Target is a different size than the displayed placeholder.
	store.InstallPending(gradientFrame(1, 64, 64, 0))
	c.drainPending(context.Background())

	st := c.Status()
	if st.DisplaySeq != 1 {
		t.Errorf("display Seq = %d, want 1", st.DisplaySeq)
	}
	if st.Cuts != 1 {
		t.Errorf("cuts = %d, want 1", st.Cuts)
	}
	if st.LastCutReason != "dimension mismatch" {
		t.Errorf("reason = %q", st.LastCutReason)
	}
}

func TestCutWhenMorphingDisabled(t *testing.T) {
	c, store := newTestController(t, 0, 4, 32, 32)

	store.InstallPending(gradientFrame(1, 32, 32, 0))
	c.drainPending(context.Background())

	st := c.Status()
	if st.Cuts != 1 || st.LastCutReason != "morphing disabled" {
		t.Errorf("Status = %+v, want one cut with reason 'morphing disabled'", st)
	}
	if c.DisplayFrame().Seq != 1 {
		t.Errorf("display Seq = %d, want 1", c.DisplayFrame().Seq)
	}
}

func TestPreemptionKeepsSequenceMonotonic(t *testing.T) {
	c, store := newTestController(t, 100*time.Millisecond, 10, 32, 32)

	// Watch the displayed sequence the whole time; it must never go back.
	done := make(chan struct{})
	violation := make(chan uint64, 1)
	go func() {
		defer close(done)
		var last uint64
		deadline := time.After(3 * time.Second)
		for {
			select {
			case <-deadline:
				return
			case <-time.After(time.Millisecond):
			}
			seq := c.DisplayFrame().Seq
			if seq < last {
				select {
				case violation <- seq:
				default:
				}
				return
			}
			last = seq
			if last == 2 && c.Status().State == StateIdle {
				return
			}
		}
	}()

	store.InstallPending(gradientFrame(1, 32, 32, 30))
	go func() {
		// Land a newer frame while the first morph is draining.
		time.Sleep(20 * time.Millisecond)
		store.InstallPending(gradientFrame(2, 32, 32, 60))
	}()
	c.drainPending(context.Background())
	<-done

	select {
	case seq := <-violation:
		t.Fatalf("displayed sequence went backwards to %d", seq)
	default:
	}
	if got := c.DisplayFrame().Seq; got != 2 {
		t.Errorf("final display Seq = %d, want 2", got)
	}
}

func TestRunReactsToNotify(t *testing.T) {
	c, store := newTestController(t, 5*time.Millisecond, 2, 16, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	store.InstallPending(gradientFrame(1, 16, 16, 50))
	c.Notify(1)

	deadline := time.After(2 * time.Second)
	for c.DisplayFrame().Seq != 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for frame 1 to display")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestDisplayFrameStaysFastDuringMorph(t *testing.T) {
	c, store := newTestController(t, 200*time.Millisecond, 20, 64, 64)

	store.InstallPending(gradientFrame(1, 64, 64, 80))
	go c.drainPending(context.Background())

	// Sample read latency while the morph is running.
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 50; i++ {
		start := time.Now()
		if c.DisplayFrame() == nil {
			t.Fatal("DisplayFrame returned nil")
		}
		if d := time.Since(start); d > 5*time.Millisecond {
			t.Fatalf("DisplayFrame took %v, render path must not block", d)
		}
	}
}

func TestToDOTContainsStates(t *testing.T) {
	c, _ := newTestController(t, 10*time.Millisecond, 2, 16, 16)
	dot := c.ToDOT()
	for _, want := range []string{"digraph Transition", "idle", "morphing", "cut"} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT missing %q", want)
		}
	}
}
