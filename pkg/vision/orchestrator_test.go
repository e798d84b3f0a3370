package vision

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/mhartmeier/chartmorph/pkg/flow"
	"github.com/mhartmeier/chartmorph/pkg/frame"
	"github.com/mhartmeier/chartmorph/pkg/update"
)

func testOptions() Options {
	return Options{
		Symbol:             "NVDA",
		UpdateInterval:     50 * time.Millisecond,
		TransitionDuration: 10 * time.Millisecond,
		TransitionSteps:    2,
		Width:              24,
		Height:             24,
		TickInterval:       5 * time.Millisecond,
		Flow:               flow.DefaultParams(),
	}
}

func solidFrame(seq uint64, c color.RGBA) *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return frame.New(img, seq, "test")
}

func TestOrchestratorDisplaysGeneratedFrames(t *testing.T) {
	gen := update.GeneratorFunc(func(ctx context.Context, seq uint64) (*frame.Frame, error) {
		return solidFrame(seq, color.RGBA{uint8(seq * 40), 80, 120, 255}), nil
	})

	o, err := New(gen, testOptions(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if o.DisplayFrame() == nil {
		t.Fatal("DisplayFrame nil before Run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	deadline := time.After(5 * time.Second)
	for o.DisplayFrame().Seq == 0 {
		select {
		case <-deadline:
			t.Fatal("no generated frame displayed")
		case <-time.After(time.Millisecond):
		}
	}

	st := o.Status()
	if st.Symbol != "NVDA" {
		t.Errorf("Symbol = %q", st.Symbol)
	}
	if st.DisplaySeq == 0 {
		t.Error("DisplaySeq still 0 in status")
	}
}

func TestOrchestratorForceRefresh(t *testing.T) {
	gen := update.GeneratorFunc(func(ctx context.Context, seq uint64) (*frame.Frame, error) {
		return solidFrame(seq, color.RGBA{200, 100, 50, 255}), nil
	})

	opts := testOptions()
	opts.UpdateInterval = time.Hour // only manual refreshes advance
	o, err := New(gen, opts, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	waitForSeq := func(want uint64) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for o.DisplayFrame().Seq < want {
			select {
			case <-deadline:
				t.Fatalf("timed out waiting for seq %d (at %d)", want, o.DisplayFrame().Seq)
			case <-time.After(time.Millisecond):
			}
		}
	}

	waitForSeq(1)
	o.ForceRefresh(ctx)
	waitForSeq(2)
}

func TestOrchestratorRejectsBadFlowParams(t *testing.T) {
	gen := update.GeneratorFunc(func(ctx context.Context, seq uint64) (*frame.Frame, error) {
		return solidFrame(seq, color.RGBA{}), nil
	})
	opts := testOptions()
	opts.Flow.Levels = 0
	if _, err := New(gen, opts, nil); err == nil {
		t.Error("expected error for invalid flow params")
	}
}
