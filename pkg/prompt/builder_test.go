package prompt

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/mhartmeier/chartmorph/pkg/market"
)

func seeded(seed int64) *Builder {
	return NewBuilder(WithRand(rand.New(rand.NewSource(seed))))
}

func series(price, prev float64) *market.Series {
	return &market.Series{Price: price, PrevClose: prev}
}

func TestBuildIsDeterministicUnderSeed(t *testing.T) {
	s := series(110, 100)
	a := seeded(7).Build(s)
	b := seeded(7).Build(s)
	if a != b {
		t.Errorf("same seed produced different prompts:\n%s\n%s", a, b)
	}
}

func TestBuildAppendsStyleSuffix(t *testing.T) {
	p := seeded(1).Build(series(110, 100))
	if !strings.HasSuffix(p, DefaultStyleSuffix) {
		t.Errorf("prompt missing style suffix: %q", p)
	}
}

func TestRisingPicksAscendingScene(t *testing.T) {
	s := series(120, 100) // +20%, magnitude capped at 10
	p := seeded(3).Build(s)

	all := append(append([]string{}, risingMedium...), risingLarge...)
	found := false
	for _, base := range all {
		if strings.HasPrefix(p, base) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("rising prompt %q does not start with a rising scene", p)
	}
}

func TestFallingPicksDescendingScene(t *testing.T) {
	s := series(99, 100) // -1%, magnitude 0.5, small fall
	p := seeded(5).Build(s)

	found := false
	for _, base := range fallingSmall {
		if strings.HasPrefix(p, base) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("falling prompt %q does not start with a small-fall scene", p)
	}
}

func TestFlatPicksStableScene(t *testing.T) {
	p := seeded(9).Build(series(100, 100))
	found := false
	for _, base := range stable {
		if strings.HasPrefix(p, base) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("flat prompt %q does not start with a stable scene", p)
	}
}

func TestNilSeriesFallsBack(t *testing.T) {
	p := seeded(2).Build(nil)
	found := false
	for _, base := range fallbacks {
		if strings.HasPrefix(p, base) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("fallback prompt %q does not start with a generic scene", p)
	}
}

func TestNegativeOverride(t *testing.T) {
	b := NewBuilder(WithNegative("ugly"), WithRand(rand.New(rand.NewSource(1))))
	if b.Negative() != "ugly" {
		t.Errorf("Negative = %q", b.Negative())
	}
	if NewBuilder().Negative() != DefaultNegative {
		t.Error("default negative prompt not applied")
	}
}
