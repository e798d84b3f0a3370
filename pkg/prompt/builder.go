// Package prompt composes the generation prompt from market movement.
//
// The scene vocabulary is tuned for a Ghibli-flavored model: rising
// prices pick ascending imagery, falling prices pick descending or stormy
// imagery, and the magnitude of the move escalates the drama. The style
// suffix and negative prompt are fixed per configuration.
package prompt

import (
	"math"
	"math/rand"
	"strings"

	"github.com/mhartmeier/chartmorph/pkg/market"
)

// DefaultStyleSuffix is appended to every prompt.
const DefaultStyleSuffix = "Studio Ghibli style, Miyazaki style, fantasy art"

// DefaultNegative is the default negative prompt.
const DefaultNegative = "photorealistic, 3d render, text, watermark, low quality, blurry, deformed"

var locations = []string{
	"a peaceful mountain village", "a magical forest", "a seaside town",
	"a floating castle", "a spirit bathhouse", "a witch's house",
	"an abandoned amusement park", "a flying castle", "a magical garden",
	"a mountain valley", "a cozy cottage", "a hidden forest grove",
}

var characters = []string{
	"Totoro", "Kodama forest spirits", "No-Face", "Jiji the cat", "Kiki",
	"Howl", "Calcifer", "Ponyo", "Haku the dragon", "soot sprites",
	"Chihiro", "Nausicaä", "San", "Princess Mononoke", "Ashitaka",
}

var elements = []string{
	"river spirits", "magical creatures", "gentle giants", "flying machines",
	"fluffy clouds", "ancient magic", "soft rainfall", "cherry blossoms",
	"floating lanterns", "glowing orbs", "magical transformation",
	"windswept grass", "flowing rivers", "magical amulets", "paper charms",
}

var risingSmall = []string{
	"gentle sunrise over", "spring blooms in", "soft morning light in", "budding flowers in",
}

var risingMedium = []string{
	"soaring airship above", "floating lanterns rising from",
	"magical transformation in", "flying castle above",
}

var risingLarge = []string{
	"spectacular dragon flying over", "magical explosion of light in",
	"triumphant heroes overlooking", "majestic mountain peaks with",
}

var fallingSmall = []string{
	"gentle rainfall over", "autumn leaves falling in",
	"peaceful dusk in", "light fog rolling through",
}

var fallingMedium = []string{
	"stormy weather approaching", "character looking down from",
	"floating down a river through", "descending staircase in",
}

var fallingLarge = []string{
	"dramatic waterfall cascading down", "character falling through clouds above",
	"abandoned ruins in", "mysterious deep valley with",
}

var stable = []string{
	"tranquil scene in", "peaceful day in", "balanced harmony in",
	"quiet moment in", "still waters reflecting",
}

var fallbacks = []string{
	"peaceful Ghibli landscape", "a vibrant Ghibli town",
	"magical Ghibli forest", "a cozy Ghibli cottage",
}

// Builder generates prompts. The rand source is injected so tests can be
// deterministic.
type Builder struct {
	rng         *rand.Rand
	styleSuffix string
	negative    string
}

// Option configures a Builder.
type Option func(*Builder)

// WithRand injects the random source.
func WithRand(rng *rand.Rand) Option {
	return func(b *Builder) { b.rng = rng }
}

// WithStyleSuffix overrides the style suffix.
func WithStyleSuffix(s string) Option {
	return func(b *Builder) { b.styleSuffix = s }
}

// WithNegative overrides the negative prompt.
func WithNegative(s string) Option {
	return func(b *Builder) { b.negative = s }
}

// NewBuilder creates a prompt builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		rng:         rand.New(rand.NewSource(rand.Int63())),
		styleSuffix: DefaultStyleSuffix,
		negative:    DefaultNegative,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build composes a prompt from the series movement. A nil series yields
// a generic scene.
func (b *Builder) Build(s *market.Series) string {
	base := b.base(s)

	parts := []string{base, b.pick(locations)}
	if b.rng.Float64() < 0.4 {
		parts = append(parts, b.pick(characters))
	}
	if b.rng.Float64() < 0.7 {
		parts = append(parts, b.pick(elements))
	}
	parts = append(parts, b.styleSuffix)
	return strings.Join(parts, ", ")
}

// Negative returns the negative prompt.
func (b *Builder) Negative() string {
	return b.negative
}

func (b *Builder) base(s *market.Series) string {
	if s == nil {
		return b.pick(fallbacks)
	}

	// Magnitude on a 0-10 scale, half a point per percent moved.
	magnitude := math.Min(10, math.Abs(s.ChangePct())/2)

	switch s.Direction() {
	case market.Up:
		switch {
		case magnitude < 3:
			return b.pick(risingSmall)
		case magnitude < 7:
			return b.pick(risingMedium)
		default:
			return b.pick(risingLarge)
		}
	case market.Down:
		switch {
		case magnitude < 3:
			return b.pick(fallingSmall)
		case magnitude < 7:
			return b.pick(fallingMedium)
		default:
			return b.pick(fallingLarge)
		}
	default:
		return b.pick(stable)
	}
}

func (b *Builder) pick(choices []string) string {
	return choices[b.rng.Intn(len(choices))]
}
