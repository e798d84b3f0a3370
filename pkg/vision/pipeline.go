package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/draw"
	"image/png"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mhartmeier/chartmorph/pkg/cache"
	"github.com/mhartmeier/chartmorph/pkg/chart"
	"github.com/mhartmeier/chartmorph/pkg/diffusion"
	"github.com/mhartmeier/chartmorph/pkg/frame"
	"github.com/mhartmeier/chartmorph/pkg/market"
	"github.com/mhartmeier/chartmorph/pkg/observability"
	"github.com/mhartmeier/chartmorph/pkg/prompt"
	"github.com/mhartmeier/chartmorph/pkg/snapshot"
)

// Pipeline is the fetch, chart, and generate chain behind the scheduler's
// Generator seam. One Generate call produces one display frame.
type Pipeline struct {
	market    *market.Client
	renderer  *chart.Renderer
	prompts   *prompt.Builder
	diffusion *diffusion.Client

	symbol string
	rng    string
	params diffusion.Params

	artifacts   cache.Cache
	keyer       cache.Keyer
	artifactTTL time.Duration

	snapshots *snapshot.Writer
	archive   snapshot.Archive

	logger *log.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithArtifactCache caches generated images keyed by series content and
// generation knobs, so an unchanged chart skips the inference call.
func WithArtifactCache(store cache.Cache, ttl time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.artifacts = store
		p.artifactTTL = ttl
	}
}

// WithSnapshots saves every generated frame as PNG plus metadata, and
// optionally mirrors the metadata into an archive.
func WithSnapshots(w *snapshot.Writer, archive snapshot.Archive) PipelineOption {
	return func(p *Pipeline) {
		p.snapshots = w
		if archive != nil {
			p.archive = archive
		}
	}
}

// WithPipelineLogger sets the logger. Default discards.
func WithPipelineLogger(l *log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline wires the generation chain for one symbol.
func NewPipeline(mkt *market.Client, renderer *chart.Renderer, prompts *prompt.Builder, diff *diffusion.Client, symbol, rng string, params diffusion.Params, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		market:    mkt,
		renderer:  renderer,
		prompts:   prompts,
		diffusion: diff,
		symbol:    symbol,
		rng:       rng,
		params:    params,
		artifacts: cache.NewNullCache(),
		keyer:     cache.NewDefaultKeyer(),
		archive:   snapshot.NullArchive{},
		logger:    log.New(nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate runs one full pipeline pass.
func (p *Pipeline) Generate(ctx context.Context, seq uint64) (*frame.Frame, error) {
	series, err := p.market.Fetch(ctx, p.symbol, p.rng)
	if err != nil {
		return nil, err
	}

	cond, err := p.renderer.RenderResized(series, p.params.Width, p.params.Height)
	if err != nil {
		return nil, err
	}

	params := p.params
	params.Prompt = p.prompts.Build(series)
	params.NegativePrompt = p.prompts.Negative()

	key := p.artifactKey(series, params)
	if data, hit, err := p.artifacts.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "artifact")
		if img, err := png.Decode(bytes.NewReader(data)); err == nil {
			return frame.New(toRGBA(img), seq, "cache"), nil
		}
		_ = p.artifacts.Delete(ctx, key)
	} else {
		observability.Cache().OnCacheMiss(ctx, "artifact")
	}

	start := time.Now()
	img, err := p.diffusion.Generate(ctx, cond, params)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err == nil {
		if err := p.artifacts.Set(ctx, key, buf.Bytes(), p.artifactTTL); err != nil {
			p.logger.Warn("artifact cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "artifact", buf.Len())
		}
	}

	f := frame.New(img, seq, "generated")
	p.persist(ctx, f, series, params, elapsed)
	return f, nil
}

// persist saves the snapshot and archive record. Failures are logged,
// never propagated; persistence must not block the display pipeline's
// success path.
func (p *Pipeline) persist(ctx context.Context, f *frame.Frame, series *market.Series, params diffusion.Params, elapsed time.Duration) {
	if p.snapshots == nil {
		return
	}
	meta := snapshot.Metadata{
		Seq:         f.Seq,
		Symbol:      series.Symbol,
		Price:       series.Price,
		ChangePct:   series.ChangePct(),
		Prompt:      params.Prompt,
		Negative:    params.NegativePrompt,
		Seed:        params.Seed,
		GeneratedAt: f.CreatedAt,
		Elapsed:     elapsed,
	}
	path, err := p.snapshots.Save(f, meta)
	if err != nil {
		p.logger.Warn("snapshot save failed", "seq", f.Seq, "err", err)
		return
	}
	meta.File = path
	if err := p.archive.Store(ctx, meta); err != nil {
		p.logger.Warn("snapshot archive failed", "seq", f.Seq, "err", err)
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func (p *Pipeline) artifactKey(series *market.Series, params diffusion.Params) string {
	closes, _ := json.Marshal(series.Closes())
	return p.keyer.ArtifactKey(cache.ArtifactKeyOpts{
		SeriesHash: cache.Hash(closes),
		Prompt:     params.Prompt,
		Negative:   params.NegativePrompt,
		Steps:      params.Steps,
		Guidance:   params.GuidanceScale,
		Width:      params.Width,
		Height:     params.Height,
	})
}
