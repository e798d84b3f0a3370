package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mhartmeier/chartmorph/pkg/cache"
	"github.com/mhartmeier/chartmorph/pkg/chart"
	"github.com/mhartmeier/chartmorph/pkg/diffusion"
	"github.com/mhartmeier/chartmorph/pkg/httputil"
	"github.com/mhartmeier/chartmorph/pkg/market"
	"github.com/mhartmeier/chartmorph/pkg/prompt"
	"github.com/mhartmeier/chartmorph/pkg/snapshot"
)

func fixedRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

func filesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

const quoteJSON = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "NVDA", "currency": "USD", "shortName": "NVIDIA",
               "regularMarketPrice": 130.5, "previousClose": 128.0},
      "timestamp": [1700000000, 1700000300],
      "indicators": {"quote": [{
        "open": [128.0, 129.0], "high": [129.5, 131.0],
        "low": [127.5, 128.8], "close": [129.0, 130.5],
        "volume": [1000, 2000]
      }]}
    }],
    "error": null
  }
}`

func generationImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{40, 160, 220, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func testPipeline(t *testing.T, genCalls *atomic.Int32, opts ...PipelineOption) *Pipeline {
	t.Helper()

	marketSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(quoteJSON))
	}))
	t.Cleanup(marketSrv.Close)

	img := generationImage(t)
	diffSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if genCalls != nil {
			genCalls.Add(1)
		}
		json.NewEncoder(w).Encode(map[string]any{"images": []string{img}})
	}))
	t.Cleanup(diffSrv.Close)

	fast := httputil.NewClient(httputil.WithRetry(1, time.Millisecond))
	mkt := market.NewClient(market.WithBaseURL(marketSrv.URL), market.WithHTTP(fast))
	renderer, err := chart.NewRenderer(chart.Options{Width: 64, Height: 48})
	if err != nil {
		t.Fatal(err)
	}
	prompts := prompt.NewBuilder()
	diff := diffusion.NewClient(diffSrv.URL, diffusion.WithHTTP(fast))

	params := diffusion.DefaultParams()
	params.Width = 64
	params.Height = 48

	return NewPipeline(mkt, renderer, prompts, diff, "NVDA", "1d", params, opts...)
}

func TestPipelineGenerate(t *testing.T) {
	p := testPipeline(t, nil)

	f, err := p.Generate(context.Background(), 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.Seq != 3 {
		t.Errorf("Seq = %d, want 3", f.Seq)
	}
	if f.Width() != 64 || f.Height() != 48 {
		t.Errorf("size = %dx%d", f.Width(), f.Height())
	}
	if f.Source != "generated" {
		t.Errorf("Source = %q", f.Source)
	}
}

func TestPipelineArtifactCacheSkipsInference(t *testing.T) {
	var genCalls atomic.Int32
	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := testPipeline(t, &genCalls, WithArtifactCache(store, time.Hour))

	// Pin the prompt so consecutive passes produce the same artifact key.
	p.prompts = prompt.NewBuilder(prompt.WithRand(fixedRand()))

	if _, err := p.Generate(context.Background(), 1); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	p.prompts = prompt.NewBuilder(prompt.WithRand(fixedRand()))
	f, err := p.Generate(context.Background(), 2)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if genCalls.Load() != 1 {
		t.Errorf("inference calls = %d, want 1 (second pass cached)", genCalls.Load())
	}
	if f.Source != "cache" {
		t.Errorf("Source = %q, want cache", f.Source)
	}
	if f.Seq != 2 {
		t.Errorf("cached frame must carry the new seq, got %d", f.Seq)
	}
}

func TestPipelineSavesSnapshots(t *testing.T) {
	dir := t.TempDir()
	w, err := snapshot.NewWriter(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := testPipeline(t, nil, WithSnapshots(w, nil))

	if _, err := p.Generate(context.Background(), 1); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	entries, err := filesIn(dir)
	if err != nil {
		t.Fatal(err)
	}
	// One PNG plus one JSON sidecar.
	if len(entries) != 2 {
		t.Errorf("snapshot files = %v, want png + json", entries)
	}
}
