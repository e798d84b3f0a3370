// Package diffusion talks to an image generation server that accepts a
// conditioning image.
//
// The wire format follows the common web-UI inference API: a JSON POST
// with the prompt and sampler knobs, the conditioning chart attached as a
// base64 PNG in a controlnet unit, and base64 images in the response. The
// knobs are passed through unmodified; their meaning belongs to the
// server.
package diffusion

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mhartmeier/chartmorph/pkg/errors"
	"github.com/mhartmeier/chartmorph/pkg/httputil"
)

// Params are the generation knobs forwarded to the server.
type Params struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	GuidanceScale  float64
	Width          int
	Height         int
	Seed           int64

	// ConditioningScale is the controlnet weight.
	ConditioningScale float64

	// ControlGuidanceStart and ControlGuidanceEnd bound the fraction of
	// sampling steps during which conditioning applies.
	ControlGuidanceStart float64
	ControlGuidanceEnd   float64
}

// DefaultParams returns sensible knobs for the appliance.
func DefaultParams() Params {
	return Params{
		Steps:                20,
		GuidanceScale:        7.5,
		Width:                768,
		Height:               512,
		Seed:                 -1,
		ConditioningScale:    1.0,
		ControlGuidanceStart: 0.0,
		ControlGuidanceEnd:   1.0,
	}
}

// Validate rejects knobs the server would refuse anyway.
func (p Params) Validate() error {
	if p.Steps < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "%s", fmt.Sprintf("steps must be >= 1, got %d", p.Steps))
	}
	if p.Width <= 0 || p.Height <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "%s", fmt.Sprintf("resolution %dx%d is not positive", p.Width, p.Height))
	}
	return nil
}

// Client calls the generation server.
type Client struct {
	http    *httputil.Client
	baseURL string
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTP replaces the underlying HTTP client. Generation is slow, so
// the default client uses a 5 minute timeout and no retries.
func WithHTTP(h *httputil.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:    httputil.NewClient(httputil.WithTimeout(5*time.Minute), httputil.WithRetry(1, 0)),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log.New(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type controlnetUnit struct {
	InputImage    string  `json:"input_image"`
	Module        string  `json:"module"`
	Weight        float64 `json:"weight"`
	GuidanceStart float64 `json:"guidance_start"`
	GuidanceEnd   float64 `json:"guidance_end"`
}

type txt2imgRequest struct {
	Prompt          string         `json:"prompt"`
	NegativePrompt  string         `json:"negative_prompt"`
	Steps           int            `json:"steps"`
	CFGScale        float64        `json:"cfg_scale"`
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	Seed            int64          `json:"seed"`
	AlwaysonScripts map[string]any `json:"alwayson_scripts,omitempty"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// Generate produces one stylized image conditioned on the chart. The
// call blocks for the full inference latency; cancel ctx to abort.
func (c *Client) Generate(ctx context.Context, conditioning image.Image, p Params) (*image.RGBA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	cond, err := encodePNG(conditioning)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "encoding conditioning image")
	}

	req := txt2imgRequest{
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Steps:          p.Steps,
		CFGScale:       p.GuidanceScale,
		Width:          p.Width,
		Height:         p.Height,
		Seed:           p.Seed,
		AlwaysonScripts: map[string]any{
			"controlnet": map[string]any{
				"args": []controlnetUnit{{
					InputImage:    cond,
					Module:        "canny",
					Weight:        p.ConditioningScale,
					GuidanceStart: p.ControlGuidanceStart,
					GuidanceEnd:   p.ControlGuidanceEnd,
				}},
			},
		},
	}

	start := time.Now()
	var resp txt2imgResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/sdapi/v1/txt2img", req, &resp); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "generation cancelled")
		}
		return nil, errors.Wrap(err, errors.ErrCodeGenerationFailed, "generation request")
	}
	if len(resp.Images) == 0 {
		return nil, errors.New(errors.ErrCodeGenerationFailed, "server returned no images")
	}

	img, err := decodeBase64Image(resp.Images[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGenerationFailed, "decoding generated image")
	}
	c.logger.Debug("generated image", "size", img.Bounds(), "elapsed", time.Since(start))
	return img, nil
}

// Healthy pings the server. Used by status reporting, not the hot path.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.http.Get(ctx, c.baseURL+"/sdapi/v1/options")
	return err == nil
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeBase64Image(s string) (*image.RGBA, error) {
	// Some servers prefix a data URL.
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out, nil
}
