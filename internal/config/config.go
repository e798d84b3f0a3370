// Package config loads and validates the appliance configuration.
//
// Configuration comes from a TOML file with defaults for every field, so
// an empty file (or none at all) yields a runnable setup pointed at the
// public market endpoint and a local generation server. Validation is
// strict: a config the appliance cannot run with is rejected once, here,
// instead of surfacing as a runtime failure mid-loop.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mhartmeier/chartmorph/pkg/errors"
	"github.com/mhartmeier/chartmorph/pkg/flow"
)

// Config is the full appliance configuration.
type Config struct {
	Market     Market     `toml:"market"`
	Display    Display    `toml:"display"`
	Transition Transition `toml:"transition"`
	Flow       Flow       `toml:"flow"`
	Generation Generation `toml:"generation"`
	Cache      CacheCfg   `toml:"cache"`
	Server     Server     `toml:"server"`
	Snapshots  Snapshots  `toml:"snapshots"`
}

// Market selects what to fetch and how often to regenerate.
type Market struct {
	Symbol         string   `toml:"symbol"`
	Range          string   `toml:"range"`
	UpdateInterval duration `toml:"update_interval"`
}

// Display is the output surface.
type Display struct {
	Width     int     `toml:"width"`
	Height    int     `toml:"height"`
	TargetFPS int     `toml:"target_fps"`
	Chart     string  `toml:"chart_style"`
	GridLines int     `toml:"grid_lines"`
}

// Transition controls morphing.
type Transition struct {
	Duration duration `toml:"duration"`
	Steps    int      `toml:"steps"`
}

// Flow are the motion estimator knobs.
type Flow struct {
	PyrScale   float64 `toml:"pyr_scale"`
	Levels     int     `toml:"levels"`
	WinSize    int     `toml:"winsize"`
	Iterations int     `toml:"iterations"`
	PolyN      int     `toml:"poly_n"`
	PolySigma  float64 `toml:"poly_sigma"`
}

// Generation points at the inference server and carries the sampler knobs.
type Generation struct {
	Endpoint             string  `toml:"endpoint"`
	Steps                int     `toml:"steps"`
	GuidanceScale        float64 `toml:"guidance_scale"`
	ConditioningScale    float64 `toml:"conditioning_scale"`
	ControlGuidanceStart float64 `toml:"control_guidance_start"`
	ControlGuidanceEnd   float64 `toml:"control_guidance_end"`
	Seed                 int64   `toml:"seed"`
	StyleSuffix          string  `toml:"style_suffix"`
	NegativePrompt       string  `toml:"negative_prompt"`
}

// CacheCfg selects the cache backend.
type CacheCfg struct {
	Backend   string   `toml:"backend"` // file, redis, none
	Dir       string   `toml:"dir"`
	SeriesTTL duration `toml:"series_ttl"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
}

// Server is the HTTP presentation surface.
type Server struct {
	Addr string `toml:"addr"`
}

// Snapshots controls frame persistence.
type Snapshots struct {
	Enabled  bool   `toml:"enabled"`
	Dir      string `toml:"dir"`
	MongoURI string `toml:"mongo_uri"`
	MongoDB  string `toml:"mongo_db"`
}

// duration parses TOML strings like "90s" or "2m".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d duration) Std() time.Duration { return time.Duration(d) }

// Default returns the runnable out-of-the-box configuration.
func Default() Config {
	fp := flow.DefaultParams()
	return Config{
		Market: Market{
			Symbol:         "NVDA",
			Range:          "1d",
			UpdateInterval: duration(90 * time.Second),
		},
		Display: Display{
			Width:     768,
			Height:    512,
			TargetFPS: 30,
			Chart:     "line",
			GridLines: 4,
		},
		Transition: Transition{
			Duration: duration(3 * time.Second),
			Steps:    45,
		},
		Flow: Flow{
			PyrScale:   fp.PyrScale,
			Levels:     fp.Levels,
			WinSize:    fp.WinSize,
			Iterations: fp.Iterations,
			PolyN:      fp.PolyN,
			PolySigma:  fp.PolySigma,
		},
		Generation: Generation{
			Endpoint:             "http://127.0.0.1:7860",
			Steps:                20,
			GuidanceScale:        7.5,
			ConditioningScale:    1.0,
			ControlGuidanceStart: 0.0,
			ControlGuidanceEnd:   1.0,
			Seed:                 -1,
		},
		Cache: CacheCfg{
			Backend:   "file",
			SeriesTTL: duration(time.Minute),
		},
		Server: Server{
			Addr: "127.0.0.1:8377",
		},
		Snapshots: Snapshots{
			Enabled: false,
			Dir:     "snapshots",
			MongoDB: "chartmorph",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error; the
// defaults are returned. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, cfg.Validate()
			}
			return cfg, err
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrap(err, errors.ErrCodeInvalidConfig, "%s", fmt.Sprintf("parsing %s", path))
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the appliance cannot run with.
func (c Config) Validate() error {
	fail := func(msg string) error {
		return errors.New(errors.ErrCodeInvalidConfig, "%s", msg)
	}

	if c.Market.Symbol == "" {
		return fail("market.symbol is empty")
	}
	if c.Market.UpdateInterval.Std() <= 0 {
		return fail("market.update_interval must be positive")
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fail(fmt.Sprintf("display resolution %dx%d is not positive", c.Display.Width, c.Display.Height))
	}
	if c.Display.TargetFPS <= 0 {
		return fail("display.target_fps must be positive")
	}
	if c.Transition.Steps < 1 {
		return fail("transition.steps must be >= 1")
	}
	if c.Generation.Endpoint == "" {
		return fail("generation.endpoint is empty")
	}
	if c.Generation.Steps < 1 {
		return fail("generation.steps must be >= 1")
	}
	switch c.Cache.Backend {
	case "file", "redis", "none", "":
	default:
		return fail(fmt.Sprintf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fail("cache.redis_addr required for the redis backend")
	}
	if err := c.FlowParams().Validate(); err != nil {
		return err
	}
	return nil
}

// FlowParams converts the flow section to estimator params.
func (c Config) FlowParams() flow.Params {
	return flow.Params{
		PyrScale:   c.Flow.PyrScale,
		Levels:     c.Flow.Levels,
		WinSize:    c.Flow.WinSize,
		Iterations: c.Flow.Iterations,
		PolyN:      c.Flow.PolyN,
		PolySigma:  c.Flow.PolySigma,
	}
}
