// Package cli implements the chartmorph command-line interface.
//
// This package provides commands for running the display appliance,
// rendering one-off charts and generations, and debugging the transition
// machinery. The CLI is built using cobra and supports verbose logging
// via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - run: Start the appliance loop (orchestrator + HTTP server)
//   - chart: Fetch a series and rasterize the chart once
//   - generate: One full fetch-chart-generate pass, no loop
//   - statechart: Render the transition state machine (debug tool)
//   - cache: Manage the local cache
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mhartmeier/chartmorph/internal/config"
	"github.com/mhartmeier/chartmorph/pkg/buildinfo"
	"github.com/mhartmeier/chartmorph/pkg/cache"
	"github.com/mhartmeier/chartmorph/pkg/chart"
	"github.com/mhartmeier/chartmorph/pkg/diffusion"
	"github.com/mhartmeier/chartmorph/pkg/market"
	"github.com/mhartmeier/chartmorph/pkg/prompt"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "chartmorph"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger     *log.Logger
	ConfigPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "chartmorph",
		Short:        "ChartMorph turns a stock chart into a living painting",
		Long:         `ChartMorph periodically fetches a market time series, renders it as a chart, feeds the chart to an image generation server, and displays the result as a continuously morphing animation.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.ConfigPath, "config", "c", defaultConfigPath(), "path to the TOML config file")

	// Register all subcommands
	root.AddCommand(c.runCommand())
	root.AddCommand(c.chartCommand())
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.statechartCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig loads and validates the configured TOML file.
func (c *CLI) loadConfig() (config.Config, error) {
	return config.Load(c.ConfigPath)
}

// =============================================================================
// Component Factories
// =============================================================================

// newCache builds the cache backend selected by the config.
func (c *CLI) newCache(cfg config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "none", "":
		return cache.NewNullCache(), nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return cache.NewRedisCache(ctx, cfg.Cache.RedisAddr, "", cfg.Cache.RedisDB)
	default:
		dir := cfg.Cache.Dir
		if dir == "" {
			var err error
			if dir, err = cacheDir(); err != nil {
				return cache.NewNullCache(), nil
			}
		}
		return cache.NewFileCache(dir)
	}
}

// newMarketClient builds the market data client with caching.
func (c *CLI) newMarketClient(cfg config.Config, store cache.Cache) *market.Client {
	return market.NewClient(
		market.WithCache(store, cfg.Cache.SeriesTTL.Std()),
		market.WithLogger(c.Logger),
	)
}

// newRenderer builds the chart renderer from the display section.
func (c *CLI) newRenderer(cfg config.Config) (*chart.Renderer, error) {
	return chart.NewRenderer(chart.Options{
		Width:           cfg.Display.Width,
		Height:          cfg.Display.Height,
		Style:           chart.Style(cfg.Display.Chart),
		ShowAnnotations: true,
		GridLines:       cfg.Display.GridLines,
	})
}

// newPromptBuilder builds the prompt builder from the generation section.
func (c *CLI) newPromptBuilder(cfg config.Config) *prompt.Builder {
	var opts []prompt.Option
	if cfg.Generation.StyleSuffix != "" {
		opts = append(opts, prompt.WithStyleSuffix(cfg.Generation.StyleSuffix))
	}
	if cfg.Generation.NegativePrompt != "" {
		opts = append(opts, prompt.WithNegative(cfg.Generation.NegativePrompt))
	}
	return prompt.NewBuilder(opts...)
}

// generationParams converts the generation section to diffusion params.
func generationParams(cfg config.Config) diffusion.Params {
	return diffusion.Params{
		Steps:                cfg.Generation.Steps,
		GuidanceScale:        cfg.Generation.GuidanceScale,
		Width:                cfg.Display.Width,
		Height:               cfg.Display.Height,
		Seed:                 cfg.Generation.Seed,
		ConditioningScale:    cfg.Generation.ConditioningScale,
		ControlGuidanceStart: cfg.Generation.ControlGuidanceStart,
		ControlGuidanceEnd:   cfg.Generation.ControlGuidanceEnd,
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/chartmorph/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// defaultConfigPath returns ~/.config/chartmorph/chartmorph.toml, or the
// bare filename when the home directory is unknown.
func defaultConfigPath() string {
	if cfgHome := os.Getenv("XDG_CONFIG_HOME"); cfgHome != "" {
		return filepath.Join(cfgHome, appName, appName+".toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return appName + ".toml"
	}
	return filepath.Join(home, ".config", appName, appName+".toml")
}
