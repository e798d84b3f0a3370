package cli

import (
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhartmeier/chartmorph/pkg/diffusion"
	"github.com/mhartmeier/chartmorph/pkg/vision"
)

// generateCommand creates the generate command: one full pipeline pass,
// no loop, result written to disk.
func (c *CLI) generateCommand() *cobra.Command {
	var (
		symbol string
		rng    string
		output string
		seed   int64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one fetch-chart-generate pass and save the result",
		Long: `Run the full pipeline exactly once: fetch the series, render the
chart, call the generation server, and write the stylized image to disk.
Useful for tuning prompts and sampler knobs without the appliance loop.`,
		Example: `  # One pass for the configured symbol
  chartmorph generate -o frame.png

  # Reproducible output for prompt tuning
  chartmorph generate --symbol AAPL --seed 42 -o aapl.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if symbol != "" {
				cfg.Market.Symbol = symbol
			}
			if rng != "" {
				cfg.Market.Range = rng
			}
			if cmd.Flags().Changed("seed") {
				cfg.Generation.Seed = seed
			}

			store, err := c.newCache(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			renderer, err := c.newRenderer(cfg)
			if err != nil {
				return err
			}

			pipeline := vision.NewPipeline(
				c.newMarketClient(cfg, store),
				renderer,
				c.newPromptBuilder(cfg),
				diffusion.NewClient(cfg.Generation.Endpoint, diffusion.WithLogger(c.Logger)),
				cfg.Market.Symbol, cfg.Market.Range, generationParams(cfg),
				vision.WithPipelineLogger(c.Logger),
			)

			printInfo("Generating frame for %s (this can take a while)", cfg.Market.Symbol)
			start := time.Now()
			frame, err := pipeline.Generate(cmd.Context(), 1)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer f.Close()
			if err := png.Encode(f, frame.Img); err != nil {
				return fmt.Errorf("encode png: %w", err)
			}

			printSuccess("Frame generated in %s", time.Since(start).Round(time.Millisecond))
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "ticker symbol (overrides config)")
	cmd.Flags().StringVarP(&rng, "range", "r", "", "series range (overrides config)")
	cmd.Flags().StringVarP(&output, "output", "o", "frame.png", "output PNG path")
	cmd.Flags().Int64Var(&seed, "seed", -1, "generation seed (-1 for random)")

	return cmd
}
