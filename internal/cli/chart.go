package cli

import (
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"
)

// chartCommand creates the chart command: fetch a series and rasterize
// the chart once, without touching the generation server.
func (c *CLI) chartCommand() *cobra.Command {
	var (
		rng    string
		output string
	)

	cmd := &cobra.Command{
		Use:   "chart <symbol>",
		Short: "Fetch a series and render its chart to PNG",
		Example: `  # Render the default 1-day chart
  chartmorph chart NVDA -o nvda.png

  # A monthly chart
  chartmorph chart AAPL --range 1mo -o aapl.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			store, err := c.newCache(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			mkt := c.newMarketClient(cfg, store)
			series, err := mkt.Fetch(cmd.Context(), args[0], rng)
			if err != nil {
				return err
			}

			renderer, err := c.newRenderer(cfg)
			if err != nil {
				return err
			}
			img, err := renderer.Render(series)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer f.Close()
			if err := png.Encode(f, img); err != nil {
				return fmt.Errorf("encode png: %w", err)
			}

			style := quoteStyle(series.Change())
			printSuccess("Chart rendered for %s", series.Symbol)
			printDetail("%s", style.Render(fmt.Sprintf("%.2f %s  %+.2f (%+.2f%%)",
				series.Price, series.Currency, series.Change(), series.ChangePct())))
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&rng, "range", "r", "1d", "series range (1d, 5d, 1mo, 3mo, 6mo, 1y)")
	cmd.Flags().StringVarP(&output, "output", "o", "chart.png", "output PNG path")

	return cmd
}
