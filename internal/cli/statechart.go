package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mhartmeier/chartmorph/pkg/flow"
	"github.com/mhartmeier/chartmorph/pkg/frame"
	"github.com/mhartmeier/chartmorph/pkg/transition"
)

// statechartCommand creates the statechart command, a debug tool that
// renders the transition state machine as SVG or DOT.
func (c *CLI) statechartCommand() *cobra.Command {
	var (
		output string
		asDOT  bool
	)

	cmd := &cobra.Command{
		Use:   "statechart",
		Short: "Render the transition state machine to SVG or DOT",
		Example: `  # SVG for documentation
  chartmorph statechart -o transition.svg

  # Raw DOT to stdout
  chartmorph statechart --dot -o -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			est, err := flow.NewEstimator(cfg.FlowParams())
			if err != nil {
				return err
			}
			ctrl := transition.New(frame.NewStore(), est,
				cfg.Transition.Duration.Std(), cfg.Transition.Steps,
				cfg.Display.Width, cfg.Display.Height, c.Logger)

			var data []byte
			if asDOT {
				data = []byte(ctrl.ToDOT())
			} else {
				if data, err = ctrl.RenderSVG(); err != nil {
					return err
				}
			}

			if output == "-" {
				fmt.Print(string(data))
				return nil
			}
			if output == "" {
				output = "transition.svg"
				if asDOT {
					output = "transition.dot"
				}
			} else if asDOT && strings.HasSuffix(output, ".svg") {
				output = strings.TrimSuffix(output, ".svg") + ".dot"
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			printSuccess("State machine rendered")
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (- for stdout)")
	cmd.Flags().BoolVar(&asDOT, "dot", false, "emit raw DOT instead of SVG")

	return cmd
}
