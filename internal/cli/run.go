package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mhartmeier/chartmorph/internal/config"
	"github.com/mhartmeier/chartmorph/internal/server"
	"github.com/mhartmeier/chartmorph/pkg/diffusion"
	"github.com/mhartmeier/chartmorph/pkg/snapshot"
	"github.com/mhartmeier/chartmorph/pkg/vision"
)

// runCommand creates the run command, the main appliance loop.
func (c *CLI) runCommand() *cobra.Command {
	var (
		symbol      string
		noServer    bool
		dashboard   bool
		noSnapshots bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the appliance loop",
		Long: `Run the full appliance: fetch the configured symbol periodically,
generate a stylized frame from its chart, and serve the morphing result
over HTTP. The loop runs until interrupted.`,
		Example: `  # Run with the default config
  chartmorph run

  # Override the symbol and watch the live dashboard
  chartmorph run --symbol AAPL --dashboard`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if symbol != "" {
				cfg.Market.Symbol = symbol
			}
			if noSnapshots {
				cfg.Snapshots.Enabled = false
			}

			ctx := cmd.Context()
			orch, cleanup, err := c.buildOrchestrator(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			go orch.Run(runCtx)

			if !noServer {
				srv := server.New(orch, c.Logger)
				go func() {
					if err := srv.ListenAndServe(runCtx, cfg.Server.Addr); err != nil {
						c.Logger.Error("http server failed", "err", err)
						cancel()
					}
				}()
				printInfo("Serving frames at http://%s/frame.png", cfg.Server.Addr)
			}

			if dashboard {
				model := newDashboardModel(orch, cfg.Market.Symbol)
				p := tea.NewProgram(model, tea.WithContext(runCtx))
				if _, err := p.Run(); err != nil {
					return err
				}
				// Dashboard quit also quits the appliance.
				cancel()
				return nil
			}

			<-runCtx.Done()
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "ticker symbol (overrides config)")
	cmd.Flags().BoolVar(&noServer, "no-server", false, "disable the HTTP frame server")
	cmd.Flags().BoolVarP(&dashboard, "dashboard", "d", false, "show the live TUI dashboard")
	cmd.Flags().BoolVar(&noSnapshots, "no-snapshots", false, "disable snapshot persistence")

	return cmd
}

// buildOrchestrator wires the full pipeline and core from the config.
// The returned cleanup closes the cache and archive connections.
func (c *CLI) buildOrchestrator(ctx context.Context, cfg config.Config) (*vision.Orchestrator, func(), error) {
	store, err := c.newCache(cfg)
	if err != nil {
		return nil, nil, err
	}

	renderer, err := c.newRenderer(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	mkt := c.newMarketClient(cfg, store)
	prompts := c.newPromptBuilder(cfg)
	diff := diffusion.NewClient(cfg.Generation.Endpoint, diffusion.WithLogger(c.Logger))

	var pipeOpts []vision.PipelineOption
	pipeOpts = append(pipeOpts,
		vision.WithPipelineLogger(c.Logger),
		vision.WithArtifactCache(store, cfg.Market.UpdateInterval.Std()),
	)

	var archive snapshot.Archive = snapshot.NullArchive{}
	if cfg.Snapshots.Enabled {
		writer, err := snapshot.NewWriter(cfg.Snapshots.Dir, c.Logger)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		if cfg.Snapshots.MongoURI != "" {
			m, err := snapshot.NewMongoArchive(ctx, cfg.Snapshots.MongoURI, cfg.Snapshots.MongoDB, "snapshots")
			if err != nil {
				c.Logger.Warn("mongo archive unavailable, continuing without it", "err", err)
			} else {
				archive = m
			}
		}
		pipeOpts = append(pipeOpts, vision.WithSnapshots(writer, archive))
	}

	pipeline := vision.NewPipeline(mkt, renderer, prompts, diff,
		cfg.Market.Symbol, cfg.Market.Range, generationParams(cfg), pipeOpts...)

	orch, err := vision.New(pipeline, vision.Options{
		Symbol:             cfg.Market.Symbol,
		UpdateInterval:     cfg.Market.UpdateInterval.Std(),
		TransitionDuration: cfg.Transition.Duration.Std(),
		TransitionSteps:    cfg.Transition.Steps,
		Width:              cfg.Display.Width,
		Height:             cfg.Display.Height,
		Flow:               cfg.FlowParams(),
	}, c.Logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		store.Close()
		if closer, ok := archive.(interface{ Close(context.Context) error }); ok {
			_ = closer.Close(context.Background())
		}
	}
	return orch, cleanup, nil
}
