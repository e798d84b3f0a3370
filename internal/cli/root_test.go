package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mhartmeier/chartmorph/internal/config"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()

	want := []string{"run", "chart", "generate", "statechart", "cache", "completion"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}
}

func TestRootCommandHelp(t *testing.T) {
	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--help"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute(--help) error: %v", err)
	}
	if !strings.Contains(out.String(), "chartmorph") {
		t.Errorf("help output does not mention the binary name:\n%s", out.String())
	}
}

func TestGenerationParams(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.Steps = 30
	cfg.Generation.Seed = 42

	p := generationParams(cfg)
	if p.Steps != 30 {
		t.Errorf("Steps = %d, want 30", p.Steps)
	}
	if p.Seed != 42 {
		t.Errorf("Seed = %d, want 42", p.Seed)
	}
	if p.Width != cfg.Display.Width || p.Height != cfg.Display.Height {
		t.Errorf("resolution = %dx%d, want %dx%d", p.Width, p.Height, cfg.Display.Width, cfg.Display.Height)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("params from default config should validate, got %v", err)
	}
}

func TestQuoteStyle(t *testing.T) {
	if quoteStyle(1.5).GetForeground() != colorGreen {
		t.Error("rising change should render green")
	}
	if quoteStyle(-0.3).GetForeground() != colorRed {
		t.Error("falling change should render red")
	}
	if quoteStyle(0).GetForeground() != colorWhite {
		t.Error("flat change should render white")
	}
}
