package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/navaarsync/navaar/internal/shared"
)

// Runner holds the dependencies every CLI command needs. Commands that
// touch the database open their own connection via openDB rather than
// sharing one long-lived handle, since most invocations are one-shot.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner builds a Runner, filling in sane defaults for any zero field.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Config == nil {
		cfg.Config = shared.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = shared.NewLogger(nil)
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	return &Runner{config: cfg.Config, logger: cfg.Logger, output: cfg.Output}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, serveCommand, statsCommand, trackCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// loadConfig resolves the --config flag, falling back to defaults when
// the file doesn't exist yet (the setup command is what actually creates it).
func (r *Runner) loadConfig(path string) *shared.Config {
	if _, err := os.Stat(path); err != nil {
		return r.config
	}
	cfg, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		return r.config
	}
	return cfg
}
