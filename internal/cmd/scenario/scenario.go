// Package scenario parses scenario command flags and plays scripted
// walkthroughs of library stories.
package scenario

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	entrypoint "github.com/louisbranch/cyoa/internal/platform/cmd"
	"github.com/louisbranch/cyoa/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	LibraryDir string `env:"CYOA_LIBRARY_DIR"         envDefault:"stories"`
	Scenario   string `env:"CYOA_SCENARIO_FILE"`
	Story      string `env:"CYOA_STORY"`
	Assertions bool   `env:"CYOA_SCENARIO_ASSERT"     envDefault:"true"`
	Verbose    bool   `env:"CYOA_SCENARIO_VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	err := entrypoint.Parse(&cfg, fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.LibraryDir, "library", cfg.LibraryDir, "directory holding one subdirectory per story")
		fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
		fs.StringVar(&cfg.Story, "story", cfg.Story, "story to play (overrides the scenario's story)")
		fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
		fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the scenario command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}

	mode := scenario.AssertionStrict
	if !cfg.Assertions {
		mode = scenario.AssertionLogOnly
	}

	logger := log.New(errOut, "", 0)
	return entrypoint.Run(ctx, entrypoint.ServiceScenario, errOut, func(ctx context.Context) error {
		if err := scenario.RunFile(ctx, scenario.Config{
			LibraryDir: cfg.LibraryDir,
			Story:      cfg.Story,
			Assertions: mode,
			Verbose:    cfg.Verbose,
			Logger:     logger,
		}, cfg.Scenario); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "ok %s\n", cfg.Scenario)
		return err
	})
}
