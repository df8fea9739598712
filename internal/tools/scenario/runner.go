package scenario

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/louisbranch/cyoa/internal/game"
	"github.com/louisbranch/cyoa/internal/library"
)

// Config controls scenario execution.
type Config struct {
	LibraryDir string
	Story      string // overrides the story named by the scenario
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		LibraryDir: "stories",
		Assertions: AssertionStrict,
		Verbose:    false,
	}
}

// Runner plays scenarios against stories of one library.
type Runner struct {
	fsys       fs.FS
	catalog    library.Catalog
	story      string
	assertions Assertions
	logger     *log.Logger
	verbose    bool
}

// NewRunner scans the library and prepares a scenario runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.LibraryDir == "" {
		return nil, errors.New("library directory is required")
	}
	return newRunnerWithFS(cfg, os.DirFS(cfg.LibraryDir))
}

// newRunnerWithFS builds a Runner over an already opened library.
// Config defaults (logger) are applied here so they are testable.
func newRunnerWithFS(cfg Config, fsys fs.FS) (*Runner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	catalog, err := library.Discover(fsys)
	if err != nil {
		return nil, err
	}
	return &Runner{
		fsys:       fsys,
		catalog:    catalog,
		story:      cfg.Story,
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
	}, nil
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(cfg)
	if err != nil {
		return err
	}
	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return runner.RunScenario(ctx, scenario)
}

// RunScenario starts a fresh instance of the scenario's story and executes
// the steps in order.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	name := scenario.Story
	if r.story != "" {
		name = r.story
	}
	if name == "" {
		return fmt.Errorf("scenario %s: story is required", scenario.Name)
	}
	story, err := r.catalog.Find(name)
	if err != nil {
		return err
	}
	modules, err := library.LoadModules(r.fsys, story)
	if err != nil {
		return err
	}
	opts := []game.Option{game.WithEntryModule(story.Metadata.Main)}
	if r.verbose {
		opts = append(opts, game.WithLogger(r.logger))
	}
	inst, err := game.NewInstance(ctx, modules, opts...)
	if err != nil {
		return err
	}
	defer inst.Close()

	r.logf("scenario start: %s on %s (%d steps)", scenario.Name, story.Metadata.Name, len(scenario.Steps))
	for index, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		if err := r.runStep(ctx, inst, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
