// Package cyoa parses the player command's configuration and runs the title
// screen and story loop.
package cyoa

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/louisbranch/cyoa/internal/game"
	"github.com/louisbranch/cyoa/internal/library"
	entrypoint "github.com/louisbranch/cyoa/internal/platform/cmd"
	apperrors "github.com/louisbranch/cyoa/internal/platform/errors"
	"github.com/louisbranch/cyoa/internal/play"
	"github.com/louisbranch/cyoa/internal/terminal"
)

// Config holds player command configuration.
type Config struct {
	LibraryDir string `env:"CYOA_LIBRARY_DIR" envDefault:"stories"`
	Story      string `env:"CYOA_STORY"`
	Locale     string `env:"CYOA_LOCALE"      envDefault:"en-US"`
	Verbose    bool   `env:"CYOA_VERBOSE"`
	NoColor    bool   `env:"CYOA_NO_COLOR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	err := entrypoint.Parse(&cfg, fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.LibraryDir, "library", cfg.LibraryDir, "directory holding one subdirectory per story")
		fs.StringVar(&cfg.Story, "story", cfg.Story, "play this story (name or directory) and skip the title screen")
		fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "language of prompts and messages")
		fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log story steps to stderr")
		fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "disable colored output")
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run shows the title screen and plays picked stories until the player
// quits. Host failures are reported and the player returns to the title
// screen; contract violations end the command.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer, errOut io.Writer) error {
	return entrypoint.Run(ctx, entrypoint.ServicePlay, errOut, func(ctx context.Context) error {
		return run(ctx, cfg, in, out, errOut)
	})
}

type runner struct {
	cfg       Config
	fsys      fs.FS
	presenter *terminal.Presenter
	logger    *log.Logger
}

func run(ctx context.Context, cfg Config, in io.Reader, out io.Writer, errOut io.Writer) error {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.LibraryDir == "" {
		return errors.New("library directory is required")
	}

	opts := []terminal.Option{terminal.WithLocale(cfg.Locale)}
	if cfg.NoColor {
		opts = append(opts, terminal.WithoutColor())
	}
	r := &runner{
		cfg:       cfg,
		fsys:      os.DirFS(cfg.LibraryDir),
		presenter: terminal.New(in, out, opts...),
		logger:    log.New(errOut, "", 0),
	}

	catalog, err := library.Discover(r.fsys)
	if err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodeLibraryUnreadable, "read library",
			map[string]string{"path": cfg.LibraryDir, "detail": err.Error()}, err)
	}
	for _, problem := range catalog.Problems {
		if err := r.presenter.ShowError(problem); err != nil {
			return err
		}
	}
	r.logf("library %s: %d stories", cfg.LibraryDir, len(catalog.Stories))

	if cfg.Story != "" {
		story, err := catalog.Find(cfg.Story)
		if err != nil {
			return err
		}
		return r.play(ctx, story)
	}
	if len(catalog.Stories) == 0 {
		return r.presenter.Notice("title.empty", cfg.LibraryDir)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		story, ok, err := r.presenter.ChooseStory(catalog.Stories)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		err = r.play(ctx, story)
		if err == nil {
			continue
		}
		if !apperrors.GetCode(err).Recoverable() {
			return err
		}
		r.logf("story %s: %v", story.Metadata.Name, err)
		if err := r.presenter.ShowError(err); err != nil {
			return err
		}
	}
}

func (r *runner) play(ctx context.Context, story library.Story) error {
	modules, err := library.LoadModules(r.fsys, story)
	if err != nil {
		return err
	}
	opts := []game.Option{game.WithEntryModule(story.Metadata.Main)}
	if r.cfg.Verbose {
		opts = append(opts, game.WithLogger(r.logger))
	}
	inst, err := game.NewInstance(ctx, modules, opts...)
	if err != nil {
		return err
	}
	defer inst.Close()

	result, err := play.Loop(ctx, inst, r.presenter)
	if err != nil {
		return err
	}
	r.logf("story %s finished after %d steps", story.Metadata.Name, result.Steps)
	if result.Quit {
		return r.presenter.Notice("story.quit")
	}
	return r.presenter.Notice("story.ended")
}

func (r *runner) logf(format string, args ...any) {
	if !r.cfg.Verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
