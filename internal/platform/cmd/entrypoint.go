// Package cmd holds the startup steps shared by the cyoa commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"time"

	"github.com/louisbranch/cyoa/internal/platform/config"
	"github.com/louisbranch/cyoa/internal/platform/otel"
)

// Service names reported on command traces.
const (
	ServicePlay     = "cyoa"
	ServiceScenario = "cyoa-scenario"
)

const traceFlushTimeout = 5 * time.Second

// Parse loads .env files and environment defaults into cfg, lets bind
// register flags whose defaults are those values, then parses args. Flags
// win over the environment.
func Parse[T any](cfg *T, fs *flag.FlagSet, args []string, bind func(*flag.FlagSet, *T)) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	if fs == nil {
		return errors.New("flag set is required")
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if err := config.ParseEnv(cfg); err != nil {
		return err
	}
	if bind != nil {
		bind(fs, cfg)
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// Run starts tracing for service and runs fn. Pending spans are flushed
// when fn returns; a failed flush is reported on errOut and never replaces
// fn's result.
func Run(ctx context.Context, service string, errOut io.Writer, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if errOut == nil {
		errOut = io.Discard
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.New(errOut, service+": ", 0).Printf("flush traces: %v", err)
		}
	}()
	return fn(ctx)
}
