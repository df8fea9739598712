// Package main provides the interactive story player.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	cyoacmd "github.com/louisbranch/cyoa/internal/cmd/cyoa"
	"github.com/louisbranch/cyoa/internal/platform/config"
)

func main() {
	cfg, err := cyoacmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cyoacmd.Run(ctx, cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		config.ExitError(err)
	}
}
