// Command cove compiles, renders and watches component markup files.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vcrobe/cove/console"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		console.L().Error().Err(err).Msg("cove failed")
		os.Exit(1)
	}
}
