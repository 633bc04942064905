// File: cmd/webgen/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/voidwalk/webgen/cmd"
	"github.com/voidwalk/webgen/internal/observability"
)

func main() {
	// SIGINT/SIGTERM cancel the root context; in-flight attempts see the
	// cancellation and release their sessions before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
