// Command seed loads development fixtures into the campuscycle databases.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/campuscycle/campuscycle/internal/cmd/seed"
	"github.com/campuscycle/campuscycle/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seed.Run(ctx, os.Args[1:]); err != nil {
		config.Exitf("seed: %v", err)
	}
}
