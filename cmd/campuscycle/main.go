// Command campuscycle serves the campus marketplace API and realtime socket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/campuscycle/campuscycle/internal/cmd/server"
	"github.com/campuscycle/campuscycle/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, os.Args[1:]); err != nil {
		config.Exitf("campuscycle: %v", err)
	}
}
