// Package server is the entrypoint logic for the campuscycle HTTP process.
package server

import (
	"context"
	"flag"

	"github.com/campuscycle/campuscycle/internal/platform/cmd"
	"github.com/campuscycle/campuscycle/internal/server"
)

// Run loads configuration, applies flag overrides and serves until ctx ends.
func Run(ctx context.Context, args []string) error {
	var cfg server.Config
	if err := cmd.ParseConfig(&cfg); err != nil {
		return err
	}

	fs := flag.NewFlagSet(cmd.ServiceServer, flag.ContinueOnError)
	fs.StringVar(&cfg.Address, "address", cfg.Address, "HTTP listen address")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for SQLite databases")
	fs.StringVar(&cfg.AppURL, "app-url", cfg.AppURL, "public base URL used in verification links")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return err
	}

	return cmd.RunWithTelemetry(ctx, cmd.ServiceServer, func(ctx context.Context) error {
		srv, err := server.New(cfg)
		if err != nil {
			return err
		}
		defer srv.Close()
		return srv.ListenAndServe(ctx)
	})
}
