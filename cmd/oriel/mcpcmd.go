package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/oriel-shell/oriel/pkg/automation"
)

// runMCP starts the full non-GUI stack and serves the commands granted to
// the automation window as MCP tools over stdio. SIGINT/SIGTERM shut the
// session down cleanly.
func runMCP() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bctx, err := loadBundle()
	if err != nil {
		return err
	}

	app, err := newBuilder().Headless(ctx, bctx)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	srv := automation.New(bctx.Manifest.Slug(), bctx.Version, app.Registry(), app.ACL(), app.Dispatcher())

	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
