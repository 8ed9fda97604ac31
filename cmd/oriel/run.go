package main

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/oriel-shell/oriel/pkg/bundle"
	"github.com/oriel-shell/oriel/pkg/plugins/clipboard"
	"github.com/oriel-shell/oriel/pkg/plugins/dialog"
	"github.com/oriel-shell/oriel/pkg/plugins/opener"
	"github.com/oriel-shell/oriel/pkg/plugins/sidecar"
	"github.com/oriel-shell/oriel/pkg/plugins/store"
	"github.com/oriel-shell/oriel/pkg/shell"
)

// The application bundle is generated at build time and embedded into the
// binary: manifest, capability grants and the frontend under dist/.
//
//go:embed all:bundle
var bundleFS embed.FS

// loadBundle resolves and validates the embedded application bundle.
func loadBundle() (*bundle.Context, error) {
	sub, err := fs.Sub(bundleFS, "bundle")
	if err != nil {
		return nil, fmt.Errorf("oriel: embedded bundle: %w", err)
	}
	return bundle.Load(sub)
}

// newBuilder assembles the shell with the first-party plugin set. The
// opener comes first; capability files decide which windows see which
// commands.
func newBuilder() *shell.Builder {
	return shell.New().
		Plugin(opener.New()).
		Plugin(store.New()).
		Plugin(dialog.New()).
		Plugin(clipboard.New()).
		Plugin(sidecar.New())
}

// runShell loads the embedded bundle and blocks in the windowed run loop
// until the user closes the app.
func runShell(dev, hidden bool) error {
	bctx, err := loadBundle()
	if err != nil {
		return err
	}
	return newBuilder().DevMode(dev).Hidden(hidden).Run(bctx)
}
