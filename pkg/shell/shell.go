// Package shell is the composition root: a builder that assembles the
// bundle context, logging, settings, plugins, capabilities and dispatch
// into a running app, windowed or headless. Startup is a single
// not-started to running transition; any failure on the way is a
// StartupError and the app never half-starts.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oriel-shell/oriel/pkg/bundle"
	"github.com/oriel-shell/oriel/pkg/capability"
	"github.com/oriel-shell/oriel/pkg/events"
	"github.com/oriel-shell/oriel/pkg/ipc"
	"github.com/oriel-shell/oriel/pkg/logging"
	"github.com/oriel-shell/oriel/pkg/plugin"
	"github.com/oriel-shell/oriel/pkg/settings"
)

// Builder assembles an app. Configure it with the chainable methods, then
// call Run (windowed) or Headless exactly once.
type Builder struct {
	plugins     []plugin.Plugin
	logOverride *zerolog.Logger
	settingsDir string
	dev         bool
	hidden      bool

	started atomic.Bool
}

// New returns a builder with default configuration.
func New() *Builder {
	return &Builder{}
}

// Plugin registers a plugin. Registration order is setup order.
func (b *Builder) Plugin(p plugin.Plugin) *Builder {
	b.plugins = append(b.plugins, p)
	return b
}

// Logger replaces the manifest-configured logger, mainly for tests.
func (b *Builder) Logger(l zerolog.Logger) *Builder {
	b.logOverride = &l
	return b
}

// Settings overrides the settings directory. Empty means the per-user
// config directory derived from the product name.
func (b *Builder) Settings(dir string) *Builder {
	b.settingsDir = dir
	return b
}

// DevMode enables console logging, the dev event stream and the inspector.
func (b *Builder) DevMode(on bool) *Builder {
	b.dev = on
	return b
}

// Hidden starts the app without showing the window.
func (b *Builder) Hidden(on bool) *Builder {
	b.hidden = on
	return b
}

// Run assembles the app and blocks in the host framework's run loop until
// the user closes the window. It returns nil on a clean exit and a
// *StartupError if the app never reached the run loop (or the run loop
// itself failed to start). Calling Run or Headless again returns
// ErrAlreadyRunning.
func (b *Builder) Run(bctx *bundle.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return startupErr(StageContext, ErrAlreadyRunning)
	}

	app, err := b.build(context.Background(), bctx)
	if err != nil {
		return err
	}
	defer app.teardown()

	if app.dev {
		if err := app.startDevServer(); err != nil {
			return startupErr(StageRuntime, err)
		}
	}

	app.log.Info().
		Str("product", app.manifest.Product).
		Str("version", app.bctx.Version).
		Bool("dev", app.dev).
		Msg("entering run loop")

	if err := app.runWindowed(); err != nil {
		return startupErr(StageRuntime, fmt.Errorf("shell: run loop: %w", err))
	}
	return nil
}

// Headless assembles the app without a window or run loop. It powers
// automation mode and tests; the caller owns the returned app and must
// Close it. The app context is cancelled when ctx is.
func (b *Builder) Headless(ctx context.Context, bctx *bundle.Context) (*App, error) {
	if !b.started.CompareAndSwap(false, true) {
		return nil, startupErr(StageContext, ErrAlreadyRunning)
	}

	app, err := b.build(ctx, bctx)
	if err != nil {
		return nil, err
	}

	if app.dev {
		if err := app.startDevServer(); err != nil {
			app.teardown()
			return nil, startupErr(StageRuntime, err)
		}
	}

	app.publish(events.New(events.KindReady, "", app.readyInfo()))
	app.announceUpdate()
	return app, nil
}

// build runs startup stages context through capabilities and returns the
// assembled but not yet running app.
func (b *Builder) build(parent context.Context, bctx *bundle.Context) (*App, error) {
	// Stage context: the generated bundle must be present and sane.
	if bctx == nil {
		return nil, startupErr(StageContext, errors.New("shell: nil bundle context"))
	}
	if err := bctx.Manifest.Validate(); err != nil {
		return nil, startupErr(StageContext, err)
	}

	// Stage logging.
	dir := b.settingsDir
	if dir == "" {
		var err error
		dir, err = settings.DefaultDir(bctx.Manifest.Slug())
		if err != nil {
			return nil, startupErr(StageLogging, err)
		}
	}

	log, logCloser, err := b.buildLogger(bctx.Manifest, dir)
	if err != nil {
		return nil, startupErr(StageLogging, err)
	}

	// Stage settings.
	store, err := settings.Open(dir)
	if err != nil {
		_ = logCloser.Close()
		return nil, startupErr(StageSettings, err)
	}
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		_ = logCloser.Close()
		return nil, startupErr(StageSettings, fmt.Errorf("shell: create data dir: %w", err))
	}

	prevVersion := store.Get().LastVersion
	err = store.Update(func(s *settings.Settings) {
		s.LastVersion = bctx.Version
		if b.dev && s.DevToken == "" {
			s.DevToken = uuid.NewString()
		}
	})
	if err != nil {
		_ = logCloser.Close()
		return nil, startupErr(StageSettings, err)
	}

	ctx, cancel := context.WithCancel(parent)
	app := &App{
		bctx:     bctx,
		manifest: bctx.Manifest,
		log:      log,
		closer:   logCloser,
		store:    store,
		dataDir:  dataDir,
		bus:      events.NewBus(),
		registry: plugin.NewRegistry(),
		plugins:  b.plugins,
		dev:      b.dev,
		hidden:   b.hidden,
		ctx:      ctx,
		cancel:   cancel,
	}
	app.prevVersion = prevVersion
	app.versionChanged = prevVersion != "" && prevVersion != bctx.Version

	// Stage plugins: the core plugin first, then user plugins in
	// registration order.
	if err := app.registry.Register(newCorePlugin(app)); err != nil {
		app.teardown()
		return nil, startupErr(StagePlugins, err)
	}
	for _, p := range b.plugins {
		if err := app.registry.Register(p); err != nil {
			app.teardown()
			return nil, startupErr(StagePlugins, err)
		}
	}
	if err := app.registry.SetupAll(ctx, app); err != nil {
		app.teardown()
		return nil, startupErr(StagePlugins, err)
	}
	for _, p := range app.registry.Plugins() {
		app.bus.Publish(events.New(events.KindPluginSetup, "", map[string]any{"plugin": p.Name()}))
	}

	// Stage capabilities: resolve grants against everything registered.
	acl, err := capability.Resolve(bctx.Capabilities, app.registry.CommandSet())
	if err != nil {
		app.teardown()
		return nil, startupErr(StageCapabilities, err)
	}
	app.acl = acl
	app.dispatcher = ipc.NewDispatcher(app.registry, acl, app.bus, log)

	log.Debug().
		Strs("windows", acl.Windows()).
		Int("plugins", len(app.registry.Plugins())).
		Msg("startup assembly complete")
	return app, nil
}

// buildLogger derives logging options from the manifest, honoring the
// builder override and dev mode.
func (b *Builder) buildLogger(m bundle.Manifest, dir string) (zerolog.Logger, io.Closer, error) {
	if b.logOverride != nil {
		return *b.logOverride, nopCloser{}, nil
	}

	opts := logging.Options{
		Level:      m.Log.Level,
		Console:    b.dev,
		MaxSizeMB:  m.Log.MaxSizeMB,
		MaxBackups: m.Log.MaxBackups,
		MaxAgeDays: m.Log.MaxAgeDays,
		Compress:   m.Log.Compress,
	}
	if m.Log.File {
		opts.File = filepath.Join(dir, "logs", "oriel.log")
	}
	return logging.New(opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
