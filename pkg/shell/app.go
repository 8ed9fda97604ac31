package shell

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oriel-shell/oriel/pkg/bundle"
	"github.com/oriel-shell/oriel/pkg/capability"
	"github.com/oriel-shell/oriel/pkg/devserver"
	"github.com/oriel-shell/oriel/pkg/events"
	"github.com/oriel-shell/oriel/pkg/ipc"
	"github.com/oriel-shell/oriel/pkg/plugin"
	"github.com/oriel-shell/oriel/pkg/settings"
)

const teardownTimeout = 10 * time.Second

// App is the assembled application. It implements plugin.Host.
type App struct {
	bctx     *bundle.Context
	manifest bundle.Manifest
	log      zerolog.Logger
	closer   io.Closer
	store    *settings.Store
	dataDir  string

	bus        *events.Bus
	registry   *plugin.Registry
	acl        *capability.ACL
	dispatcher *ipc.Dispatcher
	devSrv     *devserver.Server
	plugins    []plugin.Plugin

	dev            bool
	hidden         bool
	prevVersion    string
	versionChanged bool

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	wailsCtx context.Context

	closeOnce sync.Once
	closeErr  error
}

// Emit implements plugin.Host. Application events must stay out of the
// shell's reserved namespace.
func (a *App) Emit(event string, payload any) error {
	if events.IsReserved(event) {
		return fmt.Errorf("shell: event %q uses the reserved %q prefix", event, events.Reserved)
	}
	a.publish(events.New(event, "", payload))
	return nil
}

// DataDir implements plugin.Host.
func (a *App) DataDir() string { return a.dataDir }

// Logger implements plugin.Host.
func (a *App) Logger() zerolog.Logger { return a.log }

// Manifest implements plugin.Host.
func (a *App) Manifest() bundle.Manifest { return a.manifest }

// Registry returns the plugin registry.
func (a *App) Registry() *plugin.Registry { return a.registry }

// ACL returns the resolved permission table.
func (a *App) ACL() *capability.ACL { return a.acl }

// Dispatcher returns the invoke dispatcher.
func (a *App) Dispatcher() *ipc.Dispatcher { return a.dispatcher }

// Bus returns the event bus.
func (a *App) Bus() *events.Bus { return a.bus }

// Settings returns the settings store.
func (a *App) Settings() *settings.Store { return a.store }

// DevServerAddr returns the dev event stream address, empty outside dev
// mode.
func (a *App) DevServerAddr() string {
	if a.devSrv == nil {
		return ""
	}
	return a.devSrv.Addr()
}

// Context returns the app lifetime context. It is cancelled on shutdown.
func (a *App) Context() context.Context { return a.ctx }

// Close tears the app down: dev server, plugins (reverse order), bus,
// logs. Safe to call more than once. Used by headless callers; the
// windowed path tears down when the run loop returns.
func (a *App) Close() error {
	a.teardown()
	return a.closeErr
}

func (a *App) publish(ev events.Event) {
	a.bus.Publish(ev)
}

func (a *App) readyInfo() map[string]any {
	return map[string]any{
		"product":    a.manifest.Product,
		"identifier": a.manifest.Identifier,
		"version":    a.bctx.Version,
	}
}

// announceUpdate publishes the version-change event once per run, the
// first time the app starts under a new build.
func (a *App) announceUpdate() {
	if !a.versionChanged {
		return
	}
	a.publish(events.New(events.KindUpdated, "", map[string]any{
		"from": a.prevVersion,
		"to":   a.bctx.Version,
	}))
	a.log.Info().Str("from", a.prevVersion).Str("to", a.bctx.Version).Msg("version changed since last run")
}

// startDevServer exposes the event stream for the tail console. Dev mode
// only; the token was minted into settings during assembly.
func (a *App) startDevServer() error {
	token := a.store.Get().DevToken
	srv := devserver.New(a.bus, token, a.log)
	addr, err := srv.Start(a.manifest.Dev.ServerAddr)
	if err != nil {
		return err
	}
	a.devSrv = srv
	a.log.Info().
		Str("addr", addr).
		Str("token", token).
		Msgf("dev event stream ready: oriel tail -addr %s -token %s", addr, token)
	return nil
}

// teardown releases everything assembly acquired, in reverse order. The
// shutdown event goes out first so stream subscribers see it before their
// connections drop.
func (a *App) teardown() {
	a.closeOnce.Do(func() {
		a.publish(events.New(events.KindShutdown, "", nil))

		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		if a.devSrv != nil {
			if err := a.devSrv.Stop(ctx); err != nil {
				a.log.Warn().Err(err).Msg("dev server stop")
			}
		}
		if err := a.registry.ShutdownAll(ctx); err != nil {
			a.closeErr = err
			a.log.Error().Err(err).Msg("plugin shutdown")
		}
		a.bus.Close()
		a.cancel()
		a.log.Debug().Msg("shutdown complete")
		if a.closer != nil {
			_ = a.closer.Close()
		}
	})
}

// windowCtx returns the host framework context, nil while headless or
// before startup.
func (a *App) windowCtx() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.wailsCtx
}

func (a *App) setWindowCtx(ctx context.Context) {
	a.mu.Lock()
	a.wailsCtx = ctx
	a.mu.Unlock()
}
