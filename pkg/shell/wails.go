package shell

import (
	"context"
	"errors"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/oriel-shell/oriel/pkg/bundle"
	"github.com/oriel-shell/oriel/pkg/events"
	"github.com/oriel-shell/oriel/pkg/logging"
	"github.com/oriel-shell/oriel/pkg/plugins/clipboard"
	"github.com/oriel-shell/oriel/pkg/plugins/dialog"
	"github.com/oriel-shell/oriel/pkg/settings"
)

// mirrorBuffer is the webview mirror's bus subscription buffer.
const mirrorBuffer = 256

// runWindowed hands control to the host framework. It blocks until the
// window closes; everything the frontend sees (assets, bridge, events,
// dialogs) is wired through the options here.
func (a *App) runWindowed() error {
	w := a.manifest.Window
	opts := &options.App{
		Title:         w.Title,
		Width:         w.Width,
		Height:        w.Height,
		MinWidth:      w.MinWidth,
		MinHeight:     w.MinHeight,
		DisableResize: !w.Resizable,
		StartHidden:   w.StartHidden || a.hidden,
		AssetServer: &assetserver.Options{
			Assets: a.bctx.Assets,
		},
		Logger:        logging.HostLogger(a.log),
		OnStartup:     a.onStartup,
		OnDomReady:    a.onDomReady,
		OnBeforeClose: a.onBeforeClose,
		OnShutdown:    a.onShutdown,
		Bind: []interface{}{
			NewBridge(a),
		},
		Debug: options.Debug{
			OpenInspectorOnStartup: a.dev && a.manifest.Dev.OpenInspector,
		},
	}
	if r, g, bl, ok := a.manifest.BackgroundRGB(); ok {
		opts.BackgroundColour = options.NewRGB(r, g, bl)
	}
	if a.manifest.SingleInstance {
		opts.SingleInstanceLock = &options.SingleInstanceLock{
			UniqueId: a.manifest.Identifier,
			OnSecondInstanceLaunch: func(options.SecondInstanceData) {
				if wctx := a.windowCtx(); wctx != nil {
					runtime.WindowShow(wctx)
				}
			},
		}
	}

	return wails.Run(opts)
}

func (a *App) onStartup(ctx context.Context) {
	a.setWindowCtx(ctx)

	native := &nativeWindow{app: a}
	for _, p := range a.plugins {
		switch bindable := p.(type) {
		case interface{ Bind(dialog.UI) }:
			bindable.Bind(native)
		case interface{ Bind(clipboard.Board) }:
			bindable.Bind(native)
		}
	}

	go a.mirrorEvents()
	a.restoreWindowState(ctx)
}

func (a *App) onDomReady(ctx context.Context) {
	a.publish(events.New(events.KindReady, bundle.WindowMain, a.readyInfo()))
	a.announceUpdate()
}

func (a *App) onBeforeClose(ctx context.Context) bool {
	a.saveWindowState(ctx)
	a.publish(events.New(events.KindWindowClose, bundle.WindowMain, nil))
	return false
}

func (a *App) onShutdown(ctx context.Context) {
	// The frontend is going away; stop mirroring into it.
	a.setWindowCtx(nil)
}

// mirrorEvents forwards every bus event into the webview so the frontend
// observes the same stream as the dev console and automation mode. Ends
// when the bus closes.
func (a *App) mirrorEvents() {
	sub := a.bus.Subscribe(mirrorBuffer)
	defer a.bus.Unsubscribe(sub)

	for ev := range sub.C {
		wctx := a.windowCtx()
		if wctx == nil {
			continue
		}
		runtime.EventsEmit(wctx, ev.Kind, ev)
	}
}

// restoreWindowState applies the geometry saved by the previous run.
func (a *App) restoreWindowState(ctx context.Context) {
	s := a.store.Get()
	if a.manifest.Window.Resizable && s.WindowWidth > 0 && s.WindowHeight > 0 {
		runtime.WindowSetSize(ctx, s.WindowWidth, s.WindowHeight)
	}
	if s.HasPosition {
		runtime.WindowSetPosition(ctx, s.WindowX, s.WindowY)
	}
	if s.Maximised {
		runtime.WindowMaximise(ctx)
	}
}

// saveWindowState records geometry for the next run. Size and position
// are only meaningful when not maximised.
func (a *App) saveWindowState(ctx context.Context) {
	maximised := runtime.WindowIsMaximised(ctx)

	var width, height, x, y int
	if !maximised {
		width, height = runtime.WindowGetSize(ctx)
		x, y = runtime.WindowGetPosition(ctx)
	}

	err := a.store.Update(func(s *settings.Settings) {
		s.Maximised = maximised
		if !maximised {
			s.WindowWidth = width
			s.WindowHeight = height
			s.WindowX = x
			s.WindowY = y
			s.HasPosition = true
		}
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("save window state")
	}
}

// nativeWindow backs the dialog and clipboard plugins with the host
// framework runtime.
type nativeWindow struct {
	app *App
}

func (n *nativeWindow) context() (context.Context, error) {
	if wctx := n.app.windowCtx(); wctx != nil {
		return wctx, nil
	}
	return nil, errors.New("shell: window not available")
}

func (n *nativeWindow) OpenFile(opts runtime.OpenDialogOptions) (string, error) {
	wctx, err := n.context()
	if err != nil {
		return "", err
	}
	return runtime.OpenFileDialog(wctx, opts)
}

func (n *nativeWindow) SaveFile(opts runtime.SaveDialogOptions) (string, error) {
	wctx, err := n.context()
	if err != nil {
		return "", err
	}
	return runtime.SaveFileDialog(wctx, opts)
}

func (n *nativeWindow) Message(opts runtime.MessageDialogOptions) (string, error) {
	wctx, err := n.context()
	if err != nil {
		return "", err
	}
	return runtime.MessageDialog(wctx, opts)
}

func (n *nativeWindow) ReadText() (string, error) {
	wctx, err := n.context()
	if err != nil {
		return "", err
	}
	return runtime.ClipboardGetText(wctx)
}

func (n *nativeWindow) WriteText(text string) error {
	wctx, err := n.context()
	if err != nil {
		return err
	}
	return runtime.ClipboardSetText(wctx, text)
}
