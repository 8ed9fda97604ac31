package shell

import (
	"context"
	"encoding/json"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/oriel-shell/oriel/pkg/buildinfo"
	"github.com/oriel-shell/oriel/pkg/events"
	"github.com/oriel-shell/oriel/pkg/plugin"
)

// CoreName is the name of the plugin the shell registers for itself.
const CoreName = "core"

// corePlugin exposes app metadata, window control and event broadcast to
// the frontend. It is always registered first.
type corePlugin struct {
	app *App
}

func newCorePlugin(app *App) *corePlugin {
	return &corePlugin{app: app}
}

func (c *corePlugin) Name() string { return CoreName }

func (c *corePlugin) Setup(ctx context.Context, host plugin.Host) error { return nil }

func (c *corePlugin) Shutdown(ctx context.Context) error { return nil }

func (c *corePlugin) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Name:        "app_info",
			Description: "Product, identifier and build metadata of the running app.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     c.handleAppInfo,
		},
		{
			Name:        "set_title",
			Description: "Set the window title.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"}},"required":["title"]}`),
			Handler:     c.handleSetTitle,
		},
		{
			Name:        "window_size",
			Description: "Current window size in logical pixels.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     c.handleWindowSize,
		},
		{
			Name:        "set_window_size",
			Description: "Resize the window.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"width":{"type":"integer","minimum":1},"height":{"type":"integer","minimum":1}},"required":["width","height"]}`),
			Handler:     c.handleSetWindowSize,
		},
		{
			Name:        "emit",
			Description: "Broadcast an application event to all subscribers.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"event":{"type":"string"},"payload":{}},"required":["event"]}`),
			Handler:     c.handleEmit,
		},
		{
			Name:        "quit",
			Description: "Quit the application.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     c.handleQuit,
		},
	}
}

// requireWindow fails command handlers that need the native window when
// running headless.
func (c *corePlugin) requireWindow() (context.Context, error) {
	if wctx := c.app.windowCtx(); wctx != nil {
		return wctx, nil
	}
	return nil, plugin.Errorf(plugin.CodeInternal, "no interactive window available")
}

func (c *corePlugin) handleAppInfo(ctx context.Context, inv plugin.Invocation) (any, error) {
	return map[string]any{
		"product":    c.app.manifest.Product,
		"identifier": c.app.manifest.Identifier,
		"version":    c.app.bctx.Version,
		"commit":     buildinfo.Commit,
		"date":       buildinfo.Date,
		"dev":        c.app.dev,
	}, nil
}

type titleInput struct {
	Title string `json:"title"`
}

func (c *corePlugin) handleSetTitle(ctx context.Context, inv plugin.Invocation) (any, error) {
	var in titleInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	if in.Title == "" {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "title must not be empty")
	}
	wctx, err := c.requireWindow()
	if err != nil {
		return nil, err
	}
	runtime.WindowSetTitle(wctx, in.Title)
	return nil, nil
}

func (c *corePlugin) handleWindowSize(ctx context.Context, inv plugin.Invocation) (any, error) {
	wctx, err := c.requireWindow()
	if err != nil {
		return nil, err
	}
	w, h := runtime.WindowGetSize(wctx)
	return map[string]int{"width": w, "height": h}, nil
}

type sizeInput struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (c *corePlugin) handleSetWindowSize(ctx context.Context, inv plugin.Invocation) (any, error) {
	var in sizeInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	if in.Width <= 0 || in.Height <= 0 {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "width and height must be positive")
	}
	wctx, err := c.requireWindow()
	if err != nil {
		return nil, err
	}
	runtime.WindowSetSize(wctx, in.Width, in.Height)
	return nil, nil
}

type emitInput struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (c *corePlugin) handleEmit(ctx context.Context, inv plugin.Invocation) (any, error) {
	var in emitInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	if in.Event == "" {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "event must not be empty")
	}
	if events.IsReserved(in.Event) {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "event %q uses the reserved %q prefix", in.Event, events.Reserved)
	}

	var payload any
	if len(in.Payload) > 0 {
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			return nil, plugin.Errorf(plugin.CodeBadRequest, "parse payload: %v", err)
		}
	}
	c.app.publish(events.New(in.Event, inv.Window, payload))
	return nil, nil
}

func (c *corePlugin) handleQuit(ctx context.Context, inv plugin.Invocation) (any, error) {
	if wctx := c.app.windowCtx(); wctx != nil {
		runtime.Quit(wctx)
		return nil, nil
	}
	c.app.cancel()
	return nil, nil
}
