// Package opener provides the opener plugin: opening URLs in the default
// browser, opening paths with their associated application and revealing
// items in the platform file manager. Every operation is gated by the
// caller's capability scope.
package opener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/oriel-shell/oriel/pkg/plugin"
)

// Name is the plugin name used in permissions and command paths.
const Name = "opener"

var allowedSchemes = map[string]struct{}{
	"http": {}, "https": {}, "mailto": {},
}

// Opener is the opener plugin.
type Opener struct {
	goos string
	run  runner
	log  zerolog.Logger
}

// New creates the opener for the current platform.
func New() *Opener {
	return &Opener{
		goos: runtime.GOOS,
		run:  execRunner,
	}
}

// Name implements plugin.Plugin.
func (o *Opener) Name() string { return Name }

// Setup implements plugin.Plugin.
func (o *Opener) Setup(ctx context.Context, host plugin.Host) error {
	o.log = host.Logger().With().Str("plugin", Name).Logger()
	return nil
}

// Shutdown implements plugin.Plugin.
func (o *Opener) Shutdown(ctx context.Context) error { return nil }

// Commands implements plugin.Plugin.
func (o *Opener) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Name:        "open_url",
			Description: "Open a URL in the default browser.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"Absolute http(s) or mailto URL"}},"required":["url"]}`),
			Handler:     o.handleOpenURL,
		},
		{
			Name:        "open_path",
			Description: "Open a file or directory with its associated application.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"Absolute filesystem path"}},"required":["path"]}`),
			Handler:     o.handleOpenPath,
		},
		{
			Name:        "reveal_item_in_dir",
			Description: "Reveal a file or directory in the platform file manager.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"Absolute filesystem path"}},"required":["path"]}`),
			Handler:     o.handleReveal,
		},
	}
}

type urlInput struct {
	URL string `json:"url"`
}

type pathInput struct {
	Path string `json:"path"`
}

func (o *Opener) handleOpenURL(ctx context.Context, inv plugin.Invocation) (any, error) {
	var in urlInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}

	u, err := url.Parse(in.URL)
	if err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse url: %v", err)
	}
	if !u.IsAbs() {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "url %q is not absolute", in.URL)
	}
	if _, ok := allowedSchemes[u.Scheme]; !ok {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "scheme %q is not openable", u.Scheme)
	}
	if err := inv.Scope.PermitsURL(in.URL); err != nil {
		return nil, plugin.Errorf(plugin.CodeDenied, "%v", err)
	}

	name, args := urlArgv(o.goos, in.URL)
	if err := o.run(ctx, name, args...); err != nil {
		return nil, fmt.Errorf("opener: open url: %w", err)
	}
	o.log.Debug().Str("url", in.URL).Msg("opened url")
	return nil, nil
}

func (o *Opener) handleOpenPath(ctx context.Context, inv plugin.Invocation) (any, error) {
	p, err := o.checkPath(inv)
	if err != nil {
		return nil, err
	}

	name, args := pathArgv(o.goos, p)
	if err := o.run(ctx, name, args...); err != nil {
		return nil, fmt.Errorf("opener: open path: %w", err)
	}
	o.log.Debug().Str("path", p).Msg("opened path")
	return nil, nil
}

func (o *Opener) handleReveal(ctx context.Context, inv plugin.Invocation) (any, error) {
	p, err := o.checkPath(inv)
	if err != nil {
		return nil, err
	}

	name, args := revealArgv(o.goos, p)
	if err := o.run(ctx, name, args...); err != nil {
		return nil, fmt.Errorf("opener: reveal item: %w", err)
	}
	o.log.Debug().Str("path", p).Msg("revealed item")
	return nil, nil
}

// checkPath parses, validates and scope-checks the path argument shared by
// open_path and reveal_item_in_dir.
func (o *Opener) checkPath(inv plugin.Invocation) (string, error) {
	var in pathInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return "", plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	if !filepath.IsAbs(in.Path) {
		return "", plugin.Errorf(plugin.CodeBadRequest, "path %q is not absolute", in.Path)
	}
	p := filepath.Clean(in.Path)
	if _, err := os.Stat(p); err != nil {
		return "", plugin.Errorf(plugin.CodeBadRequest, "stat path: %v", err)
	}
	if err := inv.Scope.PermitsPath(p); err != nil {
		return "", plugin.Errorf(plugin.CodeDenied, "%v", err)
	}
	return p, nil
}
