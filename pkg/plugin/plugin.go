// Package plugin defines the command surface the shell exposes to its
// frontend: plugins contribute named commands, a registry owns their
// lifecycle, and invocations carry the caller's window label and resolved
// scope into handlers.
package plugin

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/oriel-shell/oriel/pkg/bundle"
	"github.com/oriel-shell/oriel/pkg/capability"
)

// Handler executes one command invocation. The returned value is marshaled
// to JSON for the caller; a nil value becomes null.
type Handler func(ctx context.Context, inv Invocation) (any, error)

// Invocation is one command call as seen by a handler.
type Invocation struct {
	// Window is the label of the calling window ("main" for the webview,
	// "automation" for headless tooling).
	Window string
	// Args is the raw JSON argument object. Empty means no arguments.
	Args json.RawMessage
	// Scope is the caller's resolved scope for the handling plugin.
	Scope capability.Scope
}

// Command is one named operation a plugin exposes.
type Command struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Host is the shell surface plugins may use during Setup and from
// handlers. Implementations are safe for concurrent use.
type Host interface {
	// Emit publishes an application event to the bus and the webview.
	Emit(event string, payload any) error
	// DataDir is the per-app writable directory for plugin state.
	DataDir() string
	// Logger returns the shell logger; plugins should attach their name.
	Logger() zerolog.Logger
	// Manifest exposes the loaded app manifest.
	Manifest() bundle.Manifest
}

// Plugin contributes commands to the shell.
type Plugin interface {
	// Name identifies the plugin in permissions and command paths. It must
	// match [a-z][a-z0-9-]* and be unique within a registry.
	Name() string
	// Commands lists the plugin's operations. Called once at registration.
	Commands() []Command
	// Setup runs before the run loop starts. A returned error aborts
	// startup.
	Setup(ctx context.Context, host Host) error
	// Shutdown runs after the run loop ends, in reverse registration
	// order.
	Shutdown(ctx context.Context) error
}
