package shell

import (
	"github.com/oriel-shell/oriel/pkg/bundle"
)

// Bridge is the single object bound into the webview. The frontend calls
// Invoke with a plugin.command path and a JSON argument string; results
// come back as JSON, failures as a rejected promise carrying the
// "code: message" envelope.
type Bridge struct {
	app *App
}

// NewBridge exposes the app's dispatcher to the frontend.
func NewBridge(app *App) *Bridge {
	return &Bridge{app: app}
}

// Invoke executes one command on behalf of the main window.
func (b *Bridge) Invoke(command string, args string) (string, error) {
	return b.app.dispatcher.Dispatch(b.app.ctx, bundle.WindowMain, command, args)
}
