package shell

import (
	"errors"
	"fmt"
)

// Startup stages, in pipeline order. A StartupError carries the stage that
// failed so callers and tests can tell a bad manifest from a bad plugin.
const (
	StageContext      = "context"
	StageLogging      = "logging"
	StageSettings     = "settings"
	StagePlugins      = "plugins"
	StageCapabilities = "capabilities"
	StageRuntime      = "runtime"
)

// ErrAlreadyRunning is returned when Run or Headless is invoked a second
// time on the same builder.
var ErrAlreadyRunning = errors.New("shell: already running")

// StartupError wraps any failure before or while entering the run loop.
// Startup is all-or-nothing: there is no recovery path, the caller is
// expected to print the diagnostic and exit non-zero.
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed during %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

func startupErr(stage string, err error) *StartupError {
	return &StartupError{Stage: stage, Err: err}
}
