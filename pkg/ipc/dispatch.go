// Package ipc dispatches invoke calls from the webview (or automation
// tooling) to plugin command handlers: parse, permission check, scope
// resolve, execute, marshal. It is pure Go and runs identically with or
// without a window.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/oriel-shell/oriel/pkg/capability"
	"github.com/oriel-shell/oriel/pkg/events"
	"github.com/oriel-shell/oriel/pkg/plugin"
)

// InvokeRecord is the payload of the invoke event published for every
// dispatch, success or failure.
type InvokeRecord struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	Window     string `json:"window"`
	OK         bool   `json:"ok"`
	Code       string `json:"code,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Dispatcher routes invokes through the permission table to handlers.
type Dispatcher struct {
	registry *plugin.Registry
	acl      *capability.ACL
	bus      *events.Bus
	log      zerolog.Logger
}

// NewDispatcher wires a dispatcher. The bus may be nil in tests.
func NewDispatcher(registry *plugin.Registry, acl *capability.ACL, bus *events.Bus, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		acl:      acl,
		bus:      bus,
		log:      log.With().Str("component", "ipc").Logger(),
	}
}

// Dispatch executes one command invocation for the given window label.
// The result is the handler's return value marshaled to JSON; failures
// come back as a *plugin.Error whose string form is "code: message".
func (d *Dispatcher) Dispatch(ctx context.Context, window, command, rawArgs string) (string, error) {
	id := xid.New().String()
	start := time.Now()

	result, invokeErr := d.dispatch(ctx, window, command, rawArgs)

	rec := InvokeRecord{
		ID:         id,
		Command:    command,
		Window:     window,
		OK:         invokeErr == nil,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if invokeErr != nil {
		rec.Code = invokeErr.Code
	}
	if d.bus != nil {
		d.bus.Publish(events.New(events.KindInvoke, window, rec))
	}

	if invokeErr != nil {
		d.log.Debug().
			Str("invoke", id).
			Str("command", command).
			Str("window", window).
			Str("code", invokeErr.Code).
			Msg(invokeErr.Message)
		return "", invokeErr
	}

	d.log.Debug().
		Str("invoke", id).
		Str("command", command).
		Str("window", window).
		Int64("duration_ms", rec.DurationMS).
		Msg("invoke ok")
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, window, command, rawArgs string) (string, *plugin.Error) {
	args := strings.TrimSpace(rawArgs)
	if args != "" && !json.Valid([]byte(args)) {
		return "", plugin.Errorf(plugin.CodeBadRequest, "arguments for %s are not valid JSON", command)
	}

	target, err := d.registry.Lookup(command)
	if err != nil {
		if errors.Is(err, plugin.ErrUnknownCommand) {
			return "", plugin.Errorf(plugin.CodeNotFound, "unknown command %s", command)
		}
		return "", plugin.Errorf(plugin.CodeInternal, "lookup %s: %v", command, err)
	}

	if !d.acl.Allows(window, target.Plugin, target.Command.Name) {
		return "", plugin.Errorf(plugin.CodeDenied, "window %q may not invoke %s", window, command)
	}

	inv := plugin.Invocation{
		Window: window,
		Args:   json.RawMessage(args),
		Scope:  d.acl.Scope(window, target.Plugin),
	}

	value, err := target.Command.Handler(ctx, inv)
	if err != nil {
		var perr *plugin.Error
		if errors.As(err, &perr) {
			return "", perr
		}
		return "", plugin.Errorf(plugin.CodeInternal, "%s: %v", command, err)
	}

	out, err := json.Marshal(value)
	if err != nil {
		return "", plugin.Errorf(plugin.CodeInternal, "marshal %s result: %v", command, err)
	}
	return string(out), nil
}
