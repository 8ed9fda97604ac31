package plugin

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/oriel-shell/oriel/pkg/capability"
)

// ErrUnknownCommand marks lookups of commands no registered plugin
// provides.
var ErrUnknownCommand = errors.New("plugin: unknown command")

var (
	pluginNameRe  = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	commandNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Target is a resolved dispatch destination.
type Target struct {
	Plugin  string
	Command Command
}

// Registry owns the registered plugins and their commands. Registration
// happens during startup from a single goroutine; lookups afterwards are
// read-only and safe for concurrent use.
type Registry struct {
	plugins  []Plugin
	byName   map[string]Plugin
	commands map[string]Command // "plugin.command" -> command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]Plugin),
		commands: make(map[string]Command),
	}
}

// Register adds a plugin. Plugin and command names are validated here so
// a misassembled app fails at startup rather than at first invoke.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin: register nil plugin")
	}
	name := p.Name()
	if !pluginNameRe.MatchString(name) {
		return fmt.Errorf("plugin: invalid plugin name %q", name)
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("plugin: duplicate plugin %q", name)
	}

	cmds := p.Commands()
	if len(cmds) == 0 {
		return fmt.Errorf("plugin: plugin %q exposes no commands", name)
	}
	seen := make(map[string]struct{}, len(cmds))
	for _, c := range cmds {
		if !commandNameRe.MatchString(c.Name) {
			return fmt.Errorf("plugin: plugin %q has an invalid command name %q", name, c.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("plugin: plugin %q declares command %q twice", name, c.Name)
		}
		if c.Handler == nil {
			return fmt.Errorf("plugin: command %s.%s has no handler", name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}

	r.plugins = append(r.plugins, p)
	r.byName[name] = p
	for _, c := range cmds {
		r.commands[name+"."+c.Name] = c
	}
	return nil
}

// Lookup resolves a "plugin.command" path to its target.
func (r *Registry) Lookup(full string) (Target, error) {
	pluginName, _, ok := strings.Cut(full, ".")
	if !ok {
		return Target{}, fmt.Errorf("%w: %q is not plugin.command", ErrUnknownCommand, full)
	}
	c, ok := r.commands[full]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownCommand, full)
	}
	return Target{Plugin: pluginName, Command: c}, nil
}

// CommandSet exposes the registered commands for capability resolution.
func (r *Registry) CommandSet() capability.CommandSet {
	out := make(capability.CommandSet, len(r.byName))
	for _, p := range r.plugins {
		names := make([]string, 0, len(p.Commands()))
		for _, c := range p.Commands() {
			names = append(names, c.Name)
		}
		out[p.Name()] = names
	}
	return out
}

// Plugins returns the registered plugins in registration order.
func (r *Registry) Plugins() []Plugin {
	return r.plugins
}

// SetupAll runs plugin setups in registration order. The first failure
// aborts and is returned.
func (r *Registry) SetupAll(ctx context.Context, host Host) error {
	for _, p := range r.plugins {
		if err := p.Setup(ctx, host); err != nil {
			return fmt.Errorf("plugin: setup %s: %w", p.Name(), err)
		}
	}
	return nil
}

// ShutdownAll runs plugin shutdowns in reverse registration order and
// joins any errors.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	var errs []error
	for i := len(r.plugins) - 1; i >= 0; i-- {
		p := r.plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("plugin: shutdown %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
