// Package capability implements the permission model gating what each
// window may invoke: capability files grant plugin commands to window
// labels, optionally narrowed by URL and path scopes. Resolution happens
// once at startup; unknown plugins, commands or malformed patterns are
// startup failures, not runtime surprises.
package capability

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	pluginNameRe  = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	commandNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Capability grants a set of plugin permissions to one or more windows.
type Capability struct {
	Identifier  string       `yaml:"identifier"`
	Description string       `yaml:"description,omitempty"`
	Windows     []string     `yaml:"windows"`
	Permissions []Permission `yaml:"permissions"`
}

// Permission is one entry in a capability's permission list. In YAML it is
// either a bare identifier string or a mapping with allow/deny scopes:
//
//	- opener:allow-open-url
//	- identifier: opener:allow-open-path
//	  allow:
//	    - path: "$HOME/Downloads/**"
type Permission struct {
	Identifier string
	Allow      []ScopeEntry
	Deny       []ScopeEntry
}

// UnmarshalYAML accepts both the string and the mapping form.
func (p *Permission) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&p.Identifier)
	}
	var raw struct {
		Identifier string       `yaml:"identifier"`
		Allow      []ScopeEntry `yaml:"allow"`
		Deny       []ScopeEntry `yaml:"deny"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	p.Identifier = raw.Identifier
	p.Allow = raw.Allow
	p.Deny = raw.Deny
	return nil
}

// permKind is what a parsed permission identifier grants or revokes.
type permKind int

const (
	permDefault permKind = iota // every command of the plugin
	permAllow
	permDeny
)

type parsedPerm struct {
	plugin  string
	kind    permKind
	command string // empty for permDefault
}

func parsePermission(id string) (parsedPerm, error) {
	plugin, rest, ok := strings.Cut(id, ":")
	if !ok || plugin == "" || rest == "" {
		return parsedPerm{}, fmt.Errorf("capability: permission %q must be plugin:grant", id)
	}
	if !pluginNameRe.MatchString(plugin) {
		return parsedPerm{}, fmt.Errorf("capability: permission %q has an invalid plugin name", id)
	}
	switch {
	case rest == "default":
		return parsedPerm{plugin: plugin, kind: permDefault}, nil
	case strings.HasPrefix(rest, "allow-"):
		cmd := normalizeCommand(strings.TrimPrefix(rest, "allow-"))
		if !commandNameRe.MatchString(cmd) {
			return parsedPerm{}, fmt.Errorf("capability: permission %q has an invalid command name", id)
		}
		return parsedPerm{plugin: plugin, kind: permAllow, command: cmd}, nil
	case strings.HasPrefix(rest, "deny-"):
		cmd := normalizeCommand(strings.TrimPrefix(rest, "deny-"))
		if !commandNameRe.MatchString(cmd) {
			return parsedPerm{}, fmt.Errorf("capability: permission %q has an invalid command name", id)
		}
		return parsedPerm{plugin: plugin, kind: permDeny, command: cmd}, nil
	default:
		return parsedPerm{}, fmt.Errorf("capability: permission %q grant must be default, allow-<command> or deny-<command>", id)
	}
}

// normalizeCommand lets capability files spell open_url as open-url, the
// way permission identifiers conventionally read.
func normalizeCommand(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

// CommandSet lists the commands each registered plugin exposes. It is the
// universe permissions are resolved against.
type CommandSet map[string][]string

func (cs CommandSet) has(plugin, command string) bool {
	for _, c := range cs[plugin] {
		if c == command {
			return true
		}
	}
	return false
}

// grant is the resolved permission state for one window.
type grant struct {
	allowed map[string]map[string]struct{} // plugin -> commands
	denied  map[string]map[string]struct{}
	scopes  map[string]*Scope // plugin -> merged scope
}

func newGrant() *grant {
	return &grant{
		allowed: make(map[string]map[string]struct{}),
		denied:  make(map[string]map[string]struct{}),
		scopes:  make(map[string]*Scope),
	}
}

func (g *grant) allow(plugin, command string) {
	if g.allowed[plugin] == nil {
		g.allowed[plugin] = make(map[string]struct{})
	}
	g.allowed[plugin][command] = struct{}{}
}

func (g *grant) deny(plugin, command string) {
	if g.denied[plugin] == nil {
		g.denied[plugin] = make(map[string]struct{})
	}
	g.denied[plugin][command] = struct{}{}
}

func (g *grant) scope(plugin string) *Scope {
	s, ok := g.scopes[plugin]
	if !ok {
		s = &Scope{}
		g.scopes[plugin] = s
	}
	return s
}

// ACL is the resolved permission table: window label to granted commands
// and scopes. Windows not named by any capability hold no grants.
type ACL struct {
	windows map[string]*grant
}

// Resolve validates capabilities against the registered command set and
// builds the ACL. Any unknown plugin, unknown command, duplicate capability
// identifier or malformed scope pattern is an error.
func Resolve(caps []Capability, known CommandSet) (*ACL, error) {
	acl := &ACL{windows: make(map[string]*grant)}
	seen := make(map[string]struct{}, len(caps))

	for _, c := range caps {
		if c.Identifier == "" {
			return nil, fmt.Errorf("capability: capability without identifier")
		}
		if _, dup := seen[c.Identifier]; dup {
			return nil, fmt.Errorf("capability: duplicate capability %q", c.Identifier)
		}
		seen[c.Identifier] = struct{}{}
		if len(c.Windows) == 0 {
			return nil, fmt.Errorf("capability: capability %q names no windows", c.Identifier)
		}

		for _, perm := range c.Permissions {
			pp, err := parsePermission(perm.Identifier)
			if err != nil {
				return nil, fmt.Errorf("capability %q: %w", c.Identifier, err)
			}
			cmds, ok := known[pp.plugin]
			if !ok {
				return nil, fmt.Errorf("capability: capability %q references unknown plugin %q", c.Identifier, pp.plugin)
			}
			if pp.kind != permDefault && !known.has(pp.plugin, pp.command) {
				return nil, fmt.Errorf("capability: capability %q references unknown command %s.%s", c.Identifier, pp.plugin, pp.command)
			}

			var permScope Scope
			if err := permScope.add(true, perm.Allow); err != nil {
				return nil, fmt.Errorf("capability %q: %w", c.Identifier, err)
			}
			if err := permScope.add(false, perm.Deny); err != nil {
				return nil, fmt.Errorf("capability %q: %w", c.Identifier, err)
			}

			for _, w := range c.Windows {
				if w == "" {
					return nil, fmt.Errorf("capability: capability %q has an empty window label", c.Identifier)
				}
				g := acl.windows[w]
				if g == nil {
					g = newGrant()
					acl.windows[w] = g
				}
				switch pp.kind {
				case permDefault:
					for _, cmd := range cmds {
						g.allow(pp.plugin, cmd)
					}
				case permAllow:
					g.allow(pp.plugin, pp.command)
				case permDeny:
					g.deny(pp.plugin, pp.command)
				}
				g.scope(pp.plugin).merge(permScope)
			}
		}
	}
	return acl, nil
}

// Allows reports whether the window may invoke plugin.command. Deny
// entries win over any allow, including defaults.
func (a *ACL) Allows(window, plugin, command string) bool {
	g, ok := a.windows[window]
	if !ok {
		return false
	}
	if _, denied := g.denied[plugin][command]; denied {
		return false
	}
	_, allowed := g.allowed[plugin][command]
	return allowed
}

// Scope returns the merged scope the window holds for the plugin. Windows
// or plugins without grants get the zero scope, which PermitsURL and
// PermitsPath treat as unrestricted; callers must check Allows first.
func (a *ACL) Scope(window, plugin string) Scope {
	g, ok := a.windows[window]
	if !ok {
		return Scope{}
	}
	s, ok := g.scopes[plugin]
	if !ok {
		return Scope{}
	}
	return *s
}

// Commands returns the allowed plugin.command pairs for a window, sorted.
// Automation mode uses this to decide which tools to expose.
func (a *ACL) Commands(window string) []string {
	g, ok := a.windows[window]
	if !ok {
		return nil
	}
	var out []string
	for plugin, cmds := range g.allowed {
		for cmd := range cmds {
			if _, denied := g.denied[plugin][cmd]; denied {
				continue
			}
			out = append(out, plugin+"."+cmd)
		}
	}
	sort.Strings(out)
	return out
}

// Windows returns the window labels holding at least one grant, sorted.
func (a *ACL) Windows() []string {
	out := make([]string, 0, len(a.windows))
	for w := range a.windows {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
