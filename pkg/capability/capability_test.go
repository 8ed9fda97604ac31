package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testCommands() CommandSet {
	return CommandSet{
		"opener": {"open_url", "open_path", "reveal_item_in_dir"},
		"store":  {"get", "set", "keys"},
	}
}

func TestParsePermission(t *testing.T) {
	tests := []struct {
		id      string
		plugin  string
		kind    permKind
		command string
	}{
		{"opener:default", "opener", permDefault, ""},
		{"opener:allow-open-url", "opener", permAllow, "open_url"},
		{"opener:allow-open_url", "opener", permAllow, "open_url"},
		{"store:deny-keys", "store", permDeny, "keys"},
	}
	for _, tt := range tests {
		pp, err := parsePermission(tt.id)
		require.NoError(t, err, "permission %s", tt.id)
		assert.Equal(t, tt.plugin, pp.plugin, "permission %s", tt.id)
		assert.Equal(t, tt.kind, pp.kind, "permission %s", tt.id)
		assert.Equal(t, tt.command, pp.command, "permission %s", tt.id)
	}
}

func TestParsePermissionErrors(t *testing.T) {
	bad := []string{
		"",
		"opener",
		"opener:",
		":default",
		"Opener:default",
		"opener:sometimes",
		"opener:allow-",
		"opener:deny-Open",
	}
	for _, id := range bad {
		_, err := parsePermission(id)
		assert.Error(t, err, "permission %q", id)
	}
}

func TestResolveDefaultGrantsAllCommands(t *testing.T) {
	caps := []Capability{{
		Identifier:  "main",
		Windows:     []string{"main"},
		Permissions: []Permission{{Identifier: "opener:default"}},
	}}

	acl, err := Resolve(caps, testCommands())
	require.NoError(t, err)

	assert.True(t, acl.Allows("main", "opener", "open_url"))
	assert.True(t, acl.Allows("main", "opener", "open_path"))
	assert.True(t, acl.Allows("main", "opener", "reveal_item_in_dir"))
	assert.False(t, acl.Allows("main", "store", "get"))
}

func TestResolveDenyBeatsDefault(t *testing.T) {
	caps := []Capability{{
		Identifier: "main",
		Windows:    []string{"main"},
		Permissions: []Permission{
			{Identifier: "opener:default"},
			{Identifier: "opener:deny-open-path"},
		},
	}}

	acl, err := Resolve(caps, testCommands())
	require.NoError(t, err)

	assert.True(t, acl.Allows("main", "opener", "open_url"))
	assert.False(t, acl.Allows("main", "opener", "open_path"))
}

func TestResolveMultipleWindowsAndCapabilities(t *testing.T) {
	caps := []Capability{
		{
			Identifier:  "both",
			Windows:     []string{"main", "automation"},
			Permissions: []Permission{{Identifier: "store:allow-get"}},
		},
		{
			Identifier:  "main-extra",
			Windows:     []string{"main"},
			Permissions: []Permission{{Identifier: "opener:allow-open-url"}},
		},
	}

	acl, err := Resolve(caps, testCommands())
	require.NoError(t, err)

	assert.True(t, acl.Allows("main", "store", "get"))
	assert.True(t, acl.Allows("automation", "store", "get"))
	assert.True(t, acl.Allows("main", "opener", "open_url"))
	assert.False(t, acl.Allows("automation", "opener", "open_url"))
	assert.Equal(t, []string{"automation", "main"}, acl.Windows())
}

func TestResolveErrors(t *testing.T) {
	known := testCommands()
	tests := []struct {
		name string
		caps []Capability
	}{
		{"missing identifier", []Capability{{Windows: []string{"main"}}}},
		{"duplicate identifier", []Capability{
			{Identifier: "x", Windows: []string{"main"}},
			{Identifier: "x", Windows: []string{"main"}},
		}},
		{"no windows", []Capability{{Identifier: "x"}}},
		{"empty window label", []Capability{{
			Identifier:  "x",
			Windows:     []string{""},
			Permissions: []Permission{{Identifier: "opener:default"}},
		}}},
		{"unknown plugin", []Capability{{
			Identifier:  "x",
			Windows:     []string{"main"},
			Permissions: []Permission{{Identifier: "ghost:default"}},
		}}},
		{"unknown command", []Capability{{
			Identifier:  "x",
			Windows:     []string{"main"},
			Permissions: []Permission{{Identifier: "opener:allow-teleport"}},
		}}},
		{"bad scope pattern", []Capability{{
			Identifier: "x",
			Windows:    []string{"main"},
			Permissions: []Permission{{
				Identifier: "opener:allow-open-url",
				Allow:      []ScopeEntry{{URL: "no-scheme"}},
			}},
		}}},
	}
	for _, tt := range tests {
		_, err := Resolve(tt.caps, known)
		assert.Error(t, err, tt.name)
	}
}

func TestResolveAttachesScopes(t *testing.T) {
	caps := []Capability{{
		Identifier: "main",
		Windows:    []string{"main"},
		Permissions: []Permission{{
			Identifier: "opener:allow-open-url",
			Allow:      []ScopeEntry{{URL: "https://example.com/**"}},
		}},
	}}

	acl, err := Resolve(caps, testCommands())
	require.NoError(t, err)

	scope := acl.Scope("main", "opener")
	assert.NoError(t, scope.PermitsURL("https://example.com/docs"))
	assert.Error(t, scope.PermitsURL("https://other.dev/"))
}

func TestResolveMergesScopesAcrossCapabilities(t *testing.T) {
	caps := []Capability{
		{
			Identifier: "a",
			Windows:    []string{"main"},
			Permissions: []Permission{{
				Identifier: "opener:allow-open-url",
				Allow:      []ScopeEntry{{URL: "https://a.dev/**"}},
			}},
		},
		{
			Identifier: "b",
			Windows:    []string{"main"},
			Permissions: []Permission{{
				Identifier: "opener:allow-open-url",
				Allow:      []ScopeEntry{{URL: "https://b.dev/**"}},
				Deny:       []ScopeEntry{{URL: "https://a.dev/private/**"}},
			}},
		},
	}

	acl, err := Resolve(caps, testCommands())
	require.NoError(t, err)

	scope := acl.Scope("main", "opener")
	assert.NoError(t, scope.PermitsURL("https://a.dev/x"))
	assert.NoError(t, scope.PermitsURL("https://b.dev/y"))
	assert.Error(t, scope.PermitsURL("https://a.dev/private/z"))
	assert.Error(t, scope.PermitsURL("https://c.dev/"))
}

func TestACLUnknownWindow(t *testing.T) {
	acl, err := Resolve(nil, testCommands())
	require.NoError(t, err)

	assert.False(t, acl.Allows("ghost", "opener", "open_url"))
	assert.Empty(t, acl.Commands("ghost"))
	// Zero scope is unrestricted; Allows gates first.
	assert.NoError(t, acl.Scope("ghost", "opener").PermitsURL("https://x.dev/"))
}

func TestACLCommands(t *testing.T) {
	caps := []Capability{{
		Identifier: "main",
		Windows:    []string{"main"},
		Permissions: []Permission{
			{Identifier: "store:default"},
			{Identifier: "store:deny-keys"},
			{Identifier: "opener:allow-open-url"},
		},
	}}

	acl, err := Resolve(caps, testCommands())
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"opener.open_url", "store.get", "store.set"},
		acl.Commands("main"))
}

func TestPermissionUnmarshalYAML(t *testing.T) {
	doc := `
identifier: main
windows: [main]
permissions:
  - opener:allow-open-url
  - identifier: opener:allow-open-path
    allow:
      - path: "/data/**"
    deny:
      - path: "/data/private/**"
`
	var c Capability
	require.NoError(t, yaml.Unmarshal([]byte(doc), &c))

	require.Len(t, c.Permissions, 2)
	assert.Equal(t, "opener:allow-open-url", c.Permissions[0].Identifier)
	assert.Empty(t, c.Permissions[0].Allow)
	assert.Equal(t, "opener:allow-open-path", c.Permissions[1].Identifier)
	require.Len(t, c.Permissions[1].Allow, 1)
	assert.Equal(t, "/data/**", c.Permissions[1].Allow[0].Path)
	require.Len(t, c.Permissions[1].Deny, 1)
}
