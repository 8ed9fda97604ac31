package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustScope(t *testing.T, allow, deny []ScopeEntry) Scope {
	t.Helper()
	s, err := NewScope(allow, deny)
	require.NoError(t, err)
	return s
}

func TestScopePermitsURL(t *testing.T) {
	s := mustScope(t,
		[]ScopeEntry{
			{URL: "https://*.example.com/**"},
			{URL: "https://docs.oriel.dev/guide/*"},
			{URL: "mailto://*"},
		},
		[]ScopeEntry{
			{URL: "https://evil.example.com/**"},
		},
	)

	tests := []struct {
		url string
		ok  bool
	}{
		{"https://app.example.com/path/deep", true},
		{"https://a.b.example.com/x", true},
		{"https://example.com/", false}, // wildcard needs an extra label
		{"http://app.example.com/", false},
		{"https://evil.example.com/anything", false},
		{"https://docs.oriel.dev/guide/intro", true},
		{"https://docs.oriel.dev/guide/intro/deep", false}, // * is one segment
		{"https://docs.oriel.dev/other", false},
		{"mailto:alice@example.com", true},
		{"https://unrelated.dev/", false},
	}
	for _, tt := range tests {
		err := s.PermitsURL(tt.url)
		if tt.ok {
			assert.NoError(t, err, "url %s", tt.url)
		} else {
			assert.Error(t, err, "url %s", tt.url)
		}
	}
}

func TestScopeURLCaseInsensitiveHost(t *testing.T) {
	s := mustScope(t, []ScopeEntry{{URL: "https://Example.COM/**"}}, nil)
	assert.NoError(t, s.PermitsURL("HTTPS://EXAMPLE.com/x"))
}

func TestScopeEmptyAllowPermitsEverything(t *testing.T) {
	var s Scope
	assert.NoError(t, s.PermitsURL("https://anywhere.dev/"))
	assert.NoError(t, s.PermitsPath("/any/path"))
}

func TestScopeDenyWinsWithoutAllow(t *testing.T) {
	s := mustScope(t, nil, []ScopeEntry{{URL: "https://blocked.dev/**"}})
	assert.NoError(t, s.PermitsURL("https://open.dev/"))
	assert.Error(t, s.PermitsURL("https://blocked.dev/x"))
}

func TestScopePermitsPath(t *testing.T) {
	s := mustScope(t,
		[]ScopeEntry{
			{Path: "/data/docs/**"},
			{Path: "/data/*.txt"},
		},
		[]ScopeEntry{
			{Path: "/data/docs/secret/**"},
		},
	)

	tests := []struct {
		path string
		ok   bool
	}{
		{"/data/docs/a/b.pdf", true},
		{"/data/docs", true}, // ** matches zero segments
		{"/data/notes.txt", true},
		{"/data/sub/notes.txt", false},
		{"/data/docs/secret/key", false},
		{"/elsewhere", false},
	}
	for _, tt := range tests {
		err := s.PermitsPath(tt.path)
		if tt.ok {
			assert.NoError(t, err, "path %s", tt.path)
		} else {
			assert.Error(t, err, "path %s", tt.path)
		}
	}
}

func TestScopePermitsPathRejectsRelative(t *testing.T) {
	s := mustScope(t, []ScopeEntry{{Path: "/data/**"}}, nil)
	assert.Error(t, s.PermitsPath("data/file"))
}

func TestScopePermitsPathCleansTraversal(t *testing.T) {
	s := mustScope(t, []ScopeEntry{{Path: "/data/docs/**"}}, nil)
	assert.Error(t, s.PermitsPath("/data/docs/../../etc/passwd"))
	assert.NoError(t, s.PermitsPath("/data/docs/sub/../a.pdf"))
}

func TestPathPatternHomeVariable(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	s := mustScope(t, []ScopeEntry{{Path: "$HOME/Downloads/**"}}, nil)
	assert.NoError(t, s.PermitsPath("/home/tester/Downloads/report.pdf"))
	assert.Error(t, s.PermitsPath("/home/other/Downloads/report.pdf"))
}

func TestCompileURLPatternErrors(t *testing.T) {
	bad := []string{
		"example.com",                 // no scheme
		"://example.com",              // empty scheme
		"https://ex*mple.com",         // wildcard inside a label
		"https://a.*.example.com",     // wildcard not leading
		"https://example.com/a//b",    // empty segment
		"https://example.com/a**",     // partial **
		"https://",                    // no host
	}
	for _, src := range bad {
		_, err := compileURLPattern(src)
		assert.Error(t, err, "pattern %s", src)
	}
}

func TestCompilePathPatternErrors(t *testing.T) {
	bad := []string{
		"data/**",        // relative
		"$DATA/x",        // unknown variable
		"/data/$HOME/**", // variable not a prefix
		"/data//x",       // empty segment
		"/data/a**b",     // partial **
	}
	for _, src := range bad {
		_, err := compilePathPattern(src)
		assert.Error(t, err, "pattern %s", src)
	}
}

func TestScopeEntryValidate(t *testing.T) {
	assert.Error(t, ScopeEntry{}.validate())
	assert.Error(t, ScopeEntry{URL: "https://x.dev/**", Path: "/x"}.validate())
	assert.NoError(t, ScopeEntry{URL: "https://x.dev/**"}.validate())
	assert.NoError(t, ScopeEntry{Path: "/x"}.validate())
}
