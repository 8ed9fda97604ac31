package capability

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ScopeEntry is one allow or deny pattern in a scoped permission. Exactly
// one of URL or Path must be set.
type ScopeEntry struct {
	URL  string `yaml:"url,omitempty"`
	Path string `yaml:"path,omitempty"`
}

func (e ScopeEntry) validate() error {
	switch {
	case e.URL == "" && e.Path == "":
		return fmt.Errorf("capability: scope entry needs url or path")
	case e.URL != "" && e.Path != "":
		return fmt.Errorf("capability: scope entry has both url and path")
	}
	return nil
}

// Scope is the merged allow/deny pattern set a window holds for one plugin.
// The zero value permits everything the command grants already cover.
type Scope struct {
	allowURL  []urlPattern
	denyURL   []urlPattern
	allowPath []pathPattern
	denyPath  []pathPattern
}

// NewScope compiles allow and deny entries into a Scope.
func NewScope(allow, deny []ScopeEntry) (Scope, error) {
	var s Scope
	if err := s.add(true, allow); err != nil {
		return Scope{}, err
	}
	if err := s.add(false, deny); err != nil {
		return Scope{}, err
	}
	return s, nil
}

// PermitsURL reports whether the scope allows opening the given URL.
// An empty allow list permits any URL not matched by a deny pattern.
func (s Scope) PermitsURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("capability: parse url: %w", err)
	}
	for _, p := range s.denyURL {
		if p.match(u) {
			return fmt.Errorf("capability: url %q denied by scope %q", raw, p.src)
		}
	}
	if len(s.allowURL) == 0 {
		return nil
	}
	for _, p := range s.allowURL {
		if p.match(u) {
			return nil
		}
	}
	return fmt.Errorf("capability: url %q not in scope", raw)
}

// PermitsPath reports whether the scope allows touching the given
// filesystem path. The candidate must be absolute.
func (s Scope) PermitsPath(p string) error {
	if !filepath.IsAbs(p) {
		return fmt.Errorf("capability: path %q is not absolute", p)
	}
	candidate := filepath.ToSlash(filepath.Clean(p))
	for _, pat := range s.denyPath {
		if pat.match(candidate) {
			return fmt.Errorf("capability: path %q denied by scope %q", p, pat.src)
		}
	}
	if len(s.allowPath) == 0 {
		return nil
	}
	for _, pat := range s.allowPath {
		if pat.match(candidate) {
			return nil
		}
	}
	return fmt.Errorf("capability: path %q not in scope", p)
}

func (s *Scope) add(allow bool, entries []ScopeEntry) error {
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return err
		}
		if e.URL != "" {
			p, err := compileURLPattern(e.URL)
			if err != nil {
				return err
			}
			if allow {
				s.allowURL = append(s.allowURL, p)
			} else {
				s.denyURL = append(s.denyURL, p)
			}
			continue
		}
		p, err := compilePathPattern(e.Path)
		if err != nil {
			return err
		}
		if allow {
			s.allowPath = append(s.allowPath, p)
		} else {
			s.denyPath = append(s.denyPath, p)
		}
	}
	return nil
}

func (s *Scope) merge(o Scope) {
	s.allowURL = append(s.allowURL, o.allowURL...)
	s.denyURL = append(s.denyURL, o.denyURL...)
	s.allowPath = append(s.allowPath, o.allowPath...)
	s.denyPath = append(s.denyPath, o.denyPath...)
}

// urlPattern matches scheme://host/path globs. "*" as scheme matches any
// scheme; a leading "*." in the host matches one or more extra labels; the
// path part uses segment globbing with "*" and "**".
type urlPattern struct {
	src    string
	scheme string
	host   string
	path   []string
}

func compileURLPattern(src string) (urlPattern, error) {
	scheme, rest, ok := strings.Cut(src, "://")
	if !ok || scheme == "" {
		return urlPattern{}, fmt.Errorf("capability: url pattern %q needs a scheme", src)
	}
	host, pathPart, _ := strings.Cut(rest, "/")
	if host == "" && scheme != "mailto" {
		return urlPattern{}, fmt.Errorf("capability: url pattern %q needs a host", src)
	}
	if strings.Contains(host, "*") && host != "*" && !strings.HasPrefix(host, "*.") {
		return urlPattern{}, fmt.Errorf("capability: url pattern %q: host wildcard must be a leading label", src)
	}
	p := urlPattern{
		src:    src,
		scheme: strings.ToLower(scheme),
		host:   strings.ToLower(host),
	}
	if pathPart != "" {
		p.path = splitPattern(pathPart)
		if err := validateSegments(src, p.path); err != nil {
			return urlPattern{}, err
		}
	}
	return p, nil
}

func (p urlPattern) match(u *url.URL) bool {
	if p.scheme != "*" && p.scheme != strings.ToLower(u.Scheme) {
		return false
	}
	if !matchHost(p.host, strings.ToLower(u.Hostname())) {
		return false
	}
	if len(p.path) == 0 {
		return true
	}
	return matchSegments(p.path, splitPattern(strings.TrimPrefix(u.EscapedPath(), "/")))
}

func matchHost(pat, host string) bool {
	switch {
	case pat == "" || pat == "*":
		return true
	case strings.HasPrefix(pat, "*."):
		// At least one extra label: "*.example.com" does not match
		// "example.com" itself.
		return strings.HasSuffix(host, pat[1:]) && host != pat[2:]
	default:
		return pat == host
	}
}

// pathPattern matches absolute filesystem paths. Patterns may start with
// $HOME, $CONFIG or $TEMP, expanded when the pattern is compiled.
type pathPattern struct {
	src      string
	segments []string
}

func compilePathPattern(src string) (pathPattern, error) {
	expanded, err := expandScopeVars(src)
	if err != nil {
		return pathPattern{}, err
	}
	expanded = filepath.ToSlash(expanded)
	if !path.IsAbs(expanded) && !filepath.IsAbs(filepath.FromSlash(expanded)) {
		return pathPattern{}, fmt.Errorf("capability: path pattern %q is not absolute", src)
	}
	segs := splitPattern(strings.TrimPrefix(expanded, "/"))
	if err := validateSegments(src, segs); err != nil {
		return pathPattern{}, err
	}
	return pathPattern{src: src, segments: segs}, nil
}

func (p pathPattern) match(candidate string) bool {
	return matchSegments(p.segments, splitPattern(strings.TrimPrefix(candidate, "/")))
}

func expandScopeVars(pat string) (string, error) {
	if !strings.HasPrefix(pat, "$") {
		if strings.Contains(pat, "$") {
			return "", fmt.Errorf("capability: path pattern %q: variables are only allowed as prefix", pat)
		}
		return pat, nil
	}
	name, rest, _ := strings.Cut(pat, "/")
	var base string
	var err error
	switch name {
	case "$HOME":
		base, err = os.UserHomeDir()
	case "$CONFIG":
		base, err = os.UserConfigDir()
	case "$TEMP":
		base = os.TempDir()
	default:
		return "", fmt.Errorf("capability: unknown scope variable %q", name)
	}
	if err != nil {
		return "", fmt.Errorf("capability: expand %s: %w", name, err)
	}
	if strings.Contains(rest, "$") {
		return "", fmt.Errorf("capability: path pattern %q: variables are only allowed as prefix", pat)
	}
	if rest == "" {
		return base, nil
	}
	return base + "/" + rest, nil
}

func splitPattern(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

func validateSegments(src string, segs []string) error {
	for _, seg := range segs {
		if seg == "" {
			return fmt.Errorf("capability: pattern %q has an empty segment", src)
		}
		if seg != "**" && strings.Contains(seg, "**") {
			return fmt.Errorf("capability: pattern %q: ** must be a full segment", src)
		}
	}
	return nil
}

// matchSegments matches a segment pattern list against candidate segments.
// "**" spans zero or more segments; other segments go through path.Match.
func matchSegments(pat, name []string) bool {
	if len(pat) == 0 {
		return len(name) == 0
	}
	if pat[0] == "**" {
		for i := 0; i <= len(name); i++ {
			if matchSegments(pat[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 {
		return false
	}
	ok, err := path.Match(pat[0], name[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pat[1:], name[1:])
}
