package bundle

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	identifierRe = regexp.MustCompile(`^[a-z][a-z0-9-]*(\.[a-z][a-z0-9-]*)+$`)
	hexColorRe   = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

var logLevels = map[string]struct{}{
	"trace": {}, "debug": {}, "info": {}, "warn": {}, "error": {},
}

// Manifest is the app manifest, read from oriel.yaml in the bundle.
type Manifest struct {
	Identifier     string       `yaml:"identifier"`
	Product        string       `yaml:"product"`
	Version        string       `yaml:"version"`
	Window         WindowConfig `yaml:"window"`
	SingleInstance bool         `yaml:"single_instance"`
	Log            LogConfig    `yaml:"log"`
	Dev            DevConfig    `yaml:"dev"`
}

// WindowConfig describes the main window.
type WindowConfig struct {
	Title       string `yaml:"title"` // Defaults to the product name.
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	MinWidth    int    `yaml:"min_width"`
	MinHeight   int    `yaml:"min_height"`
	Resizable   bool   `yaml:"resizable"`
	Background  string `yaml:"background"` // Hex color like "#1e1e2e".
	StartHidden bool   `yaml:"start_hidden"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       bool   `yaml:"file"` // Write to a rotating log file.
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DevConfig holds dev-mode settings.
type DevConfig struct {
	ServerAddr    string `yaml:"server_addr"`
	OpenInspector bool   `yaml:"open_inspector"`
}

func defaultManifest() Manifest {
	return Manifest{
		Window: WindowConfig{
			Width:     800,
			Height:    600,
			Resizable: true,
		},
		Log: LogConfig{
			Level:      "info",
			File:       true,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Dev: DevConfig{
			ServerAddr: "127.0.0.1:0",
		},
	}
}

// ParseManifest parses manifest YAML over the defaults. Environment
// variables referenced as ${VAR} or $VAR are expanded before parsing, so
// build pipelines can inject values without templating the file.
func ParseManifest(data []byte) (Manifest, error) {
	expanded := os.ExpandEnv(string(data))

	m := defaultManifest()
	if err := yaml.Unmarshal([]byte(expanded), &m); err != nil {
		return Manifest{}, fmt.Errorf("bundle: parse manifest: %w", err)
	}
	if m.Window.Title == "" {
		m.Window.Title = m.Product
	}
	return m, nil
}

// Validate checks that the manifest is internally consistent.
func (m Manifest) Validate() error {
	if m.Identifier == "" {
		return fmt.Errorf("bundle: manifest: identifier is required")
	}
	if !identifierRe.MatchString(m.Identifier) {
		return fmt.Errorf("bundle: manifest: identifier %q must be reverse-DNS like com.example.app", m.Identifier)
	}
	if m.Product == "" {
		return fmt.Errorf("bundle: manifest: product is required")
	}

	w := m.Window
	if w.Width <= 0 || w.Height <= 0 {
		return fmt.Errorf("bundle: manifest: window dimensions must be positive")
	}
	if w.MinWidth < 0 || w.MinHeight < 0 {
		return fmt.Errorf("bundle: manifest: window minimum dimensions must not be negative")
	}
	if w.MinWidth > w.Width || w.MinHeight > w.Height {
		return fmt.Errorf("bundle: manifest: window minimum exceeds initial size")
	}
	if w.Background != "" && !hexColorRe.MatchString(w.Background) {
		return fmt.Errorf("bundle: manifest: window background %q is not #rrggbb", w.Background)
	}

	if _, ok := logLevels[m.Log.Level]; !ok {
		return fmt.Errorf("bundle: manifest: unknown log level %q", m.Log.Level)
	}

	if m.Dev.ServerAddr != "" {
		if _, _, err := net.SplitHostPort(m.Dev.ServerAddr); err != nil {
			return fmt.Errorf("bundle: manifest: dev server_addr: %w", err)
		}
	}
	return nil
}

// ValidIdentifier reports whether s is an acceptable app identifier.
func ValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// Slug derives a filesystem-friendly name from the product name, used for
// the per-user settings directory.
func (m Manifest) Slug() string {
	var b strings.Builder
	for _, r := range strings.ToLower(m.Product) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "oriel-app"
	}
	return slug
}

// BackgroundRGB returns the window background color. Callers should have
// validated the manifest; an unset color reports ok=false.
func (m Manifest) BackgroundRGB() (r, g, b uint8, ok bool) {
	if !hexColorRe.MatchString(m.Window.Background) {
		return 0, 0, 0, false
	}
	parse := func(s string) uint8 {
		v, _ := strconv.ParseUint(s, 16, 8)
		return uint8(v)
	}
	hex := m.Window.Background
	return parse(hex[1:3]), parse(hex[3:5]), parse(hex[5:7]), true
}
