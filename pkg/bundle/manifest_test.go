package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifest() Manifest {
	m := defaultManifest()
	m.Identifier = "dev.oriel.demo"
	m.Product = "Oriel Demo"
	m.Version = "0.1.0"
	m.Window.Title = "Oriel Demo"
	return m
}

func TestParseManifestDefaults(t *testing.T) {
	m, err := ParseManifest([]byte("identifier: dev.oriel.demo\nproduct: Demo\n"))
	require.NoError(t, err)

	assert.Equal(t, 800, m.Window.Width)
	assert.Equal(t, 600, m.Window.Height)
	assert.True(t, m.Window.Resizable)
	assert.Equal(t, "info", m.Log.Level)
	assert.True(t, m.Log.File)
	assert.Equal(t, "127.0.0.1:0", m.Dev.ServerAddr)
	assert.Equal(t, "Demo", m.Window.Title, "title defaults to product")
}

func TestParseManifestOverridesDefaults(t *testing.T) {
	doc := `
identifier: dev.oriel.demo
product: Demo
window:
  title: Custom
  width: 1024
  height: 768
  resizable: false
log:
  level: debug
  file: false
`
	m, err := ParseManifest([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "Custom", m.Window.Title)
	assert.Equal(t, 1024, m.Window.Width)
	assert.False(t, m.Window.Resizable)
	assert.Equal(t, "debug", m.Log.Level)
	assert.False(t, m.Log.File)
}

func TestParseManifestExpandsEnv(t *testing.T) {
	t.Setenv("DEMO_PRODUCT", "Expanded")

	m, err := ParseManifest([]byte("identifier: dev.oriel.demo\nproduct: ${DEMO_PRODUCT}\n"))
	require.NoError(t, err)
	assert.Equal(t, "Expanded", m.Product)
}

func TestParseManifestBadYAML(t *testing.T) {
	_, err := ParseManifest([]byte("identifier: [unclosed"))
	assert.Error(t, err)
}

func TestManifestValidate(t *testing.T) {
	assert.NoError(t, validManifest().Validate())

	tests := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"missing identifier", func(m *Manifest) { m.Identifier = "" }},
		{"identifier without dot", func(m *Manifest) { m.Identifier = "oriel" }},
		{"identifier with uppercase", func(m *Manifest) { m.Identifier = "dev.Oriel.demo" }},
		{"missing product", func(m *Manifest) { m.Product = "" }},
		{"zero width", func(m *Manifest) { m.Window.Width = 0 }},
		{"negative height", func(m *Manifest) { m.Window.Height = -1 }},
		{"negative min", func(m *Manifest) { m.Window.MinWidth = -5 }},
		{"min exceeds size", func(m *Manifest) { m.Window.MinWidth = 2000 }},
		{"bad background", func(m *Manifest) { m.Window.Background = "red" }},
		{"short background", func(m *Manifest) { m.Window.Background = "#fff" }},
		{"unknown log level", func(m *Manifest) { m.Log.Level = "verbose" }},
		{"bad dev addr", func(m *Manifest) { m.Dev.ServerAddr = "nonsense" }},
	}
	for _, tt := range tests {
		m := validManifest()
		tt.mutate(&m)
		assert.Error(t, m.Validate(), tt.name)
	}
}

func TestManifestSlug(t *testing.T) {
	tests := []struct {
		product string
		slug    string
	}{
		{"Oriel Demo", "oriel-demo"},
		{"My.App v2", "my-app-v2"},
		{"  Wild  ", "wild"},
		{"---", "oriel-app"},
		{"", "oriel-app"},
	}
	for _, tt := range tests {
		m := Manifest{Product: tt.product}
		assert.Equal(t, tt.slug, m.Slug(), "product %q", tt.product)
	}
}

func TestBackgroundRGB(t *testing.T) {
	m := validManifest()
	m.Window.Background = "#1e2f3a"

	r, g, b, ok := m.BackgroundRGB()
	require.True(t, ok)
	assert.Equal(t, uint8(0x1e), r)
	assert.Equal(t, uint8(0x2f), g)
	assert.Equal(t, uint8(0x3a), b)

	m.Window.Background = ""
	_, _, _, ok = m.BackgroundRGB()
	assert.False(t, ok)
}
