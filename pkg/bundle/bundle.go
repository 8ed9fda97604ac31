// Package bundle loads the generated application context: the manifest,
// capability files and frontend assets embedded into the binary at build
// time. The entry point treats the loaded Context as read-only.
package bundle

import (
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/oriel-shell/oriel/pkg/buildinfo"
	"github.com/oriel-shell/oriel/pkg/capability"
)

// Window labels the shell dispatches for. The webview always invokes as
// WindowMain; headless automation invokes as WindowAutomation.
const (
	WindowMain       = "main"
	WindowAutomation = "automation"
)

// Bundle layout inside the embedded filesystem.
const (
	ManifestName  = "oriel.yaml"
	CapabilityDir = "capabilities"
	AssetsDir     = "dist"
)

// Context is the validated application context consumed at startup.
type Context struct {
	Manifest     Manifest
	Capabilities []capability.Capability
	Assets       fs.FS

	Version string
	Commit  string
	Date    string
}

// Load reads and validates a bundle filesystem. Any malformed manifest,
// capability file or missing asset is a startup failure.
func Load(fsys fs.FS) (*Context, error) {
	data, err := fs.ReadFile(fsys, ManifestName)
	if err != nil {
		return nil, fmt.Errorf("bundle: read manifest: %w", err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if manifest.Version == "" {
		manifest.Version = buildinfo.Version
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	caps, err := loadCapabilities(fsys)
	if err != nil {
		return nil, err
	}
	mainReferenced := false
	for _, c := range caps {
		for _, w := range c.Windows {
			if w == WindowMain {
				mainReferenced = true
			}
		}
	}
	if !mainReferenced {
		return nil, fmt.Errorf("bundle: no capability references the %q window", WindowMain)
	}

	assets, err := fs.Sub(fsys, AssetsDir)
	if err != nil {
		return nil, fmt.Errorf("bundle: assets: %w", err)
	}
	if _, err := fs.Stat(assets, "index.html"); err != nil {
		return nil, fmt.Errorf("bundle: assets: index.html: %w", err)
	}

	return &Context{
		Manifest:     manifest,
		Capabilities: caps,
		Assets:       assets,
		Version:      buildinfo.Version,
		Commit:       buildinfo.Commit,
		Date:         buildinfo.Date,
	}, nil
}

func loadCapabilities(fsys fs.FS) ([]capability.Capability, error) {
	var names []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, CapabilityDir+"/"+pattern)
		if err != nil {
			return nil, fmt.Errorf("bundle: list capabilities: %w", err)
		}
		names = append(names, matches...)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("bundle: no capability files under %s/", CapabilityDir)
	}
	sort.Strings(names)

	caps := make([]capability.Capability, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("bundle: read capability %s: %w", name, err)
		}
		var c capability.Capability
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("bundle: parse capability %s: %w", name, err)
		}
		caps = append(caps, c)
	}
	return caps, nil
}
