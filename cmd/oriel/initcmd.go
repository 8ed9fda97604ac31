package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/oriel-shell/oriel/pkg/bundle"
	"github.com/oriel-shell/oriel/pkg/plugins/clipboard"
	"github.com/oriel-shell/oriel/pkg/plugins/dialog"
	"github.com/oriel-shell/oriel/pkg/plugins/opener"
	"github.com/oriel-shell/oriel/pkg/plugins/sidecar"
	"github.com/oriel-shell/oriel/pkg/plugins/store"
	"github.com/oriel-shell/oriel/pkg/shell"
)

// wizardConfig collects the answers that shape the scaffolded bundle.
type wizardConfig struct {
	Product        string
	Identifier     string
	Width          string
	Height         string
	Resizable      bool
	SingleInstance bool
	Plugins        []string
}

func runInit(dir string) error {
	cfg, err := runWizard()
	if err != nil {
		return err
	}

	if err := scaffold(dir, cfg); err != nil {
		return err
	}

	fmt.Printf("Initialized %s\n", dir)
	fmt.Println("Edit oriel.yaml and dist/, then embed the bundle into your build.")

	return nil
}

func runWizard() (wizardConfig, error) {
	cfg := wizardConfig{
		Product:   "My App",
		Width:     "1024",
		Height:    "720",
		Resizable: true,
		Plugins:   []string{opener.Name, store.Name, dialog.Name, clipboard.Name},
	}

	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Product name").Value(&cfg.Product).Validate(validateNonEmpty),
	)).Run(); err != nil {
		return cfg, err
	}

	cfg.Identifier = suggestIdentifier(cfg.Product)

	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Identifier (reverse-DNS)").Value(&cfg.Identifier).Validate(validateIdentifier),
		huh.NewInput().Title("Window width").Value(&cfg.Width).Validate(validatePositiveInt),
		huh.NewInput().Title("Window height").Value(&cfg.Height).Validate(validatePositiveInt),
		huh.NewConfirm().Title("Resizable window?").Value(&cfg.Resizable),
		huh.NewConfirm().Title("Single instance?").Value(&cfg.SingleInstance),
		huh.NewMultiSelect[string]().
			Title("Plugins granted to the main window").
			Options(
				huh.NewOption("Opener (URLs, files, file manager)", opener.Name).Selected(true),
				huh.NewOption("Store (persisted key-value state)", store.Name).Selected(true),
				huh.NewOption("Dialog (native file and message dialogs)", dialog.Name).Selected(true),
				huh.NewOption("Clipboard", clipboard.Name).Selected(true),
				huh.NewOption("Sidecar (managed child processes)", sidecar.Name),
			).
			Value(&cfg.Plugins),
	)).Run(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// suggestIdentifier proposes a reverse-DNS identifier from the product name.
func suggestIdentifier(product string) string {
	return "com.example." + bundle.Manifest{Product: product}.Slug()
}

func validateNonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("must not be empty")
	}

	return nil
}

func validateIdentifier(s string) error {
	if !bundle.ValidIdentifier(s) {
		return fmt.Errorf("must be reverse-DNS like com.example.app")
	}

	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}

	return nil
}

// YAML output types.

type manifestYAML struct {
	Identifier     string     `yaml:"identifier"`
	Product        string     `yaml:"product"`
	Window         windowYAML `yaml:"window"`
	SingleInstance bool       `yaml:"single_instance,omitempty"`
	Log            logYAML    `yaml:"log"`
	Dev            devYAML    `yaml:"dev"`
}

type windowYAML struct {
	Width     int  `yaml:"width"`
	Height    int  `yaml:"height"`
	Resizable bool `yaml:"resizable"`
}

type logYAML struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
}

type devYAML struct {
	ServerAddr    string `yaml:"server_addr"`
	OpenInspector bool   `yaml:"open_inspector"`
}

type capabilityYAML struct {
	Identifier  string   `yaml:"identifier"`
	Description string   `yaml:"description"`
	Windows     []string `yaml:"windows"`
	Permissions []string `yaml:"permissions"`
}

// scaffold writes the bundle files for cfg into dir and verifies the
// result loads cleanly. An existing manifest aborts the scaffold.
func scaffold(dir string, cfg wizardConfig) error {
	manifestPath := filepath.Join(dir, bundle.ManifestName)
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("oriel: init: %s already exists in %s", bundle.ManifestName, dir)
	}

	for _, sub := range []string{bundle.CapabilityDir, bundle.AssetsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("oriel: init: %w", err)
		}
	}

	width, _ := strconv.Atoi(cfg.Width)
	height, _ := strconv.Atoi(cfg.Height)

	manifest := manifestYAML{
		Identifier: cfg.Identifier,
		Product:    cfg.Product,
		Window: windowYAML{
			Width:     width,
			Height:    height,
			Resizable: cfg.Resizable,
		},
		SingleInstance: cfg.SingleInstance,
		Log:            logYAML{Level: "info", File: true},
		Dev:            devYAML{ServerAddr: "127.0.0.1:0", OpenInspector: true},
	}
	if err := writeYAML(manifestPath, manifest); err != nil {
		return err
	}

	mainCap := capabilityYAML{
		Identifier:  "main",
		Description: "Commands granted to the main window.",
		Windows:     []string{bundle.WindowMain},
		Permissions: mainPermissions(cfg.Plugins),
	}
	if err := writeYAML(filepath.Join(dir, bundle.CapabilityDir, "main.yaml"), mainCap); err != nil {
		return err
	}

	automationCap := capabilityYAML{
		Identifier:  "automation",
		Description: "Commands exposed to MCP automation clients.",
		Windows:     []string{bundle.WindowAutomation},
		Permissions: []string{shell.CoreName + ":default"},
	}
	if err := writeYAML(filepath.Join(dir, bundle.CapabilityDir, "automation.yaml"), automationCap); err != nil {
		return err
	}

	for name, content := range starterAssets(cfg.Product) {
		path := filepath.Join(dir, bundle.AssetsDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("oriel: init: write %s: %w", name, err)
		}
	}

	// Round-trip check: a scaffold that does not load is a bug here, not
	// in the user's hands later.
	if _, err := bundle.Load(os.DirFS(dir)); err != nil {
		return fmt.Errorf("oriel: init: scaffold does not load: %w", err)
	}

	return nil
}

// mainPermissions builds the main window grant list: core plus whatever
// the wizard selected, in a stable order.
func mainPermissions(plugins []string) []string {
	perms := []string{shell.CoreName + ":default"}
	for _, name := range []string{opener.Name, store.Name, dialog.Name, clipboard.Name, sidecar.Name} {
		for _, selected := range plugins {
			if selected == name {
				perms = append(perms, name+":default")
			}
		}
	}

	return perms
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("oriel: init: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("oriel: init: write %s: %w", filepath.Base(path), err)
	}

	return nil
}

// starterAssets returns the minimal frontend the scaffold ships: a page
// that proves the bridge and the event mirror work, meant to be replaced.
func starterAssets(product string) map[string]string {
	title := strings.TrimSpace(product)

	index := `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>` + title + `</title>
  <link rel="stylesheet" href="style.css" />
</head>
<body>
  <main>
    <h1 id="title">` + title + `</h1>
    <p class="hint">Starter frontend. Replace dist/ with your app.</p>
    <div id="log"></div>
  </main>
  <script src="/wails/ipc.js"></script>
  <script src="/wails/runtime.js"></script>
  <script src="app.js"></script>
</body>
</html>
`

	return map[string]string{
		"index.html": index,
		"app.js":     starterAppJS,
		"style.css":  starterCSS,
	}
}

const starterAppJS = `const log = document.getElementById("log");

function line(text) {
  const el = document.createElement("div");
  el.className = "line";
  el.textContent = text;
  log.appendChild(el);
  log.scrollTop = log.scrollHeight;
}

async function invoke(command, args) {
  const raw = await window.go.shell.Bridge.Invoke(command, JSON.stringify(args ?? {}));
  return raw ? JSON.parse(raw) : null;
}

window.runtime.EventsOn("oriel:ready", (ev) => {
  line("ready: " + JSON.stringify(ev.data));
});

window.addEventListener("DOMContentLoaded", async () => {
  try {
    const info = await invoke("core.app_info");
    document.getElementById("title").textContent = info.product + " " + info.version;
    line("app_info: " + JSON.stringify(info));
  } catch (err) {
    line("error: " + err);
  }
});
`

const starterCSS = `:root {
  color-scheme: dark;
}

body {
  margin: 0;
  font-family: system-ui, sans-serif;
  background: #1e1e2e;
  color: #cdd6f4;
}

main {
  max-width: 640px;
  margin: 3rem auto;
  padding: 0 1rem;
}

.hint {
  color: #7f849c;
}

#log {
  margin-top: 1.5rem;
  padding: 0.75rem;
  border-radius: 6px;
  background: #181825;
  font-family: ui-monospace, monospace;
  font-size: 0.85rem;
  max-height: 50vh;
  overflow-y: auto;
}

.line {
  padding: 0.1rem 0;
}
`
