// Package dialog provides the dialog plugin: native open/save pickers and
// message boxes. The shell binds the real UI once the webview is up;
// before that (and in headless mode) every command reports that no
// interactive window is available.
package dialog

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/oriel-shell/oriel/pkg/plugin"
)

// Name is the plugin name used in permissions and command paths.
const Name = "dialog"

// UI performs the native dialog calls. The shell wires an implementation
// backed by the webview context after startup.
type UI interface {
	OpenFile(opts runtime.OpenDialogOptions) (string, error)
	SaveFile(opts runtime.SaveDialogOptions) (string, error)
	Message(opts runtime.MessageDialogOptions) (string, error)
}

// Dialog is the dialog plugin.
type Dialog struct {
	mu sync.RWMutex
	ui UI
}

// New creates the dialog plugin. It is inert until Bind is called.
func New() *Dialog {
	return &Dialog{}
}

// Bind attaches the native UI. Called by the shell once the window
// exists; safe to call from the startup hook.
func (d *Dialog) Bind(ui UI) {
	d.mu.Lock()
	d.ui = ui
	d.mu.Unlock()
}

func (d *Dialog) bound() (UI, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ui == nil {
		return nil, plugin.Errorf(plugin.CodeInternal, "no interactive window available")
	}
	return d.ui, nil
}

// Name implements plugin.Plugin.
func (d *Dialog) Name() string { return Name }

// Setup implements plugin.Plugin.
func (d *Dialog) Setup(ctx context.Context, host plugin.Host) error { return nil }

// Shutdown implements plugin.Plugin.
func (d *Dialog) Shutdown(ctx context.Context) error { return nil }

// Commands implements plugin.Plugin.
func (d *Dialog) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Name:        "open_file",
			Description: "Show a native open-file picker. Returns the chosen path, or null if cancelled.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"},"default_directory":{"type":"string"},"default_filename":{"type":"string"},"filters":{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"},"pattern":{"type":"string"}},"required":["pattern"]}}}}`),
			Handler:     d.handleOpenFile,
		},
		{
			Name:        "save_file",
			Description: "Show a native save-file picker. Returns the chosen path, or null if cancelled.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"},"default_directory":{"type":"string"},"default_filename":{"type":"string"},"filters":{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"},"pattern":{"type":"string"}},"required":["pattern"]}}}}`),
			Handler:     d.handleSaveFile,
		},
		{
			Name:        "message",
			Description: "Show a native message box and return the pressed button.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"type":{"type":"string","enum":["info","warning","error","question"]},"title":{"type":"string"},"message":{"type":"string"},"buttons":{"type":"array","items":{"type":"string"}},"default_button":{"type":"string"},"cancel_button":{"type":"string"}},"required":["message"]}`),
			Handler:     d.handleMessage,
		},
	}
}

type filterInput struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

type fileInput struct {
	Title            string        `json:"title"`
	DefaultDirectory string        `json:"default_directory"`
	DefaultFilename  string        `json:"default_filename"`
	Filters          []filterInput `json:"filters"`
}

type messageInput struct {
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Message       string   `json:"message"`
	Buttons       []string `json:"buttons"`
	DefaultButton string   `json:"default_button"`
	CancelButton  string   `json:"cancel_button"`
}

// pathResult carries the picker outcome; Path is null when the user
// cancelled.
type pathResult struct {
	Path *string `json:"path"`
}

type buttonResult struct {
	Button string `json:"button"`
}

func toFilters(in []filterInput) []runtime.FileFilter {
	out := make([]runtime.FileFilter, 0, len(in))
	for _, f := range in {
		out = append(out, runtime.FileFilter{DisplayName: f.Name, Pattern: f.Pattern})
	}
	return out
}

func toPathResult(path string) pathResult {
	if path == "" {
		return pathResult{}
	}
	return pathResult{Path: &path}
}

func (d *Dialog) handleOpenFile(ctx context.Context, inv plugin.Invocation) (any, error) {
	ui, err := d.bound()
	if err != nil {
		return nil, err
	}
	var in fileInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	path, err := ui.OpenFile(runtime.OpenDialogOptions{
		Title:            in.Title,
		DefaultDirectory: in.DefaultDirectory,
		DefaultFilename:  in.DefaultFilename,
		Filters:          toFilters(in.Filters),
	})
	if err != nil {
		return nil, plugin.Errorf(plugin.CodeInternal, "open dialog: %v", err)
	}
	return toPathResult(path), nil
}

func (d *Dialog) handleSaveFile(ctx context.Context, inv plugin.Invocation) (any, error) {
	ui, err := d.bound()
	if err != nil {
		return nil, err
	}
	var in fileInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	path, err := ui.SaveFile(runtime.SaveDialogOptions{
		Title:            in.Title,
		DefaultDirectory: in.DefaultDirectory,
		DefaultFilename:  in.DefaultFilename,
		Filters:          toFilters(in.Filters),
	})
	if err != nil {
		return nil, plugin.Errorf(plugin.CodeInternal, "save dialog: %v", err)
	}
	return toPathResult(path), nil
}

var dialogTypes = map[string]runtime.DialogType{
	"":         runtime.InfoDialog,
	"info":     runtime.InfoDialog,
	"warning":  runtime.WarningDialog,
	"error":    runtime.ErrorDialog,
	"question": runtime.QuestionDialog,
}

func (d *Dialog) handleMessage(ctx context.Context, inv plugin.Invocation) (any, error) {
	ui, err := d.bound()
	if err != nil {
		return nil, err
	}
	var in messageInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	if in.Message == "" {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "message must not be empty")
	}
	kind, ok := dialogTypes[in.Type]
	if !ok {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "unknown dialog type %q", in.Type)
	}
	button, err := ui.Message(runtime.MessageDialogOptions{
		Type:          kind,
		Title:         in.Title,
		Message:       in.Message,
		Buttons:       in.Buttons,
		DefaultButton: in.DefaultButton,
		CancelButton:  in.CancelButton,
	})
	if err != nil {
		return nil, plugin.Errorf(plugin.CodeInternal, "message dialog: %v", err)
	}
	return buttonResult{Button: button}, nil
}
