// Package clipboard provides the clipboard plugin backed by the host
// window's native clipboard.
package clipboard

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/oriel-shell/oriel/pkg/plugin"
)

// Name is the plugin name used in permissions and command paths.
const Name = "clipboard"

// Board performs the native clipboard calls. The shell wires an
// implementation backed by the webview context after startup.
type Board interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// Clipboard is the clipboard plugin.
type Clipboard struct {
	mu    sync.RWMutex
	board Board
}

// New creates the clipboard plugin. It is inert until Bind is called.
func New() *Clipboard {
	return &Clipboard{}
}

// Bind attaches the native clipboard. Called by the shell once the
// window exists.
func (c *Clipboard) Bind(board Board) {
	c.mu.Lock()
	c.board = board
	c.mu.Unlock()
}

func (c *Clipboard) bound() (Board, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.board == nil {
		return nil, plugin.Errorf(plugin.CodeInternal, "no interactive window available")
	}
	return c.board, nil
}

// Name implements plugin.Plugin.
func (c *Clipboard) Name() string { return Name }

// Setup implements plugin.Plugin.
func (c *Clipboard) Setup(ctx context.Context, host plugin.Host) error { return nil }

// Shutdown implements plugin.Plugin.
func (c *Clipboard) Shutdown(ctx context.Context) error { return nil }

// Commands implements plugin.Plugin.
func (c *Clipboard) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Name:        "read_text",
			Description: "Read the current clipboard text.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     c.handleReadText,
		},
		{
			Name:        "write_text",
			Description: "Replace the clipboard contents with the given text.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
			Handler:     c.handleWriteText,
		},
	}
}

type textResult struct {
	Text string `json:"text"`
}

type writeInput struct {
	Text *string `json:"text"`
}

func (c *Clipboard) handleReadText(ctx context.Context, inv plugin.Invocation) (any, error) {
	board, err := c.bound()
	if err != nil {
		return nil, err
	}
	text, err := board.ReadText()
	if err != nil {
		return nil, plugin.Errorf(plugin.CodeInternal, "read clipboard: %v", err)
	}
	return textResult{Text: text}, nil
}

func (c *Clipboard) handleWriteText(ctx context.Context, inv plugin.Invocation) (any, error) {
	board, err := c.bound()
	if err != nil {
		return nil, err
	}
	var in writeInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	if in.Text == nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "text is required")
	}
	if err := board.WriteText(*in.Text); err != nil {
		return nil, plugin.Errorf(plugin.CodeInternal, "write clipboard: %v", err)
	}
	return nil, nil
}
