// Package automation serves plugin commands as MCP tools over stdio. Only
// commands granted to the automation window label are exposed; calls run
// through the same dispatcher as webview invokes, so permission checks and
// invoke events apply unchanged.
package automation

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oriel-shell/oriel/pkg/bundle"
	"github.com/oriel-shell/oriel/pkg/capability"
	"github.com/oriel-shell/oriel/pkg/ipc"
	"github.com/oriel-shell/oriel/pkg/plugin"
)

// Server exposes granted commands over the MCP protocol using the official
// MCP Go SDK.
type Server struct {
	server *mcp.Server
	tools  []string
}

// New creates a Server listing every command the ACL grants to the
// automation window. Tool names replace the dot with an underscore, so
// opener.open_url becomes opener_open_url.
func New(name, version string, registry *plugin.Registry, acl *capability.ACL, dispatcher *ipc.Dispatcher) *Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, nil)

	s := &Server{server: server}
	for _, granted := range acl.Commands(bundle.WindowAutomation) {
		target, err := registry.Lookup(granted)
		if err != nil {
			continue
		}
		toolName := strings.ReplaceAll(granted, ".", "_")
		server.AddTool(&mcp.Tool{
			Name:        toolName,
			Description: target.Command.Description,
			InputSchema: target.Command.InputSchema,
		}, dispatchHandler(dispatcher, granted))
		s.tools = append(s.tools, toolName)
	}

	return s
}

// Tools returns the exposed tool names in registration order.
func (s *Server) Tools() []string { return s.tools }

// Serve reads MCP requests from in and writes responses to out. It blocks
// until ctx is cancelled or the transport closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	}

	return s.run(ctx, transport)
}

// run starts the server with the given transport. Exported via Serve for
// production use; called directly by tests with InMemoryTransport.
func (s *Server) run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// dispatchHandler adapts one granted command to an SDK ToolHandler. Command
// failures become tool results with IsError set rather than protocol
// errors.
func dispatchHandler(dispatcher *ipc.Dispatcher, command string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.Params.Arguments
		if args == nil {
			args = json.RawMessage("{}")
		}
		result, err := dispatcher.Dispatch(ctx, bundle.WindowAutomation, command, string(args))
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result}},
		}, nil
	}
}

// nopWriteCloser wraps an io.Writer as an io.WriteCloser with a no-op Close.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
