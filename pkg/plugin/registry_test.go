package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPlugin struct {
	name        string
	commands    []Command
	setupErr    error
	shutdownErr error
	calls       *[]string
}

func (p *testPlugin) Name() string        { return p.name }
func (p *testPlugin) Commands() []Command { return p.commands }

func (p *testPlugin) Setup(ctx context.Context, host Host) error {
	if p.calls != nil {
		*p.calls = append(*p.calls, "setup:"+p.name)
	}
	return p.setupErr
}

func (p *testPlugin) Shutdown(ctx context.Context) error {
	if p.calls != nil {
		*p.calls = append(*p.calls, "shutdown:"+p.name)
	}
	return p.shutdownErr
}

func echoCommand(name string) Command {
	return Command{
		Name:        name,
		Description: "echoes its arguments",
		Handler: func(ctx context.Context, inv Invocation) (any, error) {
			return json.RawMessage(inv.Args), nil
		},
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&testPlugin{
		name:     "echo",
		commands: []Command{echoCommand("say"), echoCommand("shout")},
	}))

	target, err := r.Lookup("echo.say")
	require.NoError(t, err)
	assert.Equal(t, "echo", target.Plugin)
	assert.Equal(t, "say", target.Command.Name)

	out, err := target.Command.Handler(context.Background(), Invocation{Args: json.RawMessage(`{"v":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(out.(json.RawMessage)))
}

func TestRegistryLookupUnknown(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&testPlugin{name: "echo", commands: []Command{echoCommand("say")}}))

	_, err := r.Lookup("echo.missing")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = r.Lookup("nodot")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = r.Lookup("ghost.say")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestRegistryRegisterErrors(t *testing.T) {
	tests := []struct {
		name   string
		plugin Plugin
	}{
		{"nil plugin", nil},
		{"bad plugin name", &testPlugin{name: "Echo", commands: []Command{echoCommand("say")}}},
		{"empty plugin name", &testPlugin{name: "", commands: []Command{echoCommand("say")}}},
		{"no commands", &testPlugin{name: "echo"}},
		{"bad command name", &testPlugin{name: "echo", commands: []Command{echoCommand("Say")}}},
		{"duplicate command", &testPlugin{name: "echo", commands: []Command{echoCommand("say"), echoCommand("say")}}},
		{"nil handler", &testPlugin{name: "echo", commands: []Command{{Name: "say"}}}},
	}
	for _, tt := range tests {
		r := NewRegistry()
		assert.Error(t, r.Register(tt.plugin), tt.name)
	}
}

func TestRegistryRejectsDuplicatePlugin(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&testPlugin{name: "echo", commands: []Command{echoCommand("say")}}))
	assert.Error(t, r.Register(&testPlugin{name: "echo", commands: []Command{echoCommand("say")}}))
}

func TestRegistryCommandSet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&testPlugin{
		name:     "echo",
		commands: []Command{echoCommand("say"), echoCommand("shout")},
	}))
	require.NoError(t, r.Register(&testPlugin{
		name:     "mirror",
		commands: []Command{echoCommand("flip")},
	}))

	cs := r.CommandSet()
	assert.ElementsMatch(t, []string{"say", "shout"}, cs["echo"])
	assert.ElementsMatch(t, []string{"flip"}, cs["mirror"])
}

func TestRegistrySetupAllOrder(t *testing.T) {
	var calls []string
	r := NewRegistry()
	require.NoError(t, r.Register(&testPlugin{name: "a", commands: []Command{echoCommand("x")}, calls: &calls}))
	require.NoError(t, r.Register(&testPlugin{name: "b", commands: []Command{echoCommand("x")}, calls: &calls}))

	require.NoError(t, r.SetupAll(context.Background(), nil))
	assert.Equal(t, []string{"setup:a", "setup:b"}, calls)
}

func TestRegistrySetupAllAbortsOnError(t *testing.T) {
	var calls []string
	r := NewRegistry()
	require.NoError(t, r.Register(&testPlugin{name: "a", commands: []Command{echoCommand("x")}, calls: &calls, setupErr: errors.New("boom")}))
	require.NoError(t, r.Register(&testPlugin{name: "b", commands: []Command{echoCommand("x")}, calls: &calls}))

	err := r.SetupAll(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup a")
	assert.Equal(t, []string{"setup:a"}, calls)
}

func TestRegistryShutdownAllReverseAndJoin(t *testing.T) {
	var calls []string
	errA := errors.New("a failed")
	r := NewRegistry()
	require.NoError(t, r.Register(&testPlugin{name: "a", commands: []Command{echoCommand("x")}, calls: &calls, shutdownErr: errA}))
	require.NoError(t, r.Register(&testPlugin{name: "b", commands: []Command{echoCommand("x")}, calls: &calls}))

	err := r.ShutdownAll(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, []string{"shutdown:b", "shutdown:a"}, calls)
}
