package ipc

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriel-shell/oriel/pkg/bundle"
	"github.com/oriel-shell/oriel/pkg/capability"
	"github.com/oriel-shell/oriel/pkg/events"
	"github.com/oriel-shell/oriel/pkg/plugin"
)

type echoPlugin struct{}

func (echoPlugin) Name() string { return "echo" }

func (echoPlugin) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Name: "say",
			Handler: func(ctx context.Context, inv plugin.Invocation) (any, error) {
				return map[string]string{"echo": string(inv.Args)}, nil
			},
		},
		{
			Name: "null",
			Handler: func(ctx context.Context, inv plugin.Invocation) (any, error) {
				return nil, nil
			},
		},
		{
			Name: "fail",
			Handler: func(ctx context.Context, inv plugin.Invocation) (any, error) {
				return nil, errors.New("kaboom")
			},
		},
		{
			Name: "scoped",
			Handler: func(ctx context.Context, inv plugin.Invocation) (any, error) {
				if err := inv.Scope.PermitsURL("https://blocked.dev/"); err == nil {
					return nil, errors.New("scope should block blocked.dev")
				}
				if err := inv.Scope.PermitsURL("https://allowed.dev/x"); err != nil {
					return nil, plugin.Errorf(plugin.CodeDenied, "%v", err)
				}
				return "ok", nil
			},
		},
		{
			Name: "hidden",
			Handler: func(ctx context.Context, inv plugin.Invocation) (any, error) {
				return "should never run", nil
			},
		},
	}
}

func (echoPlugin) Setup(ctx context.Context, host plugin.Host) error { return nil }
func (echoPlugin) Shutdown(ctx context.Context) error                { return nil }

func testDispatcher(t *testing.T, bus *events.Bus) *Dispatcher {
	t.Helper()

	registry := plugin.NewRegistry()
	require.NoError(t, registry.Register(echoPlugin{}))

	caps := []capability.Capability{{
		Identifier: "main",
		Windows:    []string{bundle.WindowMain},
		Permissions: []capability.Permission{
			{Identifier: "echo:default"},
			{Identifier: "echo:deny-hidden"},
			{
				Identifier: "echo:allow-scoped",
				Allow:      []capability.ScopeEntry{{URL: "https://allowed.dev/**"}},
				Deny:       []capability.ScopeEntry{{URL: "https://blocked.dev/**"}},
			},
		},
	}}
	acl, err := capability.Resolve(caps, registry.CommandSet())
	require.NoError(t, err)

	return NewDispatcher(registry, acl, bus, zerolog.Nop())
}

func invokeCode(t *testing.T, err error) string {
	t.Helper()
	var perr *plugin.Error
	require.ErrorAs(t, err, &perr)
	return perr.Code
}

func TestDispatchSuccess(t *testing.T) {
	d := testDispatcher(t, nil)

	out, err := d.Dispatch(context.Background(), bundle.WindowMain, "echo.say", `{"msg":"hi"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"{\"msg\":\"hi\"}"}`, out)
}

func TestDispatchNullResult(t *testing.T) {
	d := testDispatcher(t, nil)

	out, err := d.Dispatch(context.Background(), bundle.WindowMain, "echo.null", "")
	require.NoError(t, err)
	assert.Equal(t, "null", out)
}

func TestDispatchInvalidArgs(t *testing.T) {
	d := testDispatcher(t, nil)

	_, err := d.Dispatch(context.Background(), bundle.WindowMain, "echo.say", "{broken")
	assert.Equal(t, plugin.CodeBadRequest, invokeCode(t, err))
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := testDispatcher(t, nil)

	_, err := d.Dispatch(context.Background(), bundle.WindowMain, "echo.missing", "")
	assert.Equal(t, plugin.CodeNotFound, invokeCode(t, err))

	_, err = d.Dispatch(context.Background(), bundle.WindowMain, "nodot", "")
	assert.Equal(t, plugin.CodeNotFound, invokeCode(t, err))
}

func TestDispatchUnknownWindowDenied(t *testing.T) {
	d := testDispatcher(t, nil)

	_, err := d.Dispatch(context.Background(), "ghost", "echo.say", "")
	assert.Equal(t, plugin.CodeDenied, invokeCode(t, err))
}

func TestDispatchDeniedCommand(t *testing.T) {
	d := testDispatcher(t, nil)

	_, err := d.Dispatch(context.Background(), bundle.WindowMain, "echo.hidden", "")
	assert.Equal(t, plugin.CodeDenied, invokeCode(t, err))
}

func TestDispatchHandlerError(t *testing.T) {
	d := testDispatcher(t, nil)

	_, err := d.Dispatch(context.Background(), bundle.WindowMain, "echo.fail", "")
	require.Error(t, err)
	assert.Equal(t, plugin.CodeInternal, invokeCode(t, err))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestDispatchScopeReachesHandler(t *testing.T) {
	d := testDispatcher(t, nil)

	out, err := d.Dispatch(context.Background(), bundle.WindowMain, "echo.scoped", "")
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, out)
}

func TestDispatchPublishesInvokeEvents(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	d := testDispatcher(t, bus)

	_, err := d.Dispatch(context.Background(), bundle.WindowMain, "echo.null", "")
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), bundle.WindowMain, "echo.fail", "")
	require.Error(t, err)

	ok := <-sub.C
	assert.Equal(t, events.KindInvoke, ok.Kind)
	okRec, isRec := ok.Data.(InvokeRecord)
	require.True(t, isRec)
	assert.True(t, okRec.OK)
	assert.Equal(t, "echo.null", okRec.Command)
	assert.NotEmpty(t, okRec.ID)

	failed := <-sub.C
	failRec := failed.Data.(InvokeRecord)
	assert.False(t, failRec.OK)
	assert.Equal(t, plugin.CodeInternal, failRec.Code)
	assert.NotEqual(t, okRec.ID, failRec.ID)
}
