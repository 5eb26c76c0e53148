package plugin

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type authPlugin struct{}

func (authPlugin) Name() string { return "auth" }

func (authPlugin) Init(ic *InitContext) (any, error) {
	return map[string]any{"userID": "anon"}, nil
}

func (authPlugin) SkipProps() []string { return []string{"internalLoginHandler"} }

type metricsPlugin struct {
	sawUserID any
}

func (*metricsPlugin) Name() string { return "metrics" }

func (*metricsPlugin) Init(ic *InitContext) (any, error) {
	return map[string]any{"requestCount": 0}, nil
}

func (m *metricsPlugin) Setup(ctx context.Context, all map[string]any) error {
	authCtx, _ := all["auth"].(map[string]any)
	m.sawUserID = authCtx["userID"]
	return nil
}

func echoMethod(ctx context.Context, name string) (string, error) {
	composed, ok := FromContext(ctx)
	if !ok {
		return "", nil
	}
	v, _ := composed.Value("userID")
	return v.(string) + ":" + name, nil
}

func TestComposeMergesContextsLaterPluginWins(t *testing.T) {
	overridingPlugin := pluginFunc{
		name: "override",
		init: func(ic *InitContext) (any, error) {
			return map[string]any{"userID": "root"}, nil
		},
	}

	reg, err := Compose(&InitContext{Ctx: context.Background()}, nil, nil, authPlugin{}, overridingPlugin)
	require.NoError(t, err)

	composed := reg.NewRequestContext(context.Background(), nil, nil)
	v, ok := composed.Value("userID")
	require.True(t, ok)
	require.Equal(t, "root", v)
}

func TestComposeRunsSetupWithAllPluginContexts(t *testing.T) {
	mp := &metricsPlugin{}
	_, err := Compose(&InitContext{Ctx: context.Background()}, nil, nil, authPlugin{}, mp)
	require.NoError(t, err)
	require.Equal(t, "anon", mp.sawUserID)
}

func TestComposeRegistersMethodMapEntries(t *testing.T) {
	reg, err := Compose(&InitContext{Ctx: context.Background()}, nil, map[string]any{
		"echo": echoMethod,
	}, authPlugin{})
	require.NoError(t, err)

	m, ok := reg.Surface().Methods["echo"]
	require.True(t, ok)
	require.Equal(t, 1, m.Params)
}

func TestComposeOnFetchRunsInOrder(t *testing.T) {
	var order []string
	hookA := onFetchFunc(func(r *http.Request, c *Context) error {
		order = append(order, "a")
		return nil
	})
	hookB := onFetchFunc(func(r *http.Request, c *Context) error {
		order = append(order, "b")
		return nil
	})

	reg, err := Compose(&InitContext{Ctx: context.Background()}, nil, nil,
		pluginFunc{name: "a", init: noopInit, hook: hookA},
		pluginFunc{name: "b", init: noopInit, hook: hookB},
	)
	require.NoError(t, err)

	require.NoError(t, reg.RunOnFetch(nil, reg.NewRequestContext(context.Background(), nil, nil)))
	require.Equal(t, []string{"a", "b"}, order)
}

func noopInit(ic *InitContext) (any, error) { return nil, nil }

type onFetchFunc func(r *http.Request, c *Context) error

type pluginFunc struct {
	name string
	init func(ic *InitContext) (any, error)
	hook onFetchFunc
}

func (p pluginFunc) Name() string                        { return p.name }
func (p pluginFunc) Init(ic *InitContext) (any, error)    { return p.init(ic) }
func (p pluginFunc) OnFetch(r *http.Request, c *Context) error {
	if p.hook == nil {
		return nil
	}
	return p.hook(r, c)
}
