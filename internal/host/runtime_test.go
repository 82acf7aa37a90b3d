package host

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zlc_ai/appevents-bridge/internal/bridge"
	"github.com/zlc_ai/appevents-bridge/internal/plugin"
	"github.com/zlc_ai/appevents-bridge/internal/protocol"
	"github.com/zlc_ai/appevents-bridge/internal/sdk"
)

type stubPlugin struct {
	name    string
	initErr error
	onInit  func()
	execute func(action string, args plugin.Args, cb plugin.CallbackContext) (bool, error)

	mu      sync.Mutex
	host    plugin.Host
	resumed []bool
	paused  []bool
	results []int
}

func (p *stubPlugin) Name() string { return p.name }

func (p *stubPlugin) Initialize(host plugin.Host) error {
	p.mu.Lock()
	p.host = host
	p.mu.Unlock()
	if p.onInit != nil {
		p.onInit()
	}
	return p.initErr
}

func (p *stubPlugin) Execute(action string, args plugin.Args, cb plugin.CallbackContext) (bool, error) {
	if p.execute == nil {
		return false, nil
	}
	return p.execute(action, args, cb)
}

func (p *stubPlugin) OnResume(multitasking bool) {
	p.mu.Lock()
	p.resumed = append(p.resumed, multitasking)
	p.mu.Unlock()
}

func (p *stubPlugin) OnPause(multitasking bool) {
	p.mu.Lock()
	p.paused = append(p.paused, multitasking)
	p.mu.Unlock()
}

func (p *stubPlugin) OnActivityResult(requestCode, resultCode int, intent *protocol.Intent) {
	p.mu.Lock()
	p.results = append(p.results, requestCode)
	p.mu.Unlock()
}

type resultSink struct {
	mu      sync.Mutex
	results []*protocol.PluginResult
}

func (s *resultSink) deliver(r *protocol.PluginResult) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
}

func (s *resultSink) all() []*protocol.PluginResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*protocol.PluginResult(nil), s.results...)
}

func newTestRuntime(t *testing.T, env Environment) *Runtime {
	t.Helper()
	if env.Metrics == nil {
		env.Metrics = MustNewMetrics(prometheus.NewRegistry())
	}
	rt := New(DefaultConfig(), env, zap.NewNop())
	t.Cleanup(func() { _ = rt.Stop(context.Background()) })
	return rt
}

func TestRuntime_RegisterPlugin(t *testing.T) {
	rt := newTestRuntime(t, Environment{})

	require.NoError(t, rt.RegisterPlugin(&stubPlugin{name: "B"}))
	require.NoError(t, rt.RegisterPlugin(&stubPlugin{name: "A"}))
	assert.Error(t, rt.RegisterPlugin(&stubPlugin{name: "A"}), "duplicate service")
	assert.Equal(t, []string{"A", "B"}, rt.Services())

	require.NoError(t, rt.Start(context.Background()))
	assert.Error(t, rt.RegisterPlugin(&stubPlugin{name: "C"}), "registration closes on start")
	assert.Error(t, rt.Start(context.Background()), "double start")

	p, ok := rt.Plugin("A")
	require.True(t, ok)
	assert.Equal(t, "A", p.Name())
}

func TestRuntime_StartInitializesPlugins(t *testing.T) {
	app := NewApplication("com.example.app", "42")
	rt := newTestRuntime(t, Environment{Application: app})
	p := &stubPlugin{name: "Stub"}
	require.NoError(t, rt.RegisterPlugin(p))

	require.NoError(t, rt.Start(context.Background()))

	require.NotNil(t, p.host)
	assert.Equal(t, "com.example.app", p.host.Application().PackageName())
	assert.NotNil(t, p.host.ThreadPool())
	assert.NotNil(t, p.host.Resources())
	assert.NotNil(t, p.host.WebView())
}

func TestRuntime_StartFailsOnPluginError(t *testing.T) {
	rt := newTestRuntime(t, Environment{})
	initErr := errors.New("no vendor")
	require.NoError(t, rt.RegisterPlugin(&stubPlugin{name: "Stub", initErr: initErr}))

	err := rt.Start(context.Background())
	assert.ErrorIs(t, err, initErr)

	sink := &resultSink{}
	rt.Exec(&protocol.ExecRequest{Service: "Stub", Action: "ok"}, sink.deliver)
	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, protocol.StatusError, results[0].Status)
	assert.Equal(t, "host not started", results[0].Message)

	assert.NoError(t, rt.Stop(context.Background()), "stop after a failed start is a no-op")
}

func TestRuntime_ExecDuringInitialize(t *testing.T) {
	rt := newTestRuntime(t, Environment{})

	sink := &resultSink{}
	var registerErr error
	first := &stubPlugin{name: "A", onInit: func() {
		rt.Exec(&protocol.ExecRequest{CallbackID: "early", Service: "B", Action: "ok"}, sink.deliver)
		registerErr = rt.RegisterPlugin(&stubPlugin{name: "C"})
	}}
	second := &stubPlugin{
		name: "B",
		execute: func(action string, args plugin.Args, cb plugin.CallbackContext) (bool, error) {
			cb.Success()
			return true, nil
		},
	}
	require.NoError(t, rt.RegisterPlugin(first))
	require.NoError(t, rt.RegisterPlugin(second))

	require.NoError(t, rt.Start(context.Background()))

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, "early", results[0].CallbackID)
	assert.Equal(t, protocol.StatusError, results[0].Status, "plugins are not reachable while the host initializes")
	assert.Equal(t, "host not started", results[0].Message)
	assert.Error(t, registerErr)

	sink = &resultSink{}
	rt.Exec(&protocol.ExecRequest{Service: "B", Action: "ok"}, sink.deliver)
	require.Len(t, sink.all(), 1)
	assert.True(t, sink.all()[0].OK())
}

func TestRuntime_ExecStatuses(t *testing.T) {
	p := &stubPlugin{
		name: "Stub",
		execute: func(action string, args plugin.Args, cb plugin.CallbackContext) (bool, error) {
			switch action {
			case "ok":
				cb.Success()
				return true, nil
			case "fail":
				cb.Error("nope")
				return true, nil
			case "bad":
				return true, errors.New("malformed argument")
			case "panic":
				panic("boom")
			case "silent":
				return true, nil
			}
			return false, nil
		},
	}

	tests := []struct {
		name    string
		service string
		action  string
		status  protocol.Status
		message string
	}{
		{name: "success", service: "Stub", action: "ok", status: protocol.StatusOK},
		{name: "plugin error", service: "Stub", action: "fail", status: protocol.StatusError, message: "nope"},
		{name: "argument error", service: "Stub", action: "bad", status: protocol.StatusJSONException, message: "malformed argument"},
		{name: "panic", service: "Stub", action: "panic", status: protocol.StatusJSONException},
		{name: "unknown action", service: "Stub", action: "nosuch", status: protocol.StatusInvalidAction},
		{name: "unknown service", service: "Nope", action: "ok", status: protocol.StatusClassNotFound},
	}

	rt := newTestRuntime(t, Environment{})
	require.NoError(t, rt.RegisterPlugin(p))
	require.NoError(t, rt.Start(context.Background()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &resultSink{}
			rt.Exec(&protocol.ExecRequest{CallbackID: "cb", Service: tt.service, Action: tt.action}, sink.deliver)

			results := sink.all()
			require.Len(t, results, 1)
			assert.Equal(t, "cb", results[0].CallbackID)
			assert.Equal(t, tt.status, results[0].Status)
			if tt.message != "" {
				assert.Equal(t, tt.message, results[0].Message)
			}
		})
	}

	t.Run("no result", func(t *testing.T) {
		sink := &resultSink{}
		rt.Exec(&protocol.ExecRequest{Service: "Stub", Action: "silent"}, sink.deliver)
		assert.Empty(t, sink.all())
	})
}

func TestRuntime_ExecBeforeStart(t *testing.T) {
	rt := newTestRuntime(t, Environment{})
	require.NoError(t, rt.RegisterPlugin(&stubPlugin{name: "Stub"}))

	sink := &resultSink{}
	rt.Exec(&protocol.ExecRequest{Service: "Stub", Action: "ok"}, sink.deliver)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, protocol.StatusError, results[0].Status)
	assert.NotEmpty(t, results[0].CallbackID, "callback id is generated when missing")
}

func TestRuntime_ExecCountsCommands(t *testing.T) {
	metrics := MustNewMetrics(prometheus.NewRegistry())
	rt := newTestRuntime(t, Environment{Metrics: metrics})
	require.NoError(t, rt.RegisterPlugin(&stubPlugin{name: "Stub"}))
	require.NoError(t, rt.Start(context.Background()))

	rt.Exec(&protocol.ExecRequest{Service: "Stub", Action: "x"}, nil)
	rt.Exec(&protocol.ExecRequest{Service: "Other", Action: "x"}, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.commands.WithLabelValues("Stub", "x", "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.commands.WithLabelValues("Other", "x", "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.results.WithLabelValues(string(protocol.StatusClassNotFound))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.results.WithLabelValues(string(protocol.StatusInvalidAction))))
}

func TestRuntime_LifecycleAndActivityResult(t *testing.T) {
	rt := newTestRuntime(t, Environment{})
	p := &stubPlugin{name: "Stub"}
	require.NoError(t, rt.RegisterPlugin(p))
	require.NoError(t, rt.Start(context.Background()))

	rt.Resume(true)
	rt.Pause(false)
	assert.Equal(t, []bool{true}, p.resumed)
	assert.Equal(t, []bool{false}, p.paused)

	assert.False(t, rt.ActivityResult(1, 0, nil), "no receiver registered")

	rt.SetActivityResultCallback(p)
	assert.True(t, rt.ActivityResult(64206, -1, &protocol.Intent{Action: "done"}))
	assert.Equal(t, []int{64206}, p.results)
}

func TestRuntime_ConnectPluginEndToEnd(t *testing.T) {
	vendor := sdk.NewMockSDK()
	surface := NewSurface("main", true)
	rt := newTestRuntime(t, Environment{
		Application: NewApplication("com.example.app", "42"),
		Resources:   NewMapResources(map[string]bool{bridge.HybridAppEventsResource: true}),
		WebView:     surface,
	})

	p := bridge.New(vendor, zap.NewNop())
	require.NoError(t, rt.RegisterPlugin(p))
	require.NoError(t, rt.Start(context.Background()))

	assert.Equal(t, 1, vendor.Count(sdk.CallAugmentWebView))
	assert.True(t, p.State().IsChild())

	exec := func(action string, args ...interface{}) []*protocol.PluginResult {
		sink := &resultSink{}
		rt.Exec(protocol.NewExecRequest(bridge.ServiceName, action, args...), sink.deliver)
		return sink.all()
	}

	results := exec("logEvent", "purchase")
	require.Len(t, results, 1)
	assert.Equal(t, protocol.StatusError, results[0].Status)
	assert.Equal(t, bridge.ErrMsgChildUser, results[0].Message)

	assert.Empty(t, exec("userIsChild", false))
	require.Eventually(t, func() bool {
		return p.State().SDKInitialized()
	}, time.Second, 5*time.Millisecond)

	results = exec("logEvent", "purchase", map[string]interface{}{"currency": "USD", "items": 3}, 9.99)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())

	events := vendor.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "purchase", events[0].Name)
	assert.True(t, events[0].HasValue)
	assert.InDelta(t, 9.99, events[0].Value, 1e-9)
	items, ok := events[0].Params.Int("items")
	require.True(t, ok)
	assert.Equal(t, int32(3), items)

	results = exec("logEvent")
	require.Len(t, results, 1)
	assert.Equal(t, bridge.ErrMsgInvalidArguments, results[0].Message)

	results = exec("logEvent", "purchase", "not-an-object")
	require.Len(t, results, 1)
	assert.Equal(t, protocol.StatusJSONException, results[0].Status)

	results = exec("share")
	require.Len(t, results, 1)
	assert.Equal(t, protocol.StatusInvalidAction, results[0].Status)

	assert.True(t, rt.ActivityResult(64206, -1, nil))
	assert.Equal(t, 1, vendor.Count(sdk.CallOnActivityResult))
}
