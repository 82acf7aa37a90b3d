package transport

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zlc_ai/appevents-bridge/internal/bridge"
	"github.com/zlc_ai/appevents-bridge/internal/host"
	"github.com/zlc_ai/appevents-bridge/internal/protocol"
	"github.com/zlc_ai/appevents-bridge/internal/sdk"
)

// Unanswered requests are followed by an action the plugin does not handle.
// Its INVALID_ACTION frame must be the next one on the wire, which proves
// nothing was sent for the request before it.
func TestWebSocketServer_ConnectPluginRoundTrip(t *testing.T) {
	vendor := sdk.NewMockSDK()
	rt := host.New(host.DefaultConfig(), host.Environment{
		Application: host.NewApplication("com.example.app", "42"),
		Metrics:     host.MustNewMetrics(prometheus.NewRegistry()),
	}, zap.NewNop())
	p := bridge.New(vendor, zap.NewNop())
	require.NoError(t, rt.RegisterPlugin(p))
	require.NoError(t, rt.Start(context.Background()))
	t.Cleanup(func() { _ = rt.Stop(context.Background()) })

	ws := NewWebSocketServer(zap.NewNop())
	ws.SetHandler(rt.Exec)
	t.Cleanup(func() { _ = ws.Stop(context.Background()) })
	conn := dialWS(t, ws)

	send := func(action string, args ...interface{}) string {
		req := protocol.NewExecRequest(bridge.ServiceName, action, args...)
		require.NoError(t, conn.WriteJSON(req))
		return req.CallbackID
	}
	expectResult := func(callbackID string) *protocol.PluginResult {
		f := readFrame(t, conn)
		require.Equal(t, FrameResult, f.Type)
		require.NotNil(t, f.Result)
		require.Equal(t, callbackID, f.Result.CallbackID)
		return f.Result
	}
	expectSilence := func() {
		marker := send("share")
		assert.Equal(t, protocol.StatusInvalidAction, expectResult(marker).Status)
	}

	result := expectResult(send("logEvent", "purchase"))
	assert.Equal(t, protocol.StatusError, result.Status)
	assert.Equal(t, bridge.ErrMsgChildUser, result.Message)

	send("userIsChild", false)
	expectSilence()
	require.Eventually(t, p.State().SDKInitialized, time.Second, 5*time.Millisecond)

	result = expectResult(send("logEvent", "purchase", map[string]interface{}{"currency": "USD"}, 4.5))
	assert.Equal(t, protocol.StatusOK, result.Status)

	send("logEvent", "purchase", map[string]interface{}{"currency": "USD"}, 4.5, "extra")
	expectSilence()

	events := vendor.Events()
	require.Len(t, events, 1, "four arguments log nothing")
	assert.Equal(t, "purchase", events[0].Name)
	assert.InDelta(t, 4.5, events[0].Value, 1e-9)
}
