package sdk

import (
	"errors"
	"sync"

	"github.com/zlc_ai/appevents-bridge/internal/protocol"
)

// Call names recorded by MockSDK.
const (
	CallNewCallbackManager        = "NewCallbackManager"
	CallNewLogger                 = "NewLogger"
	CallActivateApp               = "ActivateApp"
	CallDeactivateApp             = "DeactivateApp"
	CallSetMixedAudience          = "SetMixedAudience"
	CallSetAutoLogAppEvents       = "SetAutoLogAppEventsEnabled"
	CallSetAdvertiserIDCollection = "SetAdvertiserIDCollectionEnabled"
	CallSetAutoInitEnabled        = "SetAutoInitEnabled"
	CallFullyInitialize           = "FullyInitialize"
	CallAugmentWebView            = "AugmentWebView"
	CallOnActivityResult          = "OnActivityResult"
)

// Call is a single recorded vendor call.
type Call struct {
	Method string
	Args   []interface{}
}

// LoggedEvent is an event recorded by the mock event logger.
type LoggedEvent struct {
	Name     string
	Value    float64
	HasValue bool
	Params   *Parameters
}

// MockSDK is a recording implementation for testing.
type MockSDK struct {
	mu      sync.Mutex
	calls   []Call
	events  []LoggedEvent
	augment error
}

// NewMockSDK creates an empty recorder.
func NewMockSDK() *MockSDK {
	return &MockSDK{}
}

// SetAugmentError makes AugmentWebView fail with err.
func (m *MockSDK) SetAugmentError(err error) {
	m.mu.Lock()
	m.augment = err
	m.mu.Unlock()
}

func (m *MockSDK) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
	m.mu.Unlock()
}

func (m *MockSDK) NewCallbackManager() CallbackManager {
	m.record(CallNewCallbackManager)
	return &mockCallbackManager{sdk: m}
}

func (m *MockSDK) NewLogger(app AppContext) EventLogger {
	m.record(CallNewLogger, app.PackageName())
	return &mockEventLogger{sdk: m}
}

func (m *MockSDK) ActivateApp(app AppContext) {
	m.record(CallActivateApp, app.PackageName())
}

func (m *MockSDK) DeactivateApp(app AppContext) {
	m.record(CallDeactivateApp, app.PackageName())
}

func (m *MockSDK) SetMixedAudience(enabled bool) {
	m.record(CallSetMixedAudience, enabled)
}

func (m *MockSDK) SetAutoLogAppEventsEnabled(enabled bool) {
	m.record(CallSetAutoLogAppEvents, enabled)
}

func (m *MockSDK) SetAdvertiserIDCollectionEnabled(enabled bool) {
	m.record(CallSetAdvertiserIDCollection, enabled)
}

func (m *MockSDK) SetAutoInitEnabled(enabled bool) {
	m.record(CallSetAutoInitEnabled, enabled)
}

func (m *MockSDK) FullyInitialize() {
	m.record(CallFullyInitialize)
}

func (m *MockSDK) AugmentWebView(view interface{}, app AppContext) error {
	m.record(CallAugmentWebView, view)
	m.mu.Lock()
	defer m.mu.Unlock()
	if view == nil {
		return errors.New("web view is nil")
	}
	return m.augment
}

// Calls returns a copy of every recorded call.
func (m *MockSDK) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo returns the recorded calls to method.
func (m *MockSDK) CallsTo(method string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times method was called.
func (m *MockSDK) Count(method string) int {
	return len(m.CallsTo(method))
}

// LastBool returns the boolean argument of the most recent call to method.
func (m *MockSDK) LastBool(method string) (bool, bool) {
	calls := m.CallsTo(method)
	if len(calls) == 0 || len(calls[len(calls)-1].Args) == 0 {
		return false, false
	}
	v, ok := calls[len(calls)-1].Args[0].(bool)
	return v, ok
}

// Events returns a copy of every logged event.
func (m *MockSDK) Events() []LoggedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LoggedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Reset clears recorded calls and events.
func (m *MockSDK) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.events = nil
	m.mu.Unlock()
}

type mockEventLogger struct {
	sdk *MockSDK
}

func (l *mockEventLogger) LogEvent(name string) {
	l.append(LoggedEvent{Name: name})
}

func (l *mockEventLogger) LogEventWithParameters(name string, params *Parameters) {
	l.append(LoggedEvent{Name: name, Params: params})
}

func (l *mockEventLogger) LogEventWithValue(name string, valueToSum float64, params *Parameters) {
	l.append(LoggedEvent{Name: name, Value: valueToSum, HasValue: true, Params: params})
}

func (l *mockEventLogger) append(e LoggedEvent) {
	l.sdk.mu.Lock()
	l.sdk.events = append(l.sdk.events, e)
	l.sdk.mu.Unlock()
}

type mockCallbackManager struct {
	sdk *MockSDK
}

func (c *mockCallbackManager) OnActivityResult(requestCode, resultCode int, intent *protocol.Intent) bool {
	c.sdk.record(CallOnActivityResult, requestCode, resultCode, intent)
	return true
}
