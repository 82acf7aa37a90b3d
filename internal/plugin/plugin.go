// Package plugin defines the contract between the host runtime and native plugins.
// A plugin receives exec commands addressed to its service name and reports
// results through a CallbackContext.
package plugin

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/zlc_ai/appevents-bridge/internal/protocol"
	"github.com/zlc_ai/appevents-bridge/internal/sdk"
)

var (
	// ErrResourceNotFound is returned when a named resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrViewNotReady is returned when the web view has no native view yet.
	ErrViewNotReady = errors.New("web view not ready")
)

// Plugin is the interface that all native plugins must implement.
type Plugin interface {
	// Name returns the service name commands are addressed to.
	Name() string

	// Initialize is called once when the plugin attaches to its host.
	Initialize(host Host) error

	// Execute runs an action. It returns false when the action is not
	// handled by this plugin. A returned error means the arguments could
	// not be read; the host reports it to the caller.
	Execute(action string, args Args, callback CallbackContext) (bool, error)

	// OnResume is called when the application comes to the foreground.
	OnResume(multitasking bool)

	// OnPause is called when the application goes to the background.
	OnPause(multitasking bool)
}

// ActivityResultReceiver receives results of activities started by the host.
type ActivityResultReceiver interface {
	OnActivityResult(requestCode, resultCode int, intent *protocol.Intent)
}

// Host is the runtime a plugin runs inside.
type Host interface {
	// Application returns the host application context.
	Application() sdk.AppContext

	// SetActivityResultCallback registers the receiver of activity results.
	SetActivityResultCallback(receiver ActivityResultReceiver)

	// ThreadPool returns the background worker submission facility.
	ThreadPool() Executor

	// Resources returns the host application resources.
	Resources() Resources

	// WebView returns the web view hosting the script context.
	WebView() WebView
}

// Executor runs tasks off the calling goroutine. Submitted tasks have no
// result channel and no completion signal.
type Executor interface {
	Execute(task func())
}

// Resources exposes named application resources.
type Resources interface {
	// Bool returns the boolean resource called name, or ErrResourceNotFound.
	Bool(name string) (bool, error)
}

// WebView is the surface rendering the script context.
type WebView interface {
	// View returns the underlying native view handle, or ErrViewNotReady.
	View() (interface{}, error)
}

// CallbackContext delivers the result of one exec request. Only the first
// Success or Error call is delivered; later calls are ignored.
type CallbackContext interface {
	CallbackID() string
	Success()
	Error(message string)
	Finished() bool
}

// Options carries the dependencies handed to a plugin factory.
type Options struct {
	SDK    sdk.SDK
	Logger *zap.Logger
}

// Factory creates a plugin instance.
type Factory func(opts Options) (Plugin, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register registers a plugin factory under a service name.
func Register(service string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[service] = factory
}

// Lookup retrieves a plugin factory by service name.
func Lookup(service string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[service]
	return factory, ok
}

// Services returns the registered service names in sorted order.
func Services() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
