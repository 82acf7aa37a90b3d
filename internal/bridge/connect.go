// Package bridge implements the app-events command bridge plugin.
// It translates script commands into vendor SDK calls and gates every
// analytics feature behind the child-user flag.
package bridge

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zlc_ai/appevents-bridge/internal/plugin"
	"github.com/zlc_ai/appevents-bridge/internal/protocol"
	"github.com/zlc_ai/appevents-bridge/internal/sdk"
)

// ServiceName is the service the script side addresses commands to.
const ServiceName = "FacebookConnectPlugin"

// HybridAppEventsResource is the boolean resource that enables web view
// instrumentation.
const HybridAppEventsResource = "fb_hybrid_app_events"

// Error messages delivered to script callers.
const (
	ErrMsgInvalidArguments = "Invalid arguments"
	ErrMsgChildUser        = "Feature disabled for a CHILD user."
)

var (
	// ErrNotInitialized is returned when a command arrives before Initialize.
	ErrNotInitialized = errors.New("plugin not initialized")
	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("plugin already initialized")
)

func init() {
	plugin.Register(ServiceName, func(opts plugin.Options) (plugin.Plugin, error) {
		if opts.SDK == nil {
			return nil, fmt.Errorf("%s requires a vendor SDK", ServiceName)
		}
		return New(opts.SDK, opts.Logger), nil
	})
}

// ConnectPlugin is the command bridge between the script context and the
// vendor SDK.
type ConnectPlugin struct {
	vendor sdk.SDK
	logger *zap.Logger
	state  *State

	mu              sync.RWMutex
	host            plugin.Host
	callbackManager sdk.CallbackManager
	events          sdk.EventLogger
}

// New creates an unattached bridge plugin.
func New(vendor sdk.SDK, logger *zap.Logger) *ConnectPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectPlugin{
		vendor: vendor,
		logger: logger.Named("connect"),
		state:  NewState(),
	}
}

func (p *ConnectPlugin) Name() string {
	return ServiceName
}

// State returns the child-user state owned by this plugin.
func (p *ConnectPlugin) State() *State {
	return p.state
}

// Initialize attaches the plugin to its host.
func (p *ConnectPlugin) Initialize(host plugin.Host) error {
	p.mu.Lock()
	if p.host != nil {
		p.mu.Unlock()
		return ErrAlreadyInitialized
	}
	p.host = host
	p.mu.Unlock()

	// Child until we know otherwise.
	p.setUserIsChild(true)

	callbackManager := p.vendor.NewCallbackManager()
	events := p.vendor.NewLogger(host.Application())

	p.mu.Lock()
	p.callbackManager = callbackManager
	p.events = events
	p.mu.Unlock()

	p.enableHybridAppEvents()

	host.SetActivityResultCallback(p)

	p.logger.Info("Plugin initialized",
		zap.String("service", ServiceName),
		zap.String("packageName", host.Application().PackageName()))
	return nil
}

func (p *ConnectPlugin) OnResume(multitasking bool) {
	host := p.attachedHost()
	if host == nil {
		return
	}
	p.vendor.ActivateApp(host.Application())
}

func (p *ConnectPlugin) OnPause(multitasking bool) {
	host := p.attachedHost()
	if host == nil {
		return
	}
	p.vendor.DeactivateApp(host.Application())
}

// OnActivityResult forwards the result to the vendor callback manager.
func (p *ConnectPlugin) OnActivityResult(requestCode, resultCode int, intent *protocol.Intent) {
	p.logger.Debug("Activity result in plugin",
		zap.Int("requestCode", requestCode),
		zap.Int("resultCode", resultCode))

	p.mu.RLock()
	cm := p.callbackManager
	p.mu.RUnlock()

	if cm != nil {
		cm.OnActivityResult(requestCode, resultCode, intent)
	}
}

// Execute dispatches an action. logEvent runs on the calling goroutine;
// activateApp and userIsChild are handed to the host thread pool and never
// deliver a result.
func (p *ConnectPlugin) Execute(action string, args plugin.Args, callback plugin.CallbackContext) (bool, error) {
	act, ok := ParseAction(action)
	if !ok {
		return false, nil
	}

	host := p.attachedHost()
	if host == nil {
		return false, ErrNotInitialized
	}

	switch act {
	case ActionLogEvent:
		return true, p.executeLogEvent(args, callback)
	case ActionActivateApp:
		host.ThreadPool().Execute(func() {
			p.vendor.ActivateApp(host.Application())
		})
		return true, nil
	case ActionUserIsChild:
		p.executeUserIsChild(host, args)
		return true, nil
	case ActionSetAdvertiserTracking:
		// Not supported on this platform.
		return true, nil
	}
	return false, nil
}

func (p *ConnectPlugin) executeUserIsChild(host plugin.Host, args plugin.Args) {
	host.ThreadPool().Execute(func() {
		value, err := args.Bool(0)
		if err != nil {
			p.logger.Debug("userIsChild argument unreadable, assuming child", zap.Error(err))
			value = true
		}
		p.setUserIsChild(value)
	})
}

func (p *ConnectPlugin) setUserIsChild(child bool) {
	if p.state.setChild(child, p.vendor) {
		p.logger.Info("Vendor SDK fully initialized")
	}
	p.logger.Debug("User child flag set", zap.Bool("isChild", child))
}

func (p *ConnectPlugin) executeLogEvent(args plugin.Args, callback plugin.CallbackContext) error {
	if args.Len() == 0 {
		callback.Error(ErrMsgInvalidArguments)
		return nil
	}

	if p.state.IsChild() {
		callback.Error(ErrMsgChildUser)
		return nil
	}

	p.mu.RLock()
	events := p.events
	p.mu.RUnlock()

	name, err := args.String(0)
	if err != nil {
		return fmt.Errorf("read event name: %w", err)
	}

	if args.Len() == 1 {
		events.LogEvent(name)
		callback.Success()
		return nil
	}

	obj, err := args.Object(1)
	if err != nil {
		return fmt.Errorf("read event parameters: %w", err)
	}

	params, dropped := DecodeParams(obj)
	for _, key := range dropped {
		p.logger.Warn("Unsupported type in app event parameters",
			zap.String("event", name),
			zap.String("key", key))
	}

	switch args.Len() {
	case 2:
		events.LogEventWithParameters(name, params)
		callback.Success()
	case 3:
		value, err := args.Float(2)
		if err != nil {
			return fmt.Errorf("read event value: %w", err)
		}
		events.LogEventWithValue(name, value, params)
		callback.Success()
	default:
		p.logger.Warn("logEvent called with more than three arguments, event not logged",
			zap.String("event", name),
			zap.Int("args", args.Len()))
	}
	return nil
}

// enableHybridAppEvents augments the web view when the resource asks for it.
// Failures are logged and never propagated.
func (p *ConnectPlugin) enableHybridAppEvents() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("Hybrid app events cannot be enabled", zap.Any("panic", r))
		}
	}()

	host := p.attachedHost()
	resources := host.Resources()
	if resources == nil {
		p.logger.Debug("Hybrid app events cannot be enabled", zap.String("reason", "no resources"))
		return
	}

	enabled, err := resources.Bool(HybridAppEventsResource)
	if err != nil && !errors.Is(err, plugin.ErrResourceNotFound) {
		p.logger.Debug("Hybrid app events cannot be enabled", zap.Error(err))
		return
	}
	if !enabled {
		p.logger.Debug("Hybrid app events are not enabled")
		return
	}

	webView := host.WebView()
	if webView == nil {
		p.logger.Debug("Hybrid app events cannot be enabled", zap.String("reason", "no web view"))
		return
	}
	view, err := webView.View()
	if err != nil {
		p.logger.Debug("Hybrid app events cannot be enabled", zap.Error(err))
		return
	}
	if err := p.vendor.AugmentWebView(view, host.Application()); err != nil {
		p.logger.Debug("Hybrid app events cannot be enabled", zap.Error(err))
		return
	}
	p.logger.Debug("Hybrid app events are enabled")
}

func (p *ConnectPlugin) attachedHost() plugin.Host {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.host
}
