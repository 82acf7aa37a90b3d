// Package host implements the hybrid-app host runtime that native plugins run inside.
// It routes exec requests to plugins, owns the background worker pool and
// relays lifecycle and activity-result notifications.
package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/zlc_ai/appevents-bridge/internal/plugin"
	"github.com/zlc_ai/appevents-bridge/internal/protocol"
	"github.com/zlc_ai/appevents-bridge/internal/sdk"
)

// Config holds the host runtime configuration.
type Config struct {
	// WorkerCount is the number of background workers.
	WorkerCount int `json:"worker_count" yaml:"worker_count"`
	// QueueSize is the background task queue buffer size.
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

// DefaultConfig returns the default host configuration.
func DefaultConfig() Config {
	return Config{
		WorkerCount: 4,
		QueueSize:   64,
	}
}

// Environment is what the embedding application provides to the runtime.
type Environment struct {
	Application *Application
	Resources   plugin.Resources
	WebView     plugin.WebView
	Metrics     *Metrics
}

// Runtime hosts plugins and dispatches exec requests to them.
type Runtime struct {
	plugins   map[string]plugin.Plugin
	app       *Application
	resources plugin.Resources
	webView   plugin.WebView
	pool      *WorkerPool
	metrics   *Metrics
	logger    *zap.Logger

	receiverMu sync.RWMutex
	receiver   plugin.ActivityResultReceiver

	starting bool
	started  bool
	mu       sync.RWMutex
}

// New creates a host runtime.
func New(cfg Config, env Environment, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if env.Application == nil {
		env.Application = NewApplication("", "")
	}
	if env.Resources == nil {
		env.Resources = NewMapResources(nil)
	}
	if env.WebView == nil {
		env.WebView = NewSurface("main", false)
	}

	return &Runtime{
		plugins:   make(map[string]plugin.Plugin),
		app:       env.Application,
		resources: env.Resources,
		webView:   env.WebView,
		pool:      NewWorkerPool(cfg.WorkerCount, cfg.QueueSize, env.Metrics, logger.Named("pool")),
		metrics:   env.Metrics,
		logger:    logger,
	}
}

// RegisterPlugin adds a plugin to the runtime under its service name.
func (r *Runtime) RegisterPlugin(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.starting {
		return fmt.Errorf("cannot register plugin after host started")
	}

	name := p.Name()
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}

	r.plugins[name] = p
	r.logger.Info("Plugin registered", zap.String("service", name))
	return nil
}

// Start initializes every registered plugin, then starts the worker pool.
// Exec answers "host not started" until every plugin is initialized. If a
// plugin fails to initialize the runtime stays unstarted.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started || r.starting {
		r.mu.Unlock()
		return fmt.Errorf("host already started")
	}
	r.starting = true
	plugins := len(r.plugins)
	r.mu.Unlock()

	r.logger.Info("Starting host runtime",
		zap.Int("workers", r.pool.workerCount),
		zap.Int("plugins", plugins))

	for _, name := range r.Services() {
		p, _ := r.plugin(name)
		if err := p.Initialize(r); err != nil {
			r.logger.Error("Failed to initialize plugin",
				zap.String("service", name),
				zap.Error(err))
			r.mu.Lock()
			r.starting = false
			r.mu.Unlock()
			return fmt.Errorf("failed to initialize plugin %s: %w", name, err)
		}
	}

	r.pool.Start()

	r.mu.Lock()
	r.starting = false
	r.started = true
	r.mu.Unlock()

	r.logger.Info("Host runtime started")
	return nil
}

// Stop drains the worker pool.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.mu.Unlock()

	r.logger.Info("Stopping host runtime")
	if err := r.pool.Stop(ctx); err != nil {
		r.logger.Warn("Host runtime shutdown timed out", zap.Error(err))
		return err
	}
	r.logger.Info("Host runtime stopped")
	return nil
}

// Exec dispatches a request to its plugin. Results, if any, are passed to
// deliver, possibly after Exec has returned and from another goroutine.
func (r *Runtime) Exec(req *protocol.ExecRequest, deliver protocol.ResultHandler) {
	req.Normalize()

	cb := newCallbackContext(req.CallbackID, deliver, r.metrics)

	r.mu.RLock()
	started := r.started
	p, ok := r.plugins[req.Service]
	r.mu.RUnlock()

	if !started {
		cb.fail(protocol.StatusError, "host not started")
		return
	}
	if !ok {
		r.logger.Warn("Exec for unknown service",
			zap.String("service", req.Service),
			zap.String("action", req.Action))
		r.metrics.command(req.Service, req.Action, false)
		cb.fail(protocol.StatusClassNotFound, fmt.Sprintf("service %s not found", req.Service))
		return
	}

	handled, err := r.execute(p, req, cb)
	r.metrics.command(req.Service, req.Action, handled)

	r.logger.Debug("Exec dispatched",
		zap.String("callbackId", req.CallbackID),
		zap.String("service", req.Service),
		zap.String("action", req.Action),
		zap.Int("args", len(req.Args)),
		zap.Bool("handled", handled))

	switch {
	case err != nil:
		r.logger.Warn("Plugin failed to execute action",
			zap.String("service", req.Service),
			zap.String("action", req.Action),
			zap.Error(err))
		cb.fail(protocol.StatusJSONException, err.Error())
	case !handled:
		cb.fail(protocol.StatusInvalidAction, fmt.Sprintf("action %s not handled by %s", req.Action, req.Service))
	}
}

func (r *Runtime) execute(p plugin.Plugin, req *protocol.ExecRequest, cb plugin.CallbackContext) (handled bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			handled = true
			err = fmt.Errorf("plugin %s panicked: %v", req.Service, rec)
		}
	}()
	return p.Execute(req.Action, plugin.Args(req.Args), cb)
}

// Resume notifies every plugin that the application came to the foreground.
func (r *Runtime) Resume(multitasking bool) {
	r.logger.Debug("Application resumed", zap.Bool("multitasking", multitasking))
	for _, name := range r.Services() {
		if p, ok := r.plugin(name); ok {
			p.OnResume(multitasking)
		}
	}
}

// Pause notifies every plugin that the application went to the background.
func (r *Runtime) Pause(multitasking bool) {
	r.logger.Debug("Application paused", zap.Bool("multitasking", multitasking))
	for _, name := range r.Services() {
		if p, ok := r.plugin(name); ok {
			p.OnPause(multitasking)
		}
	}
}

// ActivityResult relays an activity result to the registered receiver.
// It reports whether a receiver was registered.
func (r *Runtime) ActivityResult(requestCode, resultCode int, intent *protocol.Intent) bool {
	r.receiverMu.RLock()
	receiver := r.receiver
	r.receiverMu.RUnlock()

	if receiver == nil {
		r.logger.Warn("Activity result without a registered receiver",
			zap.Int("requestCode", requestCode))
		return false
	}
	receiver.OnActivityResult(requestCode, resultCode, intent)
	return true
}

// Services returns the registered service names in sorted order.
func (r *Runtime) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Plugin returns a registered plugin by service name.
func (r *Runtime) Plugin(name string) (plugin.Plugin, bool) {
	return r.plugin(name)
}

func (r *Runtime) plugin(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

func (r *Runtime) Application() sdk.AppContext {
	return r.app
}

func (r *Runtime) SetActivityResultCallback(receiver plugin.ActivityResultReceiver) {
	r.receiverMu.Lock()
	r.receiver = receiver
	r.receiverMu.Unlock()
}

func (r *Runtime) ThreadPool() plugin.Executor {
	return r.pool
}

func (r *Runtime) Resources() plugin.Resources {
	return r.resources
}

func (r *Runtime) WebView() plugin.WebView {
	return r.webView
}
