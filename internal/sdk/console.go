package sdk

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/zlc_ai/appevents-bridge/internal/protocol"
)

// ConsoleSDK implements SDK by writing every vendor call to a structured log.
// It keeps the vendor-side settings in memory so they can be inspected, but
// never stores or transmits events.
type ConsoleSDK struct {
	logger *zap.Logger

	mu                  sync.RWMutex
	settings            Settings
	initializationCount int
}

// Settings is a snapshot of the vendor-side flags.
type Settings struct {
	MixedAudience           bool `json:"mixedAudience"`
	AutoLogAppEventsEnabled bool `json:"autoLogAppEventsEnabled"`
	AdvertiserIDCollection  bool `json:"advertiserIdCollectionEnabled"`
	AutoInitEnabled         bool `json:"autoInitEnabled"`
	FullyInitialized        bool `json:"fullyInitialized"`
}

// NewConsoleSDK creates a logging SDK.
func NewConsoleSDK(logger *zap.Logger) *ConsoleSDK {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSDK{
		logger: logger.Named("vendor"),
		// Vendor defaults before the bridge applies its own policy.
		settings: Settings{
			AutoLogAppEventsEnabled: true,
			AdvertiserIDCollection:  true,
			AutoInitEnabled:         true,
		},
	}
}

func (s *ConsoleSDK) NewCallbackManager() CallbackManager {
	s.logger.Debug("Callback manager created")
	return &consoleCallbackManager{logger: s.logger}
}

func (s *ConsoleSDK) NewLogger(app AppContext) EventLogger {
	s.logger.Debug("Event logger created",
		zap.String("packageName", app.PackageName()),
		zap.String("applicationId", app.ApplicationID()))
	return &consoleEventLogger{
		logger: s.logger.With(zap.String("applicationId", app.ApplicationID())),
	}
}

func (s *ConsoleSDK) ActivateApp(app AppContext) {
	s.logger.Info("App activated", zap.String("packageName", app.PackageName()))
}

func (s *ConsoleSDK) DeactivateApp(app AppContext) {
	s.logger.Info("App deactivated", zap.String("packageName", app.PackageName()))
}

func (s *ConsoleSDK) SetMixedAudience(enabled bool) {
	s.update(func(st *Settings) { st.MixedAudience = enabled })
	s.logger.Debug("Mixed audience set", zap.Bool("enabled", enabled))
}

func (s *ConsoleSDK) SetAutoLogAppEventsEnabled(enabled bool) {
	s.update(func(st *Settings) { st.AutoLogAppEventsEnabled = enabled })
	s.logger.Debug("Auto log app events set", zap.Bool("enabled", enabled))
}

func (s *ConsoleSDK) SetAdvertiserIDCollectionEnabled(enabled bool) {
	s.update(func(st *Settings) { st.AdvertiserIDCollection = enabled })
	s.logger.Debug("Advertiser ID collection set", zap.Bool("enabled", enabled))
}

func (s *ConsoleSDK) SetAutoInitEnabled(enabled bool) {
	s.update(func(st *Settings) { st.AutoInitEnabled = enabled })
	s.logger.Debug("Auto init set", zap.Bool("enabled", enabled))
}

func (s *ConsoleSDK) FullyInitialize() {
	s.mu.Lock()
	s.settings.FullyInitialized = true
	s.initializationCount++
	count := s.initializationCount
	s.mu.Unlock()

	s.logger.Info("SDK fully initialized", zap.Int("initializations", count))
}

func (s *ConsoleSDK) AugmentWebView(view interface{}, app AppContext) error {
	if view == nil {
		return errors.New("web view is nil")
	}
	s.logger.Info("Web view augmented for hybrid app events",
		zap.Any("view", view),
		zap.String("packageName", app.PackageName()))
	return nil
}

// Settings returns the current vendor-side flags.
func (s *ConsoleSDK) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *ConsoleSDK) update(fn func(*Settings)) {
	s.mu.Lock()
	fn(&s.settings)
	s.mu.Unlock()
}

type consoleEventLogger struct {
	logger *zap.Logger
}

func (l *consoleEventLogger) LogEvent(name string) {
	l.logger.Info("App event", zap.String("event", name))
}

func (l *consoleEventLogger) LogEventWithParameters(name string, params *Parameters) {
	l.logger.Info("App event",
		zap.String("event", name),
		zap.Any("parameters", params))
}

func (l *consoleEventLogger) LogEventWithValue(name string, valueToSum float64, params *Parameters) {
	l.logger.Info("App event",
		zap.String("event", name),
		zap.Float64("valueToSum", valueToSum),
		zap.Any("parameters", params))
}

type consoleCallbackManager struct {
	logger *zap.Logger
}

func (m *consoleCallbackManager) OnActivityResult(requestCode, resultCode int, intent *protocol.Intent) bool {
	m.logger.Debug("Activity result received",
		zap.Int("requestCode", requestCode),
		zap.Int("resultCode", resultCode),
		zap.Bool("hasIntent", intent != nil))
	return false
}
