// Package sdk defines the boundary to the vendor app-events SDK.
// The bridge only ever talks to the vendor through these interfaces; the
// vendor's own storage and network transmission live behind them.
package sdk

import (
	"github.com/zlc_ai/appevents-bridge/internal/protocol"
)

// AppContext identifies the host application the SDK is bound to.
type AppContext interface {
	// PackageName is the application package, used to resolve resources.
	PackageName() string
	// ApplicationID is the vendor application identifier.
	ApplicationID() string
}

// SDK is the set of vendor operations the bridge consumes.
type SDK interface {
	// NewCallbackManager creates the handle that receives activity results.
	NewCallbackManager() CallbackManager

	// NewLogger creates an event logger bound to the application context.
	NewLogger(app AppContext) EventLogger

	// ActivateApp signals that the application came to the foreground.
	ActivateApp(app AppContext)

	// DeactivateApp signals that the application went to the background.
	DeactivateApp(app AppContext)

	// SetMixedAudience marks the audience as possibly containing children.
	SetMixedAudience(enabled bool)

	// SetAutoLogAppEventsEnabled toggles automatic app event logging.
	SetAutoLogAppEventsEnabled(enabled bool)

	// SetAdvertiserIDCollectionEnabled toggles advertiser ID collection.
	SetAdvertiserIDCollectionEnabled(enabled bool)

	// SetAutoInitEnabled toggles automatic SDK initialization.
	SetAutoInitEnabled(enabled bool)

	// FullyInitialize forces complete SDK initialization.
	FullyInitialize()

	// AugmentWebView instruments a web view for hybrid app events.
	AugmentWebView(view interface{}, app AppContext) error
}

// EventLogger logs app events.
type EventLogger interface {
	LogEvent(name string)
	LogEventWithParameters(name string, params *Parameters)
	LogEventWithValue(name string, valueToSum float64, params *Parameters)
}

// CallbackManager receives activity results on behalf of vendor dialogs.
type CallbackManager interface {
	// OnActivityResult reports whether the result belonged to the vendor.
	OnActivityResult(requestCode, resultCode int, intent *protocol.Intent) bool
}
