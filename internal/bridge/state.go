package bridge

import (
	"sync"

	"github.com/zlc_ai/appevents-bridge/internal/sdk"
)

// State is the child-user gate owned by one bridge instance.
// sdkInitialized only ever moves from false to true.
type State struct {
	mu             sync.RWMutex
	isChild        bool
	sdkInitialized bool
}

// NewState returns the initial state: child until told otherwise.
func NewState() *State {
	return &State{isChild: true}
}

// IsChild reports whether the user is currently flagged as a child.
func (s *State) IsChild() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isChild
}

// SDKInitialized reports whether the vendor SDK has been fully initialized.
func (s *State) SDKInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sdkInitialized
}

// setChild stores the flag and applies the matching vendor policy. The lock is
// held across the vendor calls so concurrent toggles cannot both initialize.
// It reports whether this call performed the full initialization.
func (s *State) setChild(child bool, vendor sdk.SDK) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isChild = child
	vendor.SetMixedAudience(child)
	vendor.SetAutoLogAppEventsEnabled(!child)
	vendor.SetAdvertiserIDCollectionEnabled(!child)

	if !child && !s.sdkInitialized {
		vendor.SetAutoInitEnabled(true)
		vendor.FullyInitialize()
		s.sdkInitialized = true
		return true
	}

	vendor.SetAutoInitEnabled(!child)
	return false
}
