package host

import (
	"fmt"
	"sync"

	"github.com/zlc_ai/appevents-bridge/internal/plugin"
)

// Application is the host application context handed to plugins.
type Application struct {
	packageName   string
	applicationID string
}

// NewApplication creates an application context.
func NewApplication(packageName, applicationID string) *Application {
	return &Application{packageName: packageName, applicationID: applicationID}
}

func (a *Application) PackageName() string   { return a.packageName }
func (a *Application) ApplicationID() string { return a.applicationID }

// MapResources serves boolean resources from an in-memory table.
type MapResources struct {
	mu    sync.RWMutex
	bools map[string]bool
}

// NewMapResources copies bools into a resource table.
func NewMapResources(bools map[string]bool) *MapResources {
	r := &MapResources{bools: make(map[string]bool, len(bools))}
	for k, v := range bools {
		r.bools[k] = v
	}
	return r
}

func (r *MapResources) Bool(name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.bools[name]
	if !ok {
		return false, fmt.Errorf("bool resource %q: %w", name, plugin.ErrResourceNotFound)
	}
	return v, nil
}

// SetBool adds or replaces a boolean resource.
func (r *MapResources) SetBool(name string, value bool) {
	r.mu.Lock()
	r.bools[name] = value
	r.mu.Unlock()
}

// Surface is the web view handle exposed to plugins.
type Surface struct {
	id string

	mu    sync.RWMutex
	ready bool
}

// ViewHandle is the native view handle returned by a ready Surface.
type ViewHandle struct {
	ID string `json:"id"`
}

// NewSurface creates a web view handle.
func NewSurface(id string, ready bool) *Surface {
	return &Surface{id: id, ready: ready}
}

// View returns the native handle once the surface is ready.
func (s *Surface) View() (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, fmt.Errorf("surface %q: %w", s.id, plugin.ErrViewNotReady)
	}
	return ViewHandle{ID: s.id}, nil
}

// SetReady marks the surface as attached or detached.
func (s *Surface) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// Ready reports whether the surface is attached.
func (s *Surface) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}
