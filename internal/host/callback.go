package host

import (
	"sync"

	"github.com/zlc_ai/appevents-bridge/internal/protocol"
)

// callbackContext delivers at most one result for a request.
type callbackContext struct {
	id      string
	deliver protocol.ResultHandler
	metrics *Metrics

	once     sync.Once
	mu       sync.RWMutex
	finished bool
}

func newCallbackContext(id string, deliver protocol.ResultHandler, metrics *Metrics) *callbackContext {
	return &callbackContext{id: id, deliver: deliver, metrics: metrics}
}

func (c *callbackContext) CallbackID() string {
	return c.id
}

func (c *callbackContext) Success() {
	c.send(protocol.StatusOK, "")
}

func (c *callbackContext) Error(message string) {
	c.send(protocol.StatusError, message)
}

// fail delivers a host-generated status unless a result was already sent.
func (c *callbackContext) fail(status protocol.Status, message string) {
	c.send(status, message)
}

func (c *callbackContext) Finished() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finished
}

func (c *callbackContext) send(status protocol.Status, message string) {
	c.once.Do(func() {
		c.mu.Lock()
		c.finished = true
		c.mu.Unlock()

		c.metrics.result(status)
		if c.deliver != nil {
			c.deliver(protocol.NewPluginResult(c.id, status, message))
		}
	})
}
