// Package protocol defines the data structures exchanged across the script bridge.
// A script context sends exec requests naming a service and an action; the host
// answers each request with at most one plugin result.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome carried by a PluginResult.
type Status string

const (
	StatusOK            Status = "OK"
	StatusClassNotFound Status = "CLASS_NOT_FOUND"
	StatusInvalidAction Status = "INVALID_ACTION"
	StatusJSONException Status = "JSON_EXCEPTION"
	StatusError         Status = "ERROR"
)

// ExecRequest is a single command sent from the script context.
type ExecRequest struct {
	// CallbackID correlates the request with its result.
	CallbackID string `json:"callbackId"`
	// Service is the plugin the command is addressed to.
	Service string `json:"service"`
	// Action is the plugin-specific command name.
	Action string `json:"action"`
	// Args holds the positional, loosely-typed arguments.
	Args []json.RawMessage `json:"args"`
}

// NewExecRequest creates a request with a generated callback ID.
// Each argument is marshalled to JSON; arguments that cannot be marshalled
// are sent as null.
func NewExecRequest(service, action string, args ...interface{}) *ExecRequest {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			data = []byte("null")
		}
		raw = append(raw, data)
	}
	return &ExecRequest{
		CallbackID: uuid.New().String(),
		Service:    service,
		Action:     action,
		Args:       raw,
	}
}

// Normalize fills in a callback ID when the caller did not supply one.
func (r *ExecRequest) Normalize() {
	if r.CallbackID == "" {
		r.CallbackID = uuid.New().String()
	}
	if r.Args == nil {
		r.Args = []json.RawMessage{}
	}
}

// PluginResult is the answer to an ExecRequest.
type PluginResult struct {
	// CallbackID is the ID of the request this result answers.
	CallbackID string `json:"callbackId"`
	// Status is the result status.
	Status Status `json:"status"`
	// Message is the human-readable error text for failed results.
	Message string `json:"message,omitempty"`
	// Timestamp is the Unix timestamp in milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// NewPluginResult creates a result stamped with the current time.
func NewPluginResult(callbackID string, status Status, message string) *PluginResult {
	return &PluginResult{
		CallbackID: callbackID,
		Status:     status,
		Message:    message,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// OK reports whether the result signals success.
func (r *PluginResult) OK() bool {
	return r.Status == StatusOK
}

// ResultHandler receives results produced for an ExecRequest.
type ResultHandler func(result *PluginResult)

// Intent is the opaque payload that accompanies an activity result.
type Intent struct {
	Action string                 `json:"action,omitempty"`
	Data   string                 `json:"data,omitempty"`
	Extras map[string]interface{} `json:"extras,omitempty"`
}

// ActivityResult is delivered by the native side when a started activity returns.
type ActivityResult struct {
	RequestCode int     `json:"requestCode"`
	ResultCode  int     `json:"resultCode"`
	Intent      *Intent `json:"intent,omitempty"`
}

// LifecycleEventType names a foreground/background transition.
type LifecycleEventType string

const (
	LifecycleResume LifecycleEventType = "resume"
	LifecyclePause  LifecycleEventType = "pause"
)

// LifecycleEvent is delivered by the native side on app transitions.
type LifecycleEvent struct {
	Event        LifecycleEventType `json:"event"`
	Multitasking bool               `json:"multitasking"`
}

// BridgeError represents a structured error returned by the bridge endpoints.
type BridgeError struct {
	// Code is the error code.
	Code string `json:"code"`
	// Message is the human-readable error message.
	Message string `json:"message"`
	// TraceID is the trace identifier for debugging.
	TraceID string `json:"traceId,omitempty"`
}

// Error codes
const (
	ErrCodeProtocolError = "PROTOCOL_ERROR"
	ErrCodeHostError     = "HOST_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
)

// NewBridgeError creates a new bridge error with a fresh trace ID.
func NewBridgeError(code, message string) *BridgeError {
	return &BridgeError{
		Code:    code,
		Message: message,
		TraceID: uuid.New().String(),
	}
}

func (e *BridgeError) Error() string {
	return e.Message
}
