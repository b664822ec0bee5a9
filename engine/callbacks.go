package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
)

// CallbackType defines the pipeline points where callbacks run.
//
// Callbacks observe a turn without modifying core logic. Only
// CallbackBeforeModel can influence the flow: an error returned there fails
// generation exactly like a model error. Errors from every other callback
// are logged and ignored so optional hooks can never abort a turn.
type CallbackType string

const (
	// CallbackBeforeRetrieval runs when the retrieval phase starts.
	CallbackBeforeRetrieval CallbackType = "before_retrieval"

	// CallbackAfterRetrieval runs after retrieval; Err is set when it degraded.
	CallbackAfterRetrieval CallbackType = "after_retrieval"

	// CallbackBeforeModel runs once a generation slot was acquired.
	// Use for guardrails or rate limiting.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel runs after successful generation with the final content.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackOnError runs when generation fails.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnFinished runs after the finished event was delivered.
	CallbackOnFinished CallbackType = "on_finished"
)

// CallbackContext provides the information a callback may need.
type CallbackContext struct {
	InvocationID string
	ThreadID     string

	// Meta is the echoed request metadata; treat as read-only.
	Meta core.Metadata

	// Event is the event related to the callback, if any.
	Event *core.StreamEvent

	// Content is the generated answer (after_model, on_finished).
	Content string

	// Err is the failure being reported (after_retrieval, on_error).
	Err error

	// Duration of the phase that just ended.
	Duration time.Duration
}

// Callback defines the interface for pipeline hooks.
//
// Implementations should be fast: callbacks run synchronously on the
// invocation goroutine.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := engine.NewFunctionCallback(engine.CallbackAfterModel,
//	    func(ctx context.Context, cc *engine.CallbackContext) error {
//	        metrics.Observe(cc.Duration)
//	        return nil
//	    })
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager keeps callbacks per type and runs them in registration
// order. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs every callback of the given type sequentially and
// stops at the first error. A panicking callback is reported as an error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) (err error) {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback %s panicked: %v", callbackType, r)
		}
	}()

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback logs pipeline phases through a logging.Logger at debug level.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// NewPhaseLoggers returns one LoggingCallback per pipeline phase.
func NewPhaseLoggers(logger logging.Logger) []Callback {
	types := []CallbackType{
		CallbackBeforeRetrieval, CallbackAfterRetrieval,
		CallbackBeforeModel, CallbackAfterModel,
		CallbackOnError, CallbackOnFinished,
	}
	cbs := make([]Callback, 0, len(types))
	for _, typ := range types {
		cbs = append(cbs, NewLoggingCallback(typ, logger))
	}
	return cbs
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the phase with thread and invocation identity.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	args := []any{
		"callback", string(c.callbackType),
		"thread_id", callbackCtx.ThreadID,
		"invocation_id", callbackCtx.InvocationID,
	}
	if callbackCtx.Duration > 0 {
		args = append(args, "duration", callbackCtx.Duration)
	}
	if callbackCtx.Err != nil {
		args = append(args, "error", callbackCtx.Err)
	}
	c.logger.Debug("Pipeline phase", args...)
	return nil
}
