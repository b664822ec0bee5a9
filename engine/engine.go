package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/session"
)

// Config defines tuning parameters for the Engine's operational behavior.
//
// Additional concerns such as timeouts should be configured at the boundary
// (request context) rather than expanding this struct.
type Config struct {
	// MaxConcurrentChats bounds the number of turns generating at once.
	// Turns beyond the limit wait in arrival order. Ignored when a shared
	// Throttle is passed via Options.
	MaxConcurrentChats int

	// EventBufferSize sets the channel buffer size of each event stream.
	// Larger buffers decouple slow consumers from generation at the cost of
	// memory.
	EventBufferSize int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	MaxConcurrentChats: core.DefaultMaxConcurrentChats,
	EventBufferSize:    64,
}

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng := engine.New(
//	    engine.WithSessionStore(redisStore),
//	    engine.WithRetriever(retriever),
//	    engine.WithModels(registry),
//	)
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// SessionStore persists conversations. A nil store makes every turn
	// ephemeral. Defaults to the in-memory implementation.
	SessionStore core.SessionStore

	// Retriever enriches queries that request retrieval. Optional.
	Retriever core.Retriever

	// Models selects the generation model per request. Defaults to a
	// registry whose default model is a MockModel.
	Models *model.Registry

	// Throttle is the admission gate for generation. Share one Throttle
	// between engines to enforce a process-wide cap.
	Throttle *core.Throttle

	// TitlePrompt overrides the text/template used for title synthesis.
	// The template receives .query and .response.
	TitlePrompt string

	// Callbacks observe the pipeline phases.
	Callbacks []Callback

	// Logger provides structured logging. Defaults to a NoOp logger.
	Logger logging.Logger
}

// WithSessionStore sets the session store; nil disables persistence.
func WithSessionStore(store core.SessionStore) func(o *Options) {
	return func(o *Options) { o.SessionStore = store }
}

// WithRetriever sets the retrieval backend.
func WithRetriever(r core.Retriever) func(o *Options) {
	return func(o *Options) { o.Retriever = r }
}

// WithModels sets the model registry.
func WithModels(r *model.Registry) func(o *Options) {
	return func(o *Options) { o.Models = r }
}

// WithThrottle shares an admission gate.
func WithThrottle(t *core.Throttle) func(o *Options) {
	return func(o *Options) { o.Throttle = t }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithEventBuffer sets the per-stream channel buffer.
func WithEventBuffer(n int) func(o *Options) {
	return func(o *Options) { o.Config.EventBufferSize = n }
}

// WithCallback registers a pipeline callback.
func WithCallback(cb Callback) func(o *Options) {
	return func(o *Options) { o.Callbacks = append(o.Callbacks, cb) }
}

// Request is one conversational turn submitted to the engine.
type Request struct {
	Query string `json:"query"`
	// Meta carries the recognized keys (use_web, use_graph, db_id,
	// history_round, system_prompt, model_provider, model_name) and is
	// echoed on every event.
	Meta core.Metadata `json:"meta,omitempty"`
	// History overrides the persisted history when non-empty.
	History []core.Message `json:"history,omitempty"`
	// ThreadID continues an existing conversation when set.
	ThreadID string `json:"thread_id,omitempty"`
}

// Engine orchestrates conversational turns: retrieval, generation under the
// concurrency throttle, best-effort persistence and title synthesis.
//
// Concurrency Model:
//   - One goroutine per invocation drives the whole pipeline
//   - Every event send observes the invocation context; after cancellation
//     nothing more is emitted
//   - Turns on the same thread id are not serialized; each store append is
//     atomic so a turn never loses or duplicates its own messages
//
// Error Handling:
//   - Retrieval, store and title failures degrade silently (one error event
//     for retrieval, nothing for the others)
//   - Generation failures end the stream with an error event and no
//     finished event
type Engine struct {
	sessions    *session.Manager
	retriever   core.Retriever
	models      *model.Registry
	throttle    *core.Throttle
	callbacks   *CallbackManager
	titlePrompt string
	logger      logging.Logger

	config Config

	// Active invocation tracking
	activeInvocations map[string]context.CancelFunc
	invocationsMu     sync.RWMutex
}

// New creates a new Engine with in-memory defaults.
//
// The Engine does not take ownership of provided services; callers remain
// responsible for closing stores they created.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
		TitlePrompt:  DefaultTitlePrompt,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Models == nil {
		opts.Models = model.NewRegistry(model.NewMockModel("mock", "mock"))
	}
	if opts.Throttle == nil {
		opts.Throttle = core.NewThrottle(opts.Config.MaxConcurrentChats)
	}
	if opts.Config.EventBufferSize < 0 {
		opts.Config.EventBufferSize = 0
	}
	if opts.TitlePrompt == "" {
		opts.TitlePrompt = DefaultTitlePrompt
	}

	callbacks := NewCallbackManager()
	for _, cb := range opts.Callbacks {
		callbacks.RegisterCallback(cb)
	}

	return &Engine{
		sessions: session.NewManager(opts.SessionStore, func(o *session.ManagerOptions) {
			o.Logger = opts.Logger
		}),
		retriever:         opts.Retriever,
		models:            opts.Models,
		throttle:          opts.Throttle,
		callbacks:         callbacks,
		titlePrompt:       opts.TitlePrompt,
		logger:            opts.Logger,
		config:            opts.Config,
		activeInvocations: make(map[string]context.CancelFunc),
	}
}

// Sessions exposes the fail-soft session layer (fetch/remove for boundaries).
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Models exposes the model registry.
func (e *Engine) Models() *model.Registry { return e.models }

// Throttle exposes the admission gate.
func (e *Engine) Throttle() *core.Throttle { return e.throttle }

// Invoke starts a turn and returns its event stream.
//
// Session identity is resolved before Invoke returns, so every event carries
// the same thread id. The channel is closed when the pipeline ends; it is
// finite and cannot be restarted. An immediate error is returned only when
// the requested model cannot be selected.
//
// Cancelling ctx (or calling Stop) stops the pipeline at its next suspension
// point without emitting further events.
func (e *Engine) Invoke(ctx context.Context, req Request) (string, <-chan core.StreamEvent, error) {
	meta := req.Meta.Clone()
	m, err := e.models.Select(meta.ModelProvider(), meta.ModelName())
	if err != nil {
		return "", nil, fmt.Errorf("select model: %w", err)
	}
	meta[core.MetaServerModelName] = m.Info().Name

	res := e.sessions.Resolve(ctx, req.ThreadID, req.History, meta.SystemPrompt())

	invocationID := core.NewID()
	eventsCh := make(chan core.StreamEvent, e.config.EventBufferSize)

	invocationCtx, cancel := context.WithCancel(ctx)

	e.invocationsMu.Lock()
	e.activeInvocations[invocationID] = cancel
	e.invocationsMu.Unlock()

	t := &turn{
		engine:       e,
		invocationID: invocationID,
		query:        req.Query,
		meta:         meta,
		model:        m,
		res:          res,
		out:          eventsCh,
		logger:       e.scopedLogger(res.ThreadID, invocationID),
	}

	go func() {
		defer func() {
			cancel()
			e.invocationsMu.Lock()
			delete(e.activeInvocations, invocationID)
			e.invocationsMu.Unlock()
			close(eventsCh)
		}()

		t.run(invocationCtx)
	}()

	return invocationID, eventsCh, nil
}

// InvokeSync runs a turn to completion and returns all emitted events. The
// returned error is non-nil when the invocation could not start, the context
// ended early, or the turn failed (last event has status error).
func (e *Engine) InvokeSync(ctx context.Context, req Request) ([]core.StreamEvent, error) {
	_, eventsCh, err := e.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	var events []core.StreamEvent
	for {
		select {
		case <-ctx.Done():
			// the pipeline observes the same context and exits on its own
			return events, ctx.Err()
		case ev, ok := <-eventsCh:
			if !ok {
				if n := len(events); n > 0 && events[n-1].Status == core.StatusError {
					return events, fmt.Errorf("turn failed: %s", events[n-1].Message)
				}
				return events, nil
			}
			events = append(events, ev)
		}
	}
}

// Stop cancels a running invocation by id.
func (e *Engine) Stop(invocationID string) error {
	e.invocationsMu.RLock()
	cancel, exists := e.activeInvocations[invocationID]
	e.invocationsMu.RUnlock()

	if !exists {
		return fmt.Errorf("invocation %s not found", invocationID)
	}

	cancel()
	return nil
}

// ActiveInvocations reports the number of running invocations.
func (e *Engine) ActiveInvocations() int {
	e.invocationsMu.RLock()
	defer e.invocationsMu.RUnlock()
	return len(e.activeInvocations)
}

// Call performs a direct non-streaming model call honoring the
// model_provider / model_name metadata keys.
func (e *Engine) Call(ctx context.Context, query string, meta core.Metadata) (string, error) {
	m, err := e.models.Select(meta.ModelProvider(), meta.ModelName())
	if err != nil {
		return "", fmt.Errorf("select model: %w", err)
	}
	if cl, ok := e.logger.(*logging.ChatLogger); ok {
		defer cl.WithComponent("engine").StartTimer("direct_call")()
	}

	text, err := model.Complete(ctx, m, []core.Message{core.NewUserMessage(query)})
	if err != nil {
		e.logger.Error("Model prediction error", "model", m.Info().Name, "error", err)
		return "", fmt.Errorf("model prediction failed: %w", err)
	}
	return text, nil
}

func (e *Engine) scopedLogger(threadID, invocationID string) logging.Logger {
	if cl, ok := e.logger.(*logging.ChatLogger); ok {
		return cl.WithComponent("engine").WithSession(threadID, invocationID)
	}
	return e.logger
}
