// Package chatmesh is the top-level facade for running conversational turns:
// it wires a session store, an optional retriever and a model registry into
// an engine and exposes streaming and synchronous entry points.
//
//	mesh := chatmesh.New(func(o *chatmesh.Options) {
//	    o.Models = registry
//	})
//	_, events, err := mesh.Chat(ctx, chatmesh.Request{Query: "Hello"})
package chatmesh

import (
	"context"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/engine"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/retrieval"
	"github.com/hupe1980/chatmesh/session"
)

// Request is one conversational turn.
type Request = engine.Request

// Options configures a ChatMesh.
type Options struct {
	// Engine configuration (concurrency, buffers)
	EngineConfig engine.Config

	// SessionStore persists conversations. Set to nil for ephemeral-only
	// operation. Defaults to an in-memory store.
	SessionStore core.SessionStore

	// Retriever enriches queries. When nil and KnowledgeStore is set, a
	// retrieval.KnowledgeRetriever over it is used.
	Retriever      core.Retriever
	KnowledgeStore core.KnowledgeStore

	// Models selects generation models. Defaults to a mock-backed registry.
	Models *model.Registry

	// Throttle shares an admission gate across meshes (optional).
	Throttle *core.Throttle

	// Callbacks observe pipeline phases.
	Callbacks []engine.Callback

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// ChatMesh aggregates the engine and its session layer.
type ChatMesh struct {
	opts   Options
	engine *engine.Engine
}

// New creates a ChatMesh with in-memory defaults.
func New(optFns ...func(o *Options)) *ChatMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Retriever == nil && opts.KnowledgeStore != nil {
		opts.Retriever = retrieval.NewKnowledgeRetriever(opts.KnowledgeStore)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.Retriever = opts.Retriever
		o.Models = opts.Models
		o.Throttle = opts.Throttle
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})

	return &ChatMesh{opts: opts, engine: e}
}

// Engine returns the underlying engine.
func (m *ChatMesh) Engine() *engine.Engine { return m.engine }

// Models returns the model registry in use.
func (m *ChatMesh) Models() *model.Registry { return m.engine.Models() }

// Chat starts a turn and returns its invocation id and event stream.
func (m *ChatMesh) Chat(ctx context.Context, req Request) (string, <-chan core.StreamEvent, error) {
	return m.engine.Invoke(ctx, req)
}

// ChatSync runs a turn to completion and returns every event.
func (m *ChatMesh) ChatSync(ctx context.Context, req Request) ([]core.StreamEvent, error) {
	return m.engine.InvokeSync(ctx, req)
}

// Stop cancels a running turn.
func (m *ChatMesh) Stop(invocationID string) error { return m.engine.Stop(invocationID) }

// Call performs a direct non-streaming model call.
func (m *ChatMesh) Call(ctx context.Context, query string, meta core.Metadata) (string, error) {
	return m.engine.Call(ctx, query, meta)
}

// GetSession returns a stored session. Errors wrap core.ErrStoreUnavailable
// or core.ErrSessionNotFound.
func (m *ChatMesh) GetSession(ctx context.Context, threadID string) (*core.Session, error) {
	return m.engine.Sessions().Fetch(ctx, threadID)
}

// DeleteSession removes a stored session. Errors are classified like GetSession.
func (m *ChatMesh) DeleteSession(ctx context.Context, threadID string) error {
	return m.engine.Sessions().Remove(ctx, threadID)
}
