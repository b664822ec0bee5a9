package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/retrieval"
	"github.com/hupe1980/chatmesh/session"
)

// turn carries the state of one invocation through the pipeline
// INIT -> (RETRIEVING) -> GENERATING -> PERSISTING -> (TITLING) -> DONE.
type turn struct {
	engine       *Engine
	invocationID string
	query        string
	meta         core.Metadata
	model        model.Model
	res          session.Resolution
	out          chan<- core.StreamEvent
	logger       logging.Logger
}

func (t *turn) run(ctx context.Context) {
	e := t.engine
	history := core.NewHistory(t.res.History, t.meta.SystemPrompt())

	outcome := core.RetrievalOutcome{Query: t.query}
	retrieved := false

	if t.meta.NeedsRetrieval() {
		if !t.emit(ctx, t.event(core.StatusSearching)) {
			return
		}
		outcome = t.retrieve(ctx, history)
		retrieved = true
		if outcome.Err != nil {
			t.logger.Warn("Retrieval failed, continuing without context", "error", outcome.Err)
			ev := t.event(core.StatusError)
			ev.Message = fmt.Sprintf("Retriever error: %v", outcome.Err)
			if !t.emit(ctx, ev) {
				return
			}
		}
	}

	gen := t.event(core.StatusGenerating)
	if retrieved {
		gen.RetrievedDocs = outcome.Items
	}
	if !t.emit(ctx, gen) {
		return
	}

	messages := history.View(outcome.Query, t.meta.HistoryRound())
	history.AddUser(t.query)
	e.sessions.AppendMessage(ctx, t.res, core.RoleUser, t.query)

	content, ok := t.generate(ctx, messages)
	if !ok {
		return
	}

	history.AddAssistant(content)
	e.sessions.AppendMessage(ctx, t.res, core.RoleAssistant, content)

	fin := t.event(core.StatusFinished)
	fin.History = history.Messages()
	fin.Refs = outcome.Refs
	if !t.emit(ctx, fin) {
		return
	}
	t.callback(ctx, CallbackOnFinished, &CallbackContext{Event: &fin, Content: content})

	if t.res.IsNew && t.query != "" && content != "" {
		t.title(ctx, content)
	}
}

func (t *turn) retrieve(ctx context.Context, history *core.History) core.RetrievalOutcome {
	t.callback(ctx, CallbackBeforeRetrieval, &CallbackContext{})
	start := time.Now()
	outcome := retrieval.Run(ctx, t.engine.retriever, t.query, history.Messages(), t.meta)
	t.logger.Debug("Retrieval finished", "items", len(outcome.Items), "duration", time.Since(start))
	t.callback(ctx, CallbackAfterRetrieval, &CallbackContext{
		Err:      outcome.Err,
		Duration: time.Since(start),
	})
	return outcome
}

// generate streams the model output under a throttle slot. ok is false when
// generation failed (an error event was emitted) or the invocation was
// cancelled; in both cases nothing is persisted.
func (t *turn) generate(ctx context.Context, messages []core.Message) (string, bool) {
	release, err := t.engine.throttle.Acquire(ctx)
	if err != nil {
		t.logger.Debug("Invocation cancelled while waiting for a generation slot", "error", err)
		return "", false
	}
	defer release()

	if err := t.engine.callbacks.ExecuteCallbacks(ctx, CallbackBeforeModel, t.callbackContext(&CallbackContext{})); err != nil {
		return "", t.fail(ctx, err, 0, time.Duration(0))
	}

	start := time.Now()
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	deltas, errs := t.model.Generate(genCtx, model.Request{Messages: messages, Stream: true})

	var content, reasoning strings.Builder
	n := 0

loop:
	for {
		select {
		case <-ctx.Done():
			return "", false
		case d, ok := <-deltas:
			if !ok {
				break loop
			}
			n++

			if d.ReasoningContent != "" {
				reasoning.WriteString(d.ReasoningContent)
				ev := t.event(core.StatusReasoning)
				ev.ReasoningContent = reasoning.String()
				if !t.emit(ctx, ev) {
					return "", false
				}
				if d.Content == "" {
					continue
				}
			}

			if d.IsFull {
				content.Reset()
			}
			content.WriteString(d.Content)

			if d.Content != "" {
				ev := t.event(core.StatusLoading)
				text := d.Content
				ev.Response = &text
				if !t.emit(ctx, ev) {
					return "", false
				}
			}
		}
	}

	var genErr error
	select {
	case <-ctx.Done():
		return "", false
	case genErr = <-errs:
	}
	if genErr != nil {
		if ctx.Err() != nil {
			return "", false
		}
		return "", t.fail(ctx, genErr, n, time.Since(start))
	}

	t.logModelCall(n, time.Since(start), nil)
	t.callback(ctx, CallbackAfterModel, &CallbackContext{Content: content.String(), Duration: time.Since(start)})
	return content.String(), true
}

// fail reports a generation failure; it always returns false.
func (t *turn) fail(ctx context.Context, err error, deltas int, dur time.Duration) bool {
	t.logModelCall(deltas, dur, err)
	ev := t.event(core.StatusError)
	ev.Message = fmt.Sprintf("Model error: %v", err)
	t.callback(ctx, CallbackOnError, &CallbackContext{Err: err, Event: &ev})
	t.emit(ctx, ev)
	return false
}

func (t *turn) title(ctx context.Context, content string) {
	if !t.emit(ctx, t.event(core.StatusTitleGenerating)) {
		return
	}

	title := t.engine.synthesizeTitle(ctx, t.model, t.query, content, t.logger)
	t.engine.sessions.SetTitle(ctx, t.res, title)

	ev := t.event(core.StatusTitleGenerated)
	ev.Title = title
	t.emit(ctx, ev)
}

// event builds an event bound to the turn's thread id and echoed metadata.
func (t *turn) event(status core.Status) core.StreamEvent {
	return core.NewStreamEvent(status, t.res.ThreadID, t.meta)
}

// emit delivers ev unless the invocation was cancelled. It returns false
// once the consumer is gone so the pipeline can stop.
func (t *turn) emit(ctx context.Context, ev core.StreamEvent) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case t.out <- ev:
		return true
	}
}

func (t *turn) callbackContext(cc *CallbackContext) *CallbackContext {
	cc.InvocationID = t.invocationID
	cc.ThreadID = t.res.ThreadID
	cc.Meta = t.meta
	return cc
}

// callback runs observational callbacks; failures are logged only.
func (t *turn) callback(ctx context.Context, typ CallbackType, cc *CallbackContext) {
	if err := t.engine.callbacks.ExecuteCallbacks(ctx, typ, t.callbackContext(cc)); err != nil {
		t.logger.Warn("Callback failed", "callback", string(typ), "error", err)
	}
}

func (t *turn) logModelCall(deltas int, dur time.Duration, err error) {
	if cl, ok := t.logger.(*logging.ChatLogger); ok {
		cl.LogModelCall(t.model.Info().Name, deltas, dur, err)
		return
	}
	if err != nil {
		t.logger.Error("Model call failed", "model", t.model.Info().Name, "deltas", deltas, "error", err)
		return
	}
	t.logger.Debug("Model call finished", "model", t.model.Info().Name, "deltas", deltas, "duration", dur)
}
