// Package engine implements the stream orchestrator of chatmesh.
//
// One call to Invoke runs a single conversational turn through the states
//
//	INIT -> (RETRIEVING) -> GENERATING -> PERSISTING -> (TITLING) -> DONE
//
// and reports progress as an ordered stream of core.StreamEvent values:
//
//	searching            retrieval requested (use_web, use_graph or db_id)
//	error                retrieval failed; the turn continues without context
//	generating           carries retrieved_docs when retrieval ran
//	reasoning*           accumulated reasoning text
//	loading*             the delta's own answer text
//	finished             full history and raw retrieval references
//	title_generating     new sessions with a non-empty answer only
//	title_generated      always follows title_generating
//
// A generation failure emits one error event and ends the stream; nothing of
// the partial answer is persisted. ERROR is reachable only from GENERATING.
//
// # Session handling
//
// Identity is resolved through a fail-soft session.Manager before Invoke
// returns. When the store is missing or failing, a random thread id is
// synthesized and the turn behaves identically except that nothing survives
// the process.
//
// # Concurrency
//
// Generation runs under a core.Throttle slot (default 20). Waiting turns are
// admitted in arrival order; none is rejected. The slot is released on every
// exit path, including cancellation. Retrieval and session calls are not
// throttled.
//
// Turns sharing a thread id are not serialized. Each append is atomic in the
// store, so concurrent turns may interleave but never lose or duplicate a
// message of their own.
//
// # Usage
//
//	eng := engine.New(
//	    engine.WithSessionStore(store),
//	    engine.WithModels(registry),
//	)
//
//	_, events, err := eng.Invoke(ctx, engine.Request{Query: "Hello"})
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    handle(ev)
//	}
package engine
