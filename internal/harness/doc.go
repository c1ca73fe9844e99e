// Package harness runs end-to-end scenarios against the sync engine.
//
// A scenario drives a backend.Manager on an inline loop with a scripted
// remote client, a fake clock and an in-memory store, records a trace of
// steps, remote calls and callback outcomes, and checks assertions on the
// trace and the final state.
//
// # Scenario Format
//
//	name: score_retry_order
//	description: "A failed score is retried after newer ones"
//	credentials: { user_id: p1, secret: s }
//	replies:
//	  postScore:
//	    - status: 503
//	steps:
//	  - do: enqueue_score
//	    args: { mode: marathon, sort_value: 500 }
//	  - do: flush
//	assertions:
//	  - type: call_order
//	    calls: ["postScore(marathon/500)"]
//	  - type: queue
//	    scores: ["marathon/500"]
//
// # Assertion Types
//
//   - call_order: calls appear in the given order (others may interleave)
//   - call_count: an operation was called exactly N times
//   - queue: the queued scores, as "mode/sort_value", in order
//   - matches: the match list ids, in order
//   - turn: the match id of the pending turn ("" for none)
//   - status: a subset of the Manager status fields
//
// # Golden Traces
//
// RunWithGolden compares the trace and final state with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
