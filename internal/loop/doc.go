// Package loop implements the single owning execution context of blocksync.
//
// ARCHITECTURE:
//
// Single-Writer Task Loop:
// All backend state is mutated by tasks running one at a time on the loop.
// Remote calls never run on the loop; they are submitted as work, run on a
// worker goroutine, and their completion is posted back as a task. This gives:
//   - No locks around component state
//   - A host that never blocks on the network
//   - Completions applied in arrival order
//
// Driving the loop:
//   - Run(ctx) blocks and serves tasks until cancelled or stopped.
//   - Flush() runs queued tasks on the calling goroutine, for hosts that
//     already own a frame loop and for tests.
//   - RunUntil(ctx, cond) serves tasks until cond holds, evaluating cond on
//     the loop.
//
// Inline mode (WithInlineWork) runs submitted work synchronously on the
// submitting goroutine. Completions are still queued, never applied inline,
// so "in flight" is observable until the next Flush.
package loop
