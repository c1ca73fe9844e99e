// Package backend keeps local game state in sync with the remote service.
//
// Components:
//   - ScoreQueue: ordered pending scores with a single in-flight slot
//   - Scoreboards: per (mode, ranking) read-through caches with expiry
//   - Matches: the sorted list of turn-based matches and its refresh
//   - TurnUploader: the one persisted move waiting for upload
//   - Session: the periodic welcome handshake
//   - ServerList: multiplayer server addresses
//
// Manager wires them around one handle. There are no globals.
//
// Concurrency: all component state is owned by a loop.Loop. Methods must be
// called on the loop (from a posted task, or from the goroutine that runs
// Flush/RunUntil), except ScoreQueue, which is guarded by its own mutex.
// Remote calls run off the loop and their completions are posted back before
// they touch state. In-flight calls are never cancelled; late completions are
// applied unconditionally.
//
// Errors from remote calls are recorded by the component that issued them
// (last error message and connectivity flag) and are not returned to callers.
// The one exception is ErrTurnConflict, raised by panic.
package backend
