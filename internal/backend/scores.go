package backend

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/blocksync/internal/remote"
)

// MaxScoreAge is the age after which a queued score is discarded unsent.
const MaxScoreAge = 4 * time.Hour

// ScoreQueue holds finished games until the service accepts them.
//
// Thread-safety: all methods are safe from any goroutine. Completions of the
// submit call run on the loop.
//
// INVARIANTS:
//   - At most one score is in flight
//   - A failed score goes back to the tail of the queue, so newer scores can
//     overtake it
//   - The persisted queue always includes the in-flight score
type ScoreQueue struct {
	env    *env
	log    *logrus.Entry
	boards *Scoreboards

	mu      sync.Mutex
	queue   []*remote.Score
	sending *remote.Score
}

func newScoreQueue(e *env, boards *Scoreboards) *ScoreQueue {
	return &ScoreQueue{
		env:    e,
		log:    e.logger("scores"),
		boards: boards,
	}
}

// load restores the persisted queue.
func (q *ScoreQueue) load(ctx context.Context) error {
	scores, err := q.env.settings.PendingScores(ctx)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.queue = scores
	q.mu.Unlock()
	if len(scores) > 0 {
		q.log.WithField("count", len(scores)).Info("restored pending scores")
	}
	return nil
}

// Enqueue adds score to the queue and starts draining.
//
// Scores for a mode without scoreboard, or with a SortValue of zero or less,
// are dropped silently.
func (q *ScoreQueue) Enqueue(score *remote.Score) {
	if score == nil || score.SortValue <= 0 || !HasScoreboard(score.GameMode) {
		return
	}

	q.mu.Lock()
	score.GainedAt = q.env.now()
	q.queue = append(q.queue, score)
	q.persistLocked()
	q.mu.Unlock()

	q.Drain()
}

// Drain discards expired head entries and submits the next score if none is
// in flight and an identity is set.
func (q *ScoreQueue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.env.now()
	dropped := 0
	for len(q.queue) > 0 && now.Sub(q.queue[0].GainedAt) > MaxScoreAge {
		q.queue[0] = nil
		q.queue = q.queue[1:]
		dropped++
	}
	if dropped > 0 {
		q.log.WithField("count", dropped).Info("discarded expired scores")
		q.persistLocked()
	}

	if q.sending != nil || len(q.queue) == 0 || !q.env.hasUserID() {
		return
	}

	score := q.queue[0]
	q.queue[0] = nil
	q.queue = q.queue[1:]
	q.sending = score

	dispatch(q.env, q.log, "postScore",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, q.env.client.PostScore(ctx, score)
		},
		func(_ struct{}, err error) {
			q.submitted(score, err)
		})
}

// submitted runs on the loop when the submit call completed.
func (q *ScoreQueue) submitted(score *remote.Score, err error) {
	if err != nil {
		q.mu.Lock()
		q.queue = append(q.queue, score)
		q.sending = nil
		q.persistLocked()
		q.mu.Unlock()

		q.log.WithFields(logrus.Fields{
			"mode":   score.GameMode,
			"status": remote.StatusOf(err),
		}).Info("score requeued")
		return
	}

	q.boards.Invalidate(score.GameMode)

	q.mu.Lock()
	q.sending = nil
	q.persistLocked()
	q.mu.Unlock()

	q.log.WithFields(logrus.Fields{
		"mode":       score.GameMode,
		"sort_value": score.SortValue,
	}).Info("score accepted")

	q.Drain()
}

// persistLocked writes the queue to settings. Caller holds q.mu.
func (q *ScoreQueue) persistLocked() {
	snapshot := make([]*remote.Score, 0, len(q.queue)+1)
	if q.sending != nil {
		snapshot = append(snapshot, q.sending)
	}
	snapshot = append(snapshot, q.queue...)

	if err := q.env.settings.SavePendingScores(context.Background(), snapshot); err != nil {
		q.log.WithError(err).Error("persist pending scores")
	}
}

// IsSending reports whether a score is in flight.
func (q *ScoreQueue) IsSending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sending != nil
}

// HasEnqueued reports whether a score is queued or in flight.
func (q *ScoreQueue) HasEnqueued() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sending != nil || len(q.queue) > 0
}

// Len returns the number of queued scores, not counting the one in flight.
func (q *ScoreQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Queued returns the queued scores in submission order.
func (q *ScoreQueue) Queued() []*remote.Score {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*remote.Score, len(q.queue))
	copy(out, q.queue)
	return out
}

// Sending returns the score in flight, or nil.
func (q *ScoreQueue) Sending() *remote.Score {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sending
}
