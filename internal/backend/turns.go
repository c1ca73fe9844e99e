package backend

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/roach88/blocksync/internal/remote"
)

// ErrTurnConflict is the panic value of QueueAndUpload when a different turn
// is still queued. Only one turn can be pending at a time, so this is always
// a programming error.
var ErrTurnConflict = errors.New("backend: another turn is still queued for upload")

// TurnUploader persists and uploads the one pending move. Loop-owned.
//
// States:
//
//	idle -> pending (persisted) -> uploading -> idle
//	                                         -> pending on connectivity or server failure
//	                                         -> idle on rejection (turn discarded)
type TurnUploader struct {
	env     *env
	log     *logrus.Entry
	matches *Matches

	pending   *remote.TurnRequest
	uploading bool
}

func newTurnUploader(e *env, matches *Matches) *TurnUploader {
	return &TurnUploader{
		env:     e,
		log:     e.logger("turns"),
		matches: matches,
	}
}

// load restores the persisted turn.
func (t *TurnUploader) load(ctx context.Context) error {
	turn, err := t.env.settings.PendingTurn(ctx)
	if err != nil {
		return err
	}
	t.pending = turn
	if turn != nil {
		t.log.WithField("match", turn.MatchID).Info("restored pending turn")
	}
	return nil
}

// QueueAndUpload persists turn and uploads it.
//
// Calling it again with the same pointer is a no-op while the turn is
// pending or uploading. Panics with ErrTurnConflict if a different turn is
// pending.
func (t *TurnUploader) QueueAndUpload(turn *remote.TurnRequest) {
	if t.pending != nil && t.pending != turn {
		panic(ErrTurnConflict)
	}
	if t.pending == nil {
		t.pending = turn
		t.persist(turn)
	}
	t.UploadPending(nil)
}

// UploadPending uploads the pending turn. No-op if none is pending or an
// upload is running; done is not called in that case.
func (t *TurnUploader) UploadPending(done Callback[*remote.MatchEntity]) {
	if t.pending == nil || t.uploading {
		return
	}

	turn := t.pending
	t.uploading = true
	log := t.log.WithField("match", turn.MatchID)

	dispatch(t.env, log, "postTurn",
		func(ctx context.Context) (*remote.MatchEntity, error) {
			return t.env.client.PostMatchTurn(ctx, turn)
		},
		func(match *remote.MatchEntity, err error) {
			t.uploading = false

			switch {
			case err == nil:
				t.clear()
				if match != nil {
					t.matches.Upsert(match)
				}
				log.Info("turn uploaded")
			case remote.IsRejection(err):
				t.clear()
				log.WithError(err).Warn("turn rejected, discarded")
			default:
				log.WithError(err).Info("turn upload failed, kept for retry")
			}

			t.matches.wakeParked()
			if err == nil {
				t.env.requestSucceeded()
			}
			done.call(match, err)
		})
}

// Reset discards the pending turn unless it is uploading.
func (t *TurnUploader) Reset() {
	if t.uploading {
		return
	}
	t.clear()
}

func (t *TurnUploader) clear() {
	if t.pending == nil {
		return
	}
	t.pending = nil
	t.persist(nil)
}

func (t *TurnUploader) persist(turn *remote.TurnRequest) {
	if err := t.env.settings.SavePendingTurn(context.Background(), turn); err != nil {
		t.log.WithError(err).Error("persist pending turn")
	}
}

// Pending returns the queued turn, or nil.
func (t *TurnUploader) Pending() *remote.TurnRequest { return t.pending }

// HasPending reports whether a turn waits for upload and none is running.
func (t *TurnUploader) HasPending() bool {
	return t.pending != nil && !t.uploading
}

// IsUploading reports whether an upload is in flight.
func (t *TurnUploader) IsUploading() bool { return t.uploading }

// HasPendingFor reports whether the queued turn belongs to matchID.
func (t *TurnUploader) HasPendingFor(matchID string) bool {
	return t.pending != nil && remote.SameMatch(t.pending.MatchID, matchID)
}

func (t *TurnUploader) isUploadingFor(matchID string) bool {
	return t.uploading && t.HasPendingFor(matchID)
}
