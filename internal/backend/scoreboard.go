package backend

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/blocksync/internal/remote"
)

// Scoreboard expiry.
const (
	ScoreboardTTL          = 300 * time.Second
	ScoreboardRetryOffline = 10 * time.Second
)

type boardKey struct {
	mode   string
	latest bool
}

// Scoreboards holds one CachedScoreboard per (mode, ranking kind).
// Loop-owned.
type Scoreboards struct {
	env       *env
	log       *logrus.Entry
	isSending func() bool
	boards    map[boardKey]*CachedScoreboard
}

func newScoreboards(e *env) *Scoreboards {
	return &Scoreboards{
		env:       e,
		log:       e.logger("scoreboards"),
		isSending: func() bool { return false },
		boards:    make(map[boardKey]*CachedScoreboard),
	}
}

// Get returns the cache for mode and ranking kind, creating an expired one on
// first access. Returns nil for a mode without scoreboard.
func (s *Scoreboards) Get(mode string, latest bool) *CachedScoreboard {
	canonical, ok := CanonicalMode(mode)
	if !ok {
		return nil
	}
	key := boardKey{mode: canonical, latest: latest}
	b, ok := s.boards[key]
	if !ok {
		b = &CachedScoreboard{owner: s, mode: canonical, latest: latest}
		s.boards[key] = b
	}
	return b
}

// Invalidate force-expires the latest and best caches of mode.
func (s *Scoreboards) Invalidate(mode string) {
	if b := s.Get(mode, true); b != nil {
		b.SetExpired()
	}
	if b := s.Get(mode, false); b != nil {
		b.SetExpired()
	}
}

// CachedScoreboard is a read-through cache of one scoreboard. Loop-owned.
//
// INVARIANTS:
//   - Scoreboard never returns rows past the expiry instant
//   - At most one fetch is in flight
type CachedScoreboard struct {
	owner  *Scoreboards
	mode   string
	latest bool

	expiry      time.Time
	fetching    bool
	lastErr     string
	lastErrConn bool
	rows        []remote.ScoreListEntry
}

// GameMode returns the canonical mode of this scoreboard.
func (b *CachedScoreboard) GameMode() string { return b.mode }

// IsLatest reports whether this is the latest-scores ranking.
func (b *CachedScoreboard) IsLatest() bool { return b.latest }

// IsExpired reports whether the cached rows may no longer be served.
func (b *CachedScoreboard) IsExpired() bool {
	return !b.owner.env.now().Before(b.expiry)
}

// Scoreboard returns the cached rows, or nil when expired.
func (b *CachedScoreboard) Scoreboard() []remote.ScoreListEntry {
	if b.IsExpired() {
		return nil
	}
	return b.rows
}

// FetchIfExpired starts a fetch when the cache is expired, no fetch is
// running and no score is in flight. Reports whether a fetch was started.
func (b *CachedScoreboard) FetchIfExpired() bool {
	if !b.IsExpired() || b.fetching || b.owner.isSending() {
		return false
	}

	b.fetching = true
	b.lastErr = ""

	client := b.owner.env.client
	op, call := "bestScores", client.FetchBestScores
	if b.latest {
		op, call = "latestScores", client.FetchLatestScores
	}
	log := b.owner.log.WithField("mode", b.mode)

	dispatch(b.owner.env, log, op,
		func(ctx context.Context) ([]remote.ScoreListEntry, error) {
			return call(ctx, b.mode)
		},
		b.fetched)
	return true
}

func (b *CachedScoreboard) fetched(rows []remote.ScoreListEntry, err error) {
	now := b.owner.env.now()
	b.fetching = false

	if err != nil {
		b.lastErr = remote.MessageOf(err)
		b.lastErrConn = remote.IsConnectivity(err)
		b.rows = nil
		if b.lastErrConn {
			b.expiry = now.Add(ScoreboardRetryOffline)
		} else {
			b.expiry = now.Add(ScoreboardTTL)
		}
		return
	}

	b.rows = rows
	b.expiry = now.Add(ScoreboardTTL)
}

// FetchForced expires the cache and fetches it again.
func (b *CachedScoreboard) FetchForced() bool {
	b.SetExpired()
	return b.FetchIfExpired()
}

// SetExpired drops the cached rows.
func (b *CachedScoreboard) SetExpired() {
	b.expiry = time.Time{}
	b.rows = nil
}

// IsFetching reports whether a fetch is in flight.
func (b *CachedScoreboard) IsFetching() bool { return b.fetching }

// LastError returns the message of the last failed fetch, or "".
func (b *CachedScoreboard) LastError() string { return b.lastErr }

// HasError reports whether the last fetch failed.
func (b *CachedScoreboard) HasError() bool { return b.lastErr != "" }

// IsLastErrorConnectivity reports whether the last failure was a
// connectivity failure.
func (b *CachedScoreboard) IsLastErrorConnectivity() bool { return b.lastErrConn }
