package backend

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/roach88/blocksync/internal/loop"
	"github.com/roach88/blocksync/internal/remote"
)

// RefreshThrottle is the minimum interval between match list refreshes.
const RefreshThrottle = 10 * time.Second

// ErrNoCredentials is reported to callbacks of operations that need an
// identity when none is set.
var ErrNoCredentials = errors.New("backend: no credentials")

// Matches owns the sorted list of turn-based matches. Loop-owned.
//
// INVARIANTS:
//   - list is always sorted by compareMatches
//   - list holds at most one entry per match id
//   - At most one refresh and one full-info fetch are in flight
//   - Parked calls are re-run when a refresh, a full-info fetch or a turn
//     upload completes
type Matches struct {
	env     *env
	log     *logrus.Entry
	turns   *TurnUploader
	session *Session

	list []*remote.MatchEntity

	// lastFetch drives the refresh throttle. Zero means "refresh allowed".
	lastFetch      time.Time
	refreshing     bool
	lastSuccessful bool
	lastErr        string
	lastErrConn    bool

	fetchingFull bool

	// upserts made while a refresh is in flight, by match key
	localChanges map[string]*remote.MatchEntity

	parked []loop.Task
}

func newMatches(e *env) *Matches {
	return &Matches{
		env: e,
		log: e.logger("matches"),
	}
}

// outerRank is the coarse sort tier: my turn, then waiting, then the rest.
func outerRank(m *remote.MatchEntity) int {
	switch {
	case m.MyTurn:
		return 0
	case strings.EqualFold(m.MatchState, remote.MatchStateWaiting),
		strings.EqualFold(m.MatchState, remote.MatchStateChallenged):
		return 1
	default:
		return 2
	}
}

// compareMatches orders by outer rank, then most recently changed first.
func compareMatches(a, b *remote.MatchEntity) int {
	ra, rb := outerRank(a), outerRank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	case a.LastChangeTime > b.LastChangeTime:
		return -1
	case a.LastChangeTime < b.LastChangeTime:
		return 1
	}
	return 0
}

// matchKey folds a match id so equal ids share one key.
func matchKey(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return strings.ToLower(id)
}

// List returns the current list and clears the competition news flag.
// The returned slice must not be modified.
func (m *Matches) List() []*remote.MatchEntity {
	if m.session != nil {
		m.session.SetCompetitionNews(false)
	}
	return m.list
}

// Len returns the number of matches in the list.
func (m *Matches) Len() int { return len(m.list) }

// Find returns the listed match with the given id, or nil.
func (m *Matches) Find(id string) *remote.MatchEntity {
	for _, e := range m.list {
		if remote.SameMatch(e.UUID, id) {
			return e
		}
	}
	return nil
}

// Refresh replaces the list with the service's copy. It is a no-op within
// RefreshThrottle of the last refresh or upsert, while a refresh runs, or
// without identity.
func (m *Matches) Refresh() {
	now := m.env.now()
	if now.Sub(m.lastFetch) < RefreshThrottle {
		return
	}
	if m.refreshing || !m.env.hasUserID() {
		return
	}

	m.refreshing = true
	m.lastFetch = now
	m.localChanges = make(map[string]*remote.MatchEntity)

	dispatch(m.env, m.log, "listMatches",
		func(ctx context.Context) ([]*remote.MatchEntity, error) {
			return m.env.client.ListMatches(ctx, 0)
		},
		m.refreshed)
}

func (m *Matches) refreshed(list []*remote.MatchEntity, err error) {
	m.refreshing = false
	local := m.localChanges
	m.localChanges = nil
	defer m.wakeParked()

	if err != nil {
		m.lastSuccessful = false
		m.lastErr = remote.MessageOf(err)
		m.lastErrConn = remote.IsConnectivity(err)
		m.log.WithError(err).Info("match refresh failed")
		return
	}

	fresh := make([]*remote.MatchEntity, 0, len(list))
	for _, e := range list {
		if e != nil {
			fresh = append(fresh, e)
		}
	}
	slices.SortStableFunc(fresh, compareMatches)
	m.list = fresh

	// Reapply local changes the service has not caught up with yet.
	for _, e := range local {
		if server := m.Find(e.UUID); server == nil || e.LastChangeTime >= server.LastChangeTime {
			m.insert(e)
		}
	}

	m.lastSuccessful = true
	m.lastErr = ""
	m.lastErrConn = false
	m.lastFetch = m.env.now()
	m.log.WithField("count", len(m.list)).Debug("match list refreshed")
}

// Upsert replaces or inserts match at its sorted position and restarts the
// refresh throttle.
func (m *Matches) Upsert(match *remote.MatchEntity) {
	m.insert(match)
	m.lastFetch = m.env.now()
	if m.refreshing {
		m.localChanges[matchKey(match.UUID)] = match
	}
}

// insert removes entries with the same id, then inserts match before the
// first entry that does not sort before it.
func (m *Matches) insert(match *remote.MatchEntity) {
	for i := len(m.list) - 1; i >= 0; i-- {
		if remote.SameMatch(m.list[i].UUID, match.UUID) {
			m.list = append(m.list[:i], m.list[i+1:]...)
		}
	}

	for i, next := range m.list {
		if compareMatches(match, next) <= 0 {
			m.list = append(m.list, nil)
			copy(m.list[i+1:], m.list[i:])
			m.list[i] = match
			return
		}
	}
	m.list = append(m.list, match)
}

// FetchFullMatchInfo delivers the match with its turn history to done.
//
// While another full-info fetch runs, or while a turn for the same match is
// uploading, the call is parked and re-run when that operation completes.
// A listed match that already has full info is returned without a call.
func (m *Matches) FetchFullMatchInfo(id string, done Callback[*remote.MatchEntity]) {
	if m.fetchingFull || m.turns.isUploadingFor(id) {
		m.park(func() { m.FetchFullMatchInfo(id, done) })
		return
	}

	if cached := m.Find(id); cached != nil && cached.IsFullMatchInfo {
		done.call(cached, nil)
		return
	}

	m.fetchingFull = true
	dispatch(m.env, m.log.WithField("match", id), "fetchMatch",
		func(ctx context.Context) (*remote.MatchEntity, error) {
			return m.env.client.FetchMatchWithTurns(ctx, id)
		},
		func(match *remote.MatchEntity, err error) {
			m.fetchingFull = false
			if err == nil && match != nil {
				match.IsFullMatchInfo = true
				m.Upsert(match)
				m.env.requestSucceeded()
			}
			m.wakeParked()
			done.call(match, err)
		})
}

// OpenNewMatch creates a match against opponentID (empty for a random
// opponent). While a refresh runs, the call is parked so the new match is not
// lost to the list replace.
func (m *Matches) OpenNewMatch(opponentID string, maxLevel int, done Callback[*remote.MatchEntity]) {
	if !m.env.hasUserID() {
		done.call(nil, ErrNoCredentials)
		return
	}
	if m.refreshing {
		m.park(func() { m.OpenNewMatch(opponentID, maxLevel, done) })
		return
	}

	dispatch(m.env, m.log, "openMatch",
		func(ctx context.Context) (*remote.MatchEntity, error) {
			return m.env.client.OpenNewMatch(ctx, opponentID, maxLevel)
		},
		func(match *remote.MatchEntity, err error) {
			if err == nil && match != nil {
				m.Upsert(match)
				m.env.requestSucceeded()
			}
			done.call(match, err)
		})
}

// park defers t until the next blocking operation completes.
func (m *Matches) park(t loop.Task) {
	m.parked = append(m.parked, t)
}

// wakeParked re-posts all parked calls. They re-check their conditions and
// park again if still blocked.
func (m *Matches) wakeParked() {
	parked := m.parked
	m.parked = nil
	for _, t := range parked {
		if !m.env.loop.Post(t) {
			m.log.Debug("parked call dropped: loop stopped")
		}
	}
}

// Parked returns the number of parked calls.
func (m *Matches) Parked() int { return len(m.parked) }

// Clear empties the list.
func (m *Matches) Clear() {
	m.list = nil
}

// Invalidate lifts the refresh throttle.
func (m *Matches) Invalidate() {
	m.lastFetch = time.Time{}
}

// IsRefreshing reports whether a refresh is in flight.
func (m *Matches) IsRefreshing() bool { return m.refreshing }

// IsFetchingFull reports whether a full-info fetch is in flight.
func (m *Matches) IsFetchingFull() bool { return m.fetchingFull }

// LastFetch returns the time the throttle counts from.
func (m *Matches) LastFetch() time.Time { return m.lastFetch }

// LastFetchSuccessful reports whether the last refresh succeeded.
func (m *Matches) LastFetchSuccessful() bool { return m.lastSuccessful }

// LastFetchError returns the message of the last failed refresh.
func (m *Matches) LastFetchError() string { return m.lastErr }

// IsLastErrorConnectivity reports whether the last refresh failed for lack
// of connection.
func (m *Matches) IsLastErrorConnectivity() bool { return m.lastErrConn }
