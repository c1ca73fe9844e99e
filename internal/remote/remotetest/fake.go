// Package remotetest provides a scripted remote.Client for tests.
package remotetest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/roach88/blocksync/internal/remote"
	"github.com/roach88/blocksync/internal/testutil"
)

// Operation names used in scripts and call records.
const (
	OpWelcome      = "welcome"
	OpPostScore    = "postScore"
	OpListMatches  = "listMatches"
	OpFetchMatch   = "fetchMatch"
	OpOpenMatch    = "openMatch"
	OpPostTurn     = "postTurn"
	OpLatestScores = "latestScores"
	OpBestScores   = "bestScores"
	OpServers      = "servers"
)

// Call records one invocation of the fake.
type Call struct {
	Op  string
	Arg string
}

// String renders the call as "op(arg)".
func (c Call) String() string {
	return fmt.Sprintf("%s(%s)", c.Op, c.Arg)
}

// Reply is a scripted outcome. Value must match the operation's result type
// (e.g. []*remote.MatchEntity for OpListMatches); Err wins when set.
type Reply struct {
	Value any
	Err   error
}

// Fake is a remote.Client returning scripted replies.
//
// Replies are consumed per operation in FIFO order. An operation without a
// scripted reply succeeds with a plausible default value.
//
// Thread-safety: Fake is safe for concurrent use via internal mutex.
type Fake struct {
	mu      sync.Mutex
	creds   remote.Credentials
	scripts map[string][]Reply
	calls   []Call
	ids     *testutil.SequentialIDs
	observe func(Call)
}

// New creates a Fake with no scripted replies.
func New() *Fake {
	return &Fake{
		scripts: make(map[string][]Reply),
		ids:     testutil.NewSequentialIDs(),
	}
}

// Script appends replies for op.
func (f *Fake) Script(op string, replies ...Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[op] = append(f.scripts[op], replies...)
}

// Succeed scripts one successful reply for op.
func (f *Fake) Succeed(op string, value any) {
	f.Script(op, Reply{Value: value})
}

// Fail scripts one failed reply for op.
func (f *Fake) Fail(op string, status int, message string) {
	f.Script(op, Reply{Err: remote.NewError(status, message)})
}

// Observe registers fn to be called with every call, on the calling
// goroutine, before the reply is produced.
func (f *Fake) Observe(fn func(Call)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observe = fn
}

// Calls returns a copy of all recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded calls of one operation.
func (f *Fake) CallsTo(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Credentials returns the last credentials set.
func (f *Fake) Credentials() remote.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds
}

// next records the call and pops the next scripted reply.
func (f *Fake) next(op, arg string) (Reply, bool) {
	c := Call{Op: op, Arg: arg}

	f.mu.Lock()
	observe := f.observe
	f.mu.Unlock()
	if observe != nil {
		observe(c)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	q := f.scripts[op]
	if len(q) == 0 {
		return Reply{}, false
	}
	f.scripts[op] = q[1:]
	return q[0], true
}

// SetCredentials implements remote.Client.
func (f *Fake) SetCredentials(c remote.Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = c
}

// FetchWelcome implements remote.Client.
func (f *Fake) FetchWelcome(_ context.Context, req remote.WelcomeRequest) (*remote.WelcomeResponse, error) {
	r, ok := f.next(OpWelcome, strconv.FormatInt(req.SinceTime, 10))
	if !ok {
		return &remote.WelcomeResponse{Token: "token", Authenticated: true}, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	// Copy so a scripted value is never shared with the caller.
	w := *r.Value.(*remote.WelcomeResponse)
	return &w, nil
}

// PostScore implements remote.Client.
func (f *Fake) PostScore(_ context.Context, s *remote.Score) error {
	r, _ := f.next(OpPostScore, fmt.Sprintf("%s/%d", s.GameMode, s.SortValue))
	return r.Err
}

// ListMatches implements remote.Client.
func (f *Fake) ListMatches(_ context.Context, since int64) ([]*remote.MatchEntity, error) {
	r, ok := f.next(OpListMatches, strconv.FormatInt(since, 10))
	if !ok {
		return nil, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Value.([]*remote.MatchEntity), nil
}

// FetchMatchWithTurns implements remote.Client.
func (f *Fake) FetchMatchWithTurns(_ context.Context, matchID string) (*remote.MatchEntity, error) {
	r, ok := f.next(OpFetchMatch, matchID)
	if !ok {
		return &remote.MatchEntity{UUID: matchID, MatchState: remote.MatchStateWaiting, IsFullMatchInfo: true}, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Value.(*remote.MatchEntity), nil
}

// OpenNewMatch implements remote.Client.
func (f *Fake) OpenNewMatch(_ context.Context, opponentID string, maxLevel int) (*remote.MatchEntity, error) {
	r, ok := f.next(OpOpenMatch, fmt.Sprintf("%s/%d", opponentID, maxLevel))
	if !ok {
		return &remote.MatchEntity{
			UUID:       f.ids.Next(),
			OpponentID: opponentID,
			MatchState: remote.MatchStateMyTurn,
			MyTurn:     true,
			Level:      maxLevel,
		}, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Value.(*remote.MatchEntity), nil
}

// PostMatchTurn implements remote.Client.
func (f *Fake) PostMatchTurn(_ context.Context, turn *remote.TurnRequest) (*remote.MatchEntity, error) {
	r, ok := f.next(OpPostTurn, turn.MatchID)
	if !ok {
		return &remote.MatchEntity{UUID: turn.MatchID, MatchState: remote.MatchStateWaiting}, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Value.(*remote.MatchEntity), nil
}

// FetchLatestScores implements remote.Client.
func (f *Fake) FetchLatestScores(_ context.Context, gameMode string) ([]remote.ScoreListEntry, error) {
	return f.scoreList(OpLatestScores, gameMode)
}

// FetchBestScores implements remote.Client.
func (f *Fake) FetchBestScores(_ context.Context, gameMode string) ([]remote.ScoreListEntry, error) {
	return f.scoreList(OpBestScores, gameMode)
}

func (f *Fake) scoreList(op, gameMode string) ([]remote.ScoreListEntry, error) {
	r, ok := f.next(op, gameMode)
	if !ok {
		return []remote.ScoreListEntry{}, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Value.([]remote.ScoreListEntry), nil
}

// FetchMultiplayerServers implements remote.Client.
func (f *Fake) FetchMultiplayerServers(_ context.Context, os string) ([]remote.ServerAddress, error) {
	r, ok := f.next(OpServers, os)
	if !ok {
		return []remote.ServerAddress{}, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Value.([]remote.ServerAddress), nil
}

var _ remote.Client = (*Fake)(nil)
