package backend

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blocksync/internal/loop"
	"github.com/roach88/blocksync/internal/remote"
	"github.com/roach88/blocksync/internal/remote/remotetest"
	"github.com/roach88/blocksync/internal/store"
	"github.com/roach88/blocksync/internal/testutil"
)

// countingSettings counts persisted turn writes.
type countingSettings struct {
	Settings
	turnWrites int
}

func (c *countingSettings) SavePendingTurn(ctx context.Context, turn *remote.TurnRequest) error {
	c.turnWrites++
	return c.Settings.SavePendingTurn(ctx, turn)
}

type fixture struct {
	t        *testing.T
	loop     *loop.Loop
	fake     *remotetest.Fake
	clock    *testutil.FakeClock
	store    *store.Store
	settings *countingSettings
	mgr      *Manager
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	creds remote.Credentials
	path  string
	clock *testutil.FakeClock
}

func withoutCredentials() fixtureOption {
	return func(c *fixtureConfig) { c.creds = remote.Credentials{} }
}

// atPath reuses a database, e.g. to simulate a restart.
func atPath(path string) fixtureOption {
	return func(c *fixtureConfig) { c.path = path }
}

func withClock(clk *testutil.FakeClock) fixtureOption {
	return func(c *fixtureConfig) { c.clock = clk }
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// newFixture builds a Manager on an inline loop, a scripted client, a fake
// clock and a temp SQLite store. Credentials are set unless disabled.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{
		creds: remote.Credentials{UserID: "player-1", Secret: "s3cret"},
		path:  filepath.Join(t.TempDir(), "blocksync.db"),
		clock: testutil.NewFakeClock(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(cfg.path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if !cfg.creds.Empty() {
		require.NoError(t, st.SaveCredentials(ctx, cfg.creds))
	}

	f := &fixture{
		t:        t,
		loop:     loop.New(loop.WithInlineWork(), loop.WithLogger(quietLogger())),
		fake:     remotetest.New(),
		clock:    cfg.clock,
		store:    st,
		settings: &countingSettings{Settings: st},
	}

	f.mgr, err = New(ctx, Deps{
		Loop:     f.loop,
		Client:   f.fake,
		Settings: f.settings,
		Clock:    f.clock,
		Logger:   quietLogger(),
		Platform: remote.PlatformDesktop,
		OS:       "linux",
		Version:  2100,
	})
	require.NoError(t, err)
	return f
}

// flush runs all queued completions, including parked calls they wake.
func (f *fixture) flush() {
	f.loop.Flush()
}

func (f *fixture) ops() []string {
	var out []string
	for _, c := range f.fake.Calls() {
		out = append(out, c.String())
	}
	return out
}

func testScore(mode string, sortValue int64) *remote.Score {
	return remote.NewScore(sortValue, mode, remote.PlatformDesktop, "keyboard", "", "", remote.ScoreCounters{
		DrawnBlocks: 100,
		Lines:       25,
		Score:       int(sortValue),
	})
}

func testMatch(id, state string, myTurn bool, changed int64) *remote.MatchEntity {
	return &remote.MatchEntity{
		UUID:           id,
		MatchState:     state,
		MyTurn:         myTurn,
		LastChangeTime: changed,
	}
}

func matchIDs(list []*remote.MatchEntity) []string {
	ids := make([]string, len(list))
	for i, m := range list {
		ids[i] = m.UUID
	}
	return ids
}
