package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blocksync/internal/loop"
	"github.com/roach88/blocksync/internal/remote"
	"github.com/roach88/blocksync/internal/remote/remotetest"
)

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(context.Background(), Deps{Loop: loop.New()})
	assert.Error(t, err)
}

func TestNew_PushesStoredCredentialsToClient(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.mgr.HasUserID())
	assert.Equal(t, "player-1", f.mgr.OwnUserID())
	assert.Equal(t, remote.Credentials{UserID: "player-1", Secret: "s3cret"}, f.fake.Credentials())
}

func TestSetCredentials_Persists(t *testing.T) {
	f := newFixture(t, withoutCredentials())
	ctx := context.Background()

	require.NoError(t, f.mgr.SetCredentials(ctx, "p2", "k2"))

	stored, err := f.store.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p2", stored.UserID)
	assert.Equal(t, "k2", f.fake.Credentials().Secret)

	require.NoError(t, f.mgr.SetCredentials(ctx, "", "ignored"))
	stored, err = f.store.Credentials(ctx)
	require.NoError(t, err)
	assert.True(t, stored.Empty())
	assert.Empty(t, f.fake.Credentials().Secret)
}

func TestTick_DrivesAllComponents(t *testing.T) {
	f := newFixture(t, withoutCredentials())
	f.mgr.Scores().Enqueue(testScore(ModeMarathon, 9))
	require.NoError(t, f.mgr.SetCredentials(context.Background(), "player-1", "s3cret"))
	f.fake.Fail(remotetest.OpPostTurn, 503, "")
	f.mgr.Turns().QueueAndUpload(testTurn("m1"))
	f.flush()

	f.mgr.Tick(TickParams{WelcomeTTL: time.Minute})
	f.flush()

	assert.Equal(t, []string{
		"postTurn(m1)",
		"welcome(0)",
		"postScore(marathon/9)",
		"postTurn(m1)",
		"listMatches(0)",
	}, f.ops())

	st := f.mgr.Status()
	assert.Equal(t, "player-1", st.UserID)
	assert.True(t, st.Authenticated)
	assert.Zero(t, st.QueuedScores)
	assert.False(t, st.TurnPending)
	assert.True(t, st.LastRefreshOK)
	assert.Zero(t, st.Pending)
}

func TestRun_AsyncLoop(t *testing.T) {
	f := newFixture(t)
	l := loop.New(loop.WithLogger(quietLogger()))
	mgr, err := New(context.Background(), Deps{
		Loop:     l,
		Client:   f.fake,
		Settings: f.store,
		Clock:    f.clock,
		Logger:   quietLogger(),
		OS:       "linux",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	l.Post(func() {
		mgr.Scores().Enqueue(testScore(ModeGravity, 1))
		mgr.Scores().Enqueue(testScore(ModeGravity, 2))
		mgr.Tick(TickParams{})
	})
	require.NoError(t, l.RunUntil(ctx, func() bool {
		return l.Pending() == 0 && !mgr.Scores().HasEnqueued() && mgr.Session().Last() != nil
	}))

	assert.Len(t, f.fake.CallsTo(remotetest.OpPostScore), 2)
	assert.Len(t, f.fake.CallsTo(remotetest.OpListMatches), 1)
}
