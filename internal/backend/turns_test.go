package backend

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blocksync/internal/remote"
	"github.com/roach88/blocksync/internal/remote/remotetest"
)

func testTurn(matchID string) *remote.TurnRequest {
	return &remote.TurnRequest{
		MatchID: matchID,
		Payload: json.RawMessage(`{"lines":4,"score":1200}`),
	}
}

func TestQueueAndUpload_Success(t *testing.T) {
	f := newFixture(t)
	turns := f.mgr.Turns()
	f.fake.Succeed(remotetest.OpPostTurn, testMatch("m1", remote.MatchStateWaiting, false, 900))

	turns.QueueAndUpload(testTurn("m1"))

	assert.True(t, turns.IsUploading())
	assert.False(t, turns.HasPending(), "uploading turns are not ready")
	persisted, err := f.store.PendingTurn(context.Background())
	require.NoError(t, err)
	require.NotNil(t, persisted, "persisted before upload")

	f.flush()

	assert.False(t, turns.IsUploading())
	assert.Nil(t, turns.Pending())
	persisted, err = f.store.PendingTurn(context.Background())
	require.NoError(t, err)
	assert.Nil(t, persisted)
	assert.Equal(t, []string{"m1"}, matchIDs(f.mgr.Matches().List()))
}

func TestQueueAndUpload_SameTurnIsIdempotent(t *testing.T) {
	f := newFixture(t)
	turn := testTurn("m1")

	f.mgr.Turns().QueueAndUpload(turn)
	f.mgr.Turns().QueueAndUpload(turn)

	assert.Equal(t, 1, f.settings.turnWrites)
	assert.Len(t, f.fake.CallsTo(remotetest.OpPostTurn), 1)
}

func TestQueueAndUpload_DifferentTurnPanics(t *testing.T) {
	f := newFixture(t)
	f.mgr.Turns().QueueAndUpload(testTurn("m1"))

	assert.PanicsWithValue(t, ErrTurnConflict, func() {
		f.mgr.Turns().QueueAndUpload(testTurn("m1"))
	})
}

func TestUploadPending_RejectionDiscardsTurn(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail(remotetest.OpPostTurn, remote.StatusNoConnection, "")
	f.fake.Fail(remotetest.OpPostTurn, 409, "turn already played")

	f.mgr.Turns().QueueAndUpload(testTurn("m1"))
	f.flush()
	require.NotNil(t, f.mgr.Turns().Pending())

	var gotErr error
	f.mgr.Turns().UploadPending(func(_ *remote.MatchEntity, err error) { gotErr = err })
	f.flush()

	assert.Equal(t, 409, remote.StatusOf(gotErr))
	assert.Nil(t, f.mgr.Turns().Pending())
	persisted, err := f.store.PendingTurn(context.Background())
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestUploadPending_RetryableFailureKeepsTurn(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server failure", 503},
		{"no connection", remote.StatusNoConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fake.Fail(remotetest.OpPostTurn, tt.status, "")

			turn := testTurn("m1")
			f.mgr.Turns().QueueAndUpload(turn)
			f.flush()

			assert.Same(t, turn, f.mgr.Turns().Pending())
			assert.True(t, f.mgr.Turns().HasPending())

			var uploaded *remote.MatchEntity
			f.mgr.Turns().UploadPending(func(m *remote.MatchEntity, err error) {
				require.NoError(t, err)
				uploaded = m
			})
			f.flush()

			require.NotNil(t, uploaded)
			assert.Nil(t, f.mgr.Turns().Pending())
			assert.Len(t, f.fake.CallsTo(remotetest.OpPostTurn), 2)
		})
	}
}

func TestUploadPending_NoopWithoutTurn(t *testing.T) {
	f := newFixture(t)

	called := false
	f.mgr.Turns().UploadPending(func(*remote.MatchEntity, error) { called = true })
	f.flush()

	assert.False(t, called)
	assert.Empty(t, f.fake.Calls())
}

func TestReset_KeepsUploadingTurn(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail(remotetest.OpPostTurn, 500, "")
	f.mgr.Turns().QueueAndUpload(testTurn("m1"))

	f.mgr.Turns().Reset()
	assert.NotNil(t, f.mgr.Turns().Pending())

	f.flush()
	require.NotNil(t, f.mgr.Turns().Pending(), "server failure keeps the turn")
	f.mgr.Turns().Reset()

	assert.Nil(t, f.mgr.Turns().Pending())
}

func TestPendingTurn_ReloadedWithIdentity(t *testing.T) {
	first := newFixture(t)
	first.fake.Fail(remotetest.OpPostTurn, remote.StatusNoConnection, "")
	first.mgr.Turns().QueueAndUpload(testTurn("m7"))
	first.flush()
	path := first.store.Path()
	require.NoError(t, first.store.Close())

	second := newFixture(t, atPath(path))

	require.NotNil(t, second.mgr.Turns().Pending())
	assert.True(t, second.mgr.Turns().HasPendingFor("M7"))
}

func TestPendingTurn_NotReloadedWithoutIdentity(t *testing.T) {
	first := newFixture(t)
	require.NoError(t, first.store.SavePendingTurn(context.Background(), testTurn("m7")))
	require.NoError(t, first.store.SaveCredentials(context.Background(), remote.Credentials{}))
	path := first.store.Path()
	require.NoError(t, first.store.Close())

	second := newFixture(t, atPath(path), withoutCredentials())

	assert.Nil(t, second.mgr.Turns().Pending())
}

// A full fetch of a match whose turn is uploading waits for the upload and
// never runs in the middle of it.
func TestFetchFullMatchInfo_WaitsForTurnUpload(t *testing.T) {
	f := newFixture(t)
	m := f.mgr.Matches()

	f.mgr.Turns().QueueAndUpload(testTurn("m1"))
	require.True(t, f.mgr.Turns().IsUploading())

	var fetched *remote.MatchEntity
	m.FetchFullMatchInfo("m1", func(match *remote.MatchEntity, err error) {
		require.NoError(t, err)
		fetched = match
	})

	assert.Nil(t, fetched)
	assert.Equal(t, 1, m.Parked())
	assert.Equal(t, []string{"postTurn(m1)"}, f.ops())

	f.flush()

	require.NotNil(t, fetched)
	assert.True(t, fetched.IsFullMatchInfo)
	assert.Equal(t, []string{"postTurn(m1)", "fetchMatch(m1)"}, f.ops())
}

func TestFetchFullMatchInfo_OtherMatchNotBlockedByUpload(t *testing.T) {
	f := newFixture(t)

	f.mgr.Turns().QueueAndUpload(testTurn("m1"))
	f.mgr.Matches().FetchFullMatchInfo("m2", nil)

	assert.Equal(t, 0, f.mgr.Matches().Parked())
	assert.Equal(t, []string{"postTurn(m1)", "fetchMatch(m2)"}, f.ops())
}
