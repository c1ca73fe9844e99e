package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blocksync/internal/remote"
	"github.com/roach88/blocksync/internal/remote/remotetest"
)

func TestEnqueue_DropsUnknownModeAndNonPositiveRank(t *testing.T) {
	f := newFixture(t, withoutCredentials())
	q := f.mgr.Scores()

	q.Enqueue(testScore("tetris", 500))
	q.Enqueue(testScore(ModeMarathon, 0))
	q.Enqueue(testScore(ModeMarathon, -3))
	q.Enqueue(nil)

	assert.Equal(t, 0, q.Len())
	assert.False(t, q.HasEnqueued())

	persisted, err := f.store.PendingScores(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestEnqueue_StampsAndWaitsForIdentity(t *testing.T) {
	f := newFixture(t, withoutCredentials())
	q := f.mgr.Scores()

	q.Enqueue(testScore("Marathon", 500))

	require.Equal(t, 1, q.Len())
	assert.Equal(t, f.clock.Now(), q.Queued()[0].GainedAt)
	assert.False(t, q.IsSending())
	assert.Empty(t, f.fake.Calls(), "no submit without identity")
}

func TestDrain_SingleInFlight(t *testing.T) {
	f := newFixture(t)
	q := f.mgr.Scores()

	q.Enqueue(testScore(ModeMarathon, 1))
	q.Enqueue(testScore(ModeMarathon, 2))
	q.Enqueue(testScore(ModeMarathon, 3))

	assert.True(t, q.IsSending())
	assert.Equal(t, 2, q.Len())
	assert.Len(t, f.fake.CallsTo(remotetest.OpPostScore), 1, "only one score in flight")

	f.flush()

	assert.False(t, q.IsSending())
	assert.False(t, q.HasEnqueued())
	assert.Equal(t, []string{
		"postScore(marathon/1)",
		"postScore(marathon/2)",
		"postScore(marathon/3)",
	}, f.ops())
}

func TestDrain_FailedScoreGoesToTail(t *testing.T) {
	f := newFixture(t, withoutCredentials())
	q := f.mgr.Scores()

	a := testScore(ModeMarathon, 500)
	b := testScore(ModeMarathon, 10)
	q.Enqueue(a)
	q.Enqueue(b)
	require.Equal(t, []*remote.Score{a, b}, q.Queued())

	require.NoError(t, f.mgr.SetCredentials(context.Background(), "player-1", "s3cret"))
	f.fake.Fail(remotetest.OpPostScore, 503, "")

	q.Drain()
	assert.Same(t, a, q.Sending())

	f.flush()

	assert.False(t, q.IsSending())
	assert.Equal(t, []*remote.Score{b, a}, q.Queued(), "failed score requeued at the tail")

	q.Drain()

	assert.Same(t, b, q.Sending())
	assert.Equal(t, []string{"postScore(marathon/500)", "postScore(marathon/10)"}, f.ops())
}

func TestDrain_DiscardsExpiredHead(t *testing.T) {
	f := newFixture(t, withoutCredentials())
	q := f.mgr.Scores()

	q.Enqueue(testScore(ModeMarathon, 1))
	f.clock.Advance(MaxScoreAge + time.Second)
	q.Enqueue(testScore(ModeGravity, 2))

	require.NoError(t, f.mgr.SetCredentials(context.Background(), "player-1", "s3cret"))
	q.Drain()
	f.flush()

	assert.Equal(t, []string{"postScore(gravity/2)"}, f.ops())
	assert.False(t, q.HasEnqueued())
}

func TestDrain_AcceptedScoreExpiresScoreboards(t *testing.T) {
	f := newFixture(t)
	latest := f.mgr.Scoreboards().Get(ModeSprint40, true)
	best := f.mgr.Scoreboards().Get(ModeSprint40, false)

	f.fake.Succeed(remotetest.OpLatestScores, []remote.ScoreListEntry{{UserID: "u", SortValue: 9}})
	f.fake.Succeed(remotetest.OpBestScores, []remote.ScoreListEntry{{UserID: "u", SortValue: 9}})
	require.True(t, latest.FetchIfExpired())
	require.True(t, best.FetchIfExpired())
	f.flush()
	require.False(t, latest.IsExpired())
	require.False(t, best.IsExpired())

	f.mgr.Scores().Enqueue(testScore(ModeSprint40, 42))
	f.flush()

	assert.True(t, latest.IsExpired())
	assert.True(t, best.IsExpired())
	assert.Nil(t, latest.Scoreboard())
}

func TestScoreQueue_SurvivesRestart(t *testing.T) {
	first := newFixture(t, withoutCredentials())
	first.mgr.Scores().Enqueue(testScore(ModeRetro89, 77))
	path := first.store.Path()
	require.NoError(t, first.store.Close())

	second := newFixture(t, atPath(path), withClock(first.clock))
	q := second.mgr.Scores()
	require.Equal(t, 1, q.Len())

	q.Drain()
	second.flush()

	assert.Equal(t, []string{"postScore(retro89/77)"}, second.ops())
	persisted, err := second.store.PendingScores(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestScoreQueue_PersistsInFlightScore(t *testing.T) {
	f := newFixture(t)

	f.mgr.Scores().Enqueue(testScore(ModeMarathon, 5))
	require.True(t, f.mgr.Scores().IsSending())

	persisted, err := f.store.PendingScores(context.Background())
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, int64(5), persisted[0].SortValue)
}
