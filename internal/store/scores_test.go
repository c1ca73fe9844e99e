package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blocksync/internal/remote"
)

func TestPendingScores_EmptyByDefault(t *testing.T) {
	s := createTestStore(t)

	scores, err := s.PendingScores(context.Background())
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestPendingScores_PreservesOrderAndGainTime(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	gained := time.UnixMilli(1_700_000_000_000)

	in := []*remote.Score{
		createTestScore("marathon", 500, gained),
		createTestScore("sprint40", 90, gained.Add(time.Minute)),
		createTestScore("marathon", 10, gained.Add(2*time.Minute)),
	}
	require.NoError(t, s.SavePendingScores(ctx, in))

	out, err := s.PendingScores(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i := range in {
		assert.Equal(t, in[i].SortValue, out[i].SortValue)
		assert.Equal(t, in[i].GameMode, out[i].GameMode)
		assert.Equal(t, in[i].GainedAt.UnixMilli(), out[i].GainedAt.UnixMilli())
		assert.Equal(t, in[i].Lines, out[i].Lines)
	}
}

func TestPendingScores_SaveReplaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.SavePendingScores(ctx, []*remote.Score{
		createTestScore("marathon", 1, now),
		createTestScore("marathon", 2, now),
	}))
	require.NoError(t, s.SavePendingScores(ctx, []*remote.Score{
		createTestScore("practice", 3, now),
	}))

	out, err := s.PendingScores(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(3), out[0].SortValue)

	require.NoError(t, s.SavePendingScores(ctx, nil))
	out, err = s.PendingScores(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
}
