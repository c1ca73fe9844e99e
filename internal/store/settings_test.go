package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blocksync/internal/remote"
)

func TestCredentials_EmptyByDefault(t *testing.T) {
	s := createTestStore(t)

	c, err := s.Credentials(context.Background())
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestCredentials_SaveAndClear(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := remote.Credentials{UserID: "player-1", Secret: "k3y"}
	require.NoError(t, s.SaveCredentials(ctx, want))

	got, err := s.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.SaveCredentials(ctx, remote.Credentials{}))

	got, err = s.Credentials(ctx)
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Empty(t, got.Secret)
}

func TestPendingTurn_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	turn := &remote.TurnRequest{MatchID: "m1", Payload: json.RawMessage(`{"score":1200,"turnKey":"t7"}`)}
	require.NoError(t, s1.SavePendingTurn(ctx, turn))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.PendingTurn(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "m1", got.MatchID)
	assert.JSONEq(t, `{"score":1200,"turnKey":"t7"}`, string(got.Payload))
}

func TestPendingTurn_NilClears(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePendingTurn(ctx, &remote.TurnRequest{MatchID: "m1", Payload: json.RawMessage(`{}`)}))
	require.NoError(t, s.SavePendingTurn(ctx, nil))

	got, err := s.PendingTurn(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSwapWelcomeTime(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	first := time.UnixMilli(1_700_000_000_000)
	second := first.Add(time.Hour)

	prev, err := s.SwapWelcomeTime(ctx, first)
	require.NoError(t, err)
	assert.True(t, prev.IsZero(), "first swap has no previous time")

	prev, err = s.SwapWelcomeTime(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.UnixMilli(), prev.UnixMilli())

	current, err := s.WelcomeTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.UnixMilli(), current.UnixMilli())
}
