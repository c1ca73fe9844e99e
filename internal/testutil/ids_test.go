package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_Predictable(t *testing.T) {
	g := NewSequentialIDs()

	assert.Equal(t, "00000000-0000-0000-0000-000000000001", g.Next())
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", g.Next())
}

func TestSequentialIDs_AreValidUUIDs(t *testing.T) {
	g := NewSequentialIDs()

	_, err := uuid.Parse(g.Next())
	require.NoError(t, err)
}
