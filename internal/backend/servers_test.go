package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/blocksync/internal/remote"
	"github.com/roach88/blocksync/internal/remote/remotetest"
)

func TestServerList_FetchesOnce(t *testing.T) {
	f := newFixture(t)
	addrs := []remote.ServerAddress{
		remote.ParseServerAddress("EU", "mp.example.org", 0, true),
	}
	f.fake.Succeed(remotetest.OpServers, addrs)

	s := f.mgr.Servers()
	assert.Nil(t, s.Addresses())
	assert.True(t, s.IsFetching())
	f.flush()

	assert.Equal(t, addrs, s.Addresses())
	assert.Equal(t, []string{"servers(linux)"}, f.ops())
}

func TestServerList_FailureYieldsEmptyList(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail(remotetest.OpServers, remote.StatusNoConnection, "")

	s := f.mgr.Servers()
	s.Addresses()
	f.flush()

	assert.NotNil(t, s.Addresses())
	assert.Empty(t, s.Addresses())
	assert.Len(t, f.fake.Calls(), 1)
}
