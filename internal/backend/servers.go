package backend

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/roach88/blocksync/internal/remote"
)

// ServerList caches the multiplayer server addresses. Loop-owned.
type ServerList struct {
	env      *env
	log      *logrus.Entry
	addrs    []remote.ServerAddress
	fetching bool
}

func newServerList(e *env) *ServerList {
	return &ServerList{env: e, log: e.logger("servers")}
}

// Addresses returns the cached addresses. The first call starts a fetch and
// returns nil; a failed fetch leaves an empty list.
func (s *ServerList) Addresses() []remote.ServerAddress {
	if s.addrs == nil && !s.fetching {
		s.fetching = true
		dispatch(s.env, s.log, "servers",
			func(ctx context.Context) ([]remote.ServerAddress, error) {
				return s.env.client.FetchMultiplayerServers(ctx, s.env.os)
			},
			func(addrs []remote.ServerAddress, err error) {
				s.fetching = false
				if err != nil || addrs == nil {
					addrs = []remote.ServerAddress{}
				}
				s.addrs = addrs
			})
	}
	return s.addrs
}

// IsFetching reports whether a fetch is in flight.
func (s *ServerList) IsFetching() bool { return s.fetching }
