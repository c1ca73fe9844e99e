package backend

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/blocksync/internal/clock"
	"github.com/roach88/blocksync/internal/remote"
)

// WelcomeParams are the telemetry fields sent with a handshake.
type WelcomeParams struct {
	DrawnBlocks  int64  `yaml:"drawn_blocks" json:"drawn_blocks"`
	DonorState   int    `yaml:"donor_state" json:"donor_state"`
	PushProvider string `yaml:"push_provider" json:"push_provider,omitempty"`
	PushToken    string `yaml:"push_token" json:"push_token,omitempty"`
}

// Session runs the welcome handshake. Loop-owned.
type Session struct {
	env     *env
	log     *logrus.Entry
	matches *Matches

	last          *remote.WelcomeResponse
	fetching      bool
	authenticated bool
	sinceMs       int64
}

func newSession(e *env, matches *Matches) *Session {
	return &Session{
		env:     e,
		log:     e.logger("session"),
		matches: matches,
	}
}

// load records the handshake time and keeps the previous one as the
// since-timestamp of future requests.
func (s *Session) load(ctx context.Context) error {
	prev, err := s.env.settings.SwapWelcomeTime(ctx, s.env.now())
	if err != nil {
		return err
	}
	if !prev.IsZero() {
		s.sinceMs = clock.Millis(prev)
	}
	return nil
}

// IsExpired reports whether the last session is older than ttl, measured on
// the service clock.
func (s *Session) IsExpired(ttl time.Duration) bool {
	if s.last == nil {
		return true
	}
	serverNow := clock.Millis(s.env.now()) + s.last.TimeDelta
	return serverNow-s.last.ResponseTime > ttl.Milliseconds()
}

// RefreshIfExpired starts a handshake unless one is in flight or the last
// session is within ttl. Reports whether a handshake was started.
func (s *Session) RefreshIfExpired(ttl time.Duration, p WelcomeParams) bool {
	if s.fetching || !s.IsExpired(ttl) {
		return false
	}

	s.fetching = true
	req := remote.WelcomeRequest{
		Version:      s.env.version,
		Platform:     s.env.platform,
		OS:           s.env.os,
		DrawnBlocks:  p.DrawnBlocks,
		DonorState:   p.DonorState,
		SinceTime:    s.sinceMs,
		PushProvider: p.PushProvider,
		PushToken:    p.PushToken,
	}

	dispatch(s.env, s.log, "welcome",
		func(ctx context.Context) (*remote.WelcomeResponse, error) {
			return s.env.client.FetchWelcome(ctx, req)
		},
		s.welcomed)
	return true
}

func (s *Session) welcomed(resp *remote.WelcomeResponse, err error) {
	s.fetching = false
	if err != nil || resp == nil {
		return
	}

	nowMs := clock.Millis(s.env.now())
	if resp.ResponseTime == 0 {
		resp.ResponseTime = nowMs
	}
	resp.TimeDelta = resp.ResponseTime - nowMs

	s.last = resp
	s.authenticated = resp.Authenticated
	if resp.CompetitionNewsAvailable {
		s.matches.Invalidate()
	}

	s.log.WithFields(logrus.Fields{
		"authenticated": resp.Authenticated,
		"multiplayer":   resp.MultiplayerUnlocked,
		"news":          resp.CompetitionNewsAvailable,
		"time_delta_ms": resp.TimeDelta,
	}).Info("session refreshed")
}

// SetCompetitionNews overrides the news flag of the current session.
func (s *Session) SetCompetitionNews(available bool) {
	if s.last == nil || s.last.CompetitionNewsAvailable == available {
		return
	}
	next := *s.last
	next.CompetitionNewsAvailable = available
	s.last = &next
}

// Last returns the current session, or nil.
func (s *Session) Last() *remote.WelcomeResponse { return s.last }

// Token returns the session token, or "".
func (s *Session) Token() string {
	if s.last == nil {
		return ""
	}
	return s.last.Token
}

// IsAuthenticated reports whether the service accepted the credentials.
func (s *Session) IsAuthenticated() bool { return s.authenticated }

// MultiplayerUnlocked reports whether the service unlocked multiplayer.
func (s *Session) MultiplayerUnlocked() bool {
	return s.last != nil && s.last.MultiplayerUnlocked
}

// CompetitionNews reports whether the service flagged news.
func (s *Session) CompetitionNews() bool {
	return s.last != nil && s.last.CompetitionNewsAvailable
}

// IsFetching reports whether a handshake is in flight.
func (s *Session) IsFetching() bool { return s.fetching }
