package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/blocksync/internal/clock"
	"github.com/roach88/blocksync/internal/loop"
	"github.com/roach88/blocksync/internal/remote"
)

// DefaultWelcomeTTL is the handshake expiry used by Tick when none is given.
const DefaultWelcomeTTL = 5 * time.Minute

// Deps are the collaborators of a Manager.
type Deps struct {
	Loop     *loop.Loop
	Client   remote.Client
	Settings Settings

	// Clock defaults to the system clock.
	Clock clock.Clock
	// Logger defaults to the standard logrus logger.
	Logger *logrus.Entry

	Platform string
	OS       string
	Version  int
}

// Manager wires the components around one handle. Loop-owned, except where
// a component documents otherwise.
type Manager struct {
	env *env
	log *logrus.Entry

	scores  *ScoreQueue
	boards  *Scoreboards
	matches *Matches
	turns   *TurnUploader
	session *Session
	servers *ServerList
}

// New builds a Manager and restores persisted state: credentials, queued
// scores, the pending turn (only with credentials) and the handshake time.
func New(ctx context.Context, d Deps) (*Manager, error) {
	if d.Loop == nil || d.Client == nil || d.Settings == nil {
		return nil, errors.New("backend: loop, client and settings are required")
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Logger == nil {
		d.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	e := &env{
		loop:     d.Loop,
		client:   d.Client,
		clock:    d.Clock,
		settings: d.Settings,
		log:      d.Logger,
		platform: d.Platform,
		os:       d.OS,
		version:  d.Version,
	}

	m := &Manager{env: e, log: e.logger("manager")}
	m.boards = newScoreboards(e)
	m.scores = newScoreQueue(e, m.boards)
	m.boards.isSending = m.scores.IsSending
	m.matches = newMatches(e)
	m.turns = newTurnUploader(e, m.matches)
	m.matches.turns = m.turns
	m.session = newSession(e, m.matches)
	m.matches.session = m.session
	m.servers = newServerList(e)
	e.afterSuccess = m.scores.Drain

	creds, err := d.Settings.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	e.setCredentials(creds)

	if !creds.Empty() {
		if err := m.turns.load(ctx); err != nil {
			return nil, fmt.Errorf("load pending turn: %w", err)
		}
	}
	if err := m.scores.load(ctx); err != nil {
		return nil, fmt.Errorf("load pending scores: %w", err)
	}
	if err := m.session.load(ctx); err != nil {
		return nil, fmt.Errorf("load welcome time: %w", err)
	}

	return m, nil
}

// Scores returns the score submission queue.
func (m *Manager) Scores() *ScoreQueue { return m.scores }

// Scoreboards returns the scoreboard caches.
func (m *Manager) Scoreboards() *Scoreboards { return m.boards }

// Matches returns the match synchronizer.
func (m *Manager) Matches() *Matches { return m.matches }

// Turns returns the turn upload coordinator.
func (m *Manager) Turns() *TurnUploader { return m.turns }

// Session returns the welcome handshake.
func (m *Manager) Session() *Session { return m.session }

// Servers returns the multiplayer server list.
func (m *Manager) Servers() *ServerList { return m.servers }

// SetCredentials stores the identity and hands it to the client. Empty
// userID deletes it; deleting an existing identity clears the match list.
func (m *Manager) SetCredentials(ctx context.Context, userID, secret string) error {
	creds := remote.Credentials{UserID: userID, Secret: secret}
	if creds.Empty() {
		creds = remote.Credentials{}
	}
	deleted := creds.Empty() && m.env.hasUserID()

	if err := m.env.settings.SaveCredentials(ctx, creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	m.env.setCredentials(creds)

	if deleted {
		m.matches.Clear()
		m.log.Info("credentials deleted")
	} else if !creds.Empty() {
		m.log.WithField("user_id", creds.UserID).Info("credentials set")
	}
	return nil
}

// HasUserID reports whether an identity is set. Safe from any goroutine.
func (m *Manager) HasUserID() bool { return m.env.hasUserID() }

// OwnUserID returns the identity's user id, or "". Safe from any goroutine.
func (m *Manager) OwnUserID() string { return m.env.credentials().UserID }

// TickParams drive one Tick.
type TickParams struct {
	WelcomeTTL time.Duration
	Welcome    WelcomeParams
}

// Tick is the periodic driver: handshake if expired, drain scores, upload a
// pending turn, refresh matches.
func (m *Manager) Tick(p TickParams) {
	ttl := p.WelcomeTTL
	if ttl <= 0 {
		ttl = DefaultWelcomeTTL
	}
	m.session.RefreshIfExpired(ttl, p.Welcome)
	m.scores.Drain()
	m.turns.UploadPending(nil)
	m.matches.Refresh()
}

// Status is a snapshot of the components for hosts.
type Status struct {
	UserID              string `json:"user_id,omitempty"`
	Authenticated       bool   `json:"authenticated"`
	MultiplayerUnlocked bool   `json:"multiplayer_unlocked"`
	CompetitionNews     bool   `json:"competition_news"`
	QueuedScores        int    `json:"queued_scores"`
	SendingScore        bool   `json:"sending_score"`
	TurnPending         bool   `json:"turn_pending"`
	TurnUploading       bool   `json:"turn_uploading"`
	Matches             int    `json:"matches"`
	Refreshing          bool   `json:"refreshing"`
	LastRefreshOK       bool   `json:"last_refresh_ok"`
	LastRefreshError    string `json:"last_refresh_error,omitempty"`
	Pending             int    `json:"pending_tasks"`
}

// Status returns a snapshot of the components.
func (m *Manager) Status() Status {
	return Status{
		UserID:              m.OwnUserID(),
		Authenticated:       m.session.IsAuthenticated(),
		MultiplayerUnlocked: m.session.MultiplayerUnlocked(),
		CompetitionNews:     m.session.CompetitionNews(),
		QueuedScores:        m.scores.Len(),
		SendingScore:        m.scores.IsSending(),
		TurnPending:         m.turns.Pending() != nil,
		TurnUploading:       m.turns.IsUploading(),
		Matches:             m.matches.Len(),
		Refreshing:          m.matches.IsRefreshing(),
		LastRefreshOK:       m.matches.LastFetchSuccessful(),
		LastRefreshError:    m.matches.LastFetchError(),
		Pending:             m.env.loop.Pending(),
	}
}
