package remote

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxReplaySize is the largest replay that is uploaded with a score.
// Larger replays are dropped, the score is still sent.
const MaxReplaySize = 4900000

// Platform identifiers sent with handshakes and scores.
const (
	PlatformTV      = "smarttv"
	PlatformMobile  = "mobile"
	PlatformDesktop = "desktop"
)

// Match states as reported by the service.
const (
	MatchStateWaiting    = "WAIT"
	MatchStateChallenged = "CHALLENGED"
	MatchStateMyTurn     = "YOURTURN"
	MatchStateEnded      = "ENDED"
)

// Credentials identify the player account. The secret is opaque.
type Credentials struct {
	UserID string `json:"user_id"`
	Secret string `json:"secret"`
}

// Empty reports whether no identity is set.
func (c Credentials) Empty() bool {
	return c.UserID == ""
}

// Score is a finished game waiting to be submitted.
// All fields except GainedAt are fixed at construction.
type Score struct {
	SortValue    int64     `json:"sortValue"`
	GameMode     string    `json:"gameMode"`
	Platform     string    `json:"platform"`
	InputType    string    `json:"inputType"`
	Params       string    `json:"params,omitempty"`
	Replay       string    `json:"replay,omitempty"`
	DrawnBlocks  int       `json:"drawnBlocks"`
	Lines        int       `json:"lines"`
	Score        int       `json:"score"`
	TimePlayedMs int       `json:"timePlayed"`
	GainedAt     time.Time `json:"-"`
}

// ScoreCounters are the gameplay counters reported with a score.
type ScoreCounters struct {
	DrawnBlocks  int
	Lines        int
	Score        int
	TimePlayedMs int
}

// NewScore builds a Score. A replay over MaxReplaySize is left out.
func NewScore(sortValue int64, gameMode, platform, inputType, params, replay string, c ScoreCounters) *Score {
	if len(replay) > MaxReplaySize {
		replay = ""
	}
	return &Score{
		SortValue:    sortValue,
		GameMode:     gameMode,
		Platform:     platform,
		InputType:    inputType,
		Params:       params,
		Replay:       replay,
		DrawnBlocks:  c.DrawnBlocks,
		Lines:        c.Lines,
		Score:        c.Score,
		TimePlayedMs: c.TimePlayedMs,
	}
}

// ScoreListEntry is one row of a scoreboard.
type ScoreListEntry struct {
	UserID       string `json:"userId"`
	Nickname     string `json:"nickName"`
	Country      string `json:"country,omitempty"`
	SortValue    int64  `json:"sortValue"`
	Score        int    `json:"score"`
	Lines        int    `json:"lines"`
	DrawnBlocks  int    `json:"drawnBlocks"`
	TimePlayedMs int    `json:"timePlayed"`
	Platform     string `json:"platform"`
	InputType    string `json:"inputType"`
	Params       string `json:"params,omitempty"`
	ScoreGained  int64  `json:"scoreGainedTime"`
}

// MatchTurn is one played turn of a turn-based match.
type MatchTurn struct {
	TurnKey       string `json:"turnKey"`
	OpponentTurn  bool   `json:"opponentTurn"`
	MyScore       int    `json:"myScore"`
	OpponentScore int    `json:"opponentScore"`
	Finished      bool   `json:"finished"`
}

// MatchEntity is a turn-based match as seen by this player.
// Turns is only populated when IsFullMatchInfo is set.
type MatchEntity struct {
	UUID            string      `json:"uuid"`
	OpponentID      string      `json:"opponentId,omitempty"`
	OpponentNick    string      `json:"opponentNick,omitempty"`
	MatchState      string      `json:"matchState"`
	MyTurn          bool        `json:"myTurn"`
	Level           int         `json:"beginningLevel"`
	LastChangeTime  int64       `json:"lastChangeTime"`
	IsFullMatchInfo bool        `json:"-"`
	Turns           []MatchTurn `json:"turns,omitempty"`
}

// SameMatch reports whether two match ids refer to the same match.
// UUIDs compare by value, anything else case-insensitively.
func SameMatch(a, b string) bool {
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA == nil && errB == nil {
		return ua == ub
	}
	return strings.EqualFold(a, b)
}

// TurnRequest is a played turn waiting for upload.
// Payload is the opaque move data produced by the game.
type TurnRequest struct {
	MatchID string          `json:"matchId"`
	Payload json.RawMessage `json:"payload"`
}

// WelcomeRequest is the handshake input.
type WelcomeRequest struct {
	Version      int    `json:"clientVersion"`
	Platform     string `json:"platform"`
	OS           string `json:"operatingSystem"`
	DrawnBlocks  int64  `json:"drawnBlocks"`
	DonorState   int    `json:"donator"`
	SinceTime    int64  `json:"lastRequest"`
	PushProvider string `json:"pushProviderId,omitempty"`
	PushToken    string `json:"pushToken,omitempty"`
}

// WelcomeMessage is a news item shown to the player.
type WelcomeMessage struct {
	Type    string `json:"type"`
	Text    string `json:"msg"`
	Expires int64  `json:"expires,omitempty"`
}

// WelcomeResponse is the session produced by a successful handshake.
//
// ResponseTime is the service clock at response, in ms. TimeDelta is the
// service clock minus the local clock at receipt, so local now + TimeDelta is
// service now.
type WelcomeResponse struct {
	Token                    string           `json:"token"`
	ResponseTime             int64            `json:"responseTime"`
	TimeDelta                int64            `json:"-"`
	Authenticated            bool             `json:"authenticated"`
	MultiplayerUnlocked      bool             `json:"serverMultiplayerUnlocked"`
	CompetitionNewsAvailable bool             `json:"competitionNewsAvailable"`
	Messages                 []WelcomeMessage `json:"messages,omitempty"`
}
