package remote

import "context"

// Client is the facade to the game backend.
//
// Each method performs one network call and blocks until it resolves. A
// failure is always an *Error (see StatusOf); implementations must translate
// transport failures into StatusNoConnection.
//
// Implementations must be safe for concurrent use: calls are issued from
// worker goroutines, while SetCredentials is called from the owning loop.
type Client interface {
	SetCredentials(c Credentials)

	FetchWelcome(ctx context.Context, req WelcomeRequest) (*WelcomeResponse, error)
	PostScore(ctx context.Context, s *Score) error

	ListMatches(ctx context.Context, since int64) ([]*MatchEntity, error)
	FetchMatchWithTurns(ctx context.Context, matchID string) (*MatchEntity, error)
	OpenNewMatch(ctx context.Context, opponentID string, maxLevel int) (*MatchEntity, error)
	PostMatchTurn(ctx context.Context, turn *TurnRequest) (*MatchEntity, error)

	FetchLatestScores(ctx context.Context, gameMode string) ([]ScoreListEntry, error)
	FetchBestScores(ctx context.Context, gameMode string) ([]ScoreListEntry, error)

	FetchMultiplayerServers(ctx context.Context, os string) ([]ServerAddress, error)
}
