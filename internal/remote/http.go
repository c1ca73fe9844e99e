package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// HTTPClient implements Client with JSON over HTTP.
//
// Credentials travel as HTTP basic auth. Every request carries a fresh
// UUIDv7 in X-Request-ID for correlation with service logs.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry

	mu    sync.RWMutex
	creds Credentials
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		h.http = c
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logrus.Entry) HTTPOption {
	return func(h *HTTPClient) {
		h.log = l
	}
}

// NewHTTPClient creates a client for the service rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetCredentials replaces the identity sent with every request.
func (h *HTTPClient) SetCredentials(c Credentials) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.creds = c
}

func (h *HTTPClient) credentials() Credentials {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.creds
}

// FetchWelcome performs the session handshake.
func (h *HTTPClient) FetchWelcome(ctx context.Context, req WelcomeRequest) (*WelcomeResponse, error) {
	var resp WelcomeResponse
	if err := h.do(ctx, http.MethodPost, "/api/welcome", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PostScore submits a finished game.
func (h *HTTPClient) PostScore(ctx context.Context, s *Score) error {
	return h.do(ctx, http.MethodPost, "/api/scores", s, nil)
}

// ListMatches lists the player's matches changed since the given time.
func (h *HTTPClient) ListMatches(ctx context.Context, since int64) ([]*MatchEntity, error) {
	var matches []*MatchEntity
	path := "/api/matches?since=" + strconv.FormatInt(since, 10)
	if err := h.do(ctx, http.MethodGet, path, nil, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// FetchMatchWithTurns fetches one match including its turn history.
func (h *HTTPClient) FetchMatchWithTurns(ctx context.Context, matchID string) (*MatchEntity, error) {
	var m MatchEntity
	if err := h.do(ctx, http.MethodGet, "/api/matches/"+url.PathEscape(matchID), nil, &m); err != nil {
		return nil, err
	}
	m.IsFullMatchInfo = true
	return &m, nil
}

// OpenNewMatch challenges an opponent, or any player when opponentID is empty.
func (h *HTTPClient) OpenNewMatch(ctx context.Context, opponentID string, maxLevel int) (*MatchEntity, error) {
	body := struct {
		OpponentID string `json:"opponentId,omitempty"`
		MaxLevel   int    `json:"maxLevel"`
	}{opponentID, maxLevel}

	var m MatchEntity
	if err := h.do(ctx, http.MethodPost, "/api/matches", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PostMatchTurn uploads a played turn and returns the updated match.
func (h *HTTPClient) PostMatchTurn(ctx context.Context, turn *TurnRequest) (*MatchEntity, error) {
	var m MatchEntity
	path := "/api/matches/" + url.PathEscape(turn.MatchID) + "/turns"
	if err := h.do(ctx, http.MethodPost, path, turn, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// FetchLatestScores returns the most recent scores of a game mode.
func (h *HTTPClient) FetchLatestScores(ctx context.Context, gameMode string) ([]ScoreListEntry, error) {
	return h.scoreList(ctx, "latest", gameMode)
}

// FetchBestScores returns the best scores of a game mode.
func (h *HTTPClient) FetchBestScores(ctx context.Context, gameMode string) ([]ScoreListEntry, error) {
	return h.scoreList(ctx, "best", gameMode)
}

func (h *HTTPClient) scoreList(ctx context.Context, kind, gameMode string) ([]ScoreListEntry, error) {
	var rows []ScoreListEntry
	path := "/api/scores/" + kind + "/" + url.PathEscape(gameMode)
	if err := h.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchMultiplayerServers lists realtime servers suitable for the given OS.
func (h *HTTPClient) FetchMultiplayerServers(ctx context.Context, os string) ([]ServerAddress, error) {
	var entries []serverEntry
	path := "/api/multiplayer/servers?os=" + url.QueryEscape(os)
	if err := h.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}

	servers := make([]ServerAddress, 0, len(entries))
	for _, e := range entries {
		servers = append(servers, ParseServerAddress(e.Name, e.Address, e.Port, e.Secure))
	}
	return servers, nil
}

// do sends one request. body is JSON encoded when non-nil; out is decoded
// from a 2xx response when non-nil.
func (h *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}

	requestID := uuid.Must(uuid.NewV7()).String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c := h.credentials(); !c.Empty() {
		req.SetBasicAuth(c.UserID, c.Secret)
	}

	start := time.Now()
	resp, err := h.http.Do(req)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"method":     method,
			"path":       path,
			"request_id": requestID,
			"error":      err,
		}).Debug("request failed")
		return NoConnection(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NoConnection(err)
	}

	h.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"duration":   time.Since(start),
	}).Debug("request done")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return NewError(resp.StatusCode, errorMessage(data))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		// A 2xx we cannot read is treated as a server fault.
		return NewError(http.StatusInternalServerError, fmt.Sprintf("decode %s: %v", path, err))
	}
	return nil
}

// errorMessage extracts {"message": "..."} or falls back to the raw body.
func errorMessage(data []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(data))
}
