package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/blocksync/internal/remote"
)

// Setting keys.
const (
	keyUserID      = "backend_user_id"
	keySecret      = "backend_pass_key"
	keyPendingTurn = "turn_to_upload"
	keyWelcomeTime = "last_welcome_request"
)

// get reads a setting. ok is false when the key is absent.
func (s *Store) get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// put upserts a setting.
func put(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// remove deletes a setting. Removing an absent key is not an error.
func remove(ctx context.Context, ex execer, key string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Credentials returns the stored identity, or empty credentials.
func (s *Store) Credentials(ctx context.Context) (remote.Credentials, error) {
	userID, _, err := s.get(ctx, keyUserID)
	if err != nil {
		return remote.Credentials{}, err
	}
	secret, _, err := s.get(ctx, keySecret)
	if err != nil {
		return remote.Credentials{}, err
	}
	return remote.Credentials{UserID: userID, Secret: secret}, nil
}

// SaveCredentials stores the identity. Empty credentials delete it.
// Both keys change in one transaction.
func (s *Store) SaveCredentials(ctx context.Context, c remote.Credentials) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save credentials: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if c.Empty() {
		if err := remove(ctx, tx, keyUserID); err != nil {
			return err
		}
		if err := remove(ctx, tx, keySecret); err != nil {
			return err
		}
	} else {
		if err := put(ctx, tx, keyUserID, c.UserID); err != nil {
			return err
		}
		if err := put(ctx, tx, keySecret, c.Secret); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save credentials: commit: %w", err)
	}
	return nil
}

// PendingTurn returns the persisted turn, or nil if none.
func (s *Store) PendingTurn(ctx context.Context) (*remote.TurnRequest, error) {
	data, ok, err := s.get(ctx, keyPendingTurn)
	if err != nil || !ok {
		return nil, err
	}
	var turn remote.TurnRequest
	if err := json.Unmarshal([]byte(data), &turn); err != nil {
		return nil, fmt.Errorf("unmarshal pending turn: %w", err)
	}
	return &turn, nil
}

// SavePendingTurn persists turn. A nil turn clears it.
func (s *Store) SavePendingTurn(ctx context.Context, turn *remote.TurnRequest) error {
	if turn == nil {
		return remove(ctx, s.db, keyPendingTurn)
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal pending turn: %w", err)
	}
	return put(ctx, s.db, keyPendingTurn, string(data))
}

// WelcomeTime returns the time of the last handshake request, or the zero
// time if there never was one.
func (s *Store) WelcomeTime(ctx context.Context) (time.Time, error) {
	v, ok, err := s.get(ctx, keyWelcomeTime)
	if err != nil || !ok {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", keyWelcomeTime, err)
	}
	return time.UnixMilli(ms), nil
}

// SwapWelcomeTime records now as the last handshake request time and returns
// the previous one (zero on first use).
func (s *Store) SwapWelcomeTime(ctx context.Context, now time.Time) (time.Time, error) {
	prev, err := s.WelcomeTime(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if err := put(ctx, s.db, keyWelcomeTime, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return time.Time{}, err
	}
	return prev, nil
}
