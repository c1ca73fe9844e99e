package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/blocksync/internal/remote"
)

// PendingScores returns the persisted score queue in submission order.
func (s *Store) PendingScores(ctx context.Context) ([]*remote.Score, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT score, gained_at
		FROM pending_scores
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending scores: %w", err)
	}
	defer rows.Close()

	var scores []*remote.Score
	for rows.Next() {
		var (
			data     string
			gainedAt int64
		)
		if err := rows.Scan(&data, &gainedAt); err != nil {
			return nil, fmt.Errorf("scan pending score: %w", err)
		}

		var sc remote.Score
		if err := json.Unmarshal([]byte(data), &sc); err != nil {
			return nil, fmt.Errorf("unmarshal pending score: %w", err)
		}
		sc.GainedAt = time.UnixMilli(gainedAt)
		scores = append(scores, &sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending scores: %w", err)
	}

	return scores, nil
}

// SavePendingScores replaces the persisted queue with scores, keeping order.
func (s *Store) SavePendingScores(ctx context.Context, scores []*remote.Score) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save pending scores: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_scores`); err != nil {
		return fmt.Errorf("save pending scores: clear: %w", err)
	}

	for i, sc := range scores {
		data, err := json.Marshal(sc)
		if err != nil {
			return fmt.Errorf("marshal pending score: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pending_scores (seq, game_mode, score, gained_at)
			VALUES (?, ?, ?, ?)
		`, i+1, sc.GameMode, string(data), sc.GainedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("save pending scores: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save pending scores: commit: %w", err)
	}
	return nil
}
