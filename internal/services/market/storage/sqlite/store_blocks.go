package sqlite

import (
	"context"
	"fmt"

	"github.com/campuscycle/campuscycle/internal/services/market/storage"
)

var _ storage.BlockStore = (*Store)(nil)

// PutBlock records blockerID hiding blockedID.
func (s *Store) PutBlock(ctx context.Context, block storage.Block) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO blocks (blocker_id, blocked_id, created_at) VALUES (?, ?, ?)`,
		block.BlockerID, block.BlockedID, toMillis(block.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// DeleteBlock removes a block pair.
func (s *Store) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM blocks WHERE blocker_id = ? AND blocked_id = ?`,
		blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListBlocks returns blocks by blockerID, newest first.
func (s *Store) ListBlocks(ctx context.Context, blockerID string) ([]storage.Block, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT blocker_id, blocked_id, created_at FROM blocks
		WHERE blocker_id = ? ORDER BY created_at DESC, blocked_id`,
		blockerID)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []storage.Block
	for rows.Next() {
		var block storage.Block
		var createdAt int64
		if err := rows.Scan(&block.BlockerID, &block.BlockedID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		block.CreatedAt = fromMillis(createdAt)
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return blocks, nil
}
