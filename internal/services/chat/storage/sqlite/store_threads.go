package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/campuscycle/campuscycle/internal/services/chat/storage"
)

var _ storage.ThreadStore = (*Store)(nil)

const threadColumns = "id, listing_id, buyer_id, seller_id, created_at, updated_at"

// PutThread inserts a thread. A second thread for the same (listing, buyer)
// pair reports ErrAlreadyExists.
func (s *Store) PutThread(ctx context.Context, thread storage.Thread) error {
	if thread.ID == "" {
		return fmt.Errorf("thread id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `INSERT INTO threads (`+threadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		thread.ID, thread.ListingID, thread.BuyerID, thread.SellerID,
		toMillis(thread.CreatedAt), toMillis(thread.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

// GetThread loads one thread by id.
func (s *Store) GetThread(ctx context.Context, id string) (storage.Thread, error) {
	return s.getThreadWhere(ctx, "id = ?", id)
}

// GetThreadByListingBuyer loads the thread for a (listing, buyer) pair.
func (s *Store) GetThreadByListingBuyer(ctx context.Context, listingID, buyerID string) (storage.Thread, error) {
	return s.getThreadWhere(ctx, "listing_id = ? AND buyer_id = ?", listingID, buyerID)
}

func (s *Store) getThreadWhere(ctx context.Context, where string, args ...any) (storage.Thread, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE `+where, args...)
	var thread storage.Thread
	var createdAt, updatedAt int64
	err := row.Scan(&thread.ID, &thread.ListingID, &thread.BuyerID,
		&thread.SellerID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Thread{}, storage.ErrNotFound
		}
		return storage.Thread{}, fmt.Errorf("scan thread: %w", err)
	}
	thread.CreatedAt = fromMillis(createdAt)
	thread.UpdatedAt = fromMillis(updatedAt)
	return thread, nil
}

// ListThreadIDs returns the ids of every thread where userID participates.
func (s *Store) ListThreadIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id FROM threads WHERE buyer_id = ? OR seller_id = ?`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query thread ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread ids: %w", err)
	}
	return ids, nil
}

// ListThreadSummaries returns the viewer's threads ordered by most recent
// activity, ties broken by thread id, each with its last message and the
// viewer's unread count.
func (s *Store) ListThreadSummaries(ctx context.Context, userID string) ([]storage.ThreadSummary, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+threadColumns+` FROM threads
		WHERE buyer_id = ? OR seller_id = ?
		ORDER BY updated_at DESC, id`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var summaries []storage.ThreadSummary
	for rows.Next() {
		var thread storage.Thread
		var createdAt, updatedAt int64
		if err := rows.Scan(&thread.ID, &thread.ListingID, &thread.BuyerID,
			&thread.SellerID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		thread.CreatedAt = fromMillis(createdAt)
		thread.UpdatedAt = fromMillis(updatedAt)
		summaries = append(summaries, storage.ThreadSummary{Thread: thread})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}

	for i := range summaries {
		last, err := s.lastMessage(ctx, summaries[i].Thread.ID)
		if err != nil {
			return nil, err
		}
		summaries[i].LastMessage = last

		unread, err := s.countUnread(ctx, summaries[i].Thread.ID, userID)
		if err != nil {
			return nil, err
		}
		summaries[i].UnreadCount = unread
	}
	return summaries, nil
}

func (s *Store) lastMessage(ctx context.Context, threadID string) (*storage.Message, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE thread_id = ?
		ORDER BY created_at DESC, seq DESC LIMIT 1`,
		threadID)
	message, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (s *Store) countUnread(ctx context.Context, threadID, viewerID string) (int, error) {
	var count int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages
		WHERE thread_id = ? AND sender_id != ? AND read_at IS NULL`,
		threadID, viewerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
