package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campuscycle/campuscycle/internal/services/chat/storage"
)

var _ storage.MessageStore = (*Store)(nil)

const messageColumns = "id, thread_id, sender_id, body, created_at, seq, read_at"

// AppendMessage inserts the message, assigns its insertion sequence and
// advances the parent thread's updated_at, all in one transaction. Appending
// to a missing thread reports ErrNotFound.
func (s *Store) AppendMessage(ctx context.Context, message storage.Message) (storage.Message, error) {
	if message.ID == "" {
		return storage.Message{}, fmt.Errorf("message id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Message{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := toMillis(message.CreatedAt)

	result, err := tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`,
		createdAt, message.ThreadID)
	if err != nil {
		return storage.Message{}, fmt.Errorf("touch thread: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.Message{}, fmt.Errorf("touch thread rows: %w", err)
	}
	if affected == 0 {
		return storage.Message{}, storage.ErrNotFound
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages`).Scan(&message.Seq)
	if err != nil {
		return storage.Message{}, fmt.Errorf("assign sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		message.ID, message.ThreadID, message.SenderID, message.Body,
		createdAt, message.Seq)
	if err != nil {
		return storage.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.Message{}, fmt.Errorf("commit message: %w", err)
	}
	message.ReadAt = nil
	return message, nil
}

// ListMessages returns a thread's messages oldest first, equal timestamps
// ordered by insertion sequence.
func (s *Store) ListMessages(ctx context.Context, threadID string) ([]storage.Message, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE thread_id = ?
		ORDER BY created_at ASC, seq ASC`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []storage.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// MarkRead stamps every unread message in the thread that the reader did not
// send. It returns the number of messages stamped.
func (s *Store) MarkRead(ctx context.Context, threadID, readerID string, readAt time.Time) (int64, error) {
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE messages SET read_at = ?
		WHERE thread_id = ? AND sender_id != ? AND read_at IS NULL`,
		toMillis(readAt), threadID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark read rows: %w", err)
	}
	return affected, nil
}

func scanMessage(row rowScanner) (storage.Message, error) {
	var message storage.Message
	var createdAt int64
	var readAt sql.NullInt64
	err := row.Scan(&message.ID, &message.ThreadID, &message.SenderID,
		&message.Body, &createdAt, &message.Seq, &readAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Message{}, storage.ErrNotFound
		}
		return storage.Message{}, fmt.Errorf("scan message: %w", err)
	}
	message.CreatedAt = fromMillis(createdAt)
	if readAt.Valid {
		t := fromMillis(readAt.Int64)
		message.ReadAt = &t
	}
	return message, nil
}
