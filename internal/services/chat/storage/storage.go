// Package storage defines the chat persistence contracts: the thread
// directory and the append-only message log.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("already exists")

// Thread is a conversation between a buyer and the seller of one listing.
// At most one thread exists per (listing, buyer) pair.
type Thread struct {
	ID        string
	ListingID string
	BuyerID   string
	SellerID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Participant reports whether userID is one of the thread's two parties.
func (t Thread) Participant(userID string) bool {
	return userID != "" && (userID == t.BuyerID || userID == t.SellerID)
}

// Message is one entry in a thread's append-only log. Seq captures global
// insertion order and breaks created-at ties. ReadAt transitions once, from
// nil to the recipient's read time.
type Message struct {
	ID        string
	ThreadID  string
	SenderID  string
	Body      string
	CreatedAt time.Time
	Seq       int64
	ReadAt    *time.Time
}

// ThreadSummary is a thread with its latest message and the unread count for
// one viewer.
type ThreadSummary struct {
	Thread      Thread
	LastMessage *Message
	UnreadCount int
}

// ThreadStore persists the thread directory.
type ThreadStore interface {
	PutThread(ctx context.Context, thread Thread) error
	GetThread(ctx context.Context, id string) (Thread, error)
	GetThreadByListingBuyer(ctx context.Context, listingID, buyerID string) (Thread, error)
	// ListThreadSummaries returns every thread where userID participates,
	// most recently updated first, with per-thread last message and the
	// viewer's unread count.
	ListThreadSummaries(ctx context.Context, userID string) ([]ThreadSummary, error)
	ListThreadIDs(ctx context.Context, userID string) ([]string, error)
}

// MessageStore persists the message log.
type MessageStore interface {
	// AppendMessage stores the message and advances the parent thread's
	// updated_at in the same transaction. The returned message carries the
	// assigned insertion sequence.
	AppendMessage(ctx context.Context, message Message) (Message, error)
	// ListMessages returns the thread's log oldest first, insertion order
	// breaking created-at ties.
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
	// MarkRead stamps readAt on every unread message in the thread that was
	// not sent by readerID. Returns the number of messages updated.
	MarkRead(ctx context.Context, threadID, readerID string, readAt time.Time) (int64, error)
}
