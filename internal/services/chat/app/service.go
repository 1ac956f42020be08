// Package app implements the conversation workflows between buyers and
// sellers: thread creation, message delivery and read receipts.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	apperrors "github.com/campuscycle/campuscycle/internal/platform/errors"
	"github.com/campuscycle/campuscycle/internal/platform/id"
	"github.com/campuscycle/campuscycle/internal/platform/requestctx"
	"github.com/campuscycle/campuscycle/internal/services/chat/storage"
)

const maxBodyLength = 5000

// Listing is the slice of a marketplace listing that conversations need.
type Listing struct {
	ID         string
	SellerID   string
	CampusID   string
	Title      string
	PriceCents int64
	Giveaway   bool
	Status     string
	ImageURL   string
}

// UserRef is a participant profile attached to thread and message views.
type UserRef struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// ListingLookup resolves listings owned by the marketplace service.
type ListingLookup interface {
	LookupListing(ctx context.Context, listingID string) (Listing, error)
}

// UserLookup resolves participant profiles owned by the identity service.
type UserLookup interface {
	LookupUser(ctx context.Context, userID string) (UserRef, error)
}

// ThreadView is a thread enriched with its listing and participant profiles.
type ThreadView struct {
	ID          string
	Listing     Listing
	Buyer       UserRef
	Seller      UserRef
	LastMessage *MessageView
	UnreadCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MessageView is a message enriched with its sender's profile.
type MessageView struct {
	ID        string
	ThreadID  string
	SenderID  string
	Sender    UserRef
	Body      string
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Service coordinates thread and message operations.
type Service struct {
	threads  storage.ThreadStore
	messages storage.MessageStore
	listings ListingLookup
	users    UserLookup
	now      func() time.Time
}

// NewService wires a chat service over its storage and collaborators.
func NewService(threads storage.ThreadStore, messages storage.MessageStore, listings ListingLookup, users UserLookup) *Service {
	return &Service{
		threads:  threads,
		messages: messages,
		listings: listings,
		users:    users,
		now:      time.Now,
	}
}

// CreateOrGetThread finds or creates the conversation between the requester
// and a listing's seller. Listings outside the requester's campus are treated
// as missing, and sellers cannot open threads on their own listings.
func (s *Service) CreateOrGetThread(ctx context.Context, principal requestctx.Principal, listingID string) (ThreadView, error) {
	listing, err := s.listings.LookupListing(ctx, listingID)
	if err != nil || listing.CampusID != principal.CampusID {
		return ThreadView{}, apperrors.New(apperrors.CodeNotFound, "listing not found")
	}
	if listing.SellerID == principal.UserID {
		return ThreadView{}, apperrors.New(apperrors.CodeChatSelfThread, "cannot message yourself")
	}

	thread, err := s.threads.GetThreadByListingBuyer(ctx, listingID, principal.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		threadID, idErr := id.NewID()
		if idErr != nil {
			return ThreadView{}, fmt.Errorf("new thread id: %w", idErr)
		}
		now := s.now().UTC()
		thread = storage.Thread{
			ID:        threadID,
			ListingID: listingID,
			BuyerID:   principal.UserID,
			SellerID:  listing.SellerID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = s.threads.PutThread(ctx, thread)
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Lost a create race; the winner's thread is the answer.
			thread, err = s.threads.GetThreadByListingBuyer(ctx, listingID, principal.UserID)
		}
	}
	if err != nil {
		return ThreadView{}, fmt.Errorf("resolve thread: %w", err)
	}

	return s.threadView(ctx, storage.ThreadSummary{Thread: thread}, listing), nil
}

// ListThreads returns the requester's conversations, most recently active
// first, enriched with listings, profiles and unread counts.
func (s *Service) ListThreads(ctx context.Context, principal requestctx.Principal) ([]ThreadView, error) {
	summaries, err := s.threads.ListThreadSummaries(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	views := make([]ThreadView, 0, len(summaries))
	for _, summary := range summaries {
		listing, err := s.listings.LookupListing(ctx, summary.Thread.ListingID)
		if err != nil {
			log.Printf("chat: lookup listing %s: %v", summary.Thread.ListingID, err)
			listing = Listing{ID: summary.Thread.ListingID}
		}
		views = append(views, s.threadView(ctx, summary, listing))
	}
	return views, nil
}

// GetThread loads a thread the requester participates in.
func (s *Service) GetThread(ctx context.Context, principal requestctx.Principal, threadID string) (storage.Thread, error) {
	thread, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Thread{}, apperrors.New(apperrors.CodeNotFound, "conversation not found")
		}
		return storage.Thread{}, fmt.Errorf("get thread: %w", err)
	}
	if !thread.Participant(principal.UserID) {
		return storage.Thread{}, apperrors.New(apperrors.CodeChatNotParticipant, "not a participant")
	}
	return thread, nil
}

// AppendMessage delivers a message from the requester into a thread.
func (s *Service) AppendMessage(ctx context.Context, principal requestctx.Principal, threadID, body string) (MessageView, error) {
	length := utf8.RuneCountInString(body)
	if length == 0 || length > maxBodyLength {
		return MessageView{}, apperrors.New(apperrors.CodeChatBodyInvalid, "message body must be 1 to 5000 characters")
	}

	thread, err := s.GetThread(ctx, principal, threadID)
	if err != nil {
		return MessageView{}, err
	}

	messageID, err := id.NewID()
	if err != nil {
		return MessageView{}, fmt.Errorf("new message id: %w", err)
	}
	message, err := s.messages.AppendMessage(ctx, storage.Message{
		ID:        messageID,
		ThreadID:  thread.ID,
		SenderID:  principal.UserID,
		Body:      body,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return MessageView{}, fmt.Errorf("append message: %w", err)
	}
	return s.messageView(ctx, message), nil
}

// ListMessages returns a thread's messages oldest first.
func (s *Service) ListMessages(ctx context.Context, principal requestctx.Principal, threadID string) ([]MessageView, error) {
	if _, err := s.GetThread(ctx, principal, threadID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	views := make([]MessageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, s.messageView(ctx, message))
	}
	return views, nil
}

// MarkRead stamps the requester's unread messages in a thread and reports how
// many were stamped. A missing thread is a no-op so read receipts from stale
// clients stay harmless.
func (s *Service) MarkRead(ctx context.Context, principal requestctx.Principal, threadID string) (int64, error) {
	thread, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get thread: %w", err)
	}
	if !thread.Participant(principal.UserID) {
		return 0, apperrors.New(apperrors.CodeChatNotParticipant, "not a participant")
	}

	stamped, err := s.messages.MarkRead(ctx, thread.ID, principal.UserID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return stamped, nil
}

// ListThreadIDs reports every thread the user participates in. The realtime
// layer uses it to subscribe a session to its rooms.
func (s *Service) ListThreadIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.threads.ListThreadIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list thread ids: %w", err)
	}
	return ids, nil
}

func (s *Service) threadView(ctx context.Context, summary storage.ThreadSummary, listing Listing) ThreadView {
	view := ThreadView{
		ID:          summary.Thread.ID,
		Listing:     listing,
		Buyer:       s.lookupUser(ctx, summary.Thread.BuyerID),
		Seller:      s.lookupUser(ctx, summary.Thread.SellerID),
		UnreadCount: summary.UnreadCount,
		CreatedAt:   summary.Thread.CreatedAt,
		UpdatedAt:   summary.Thread.UpdatedAt,
	}
	if summary.LastMessage != nil {
		last := s.messageView(ctx, *summary.LastMessage)
		view.LastMessage = &last
	}
	return view
}

func (s *Service) messageView(ctx context.Context, message storage.Message) MessageView {
	return MessageView{
		ID:        message.ID,
		ThreadID:  message.ThreadID,
		SenderID:  message.SenderID,
		Sender:    s.lookupUser(ctx, message.SenderID),
		Body:      message.Body,
		CreatedAt: message.CreatedAt,
		ReadAt:    message.ReadAt,
	}
}

func (s *Service) lookupUser(ctx context.Context, userID string) UserRef {
	user, err := s.users.LookupUser(ctx, userID)
	if err != nil {
		log.Printf("chat: lookup user %s: %v", userID, err)
		return UserRef{ID: userID}
	}
	return user
}
