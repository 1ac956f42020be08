// Package rest exposes conversations over plain HTTP for clients without a
// websocket connection.
package rest

import (
	"net/http"
	"time"

	"github.com/campuscycle/campuscycle/internal/platform/httpx"
	"github.com/campuscycle/campuscycle/internal/platform/requestctx"
	authrest "github.com/campuscycle/campuscycle/internal/services/auth/api/rest"
	"github.com/campuscycle/campuscycle/internal/services/chat/app"
)

// Handler serves the conversation REST surface.
type Handler struct {
	svc      *app.Service
	verifier authrest.Verifier
}

// NewHandler builds a conversation handler over the chat service.
func NewHandler(svc *app.Service, verifier authrest.Verifier) *Handler {
	return &Handler{svc: svc, verifier: verifier}
}

// Register mounts the conversation routes on mux. Every route requires an
// authenticated, verified user.
func (h *Handler) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	requireUser := authrest.RequireUser(h.verifier)
	handle := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, httpx.Chain(handler, requireUser))
	}

	handle(http.MethodPost+" /api/conversations", h.handleCreate)
	handle(http.MethodGet+" /api/conversations", h.handleList)
	handle(http.MethodGet+" /api/conversations/{id}/messages", h.handleListMessages)
	handle(http.MethodPost+" /api/conversations/{id}/messages", h.handleSendMessage)
	handle(http.MethodPost+" /api/conversations/{id}/read", h.handleMarkRead)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())

	var body struct {
		ListingID string `json:"listingId"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}

	thread, err := h.svc.CreateOrGetThread(r.Context(), principal, body.ListingID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"thread": threadToView(thread)})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())

	threads, err := h.svc.ListThreads(r.Context(), principal)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	views := make([]threadView, 0, len(threads))
	for _, thread := range threads {
		views = append(views, threadToView(thread))
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"threads": views})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())

	messages, err := h.svc.ListMessages(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	views := make([]messageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, messageToView(message))
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"messages": views})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())

	var body struct {
		Body string `json:"body"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}

	message, err := h.svc.AppendMessage(r.Context(), principal, r.PathValue("id"), body.Body)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, map[string]any{"message": messageToView(message)})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())

	if _, err := h.svc.MarkRead(r.Context(), principal, r.PathValue("id")); err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type userView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type listingView struct {
	ID         string `json:"id"`
	SellerID   string `json:"sellerId"`
	Title      string `json:"title"`
	PriceCents int64  `json:"priceCents"`
	IsGiveaway bool   `json:"isGiveaway"`
	Status     string `json:"status"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

type messageView struct {
	ID        string   `json:"id"`
	ThreadID  string   `json:"threadId"`
	SenderID  string   `json:"senderId"`
	Sender    userView `json:"sender"`
	Body      string   `json:"body"`
	CreatedAt string   `json:"createdAt"`
	ReadAt    string   `json:"readAt,omitempty"`
}

type threadView struct {
	ID          string       `json:"id"`
	Listing     listingView  `json:"listing"`
	Buyer       userView     `json:"buyer"`
	Seller      userView     `json:"seller"`
	LastMessage *messageView `json:"lastMessage,omitempty"`
	UnreadCount int          `json:"unreadCount"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
}

func userToView(user app.UserRef) userView {
	return userView{ID: user.ID, Name: user.Name, Email: user.Email, AvatarURL: user.AvatarURL}
}

func messageToView(message app.MessageView) messageView {
	view := messageView{
		ID:        message.ID,
		ThreadID:  message.ThreadID,
		SenderID:  message.SenderID,
		Sender:    userToView(message.Sender),
		Body:      message.Body,
		CreatedAt: message.CreatedAt.Format(time.RFC3339),
	}
	if message.ReadAt != nil {
		view.ReadAt = message.ReadAt.Format(time.RFC3339)
	}
	return view
}

func threadToView(thread app.ThreadView) threadView {
	view := threadView{
		ID: thread.ID,
		Listing: listingView{
			ID:         thread.Listing.ID,
			SellerID:   thread.Listing.SellerID,
			Title:      thread.Listing.Title,
			PriceCents: thread.Listing.PriceCents,
			IsGiveaway: thread.Listing.Giveaway,
			Status:     thread.Listing.Status,
			ImageURL:   thread.Listing.ImageURL,
		},
		Buyer:       userToView(thread.Buyer),
		Seller:      userToView(thread.Seller),
		UnreadCount: thread.UnreadCount,
		CreatedAt:   thread.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   thread.UpdatedAt.Format(time.RFC3339),
	}
	if thread.LastMessage != nil {
		last := messageToView(*thread.LastMessage)
		view.LastMessage = &last
	}
	return view
}
