// Package ws serves the realtime conversation socket. Clients subscribe to
// their thread rooms and exchange message and read-receipt events without
// polling the REST surface.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	apperrors "github.com/campuscycle/campuscycle/internal/platform/errors"
	"github.com/campuscycle/campuscycle/internal/platform/httpx"
	"github.com/campuscycle/campuscycle/internal/platform/requestctx"
	"github.com/campuscycle/campuscycle/internal/platform/timeouts"
	authrest "github.com/campuscycle/campuscycle/internal/services/auth/api/rest"
	"github.com/campuscycle/campuscycle/internal/services/chat/app"
)

const (
	maxDecodeErrorsPerConn = 3
	maxFramesPerSecond     = 20
)

// Inbound event types.
const (
	eventJoinThreads = "join-threads"
	eventJoinThread  = "join-thread"
	eventMessage     = "message"
	eventMarkRead    = "mark-read"
)

// Outbound event types.
const (
	eventMessagesRead = "messages-read"
	eventError        = "error"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type joinThreadPayload struct {
	ThreadID string `json:"threadId"`
}

type messagePayload struct {
	ThreadID string `json:"threadId"`
	Body     string `json:"body"`
}

type markReadPayload struct {
	ThreadID string `json:"threadId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type messagesReadPayload struct {
	ThreadID string `json:"threadId"`
	UserID   string `json:"userId"`
}

// peer serializes writes to one websocket connection.
type peer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{enc: json.NewEncoder(conn)}
}

func (p *peer) send(f outFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(f); err != nil {
		log.Printf("ws: send %s frame: %v", f.Type, err)
	}
}

func (p *peer) sendError(message string) {
	p.send(outFrame{Type: eventError, Payload: errorPayload{Message: message}})
}

// hub tracks which peers are subscribed to which thread rooms.
type hub struct {
	mu    sync.Mutex
	rooms map[string]map[*peer]struct{}
}

func newHub() *hub {
	return &hub{rooms: make(map[string]map[*peer]struct{})}
}

func (h *hub) subscribe(threadID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[threadID]
	if !ok {
		room = make(map[*peer]struct{})
		h.rooms[threadID] = room
	}
	room[p] = struct{}{}
}

func (h *hub) unsubscribeAll(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for threadID, room := range h.rooms {
		delete(room, p)
		if len(room) == 0 {
			delete(h.rooms, threadID)
		}
	}
}

func (h *hub) broadcast(threadID string, f outFrame) {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.rooms[threadID]))
	for p := range h.rooms[threadID] {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.send(f)
	}
}

// Handler upgrades authenticated requests to websocket sessions.
type Handler struct {
	svc      *app.Service
	verifier authrest.Verifier
	hub      *hub
}

// NewHandler builds the realtime handler over the chat service.
func NewHandler(svc *app.Service, verifier authrest.Verifier) *Handler {
	return &Handler{svc: svc, verifier: verifier, hub: newHub()}
}

// Register mounts the socket endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.Handle("/ws", h)
}

// ServeHTTP authenticates the request and hands the connection to the frame
// loop. Authentication happens before the upgrade so rejected clients get a
// plain HTTP status instead of a dropped socket.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := httpx.BearerToken(r)
	if token == "" {
		httpx.WriteJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	principal, err := h.verifier.VerifyAccess(r.Context(), token)
	if err != nil {
		httpx.WriteJSONError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if !principal.Verified {
		httpx.WriteJSONError(w, http.StatusForbidden, "email not verified")
		return
	}

	ctx := requestctx.WithPrincipal(r.Context(), principal)
	websocket.Handler(h.serveConn).ServeHTTP(w, r.WithContext(ctx))
}

func (h *Handler) serveConn(conn *websocket.Conn) {
	defer conn.Close()

	principal, ok := requestctx.PrincipalFromContext(conn.Request().Context())
	if !ok {
		return
	}

	p := newPeer(conn)
	defer h.hub.unsubscribeAll(p)

	dec := json.NewDecoder(conn)
	decodeErrors := 0
	windowStart := time.Now()
	windowFrames := 0

	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			decodeErrors++
			if decodeErrors >= maxDecodeErrorsPerConn {
				p.sendError("too many malformed frames")
				return
			}
			p.sendError("malformed frame")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			windowFrames = 0
		}
		windowFrames++
		if windowFrames > maxFramesPerSecond {
			p.sendError("rate limit exceeded")
			return
		}

		h.handleFrame(conn, p, principal, f)
	}
}

// handleFrame dispatches one inbound event. Business failures answer the
// offending peer only and never terminate the session. Each event's storage
// work runs under the shared request timeout so a stalled round-trip cannot
// pin the connection.
func (h *Handler) handleFrame(conn *websocket.Conn, p *peer, principal requestctx.Principal, f frame) {
	ctx, cancel := context.WithTimeout(conn.Request().Context(), timeouts.Request)
	defer cancel()

	switch f.Type {
	case eventJoinThreads:
		ids, err := h.svc.ListThreadIDs(ctx, principal.UserID)
		if err != nil {
			log.Printf("ws: join-threads for %s: %v", principal.UserID, err)
			p.sendError("could not join threads")
			return
		}
		for _, id := range ids {
			h.hub.subscribe(id, p)
		}

	case eventJoinThread:
		var payload joinThreadPayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil || payload.ThreadID == "" {
			p.sendError("join-thread requires a threadId")
			return
		}
		if _, err := h.svc.GetThread(ctx, principal, payload.ThreadID); err != nil {
			p.sendError(businessMessage(err, "could not join thread"))
			return
		}
		h.hub.subscribe(payload.ThreadID, p)

	case eventMessage:
		var payload messagePayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil || payload.ThreadID == "" {
			p.sendError("message requires a threadId and body")
			return
		}
		message, err := h.svc.AppendMessage(ctx, principal, payload.ThreadID, payload.Body)
		if err != nil {
			p.sendError(businessMessage(err, "could not send message"))
			return
		}
		h.hub.broadcast(payload.ThreadID, outFrame{
			Type:    eventMessage,
			Payload: messageToWire(message),
		})

	case eventMarkRead:
		var payload markReadPayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil || payload.ThreadID == "" {
			p.sendError("mark-read requires a threadId")
			return
		}
		if _, err := h.svc.MarkRead(ctx, principal, payload.ThreadID); err != nil {
			p.sendError(businessMessage(err, "could not mark read"))
			return
		}
		h.hub.broadcast(payload.ThreadID, outFrame{
			Type:    eventMessagesRead,
			Payload: messagesReadPayload{ThreadID: payload.ThreadID, UserID: principal.UserID},
		})

	default:
		p.sendError("unknown event type")
	}
}

// businessMessage surfaces application error messages to the peer and hides
// everything else behind a fallback.
func businessMessage(err error, fallback string) string {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	log.Printf("ws: %s: %v", fallback, err)
	return fallback
}

type wireUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type wireMessage struct {
	ID        string   `json:"id"`
	ThreadID  string   `json:"threadId"`
	SenderID  string   `json:"senderId"`
	Sender    wireUser `json:"sender"`
	Body      string   `json:"body"`
	CreatedAt string   `json:"createdAt"`
	ReadAt    string   `json:"readAt,omitempty"`
}

func messageToWire(message app.MessageView) wireMessage {
	wire := wireMessage{
		ID:       message.ID,
		ThreadID: message.ThreadID,
		SenderID: message.SenderID,
		Sender: wireUser{
			ID:        message.Sender.ID,
			Name:      message.Sender.Name,
			AvatarURL: message.Sender.AvatarURL,
		},
		Body:      message.Body,
		CreatedAt: message.CreatedAt.Format(time.RFC3339Nano),
	}
	if message.ReadAt != nil {
		wire.ReadAt = message.ReadAt.Format(time.RFC3339Nano)
	}
	return wire
}
