package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/campuscycle/campuscycle/internal/platform/requestctx"
	"github.com/campuscycle/campuscycle/internal/services/chat/app"
	"github.com/campuscycle/campuscycle/internal/services/chat/storage/sqlite"
)

type fakeVerifier struct {
	principals map[string]requestctx.Principal
}

func (f *fakeVerifier) VerifyAccess(_ context.Context, token string) (requestctx.Principal, error) {
	principal, ok := f.principals[token]
	if !ok {
		return requestctx.Principal{}, fmt.Errorf("unknown token")
	}
	return principal, nil
}

type fakeListings struct{}

func (fakeListings) LookupListing(_ context.Context, listingID string) (app.Listing, error) {
	if listingID != "listing-1" {
		return app.Listing{}, fmt.Errorf("listing %s not found", listingID)
	}
	return app.Listing{
		ID: "listing-1", SellerID: "bob", CampusID: "campus-1",
		Title: "Desk lamp", PriceCents: 1500, Status: "AVAILABLE",
	}, nil
}

type fakeUsers struct{}

func (fakeUsers) LookupUser(_ context.Context, userID string) (app.UserRef, error) {
	return app.UserRef{ID: userID, Name: "User " + userID, Email: userID + "@state.edu"}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := app.NewService(store, store, fakeListings{}, fakeUsers{})
	verifier := &fakeVerifier{principals: map[string]requestctx.Principal{
		"alice-token": {UserID: "alice", CampusID: "campus-1", Role: "STUDENT", Verified: true},
		"bob-token":   {UserID: "bob", CampusID: "campus-1", Role: "STUDENT", Verified: true},
		"carol-token": {UserID: "carol", CampusID: "campus-1", Role: "STUDENT", Verified: true},
		"eve-token":   {UserID: "eve", CampusID: "campus-2", Role: "STUDENT", Verified: true},
	}}

	mux := http.NewServeMux()
	NewHandler(svc, verifier).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createConversation(t *testing.T, srv *httptest.Server, token string) string {
	t.Helper()
	resp := doJSON(t, srv, http.MethodPost, "/api/conversations", token,
		map[string]string{"listingId": "listing-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create conversation status = %d", resp.StatusCode)
	}
	var body struct {
		Thread threadView `json:"thread"`
	}
	decodeBody(t, resp, &body)
	return body.Thread.ID
}

func TestConversationsRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodGet, "/api/conversations", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d want 401", resp.StatusCode)
	}
}

func TestCreateConversation(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/conversations", "alice-token",
		map[string]string{"listingId": "listing-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d want 200", resp.StatusCode)
	}
	var body struct {
		Thread threadView `json:"thread"`
	}
	decodeBody(t, resp, &body)
	if body.Thread.Listing.Title != "Desk lamp" {
		t.Fatalf("listing title = %q", body.Thread.Listing.Title)
	}
	if body.Thread.Buyer.ID != "alice" || body.Thread.Seller.ID != "bob" {
		t.Fatalf("participants = %q, %q", body.Thread.Buyer.ID, body.Thread.Seller.ID)
	}

	// Repeating returns the same thread.
	again := createConversation(t, srv, "alice-token")
	if again != body.Thread.ID {
		t.Fatalf("got thread %q want %q", again, body.Thread.ID)
	}
}

func TestCreateConversationRejections(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name      string
		token     string
		listingID string
		want      int
	}{
		{"missing listing", "alice-token", "missing", http.StatusNotFound},
		{"other campus", "eve-token", "listing-1", http.StatusNotFound},
		{"own listing", "bob-token", "listing-1", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, srv, http.MethodPost, "/api/conversations", tc.token,
				map[string]string{"listingId": tc.listingID})
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	threadID := createConversation(t, srv, "alice-token")

	resp := doJSON(t, srv, http.MethodPost, "/api/conversations/"+threadID+"/messages",
		"alice-token", map[string]string{"body": "still available?"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d want 201", resp.StatusCode)
	}
	var sent struct {
		Message messageView `json:"message"`
	}
	decodeBody(t, resp, &sent)
	if sent.Message.SenderID != "alice" || sent.Message.Body != "still available?" {
		t.Fatalf("message = %+v", sent.Message)
	}

	resp = doJSON(t, srv, http.MethodGet, "/api/conversations/"+threadID+"/messages",
		"bob-token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d want 200", resp.StatusCode)
	}
	var listed struct {
		Messages []messageView `json:"messages"`
	}
	decodeBody(t, resp, &listed)
	if len(listed.Messages) != 1 || listed.Messages[0].ID != sent.Message.ID {
		t.Fatalf("messages = %+v", listed.Messages)
	}
}

func TestMessagesForbiddenForOutsider(t *testing.T) {
	srv := newTestServer(t)
	threadID := createConversation(t, srv, "alice-token")

	resp := doJSON(t, srv, http.MethodGet, "/api/conversations/"+threadID+"/messages",
		"carol-token", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d want 403", resp.StatusCode)
	}

	resp = doJSON(t, srv, http.MethodGet, "/api/conversations/missing/messages",
		"carol-token", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing thread status = %d want 404", resp.StatusCode)
	}
}

func TestListConversationsWithUnread(t *testing.T) {
	srv := newTestServer(t)
	threadID := createConversation(t, srv, "alice-token")

	resp := doJSON(t, srv, http.MethodPost, "/api/conversations/"+threadID+"/messages",
		"alice-token", map[string]string{"body": "ping"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d", resp.StatusCode)
	}

	resp = doJSON(t, srv, http.MethodGet, "/api/conversations", "bob-token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var body struct {
		Threads []threadView `json:"threads"`
	}
	decodeBody(t, resp, &body)
	if len(body.Threads) != 1 {
		t.Fatalf("got %d threads want 1", len(body.Threads))
	}
	if body.Threads[0].UnreadCount != 1 {
		t.Fatalf("unread = %d want 1", body.Threads[0].UnreadCount)
	}
	if body.Threads[0].LastMessage == nil || body.Threads[0].LastMessage.Body != "ping" {
		t.Fatalf("last message = %+v", body.Threads[0].LastMessage)
	}

	// Reading clears the counter.
	resp = doJSON(t, srv, http.MethodPost, "/api/conversations/"+threadID+"/read",
		"bob-token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read status = %d", resp.StatusCode)
	}
	var ok struct {
		OK bool `json:"ok"`
	}
	decodeBody(t, resp, &ok)
	if !ok.OK {
		t.Fatalf("expected ok response")
	}

	resp = doJSON(t, srv, http.MethodGet, "/api/conversations", "bob-token", nil)
	decodeBody(t, resp, &body)
	if body.Threads[0].UnreadCount != 0 {
		t.Fatalf("unread after read = %d", body.Threads[0].UnreadCount)
	}
}
