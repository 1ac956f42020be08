package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authstorage "github.com/campuscycle/campuscycle/internal/services/auth/storage"
	authsqlite "github.com/campuscycle/campuscycle/internal/services/auth/storage/sqlite"
	chatsqlite "github.com/campuscycle/campuscycle/internal/services/chat/storage/sqlite"
	marketsqlite "github.com/campuscycle/campuscycle/internal/services/market/storage/sqlite"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := Config{
		DataDir:       t.TempDir(),
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AppURL:        "http://localhost:3000",
	}
	server, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(server.Close)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return server, srv
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d want 200", resp.StatusCode)
	}
	var body struct {
		OK        bool   `json:"ok"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !body.OK || body.Timestamp == "" {
		t.Fatalf("health body = %+v", body)
	}
}

func TestRoutesAreWired(t *testing.T) {
	server, srv := newTestServer(t)

	err := server.authStore.PutCampus(context.Background(), authstorage.Campus{
		ID: "campus-1", Name: "State University", Code: "STATE",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed campus: %v", err)
	}

	// Registration reaches the identity service.
	payload, _ := json.Marshal(map[string]any{
		"email":    "student@state.edu",
		"password": "password123",
		"name":     "Student",
		"campusId": "campus-1",
	})
	resp, err := http.Post(srv.URL+"/api/auth/register", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d want 201", resp.StatusCode)
	}

	// Marketplace and conversation routes demand authentication.
	for _, path := range []string{"/api/listings", "/api/conversations", "/ws"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s status = %d want 401", path, resp.StatusCode)
		}
	}

	// The public campus directory is open.
	resp, err = http.Get(srv.URL + "/api/campuses")
	if err != nil {
		t.Fatalf("get campuses: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("campuses status = %d want 200", resp.StatusCode)
	}
}

func TestStoresOpenIndependently(t *testing.T) {
	dir := t.TempDir()

	authStore, err := authsqlite.Open(dir + "/auth.db")
	if err != nil {
		t.Fatalf("open auth store: %v", err)
	}
	defer authStore.Close()
	marketStore, err := marketsqlite.Open(dir + "/market.db")
	if err != nil {
		t.Fatalf("open market store: %v", err)
	}
	defer marketStore.Close()
	chatStore, err := chatsqlite.Open(dir + "/chat.db")
	if err != nil {
		t.Fatalf("open chat store: %v", err)
	}
	defer chatStore.Close()
}
