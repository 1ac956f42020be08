package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campuscycle/campuscycle/internal/services/auth/app"
	"github.com/campuscycle/campuscycle/internal/services/auth/storage"
	"github.com/campuscycle/campuscycle/internal/services/auth/storage/sqlite"
	"github.com/campuscycle/campuscycle/internal/services/auth/token"
)

type recordingMailer struct {
	links []string
}

func (m *recordingMailer) SendVerification(_ context.Context, _ string, link string) error {
	m.links = append(m.links, link)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store, *recordingMailer) {
	t.Helper()
	store, err := sqlite.Open(t.TempDir() + "/auth.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	issuer, err := token.NewIssuer("access-secret", "refresh-secret", time.Now)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	mailer := &recordingMailer{}
	svc, err := app.NewService(store, store, issuer, mailer, "http://app.test")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := store.PutCampus(context.Background(), storage.Campus{
		ID: "campus-1", Name: "State University", Code: "state",
	}); err != nil {
		t.Fatalf("put campus: %v", err)
	}

	mux := http.NewServeMux()
	NewHandler(svc).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store, mailer
}

func postJSON(t *testing.T, url string, accessToken string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func registerAndVerify(t *testing.T, server *httptest.Server, mailer *recordingMailer, email string) {
	t.Helper()
	resp := postJSON(t, server.URL+"/api/auth/register", "", map[string]any{
		"email":    email,
		"password": "password123",
		"name":     "Alex Rivera",
		"campusId": "campus-1",
		"gradYear": 2027,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	link := mailer.links[len(mailer.links)-1]
	verifyToken := link[strings.Index(link, "token=")+len("token="):]
	verifyResp, err := http.Get(server.URL + "/api/auth/verify-email?token=" + verifyToken)
	if err != nil {
		t.Fatalf("verify email: %v", err)
	}
	verifyResp.Body.Close()
	if verifyResp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d, want 200", verifyResp.StatusCode)
	}
}

func login(t *testing.T, server *httptest.Server, email string) (string, string) {
	t.Helper()
	resp := postJSON(t, server.URL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	access, _ := body["accessToken"].(string)
	refresh, _ := body["refreshToken"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("login body = %v", body)
	}
	return access, refresh
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	server, _, mailer := newTestServer(t)
	registerAndVerify(t, server, mailer, "alex@state.edu")
	accessToken, _ := login(t, server, "alex@state.edu")

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get me: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	user, _ := body["user"].(map[string]any)
	if user["email"] != "alex@state.edu" {
		t.Errorf("user = %v", user)
	}
	campus, _ := body["campus"].(map[string]any)
	if campus["name"] != "State University" {
		t.Errorf("campus = %v", campus)
	}
}

func TestRegisterRejectsNonEduEmail(t *testing.T) {
	server, _, _ := newTestServer(t)
	resp := postJSON(t, server.URL+"/api/auth/register", "", map[string]any{
		"email":    "alex@gmail.com",
		"password": "password123",
		"name":     "Alex",
		"campusId": "campus-1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLoginUnverifiedIsForbidden(t *testing.T) {
	server, _, _ := newTestServer(t)
	resp := postJSON(t, server.URL+"/api/auth/register", "", map[string]any{
		"email":    "alex@state.edu",
		"password": "password123",
		"name":     "Alex",
		"campusId": "campus-1",
	})
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/auth/login", "", map[string]string{
		"email":    "alex@state.edu",
		"password": "password123",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestLoginBadPasswordIsUnauthorized(t *testing.T) {
	server, _, mailer := newTestServer(t)
	registerAndVerify(t, server, mailer, "alex@state.edu")

	resp := postJSON(t, server.URL+"/api/auth/login", "", map[string]string{
		"email":    "alex@state.edu",
		"password": "wrong-password",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuthMeIsLenient(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/auth/me")
	if err != nil {
		t.Fatalf("get me: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if user, ok := body["user"]; !ok || user != nil {
		t.Errorf("body = %v, want null user", body)
	}
}

func TestAuthMeWithToken(t *testing.T) {
	server, _, mailer := newTestServer(t)
	registerAndVerify(t, server, mailer, "alex@state.edu")
	accessToken, _ := login(t, server, "alex@state.edu")

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get me: %v", err)
	}
	body := decodeBody(t, resp)
	user, _ := body["user"].(map[string]any)
	if user["email"] != "alex@state.edu" {
		t.Errorf("user = %v", user)
	}
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	server, _, mailer := newTestServer(t)
	registerAndVerify(t, server, mailer, "alex@state.edu")
	_, refreshToken := login(t, server, "alex@state.edu")

	resp := postJSON(t, server.URL+"/api/auth/refresh", "", map[string]string{
		"refreshToken": refreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if access, _ := body["accessToken"].(string); access == "" {
		t.Fatalf("body = %v", body)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/users/me")
	if err != nil {
		t.Fatalf("get me: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestUpdateProfileRoute(t *testing.T) {
	server, _, mailer := newTestServer(t)
	registerAndVerify(t, server, mailer, "alex@state.edu")
	accessToken, _ := login(t, server, "alex@state.edu")

	payload, _ := json.Marshal(map[string]any{"name": "Alex R.", "gradYear": 2028})
	req, _ := http.NewRequest(http.MethodPatch, server.URL+"/api/users/me", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch me: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	user, _ := body["user"].(map[string]any)
	if user["name"] != "Alex R." {
		t.Errorf("user = %v", user)
	}
}

func TestChangePasswordRoute(t *testing.T) {
	server, _, mailer := newTestServer(t)
	registerAndVerify(t, server, mailer, "alex@state.edu")
	accessToken, _ := login(t, server, "alex@state.edu")

	resp := postJSON(t, server.URL+"/api/users/me/password", accessToken, map[string]string{
		"currentPassword": "password123",
		"newPassword":     "password456",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp = postJSON(t, server.URL+"/api/auth/login", "", map[string]string{
		"email":    "alex@state.edu",
		"password": "password456",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password status = %d, want 200", resp.StatusCode)
	}
}

func TestListCampusesIsPublic(t *testing.T) {
	server, store, _ := newTestServer(t)
	if err := store.PutCampus(context.Background(), storage.Campus{
		ID: "campus-2", Name: "City College", Code: "city",
	}); err != nil {
		t.Fatalf("put campus: %v", err)
	}

	resp, err := http.Get(server.URL + "/api/campuses")
	if err != nil {
		t.Fatalf("get campuses: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	campuses, _ := body["campuses"].([]any)
	if len(campuses) != 2 {
		t.Fatalf("campuses = %v", campuses)
	}
	first, _ := campuses[0].(map[string]any)
	if first["name"] != "City College" {
		t.Errorf("first campus = %v, want City College (name order)", first)
	}
}
