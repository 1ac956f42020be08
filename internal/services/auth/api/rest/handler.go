// Package rest exposes the identity service over JSON HTTP endpoints.
package rest

import (
	"net/http"
	"time"

	"github.com/campuscycle/campuscycle/internal/platform/httpx"
	"github.com/campuscycle/campuscycle/internal/platform/requestctx"
	"github.com/campuscycle/campuscycle/internal/services/auth/app"
	"github.com/campuscycle/campuscycle/internal/services/auth/storage"
)

type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	GradYear  int    `json:"gradYear,omitempty"`
	CampusID  string `json:"campusId"`
	Role      string `json:"role"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"createdAt"`
}

type campusView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

func viewFromUser(user storage.User) userView {
	return userView{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		GradYear:  user.GradYear,
		CampusID:  user.CampusID,
		Role:      string(user.Role),
		Verified:  user.Verified,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Handler serves the identity endpoints.
type Handler struct {
	svc *app.Service
}

// NewHandler wires the identity REST handler.
func NewHandler(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the identity routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("GET /api/auth/verify-email", h.handleVerifyEmail)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.Handle("GET /api/auth/me", httpx.Chain(http.HandlerFunc(h.handleAuthMe), OptionalUser(h.svc)))
	mux.Handle("GET /api/users/me", httpx.Chain(http.HandlerFunc(h.handleGetMe), RequireUser(h.svc)))
	mux.Handle("PATCH /api/users/me", httpx.Chain(http.HandlerFunc(h.handleUpdateMe), RequireUser(h.svc)))
	mux.Handle("POST /api/users/me/password", httpx.Chain(http.HandlerFunc(h.handleChangePassword), RequireUser(h.svc)))
	mux.HandleFunc("GET /api/campuses", h.handleListCampuses)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		CampusID string `json:"campusId"`
		GradYear int    `json:"gradYear"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}
	err := h.svc.Register(r.Context(), app.RegisterInput{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
		CampusID: body.CampusID,
		GradYear: body.GradYear,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "registration successful, check your email to verify your account",
	})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}
	session, err := h.svc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
		"user":         viewFromUser(session.User),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}
	accessToken, err := h.svc.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"accessToken": accessToken})
}

func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	// Tokens are stateless; the client discards them.
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleAuthMe is lenient: missing or invalid credentials yield a null user
// rather than an error, so clients can probe session state.
func (h *Handler) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestctx.PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	user, err := h.svc.GetUser(r.Context(), principal.UserID)
	if err != nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": viewFromUser(user)})
}

func (h *Handler) handleGetMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	user, err := h.svc.GetUser(r.Context(), principal.UserID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	view := viewFromUser(user)
	response := map[string]any{"user": view}
	if campus, err := h.svc.GetCampus(r.Context(), user.CampusID); err == nil {
		response["campus"] = campusView{ID: campus.ID, Name: campus.Name, Code: campus.Code}
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	var body struct {
		Name      *string `json:"name"`
		GradYear  *int    `json:"gradYear"`
		AvatarURL *string `json:"avatarUrl"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}
	user, err := h.svc.UpdateProfile(r.Context(), principal.UserID, app.UpdateProfileInput{
		Name:      body.Name,
		GradYear:  body.GradYear,
		AvatarURL: body.AvatarURL,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": viewFromUser(user)})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), principal.UserID, body.CurrentPassword, body.NewPassword); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleListCampuses(w http.ResponseWriter, r *http.Request) {
	campuses, err := h.svc.ListCampuses(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	views := make([]campusView, 0, len(campuses))
	for _, campus := range campuses {
		views = append(views, campusView{ID: campus.ID, Name: campus.Name, Code: campus.Code})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"campuses": views})
}
