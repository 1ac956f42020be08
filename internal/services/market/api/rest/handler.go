// Package rest exposes the marketplace service over JSON HTTP endpoints.
package rest

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/campuscycle/campuscycle/internal/platform/httpx"
	"github.com/campuscycle/campuscycle/internal/platform/requestctx"
	authrest "github.com/campuscycle/campuscycle/internal/services/auth/api/rest"
	"github.com/campuscycle/campuscycle/internal/services/market/app"
	"github.com/campuscycle/campuscycle/internal/services/market/storage"
)

type sellerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type imageView struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type listingView struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Condition   string      `json:"condition"`
	PriceCents  int64       `json:"priceCents"`
	IsGiveaway  bool        `json:"isGiveaway"`
	Status      string      `json:"status"`
	Location    string      `json:"location,omitempty"`
	Zipcode     string      `json:"zipcode,omitempty"`
	CampusID    string      `json:"campusId"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`
	Images      []imageView `json:"images"`
	Seller      sellerView  `json:"seller"`
}

// Handler serves the marketplace endpoints.
type Handler struct {
	svc      *app.Service
	verifier authrest.Verifier
}

// NewHandler wires the marketplace REST handler.
func NewHandler(svc *app.Service, verifier authrest.Verifier) *Handler {
	return &Handler{svc: svc, verifier: verifier}
}

// Register mounts the marketplace routes on mux. Every route requires an
// authenticated, verified principal.
func (h *Handler) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	require := authrest.RequireUser(h.verifier)
	handle := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, httpx.Chain(handler, require))
	}
	handle("GET /api/listings", h.handleSearch)
	handle("POST /api/listings", h.handleCreateListing)
	handle("GET /api/listings/{id}", h.handleGetListing)
	handle("PATCH /api/listings/{id}", h.handleUpdateListing)
	handle("DELETE /api/listings/{id}", h.handleDeleteListing)
	handle("GET /api/users/me/listings", h.handleMyListings)
	handle("POST /api/blocks", h.handleBlockUser)
	handle("DELETE /api/blocks/{userId}", h.handleUnblockUser)
	handle("GET /api/blocks", h.handleListBlocks)
	handle("POST /api/reports", h.handleCreateReport)
	handle("GET /api/reports", h.handleListReports)
}

func (h *Handler) listingToView(r *http.Request, listing storage.Listing) listingView {
	view := listingView{
		ID:          listing.ID,
		Title:       listing.Title,
		Description: listing.Description,
		Category:    listing.Category,
		Condition:   listing.Condition,
		PriceCents:  listing.PriceCents,
		IsGiveaway:  listing.Giveaway,
		Status:      string(listing.Status),
		Location:    listing.Location,
		Zipcode:     listing.Zipcode,
		CampusID:    listing.CampusID,
		CreatedAt:   listing.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   listing.UpdatedAt.UTC().Format(time.RFC3339),
		Images:      make([]imageView, 0, len(listing.Images)),
		Seller:      sellerView{ID: listing.SellerID},
	}
	for _, image := range listing.Images {
		view.Images = append(view.Images, imageView{ID: image.ID, URL: image.URL, Position: image.Position})
	}
	if seller, err := h.svc.LookupUser(r.Context(), listing.SellerID); err == nil {
		view.Seller = sellerView{ID: seller.ID, Name: seller.Name, Email: seller.Email, AvatarURL: seller.AvatarURL}
	}
	return view
}

func (h *Handler) listingsToViews(r *http.Request, listings []storage.Listing) []listingView {
	views := make([]listingView, 0, len(listings))
	for _, listing := range listings {
		views = append(views, h.listingToView(r, listing))
	}
	return views
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	params := r.URL.Query()

	input := app.SearchInput{
		Keyword:      params.Get("q"),
		Category:     params.Get("category"),
		Condition:    params.Get("condition"),
		GiveawayOnly: params.Get("isGiveaway") == "true",
		Status:       storage.ListingStatus(params.Get("status")),
		Zipcode:      params.Get("zipcode"),
		Sort:         params.Get("sort"),
	}
	if raw := params.Get("minPrice"); raw != "" {
		if cents, err := strconv.ParseInt(raw, 10, 64); err == nil {
			input.MinPriceCents = &cents
		}
	}
	if raw := params.Get("maxPrice"); raw != "" {
		if cents, err := strconv.ParseInt(raw, 10, 64); err == nil {
			input.MaxPriceCents = &cents
		}
	}
	if page, err := strconv.Atoi(params.Get("page")); err == nil {
		input.Page = page
	}

	result, err := h.svc.Search(r.Context(), principal, input)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"listings": h.listingsToViews(r, result.Listings),
		"pagination": map[string]int{
			"page":       result.Page,
			"pageSize":   result.PageSize,
			"total":      result.Total,
			"totalPages": result.TotalPages,
		},
	})
}

func (h *Handler) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	var body struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Condition   string   `json:"condition"`
		PriceCents  int64    `json:"priceCents"`
		IsGiveaway  bool     `json:"isGiveaway"`
		Status      string   `json:"status"`
		Location    string   `json:"location"`
		Zipcode     string   `json:"zipcode"`
		ImageURLs   []string `json:"imageUrls"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}
	listing, err := h.svc.CreateListing(r.Context(), principal, app.CreateListingInput{
		Title:       body.Title,
		Description: body.Description,
		Category:    body.Category,
		Condition:   body.Condition,
		PriceCents:  body.PriceCents,
		Giveaway:    body.IsGiveaway,
		Status:      storage.ListingStatus(body.Status),
		Location:    body.Location,
		Zipcode:     body.Zipcode,
		ImageURLs:   body.ImageURLs,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"listing": h.listingToView(r, listing)})
}

func (h *Handler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	listing, err := h.svc.GetListing(r.Context(), principal, strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"listing": h.listingToView(r, listing)})
}

func (h *Handler) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	var body struct {
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		Category    *string   `json:"category"`
		Condition   *string   `json:"condition"`
		PriceCents  *int64    `json:"priceCents"`
		IsGiveaway  *bool     `json:"isGiveaway"`
		Status      *string   `json:"status"`
		Location    *string   `json:"location"`
		Zipcode     *string   `json:"zipcode"`
		ImageURLs   *[]string `json:"imageUrls"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}
	input := app.UpdateListingInput{
		Title:       body.Title,
		Description: body.Description,
		Category:    body.Category,
		Condition:   body.Condition,
		PriceCents:  body.PriceCents,
		Giveaway:    body.IsGiveaway,
		Location:    body.Location,
		Zipcode:     body.Zipcode,
		ImageURLs:   body.ImageURLs,
	}
	if body.Status != nil {
		status := storage.ListingStatus(*body.Status)
		input.Status = &status
	}
	listing, err := h.svc.UpdateListing(r.Context(), principal, strings.TrimSpace(r.PathValue("id")), input)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"listing": h.listingToView(r, listing)})
}

func (h *Handler) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	if err := h.svc.DeleteListing(r.Context(), principal, strings.TrimSpace(r.PathValue("id"))); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleMyListings(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	listings, err := h.svc.ListMyListings(r.Context(), principal.UserID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"listings": h.listingsToViews(r, listings)})
}

func (h *Handler) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	var body struct {
		UserID string `json:"userId"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}
	block, err := h.svc.BlockUser(r.Context(), principal, strings.TrimSpace(body.UserID))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"block": map[string]string{
			"blockerId": block.BlockerID,
			"blockedId": block.BlockedID,
			"createdAt": block.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
}

func (h *Handler) handleUnblockUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	if err := h.svc.UnblockUser(r.Context(), principal, strings.TrimSpace(r.PathValue("userId"))); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	views, err := h.svc.ListBlocks(r.Context(), principal)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	blocks := make([]map[string]any, 0, len(views))
	for _, view := range views {
		blocks = append(blocks, map[string]any{
			"blockedId": view.Block.BlockedID,
			"createdAt": view.Block.CreatedAt.UTC().Format(time.RFC3339),
			"blocked": sellerView{
				ID:        view.User.ID,
				Name:      view.User.Name,
				Email:     view.User.Email,
				AvatarURL: view.User.AvatarURL,
			},
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

func (h *Handler) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	var body struct {
		ListingID    string `json:"listingId"`
		TargetUserID string `json:"targetUserId"`
		Reason       string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, err)
		return
	}
	report, err := h.svc.CreateReport(r.Context(), principal, app.CreateReportInput{
		ListingID:    strings.TrimSpace(body.ListingID),
		TargetUserID: strings.TrimSpace(body.TargetUserID),
		Reason:       body.Reason,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"report": reportToView(report)})
}

func (h *Handler) handleListReports(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	reports, err := h.svc.ListReports(r.Context(), principal)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(reports))
	for _, report := range reports {
		views = append(views, reportToView(report))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"reports": views})
}

func reportToView(report storage.Report) map[string]any {
	view := map[string]any{
		"id":         report.ID,
		"reporterId": report.ReporterID,
		"reason":     report.Reason,
		"createdAt":  report.CreatedAt.UTC().Format(time.RFC3339),
	}
	if report.ListingID != "" {
		view["listingId"] = report.ListingID
	}
	if report.TargetUserID != "" {
		view["targetUserId"] = report.TargetUserID
	}
	return view
}
