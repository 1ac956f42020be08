// Package app implements the marketplace behavior: campus-scoped listings,
// search, blocks, and moderation reports.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/campuscycle/campuscycle/internal/platform/errors"
	"github.com/campuscycle/campuscycle/internal/platform/id"
	"github.com/campuscycle/campuscycle/internal/platform/requestctx"
	"github.com/campuscycle/campuscycle/internal/services/market/storage"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxReasonLength      = 1000
	maxImages            = 5
)

// UserRef is the participant-visible slice of an account, resolved through
// the identity service.
type UserRef struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
	CampusID  string
}

// UserDirectory resolves account references for campus checks and response
// enrichment.
type UserDirectory interface {
	LookupUser(ctx context.Context, userID string) (UserRef, error)
}

// ListingRef is the listing summary shared with collaborating services.
type ListingRef struct {
	ID         string
	SellerID   string
	CampusID   string
	Title      string
	PriceCents int64
	Giveaway   bool
	Status     storage.ListingStatus
	ImageURL   string
}

// CreateListingInput carries a new listing.
type CreateListingInput struct {
	Title       string
	Description string
	Category    string
	Condition   string
	PriceCents  int64
	Giveaway    bool
	Status      storage.ListingStatus
	Location    string
	Zipcode     string
	ImageURLs   []string
}

// UpdateListingInput carries a partial listing update. Nil fields are left
// unchanged.
type UpdateListingInput struct {
	Title       *string
	Description *string
	Category    *string
	Condition   *string
	PriceCents  *int64
	Giveaway    *bool
	Status      *storage.ListingStatus
	Location    *string
	Zipcode     *string
	ImageURLs   *[]string
}

// SearchInput carries the catalog search filters.
type SearchInput struct {
	Keyword       string
	Category      string
	Condition     string
	MinPriceCents *int64
	MaxPriceCents *int64
	GiveawayOnly  bool
	Status        storage.ListingStatus
	Zipcode       string
	Sort          string
	Page          int
}

// BlockView pairs a block with the blocked user's profile.
type BlockView struct {
	Block storage.Block
	User  UserRef
}

// CreateReportInput carries a moderation report.
type CreateReportInput struct {
	ListingID    string
	TargetUserID string
	Reason       string
}

// Service implements the marketplace operations.
type Service struct {
	listings storage.ListingStore
	blocks   storage.BlockStore
	reports  storage.ReportStore
	users    UserDirectory
	now      func() time.Time
}

// NewService wires a marketplace service.
func NewService(listings storage.ListingStore, blocks storage.BlockStore, reports storage.ReportStore, users UserDirectory) (*Service, error) {
	if listings == nil {
		return nil, errors.New("listing store is required")
	}
	if blocks == nil {
		return nil, errors.New("block store is required")
	}
	if reports == nil {
		return nil, errors.New("report store is required")
	}
	if users == nil {
		return nil, errors.New("user directory is required")
	}
	return &Service{
		listings: listings,
		blocks:   blocks,
		reports:  reports,
		users:    users,
		now:      time.Now,
	}, nil
}

// CreateListing validates and stores a new listing in the seller's campus.
func (s *Service) CreateListing(ctx context.Context, principal requestctx.Principal, input CreateListingInput) (storage.Listing, error) {
	if err := validateListingFields(input.Title, input.Description, input.Category, input.Condition, input.PriceCents); err != nil {
		return storage.Listing{}, err
	}
	status := input.Status
	if status == "" {
		status = storage.StatusAvailable
	}
	if !storage.ValidStatus(status) {
		return storage.Listing{}, apperrors.New(apperrors.CodeValidation, "invalid status")
	}
	if len(input.ImageURLs) > maxImages {
		return storage.Listing{}, apperrors.New(apperrors.CodeValidation, "at most 5 images allowed")
	}

	listingID, err := id.NewID()
	if err != nil {
		return storage.Listing{}, fmt.Errorf("new listing id: %w", err)
	}
	images, err := buildImages(listingID, input.ImageURLs)
	if err != nil {
		return storage.Listing{}, err
	}

	now := s.now().UTC()
	listing := storage.Listing{
		ID:          listingID,
		SellerID:    principal.UserID,
		CampusID:    principal.CampusID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Condition:   input.Condition,
		PriceCents:  input.PriceCents,
		Giveaway:    input.Giveaway,
		Status:      status,
		Location:    strings.TrimSpace(input.Location),
		Zipcode:     strings.TrimSpace(input.Zipcode),
		CreatedAt:   now,
		UpdatedAt:   now,
		Images:      images,
	}
	if err := s.listings.PutListing(ctx, listing); err != nil {
		return storage.Listing{}, fmt.Errorf("put listing: %w", err)
	}
	return listing, nil
}

// Search returns one page of the requester's campus catalog.
func (s *Service) Search(ctx context.Context, principal requestctx.Principal, input SearchInput) (storage.SearchResult, error) {
	if input.Status != "" && !storage.ValidStatus(input.Status) {
		return storage.SearchResult{}, apperrors.New(apperrors.CodeValidation, "invalid status")
	}
	result, err := s.listings.SearchListings(ctx, storage.SearchQuery{
		CampusID:      principal.CampusID,
		Keyword:       strings.TrimSpace(input.Keyword),
		Category:      input.Category,
		Condition:     input.Condition,
		MinPriceCents: input.MinPriceCents,
		MaxPriceCents: input.MaxPriceCents,
		GiveawayOnly:  input.GiveawayOnly,
		Status:        input.Status,
		Zipcode:       input.Zipcode,
		Sort:          input.Sort,
		Page:          input.Page,
	})
	if err != nil {
		return storage.SearchResult{}, fmt.Errorf("search listings: %w", err)
	}
	return result, nil
}

// GetListing returns a listing visible to the requester. Listings from other
// campuses are reported as missing, never as forbidden.
func (s *Service) GetListing(ctx context.Context, principal requestctx.Principal, listingID string) (storage.Listing, error) {
	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Listing{}, apperrors.New(apperrors.CodeNotFound, "listing not found")
		}
		return storage.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	if listing.CampusID != principal.CampusID {
		return storage.Listing{}, apperrors.New(apperrors.CodeNotFound, "listing not found")
	}
	return listing, nil
}

// UpdateListing applies a partial update. Only the seller or an admin may
// modify a listing.
func (s *Service) UpdateListing(ctx context.Context, principal requestctx.Principal, listingID string, input UpdateListingInput) (storage.Listing, error) {
	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Listing{}, apperrors.New(apperrors.CodeNotFound, "listing not found")
		}
		return storage.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	if listing.SellerID != principal.UserID && !principal.IsAdmin() {
		return storage.Listing{}, apperrors.New(apperrors.CodeForbidden, "not authorized")
	}

	if input.Title != nil {
		listing.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		listing.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		listing.Category = *input.Category
	}
	if input.Condition != nil {
		listing.Condition = *input.Condition
	}
	if input.PriceCents != nil {
		listing.PriceCents = *input.PriceCents
	}
	if input.Giveaway != nil {
		listing.Giveaway = *input.Giveaway
	}
	if input.Status != nil {
		if !storage.ValidStatus(*input.Status) {
			return storage.Listing{}, apperrors.New(apperrors.CodeValidation, "invalid status")
		}
		listing.Status = *input.Status
	}
	if input.Location != nil {
		listing.Location = strings.TrimSpace(*input.Location)
	}
	if input.Zipcode != nil {
		listing.Zipcode = strings.TrimSpace(*input.Zipcode)
	}
	if input.ImageURLs != nil {
		if len(*input.ImageURLs) > maxImages {
			return storage.Listing{}, apperrors.New(apperrors.CodeValidation, "at most 5 images allowed")
		}
		images, err := buildImages(listing.ID, *input.ImageURLs)
		if err != nil {
			return storage.Listing{}, err
		}
		listing.Images = images
	}
	if err := validateListingFields(listing.Title, listing.Description, listing.Category, listing.Condition, listing.PriceCents); err != nil {
		return storage.Listing{}, err
	}

	listing.UpdatedAt = s.now().UTC()
	if err := s.listings.UpdateListing(ctx, listing); err != nil {
		return storage.Listing{}, fmt.Errorf("update listing: %w", err)
	}
	return listing, nil
}

// DeleteListing removes a listing. Only the seller or an admin may delete.
func (s *Service) DeleteListing(ctx context.Context, principal requestctx.Principal, listingID string) error {
	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "listing not found")
		}
		return fmt.Errorf("get listing: %w", err)
	}
	if listing.SellerID != principal.UserID && !principal.IsAdmin() {
		return apperrors.New(apperrors.CodeForbidden, "not authorized")
	}
	if err := s.listings.DeleteListing(ctx, listingID); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

// ListMyListings returns the requester's own listings, newest first.
func (s *Service) ListMyListings(ctx context.Context, userID string) ([]storage.Listing, error) {
	listings, err := s.listings.ListListingsBySeller(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list listings by seller: %w", err)
	}
	return listings, nil
}

// LookupListing resolves a listing summary for collaborating services. It
// does not apply campus scoping; callers decide visibility.
func (s *Service) LookupListing(ctx context.Context, listingID string) (ListingRef, error) {
	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ListingRef{}, apperrors.New(apperrors.CodeNotFound, "listing not found")
		}
		return ListingRef{}, fmt.Errorf("get listing: %w", err)
	}
	ref := ListingRef{
		ID:         listing.ID,
		SellerID:   listing.SellerID,
		CampusID:   listing.CampusID,
		Title:      listing.Title,
		PriceCents: listing.PriceCents,
		Giveaway:   listing.Giveaway,
		Status:     listing.Status,
	}
	if len(listing.Images) > 0 {
		ref.ImageURL = listing.Images[0].URL
	}
	return ref, nil
}

// LookupUser resolves a public account reference through the directory.
func (s *Service) LookupUser(ctx context.Context, userID string) (UserRef, error) {
	return s.users.LookupUser(ctx, userID)
}

// BlockUser hides targetID from the requester.
func (s *Service) BlockUser(ctx context.Context, principal requestctx.Principal, targetID string) (storage.Block, error) {
	if targetID == principal.UserID {
		return storage.Block{}, apperrors.New(apperrors.CodeValidation, "cannot block yourself")
	}
	target, err := s.users.LookupUser(ctx, targetID)
	if err != nil || target.CampusID != principal.CampusID {
		return storage.Block{}, apperrors.New(apperrors.CodeNotFound, "user not found")
	}

	block := storage.Block{
		BlockerID: principal.UserID,
		BlockedID: targetID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.blocks.PutBlock(ctx, block); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.Block{}, apperrors.New(apperrors.CodeConflict, "user already blocked")
		}
		return storage.Block{}, fmt.Errorf("put block: %w", err)
	}
	return block, nil
}

// UnblockUser removes a block.
func (s *Service) UnblockUser(ctx context.Context, principal requestctx.Principal, targetID string) error {
	if err := s.blocks.DeleteBlock(ctx, principal.UserID, targetID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "block not found")
		}
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

// ListBlocks returns the requester's blocks with the blocked profiles.
func (s *Service) ListBlocks(ctx context.Context, principal requestctx.Principal) ([]BlockView, error) {
	blocks, err := s.blocks.ListBlocks(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	views := make([]BlockView, 0, len(blocks))
	for _, block := range blocks {
		view := BlockView{Block: block}
		if user, err := s.users.LookupUser(ctx, block.BlockedID); err == nil {
			view.User = user
		} else {
			view.User = UserRef{ID: block.BlockedID}
		}
		views = append(views, view)
	}
	return views, nil
}

// CreateReport records a moderation report against a listing or a user.
func (s *Service) CreateReport(ctx context.Context, principal requestctx.Principal, input CreateReportInput) (storage.Report, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" || len(reason) > maxReasonLength {
		return storage.Report{}, apperrors.New(apperrors.CodeValidation, "reason must be 1-1000 characters")
	}
	if input.ListingID == "" && input.TargetUserID == "" {
		return storage.Report{}, apperrors.New(apperrors.CodeValidation, "either listingId or targetUserId must be provided")
	}

	if input.ListingID != "" {
		listing, err := s.listings.GetListing(ctx, input.ListingID)
		if err != nil || listing.CampusID != principal.CampusID {
			return storage.Report{}, apperrors.New(apperrors.CodeNotFound, "listing not found")
		}
	}
	if input.TargetUserID != "" {
		if input.TargetUserID == principal.UserID {
			return storage.Report{}, apperrors.New(apperrors.CodeValidation, "cannot report yourself")
		}
		target, err := s.users.LookupUser(ctx, input.TargetUserID)
		if err != nil || target.CampusID != principal.CampusID {
			return storage.Report{}, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
	}

	reportID, err := id.NewID()
	if err != nil {
		return storage.Report{}, fmt.Errorf("new report id: %w", err)
	}
	report := storage.Report{
		ID:           reportID,
		ReporterID:   principal.UserID,
		ListingID:    input.ListingID,
		TargetUserID: input.TargetUserID,
		Reason:       reason,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.reports.PutReport(ctx, report); err != nil {
		return storage.Report{}, fmt.Errorf("put report: %w", err)
	}
	return report, nil
}

// ListReports returns every report for moderation. Admin only.
func (s *Service) ListReports(ctx context.Context, principal requestctx.Principal) ([]storage.Report, error) {
	if !principal.IsAdmin() {
		return nil, apperrors.New(apperrors.CodeForbidden, "admin access required")
	}
	reports, err := s.reports.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func validateListingFields(title, description, category, condition string, priceCents int64) error {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || len(title) > maxTitleLength {
		return apperrors.New(apperrors.CodeValidation, "title must be 1-200 characters")
	}
	if description == "" || len(description) > maxDescriptionLength {
		return apperrors.New(apperrors.CodeValidation, "description must be 1-5000 characters")
	}
	if category == "" {
		return apperrors.New(apperrors.CodeValidation, "category is required")
	}
	if condition == "" {
		return apperrors.New(apperrors.CodeValidation, "condition is required")
	}
	if priceCents < 0 {
		return apperrors.New(apperrors.CodeValidation, "price must not be negative")
	}
	return nil
}

func buildImages(listingID string, urls []string) ([]storage.ListingImage, error) {
	images := make([]storage.ListingImage, 0, len(urls))
	for position, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "image url must not be empty")
		}
		imageID, err := id.NewID()
		if err != nil {
			return nil, fmt.Errorf("new image id: %w", err)
		}
		images = append(images, storage.ListingImage{
			ID:        imageID,
			ListingID: listingID,
			URL:       url,
			Position:  position,
		})
	}
	return images, nil
}
