// Package storage defines the marketplace persistence contracts.
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

// ListingStatus tracks a listing through its lifecycle.
type ListingStatus string

const (
	StatusAvailable ListingStatus = "AVAILABLE"
	StatusClaimed   ListingStatus = "CLAIMED"
	StatusSold      ListingStatus = "SOLD"
)

// ValidStatus reports whether s is a known listing status.
func ValidStatus(s ListingStatus) bool {
	switch s {
	case StatusAvailable, StatusClaimed, StatusSold:
		return true
	}
	return false
}

// ListingImage is one image attached to a listing, ordered by Position.
type ListingImage struct {
	ID        string
	ListingID string
	URL       string
	Position  int
}

// Listing is a marketplace item scoped to one campus.
type Listing struct {
	ID          string
	SellerID    string
	CampusID    string
	Title       string
	Description string
	Category    string
	Condition   string
	PriceCents  int64
	Giveaway    bool
	Status      ListingStatus
	Location    string
	Zipcode     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Images      []ListingImage
}

// Sort orders for listing search.
const (
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
)

// SearchPageSize is the fixed page size for listing search.
const SearchPageSize = 30

// SearchQuery filters the campus-scoped listing catalog.
type SearchQuery struct {
	CampusID      string
	Keyword       string
	Category      string
	Condition     string
	MinPriceCents *int64
	MaxPriceCents *int64
	GiveawayOnly  bool
	// Status narrows to one lifecycle state; empty hides SOLD listings.
	Status  ListingStatus
	Zipcode string
	Sort    string
	Page    int
}

// SearchResult is one page of matches plus the pagination envelope.
type SearchResult struct {
	Listings   []Listing
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// Block records one user hiding another.
type Block struct {
	BlockerID string
	BlockedID string
	CreatedAt time.Time
}

// Report flags a listing or a user for moderation.
type Report struct {
	ID           string
	ReporterID   string
	ListingID    string
	TargetUserID string
	Reason       string
	CreatedAt    time.Time
}

// ListingStore persists listings and their images.
type ListingStore interface {
	PutListing(ctx context.Context, listing Listing) error
	UpdateListing(ctx context.Context, listing Listing) error
	GetListing(ctx context.Context, id string) (Listing, error)
	DeleteListing(ctx context.Context, id string) error
	SearchListings(ctx context.Context, query SearchQuery) (SearchResult, error)
	ListListingsBySeller(ctx context.Context, sellerID string) ([]Listing, error)
}

// BlockStore persists user blocks.
type BlockStore interface {
	PutBlock(ctx context.Context, block Block) error
	DeleteBlock(ctx context.Context, blockerID, blockedID string) error
	ListBlocks(ctx context.Context, blockerID string) ([]Block, error)
}

// ReportStore persists moderation reports.
type ReportStore interface {
	PutReport(ctx context.Context, report Report) error
	ListReports(ctx context.Context) ([]Report, error)
}
