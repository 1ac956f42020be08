package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/campuscycle/campuscycle/internal/services/market/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/market.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testListing(id string) storage.Listing {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return storage.Listing{
		ID:          id,
		SellerID:    "seller-1",
		CampusID:    "campus-1",
		Title:       "Desk lamp",
		Description: "Barely used LED desk lamp",
		Category:    "furniture",
		Condition:   "good",
		PriceCents:  1500,
		Status:      storage.StatusAvailable,
		Zipcode:     "02139",
		CreatedAt:   now,
		UpdatedAt:   now,
		Images: []storage.ListingImage{
			{ID: id + "-img-1", ListingID: id, URL: "https://cdn.test/" + id + ".jpg", Position: 0},
		},
	}
}

func TestListingRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := testListing("listing-1")
	if err := store.PutListing(ctx, want); err != nil {
		t.Fatalf("put listing: %v", err)
	}
	got, err := store.GetListing(ctx, "listing-1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Title != want.Title || got.PriceCents != want.PriceCents || got.Status != want.Status {
		t.Errorf("listing = %+v", got)
	}
	if len(got.Images) != 1 || got.Images[0].URL != want.Images[0].URL {
		t.Errorf("images = %+v", got.Images)
	}
}

func TestGetListingMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetListing(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateListingReplacesImages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	listing := testListing("listing-1")
	if err := store.PutListing(ctx, listing); err != nil {
		t.Fatalf("put listing: %v", err)
	}

	listing.Title = "Desk lamp (updated)"
	listing.Status = storage.StatusClaimed
	listing.Images = []storage.ListingImage{
		{ID: "new-img-1", ListingID: listing.ID, URL: "https://cdn.test/new-1.jpg", Position: 0},
		{ID: "new-img-2", ListingID: listing.ID, URL: "https://cdn.test/new-2.jpg", Position: 1},
	}
	if err := store.UpdateListing(ctx, listing); err != nil {
		t.Fatalf("update listing: %v", err)
	}

	got, err := store.GetListing(ctx, listing.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Title != "Desk lamp (updated)" || got.Status != storage.StatusClaimed {
		t.Errorf("listing = %+v", got)
	}
	if len(got.Images) != 2 || got.Images[0].URL != "https://cdn.test/new-1.jpg" {
		t.Errorf("images = %+v", got.Images)
	}
}

func TestUpdateListingMissing(t *testing.T) {
	store := openTestStore(t)
	err := store.UpdateListing(context.Background(), testListing("missing"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteListingCascadesImages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutListing(ctx, testListing("listing-1")); err != nil {
		t.Fatalf("put listing: %v", err)
	}
	if err := store.DeleteListing(ctx, "listing-1"); err != nil {
		t.Fatalf("delete listing: %v", err)
	}
	if _, err := store.GetListing(ctx, "listing-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	var count int
	if err := store.sqlDB.QueryRow(`SELECT COUNT(*) FROM listing_images`).Scan(&count); err != nil {
		t.Fatalf("count images: %v", err)
	}
	if count != 0 {
		t.Errorf("images remaining = %d, want 0", count)
	}
}

func TestSearchScopesToCampus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mine := testListing("listing-1")
	other := testListing("listing-2")
	other.CampusID = "campus-2"
	for _, listing := range []storage.Listing{mine, other} {
		if err := store.PutListing(ctx, listing); err != nil {
			t.Fatalf("put listing: %v", err)
		}
	}

	result, err := store.SearchListings(ctx, storage.SearchQuery{CampusID: "campus-1"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 || len(result.Listings) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Listings[0].ID != "listing-1" {
		t.Errorf("listing = %q", result.Listings[0].ID)
	}
}

func TestSearchHidesSoldByDefault(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sold := testListing("listing-sold")
	sold.Status = storage.StatusSold
	for _, listing := range []storage.Listing{testListing("listing-1"), sold} {
		if err := store.PutListing(ctx, listing); err != nil {
			t.Fatalf("put listing: %v", err)
		}
	}

	result, err := store.SearchListings(ctx, storage.SearchQuery{CampusID: "campus-1"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("total = %d, want 1 (sold hidden)", result.Total)
	}

	result, err = store.SearchListings(ctx, storage.SearchQuery{
		CampusID: "campus-1", Status: storage.StatusSold,
	})
	if err != nil {
		t.Fatalf("search sold: %v", err)
	}
	if result.Total != 1 || result.Listings[0].ID != "listing-sold" {
		t.Fatalf("result = %+v", result)
	}
}

func TestSearchKeywordIsCaseInsensitive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	bike := testListing("listing-bike")
	bike.Title = "Mountain Bike"
	bike.Description = "Hardly ridden"
	for _, listing := range []storage.Listing{testListing("listing-1"), bike} {
		if err := store.PutListing(ctx, listing); err != nil {
			t.Fatalf("put listing: %v", err)
		}
	}

	result, err := store.SearchListings(ctx, storage.SearchQuery{
		CampusID: "campus-1", Keyword: "BIKE",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 || result.Listings[0].ID != "listing-bike" {
		t.Fatalf("result = %+v", result)
	}
}

func TestSearchPriceRangeAndSort(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	prices := []int64{500, 1500, 2500}
	for i, price := range prices {
		listing := testListing(fmt.Sprintf("listing-%d", i))
		listing.PriceCents = price
		if err := store.PutListing(ctx, listing); err != nil {
			t.Fatalf("put listing: %v", err)
		}
	}

	minPrice := int64(1000)
	result, err := store.SearchListings(ctx, storage.SearchQuery{
		CampusID: "campus-1", MinPriceCents: &minPrice, Sort: storage.SortPriceHigh,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("total = %d, want 2", result.Total)
	}
	if result.Listings[0].PriceCents != 2500 || result.Listings[1].PriceCents != 1500 {
		t.Errorf("order = %d, %d", result.Listings[0].PriceCents, result.Listings[1].PriceCents)
	}
}

func TestSearchPagination(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < storage.SearchPageSize+5; i++ {
		listing := testListing(fmt.Sprintf("listing-%03d", i))
		listing.CreatedAt = listing.CreatedAt.Add(time.Duration(i) * time.Second)
		listing.UpdatedAt = listing.CreatedAt
		if err := store.PutListing(ctx, listing); err != nil {
			t.Fatalf("put listing: %v", err)
		}
	}

	page1, err := store.SearchListings(ctx, storage.SearchQuery{CampusID: "campus-1", Page: 1})
	if err != nil {
		t.Fatalf("search page 1: %v", err)
	}
	if len(page1.Listings) != storage.SearchPageSize {
		t.Fatalf("page 1 size = %d, want %d", len(page1.Listings), storage.SearchPageSize)
	}
	if page1.TotalPages != 2 {
		t.Errorf("total pages = %d, want 2", page1.TotalPages)
	}

	page2, err := store.SearchListings(ctx, storage.SearchQuery{CampusID: "campus-1", Page: 2})
	if err != nil {
		t.Fatalf("search page 2: %v", err)
	}
	if len(page2.Listings) != 5 {
		t.Fatalf("page 2 size = %d, want 5", len(page2.Listings))
	}
}

func TestBlockRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	block := storage.Block{BlockerID: "user-1", BlockedID: "user-2", CreatedAt: time.Now()}
	if err := store.PutBlock(ctx, block); err != nil {
		t.Fatalf("put block: %v", err)
	}
	if err := store.PutBlock(ctx, block); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyExists", err)
	}

	blocks, err := store.ListBlocks(ctx, "user-1")
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if len(blocks) != 1 || blocks[0].BlockedID != "user-2" {
		t.Fatalf("blocks = %+v", blocks)
	}

	if err := store.DeleteBlock(ctx, "user-1", "user-2"); err != nil {
		t.Fatalf("delete block: %v", err)
	}
	if err := store.DeleteBlock(ctx, "user-1", "user-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("delete missing err = %v, want ErrNotFound", err)
	}
}

func TestReportRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := storage.Report{
		ID: "report-1", ReporterID: "user-1", ListingID: "listing-1",
		Reason: "spam", CreatedAt: time.Now(),
	}
	second := storage.Report{
		ID: "report-2", ReporterID: "user-1", TargetUserID: "user-2",
		Reason: "harassment", CreatedAt: time.Now().Add(time.Second),
	}
	for _, report := range []storage.Report{first, second} {
		if err := store.PutReport(ctx, report); err != nil {
			t.Fatalf("put report: %v", err)
		}
	}

	reports, err := store.ListReports(ctx)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %+v", reports)
	}
	if reports[0].ID != "report-2" {
		t.Errorf("first report = %q, want report-2 (newest first)", reports[0].ID)
	}
	if reports[1].ListingID != "listing-1" || reports[1].TargetUserID != "" {
		t.Errorf("report = %+v", reports[1])
	}
}
