package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/campuscycle/campuscycle/internal/services/market/storage"
)

var _ storage.ListingStore = (*Store)(nil)

const listingColumns = "id, seller_id, campus_id, title, description, category, condition, price_cents, giveaway, status, location, zipcode, created_at, updated_at"

// PutListing inserts a listing together with its images.
func (s *Store) PutListing(ctx context.Context, listing storage.Listing) error {
	if listing.ID == "" {
		return fmt.Errorf("listing id is required")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO listings (`+listingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.ID, listing.SellerID, listing.CampusID, listing.Title,
		listing.Description, listing.Category, listing.Condition,
		listing.PriceCents, boolToInt(listing.Giveaway), string(listing.Status),
		listing.Location, listing.Zipcode,
		toMillis(listing.CreatedAt), toMillis(listing.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	if err := insertImages(ctx, tx, listing.ID, listing.Images); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdateListing rewrites the mutable listing fields and replaces its images.
func (s *Store) UpdateListing(ctx context.Context, listing storage.Listing) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE listings SET
		title = ?, description = ?, category = ?, condition = ?,
		price_cents = ?, giveaway = ?, status = ?, location = ?, zipcode = ?,
		updated_at = ?
		WHERE id = ?`,
		listing.Title, listing.Description, listing.Category, listing.Condition,
		listing.PriceCents, boolToInt(listing.Giveaway), string(listing.Status),
		listing.Location, listing.Zipcode,
		toMillis(listing.UpdatedAt), listing.ID)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_images WHERE listing_id = ?`, listing.ID); err != nil {
		return fmt.Errorf("delete listing images: %w", err)
	}
	if err := insertImages(ctx, tx, listing.ID, listing.Images); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertImages(ctx context.Context, tx *sql.Tx, listingID string, images []storage.ListingImage) error {
	for _, image := range images {
		_, err := tx.ExecContext(ctx, `INSERT INTO listing_images (id, listing_id, url, position)
			VALUES (?, ?, ?, ?)`,
			image.ID, listingID, image.URL, image.Position)
		if err != nil {
			return fmt.Errorf("insert listing image: %w", err)
		}
	}
	return nil
}

// GetListing loads one listing with its images.
func (s *Store) GetListing(ctx context.Context, id string) (storage.Listing, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	listing, err := scanListing(row)
	if err != nil {
		return storage.Listing{}, err
	}
	images, err := s.imagesFor(ctx, []string{listing.ID})
	if err != nil {
		return storage.Listing{}, err
	}
	listing.Images = images[listing.ID]
	return listing, nil
}

// DeleteListing removes a listing; images cascade.
func (s *Store) DeleteListing(ctx context.Context, id string) error {
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SearchListings filters the campus catalog and returns one page of matches.
func (s *Store) SearchListings(ctx context.Context, query storage.SearchQuery) (storage.SearchResult, error) {
	if query.CampusID == "" {
		return storage.SearchResult{}, fmt.Errorf("campus id is required")
	}
	conditions := []string{"campus_id = ?"}
	args := []any{query.CampusID}

	if query.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(query.Status))
	} else {
		conditions = append(conditions, "status IN (?, ?)")
		args = append(args, string(storage.StatusAvailable), string(storage.StatusClaimed))
	}
	if query.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, query.Category)
	}
	if query.Condition != "" {
		conditions = append(conditions, "condition = ?")
		args = append(args, query.Condition)
	}
	if query.GiveawayOnly {
		conditions = append(conditions, "giveaway = 1")
	}
	if query.Zipcode != "" {
		conditions = append(conditions, "zipcode = ?")
		args = append(args, query.Zipcode)
	}
	if query.MinPriceCents != nil {
		conditions = append(conditions, "price_cents >= ?")
		args = append(args, *query.MinPriceCents)
	}
	if query.MaxPriceCents != nil {
		conditions = append(conditions, "price_cents <= ?")
		args = append(args, *query.MaxPriceCents)
	}
	if query.Keyword != "" {
		conditions = append(conditions, "(lower(title) LIKE ? OR lower(description) LIKE ?)")
		pattern := "%" + strings.ToLower(query.Keyword) + "%"
		args = append(args, pattern, pattern)
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE `+where, args...).Scan(&total); err != nil {
		return storage.SearchResult{}, fmt.Errorf("count listings: %w", err)
	}

	orderBy := "created_at DESC, id"
	switch query.Sort {
	case storage.SortPriceLow:
		orderBy = "price_cents ASC, id"
	case storage.SortPriceHigh:
		orderBy = "price_cents DESC, id"
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * storage.SearchPageSize
	pageArgs := append(args, storage.SearchPageSize, offset)

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE `+where+` ORDER BY `+orderBy+` LIMIT ? OFFSET ?`,
		pageArgs...)
	if err != nil {
		return storage.SearchResult{}, fmt.Errorf("query listings: %w", err)
	}
	listings, err := collectListings(rows)
	if err != nil {
		return storage.SearchResult{}, err
	}
	if err := s.attachImages(ctx, listings); err != nil {
		return storage.SearchResult{}, err
	}

	totalPages := (total + storage.SearchPageSize - 1) / storage.SearchPageSize
	return storage.SearchResult{
		Listings:   listings,
		Page:       page,
		PageSize:   storage.SearchPageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// ListListingsBySeller returns a seller's listings, newest first.
func (s *Store) ListListingsBySeller(ctx context.Context, sellerID string) ([]storage.Listing, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE seller_id = ? ORDER BY created_at DESC, id`,
		sellerID)
	if err != nil {
		return nil, fmt.Errorf("query listings by seller: %w", err)
	}
	listings, err := collectListings(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachImages(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (storage.Listing, error) {
	var listing storage.Listing
	var giveaway int
	var status string
	var createdAt, updatedAt int64
	err := row.Scan(&listing.ID, &listing.SellerID, &listing.CampusID,
		&listing.Title, &listing.Description, &listing.Category,
		&listing.Condition, &listing.PriceCents, &giveaway, &status,
		&listing.Location, &listing.Zipcode, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Listing{}, storage.ErrNotFound
		}
		return storage.Listing{}, fmt.Errorf("scan listing: %w", err)
	}
	listing.Giveaway = giveaway != 0
	listing.Status = storage.ListingStatus(status)
	listing.CreatedAt = fromMillis(createdAt)
	listing.UpdatedAt = fromMillis(updatedAt)
	return listing, nil
}

func collectListings(rows *sql.Rows) ([]storage.Listing, error) {
	defer rows.Close()
	var listings []storage.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

func (s *Store) attachImages(ctx context.Context, listings []storage.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(listings))
	for _, listing := range listings {
		ids = append(ids, listing.ID)
	}
	images, err := s.imagesFor(ctx, ids)
	if err != nil {
		return err
	}
	for i := range listings {
		listings[i].Images = images[listings[i].ID]
	}
	return nil
}

func (s *Store) imagesFor(ctx context.Context, listingIDs []string) (map[string][]storage.ListingImage, error) {
	placeholders := strings.TrimRight(strings.Repeat("?,", len(listingIDs)), ",")
	args := make([]any, 0, len(listingIDs))
	for _, id := range listingIDs {
		args = append(args, id)
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, listing_id, url, position FROM listing_images
		WHERE listing_id IN (`+placeholders+`) ORDER BY listing_id, position`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query listing images: %w", err)
	}
	defer rows.Close()

	images := make(map[string][]storage.ListingImage)
	for rows.Next() {
		var image storage.ListingImage
		if err := rows.Scan(&image.ID, &image.ListingID, &image.URL, &image.Position); err != nil {
			return nil, fmt.Errorf("scan listing image: %w", err)
		}
		images[image.ListingID] = append(images[image.ListingID], image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing images: %w", err)
	}
	return images, nil
}
