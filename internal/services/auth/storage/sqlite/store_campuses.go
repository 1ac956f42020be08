package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campuscycle/campuscycle/internal/services/auth/storage"
)

// PutCampus inserts one campus record.
func (s *Store) PutCampus(ctx context.Context, campus storage.Campus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	campus.ID = strings.TrimSpace(campus.ID)
	campus.Code = strings.TrimSpace(strings.ToLower(campus.Code))
	if campus.ID == "" {
		return fmt.Errorf("campus id is required")
	}
	if campus.Name == "" {
		return fmt.Errorf("campus name is required")
	}
	if campus.Code == "" {
		return fmt.Errorf("campus code is required")
	}
	createdAt := campus.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO campuses (id, name, code, created_at) VALUES (?, ?, ?, ?)`,
		campus.ID, campus.Name, campus.Code, toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put campus: %w", err)
	}
	return nil
}

// GetCampus returns one campus by id.
func (s *Store) GetCampus(ctx context.Context, id string) (storage.Campus, error) {
	if err := ctx.Err(); err != nil {
		return storage.Campus{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Campus{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Campus{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, code, created_at FROM campuses WHERE id = ?`, id)

	var campus storage.Campus
	var createdAt int64
	if err := row.Scan(&campus.ID, &campus.Name, &campus.Code, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Campus{}, storage.ErrNotFound
		}
		return storage.Campus{}, fmt.Errorf("get campus: %w", err)
	}
	campus.CreatedAt = fromMillis(createdAt)
	return campus, nil
}

// ListCampuses returns every campus ordered by name.
func (s *Store) ListCampuses(ctx context.Context) ([]storage.Campus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, code, created_at FROM campuses ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list campuses: %w", err)
	}
	defer rows.Close()

	var campuses []storage.Campus
	for rows.Next() {
		var campus storage.Campus
		var createdAt int64
		if err := rows.Scan(&campus.ID, &campus.Name, &campus.Code, &createdAt); err != nil {
			return nil, fmt.Errorf("scan campus: %w", err)
		}
		campus.CreatedAt = fromMillis(createdAt)
		campuses = append(campuses, campus)
	}
	return campuses, rows.Err()
}

var _ storage.CampusStore = (*Store)(nil)
