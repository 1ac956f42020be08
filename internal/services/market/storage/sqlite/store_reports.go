package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campuscycle/campuscycle/internal/services/market/storage"
)

var _ storage.ReportStore = (*Store)(nil)

// PutReport records a moderation report. ListingID and TargetUserID are
// stored as NULL when empty.
func (s *Store) PutReport(ctx context.Context, report storage.Report) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO reports (id, reporter_id, listing_id, target_user_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, report.ReporterID, nullableString(report.ListingID),
		nullableString(report.TargetUserID), report.Reason, toMillis(report.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ListReports returns every report, newest first.
func (s *Store) ListReports(ctx context.Context) ([]storage.Report, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, reporter_id, listing_id, target_user_id, reason, created_at
		FROM reports ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []storage.Report
	for rows.Next() {
		var report storage.Report
		var listingID, targetUserID sql.NullString
		var createdAt int64
		if err := rows.Scan(&report.ID, &report.ReporterID, &listingID,
			&targetUserID, &report.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		report.ListingID = listingID.String
		report.TargetUserID = targetUserID.String
		report.CreatedAt = fromMillis(createdAt)
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
