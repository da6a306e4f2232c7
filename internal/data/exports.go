// File: internal/data/exports.go
package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Export statuses.
const (
	ExportPending   = "pending"
	ExportCompleted = "completed"
	ExportFailed    = "failed"
)

// ExportHistory records one export of the censo to a spreadsheet.
type ExportHistory struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	SpreadsheetID string    `json:"spreadsheet_id"`
	SheetName     string    `json:"sheet_name"`
	RowCount      int64     `json:"row_count"`
	Status        string    `json:"status"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExportSortSafelist lists the sort values accepted for the export history.
var ExportSortSafelist = []string{"id", "created_at", "sheet_name", "row_count", "-id", "-created_at", "-sheet_name", "-row_count"}

// ExportFilter represents filtering criteria for querying export history.
type ExportFilter struct {
	Filter Filter
	UserID int64
	Status string
}

// ExportHistoryModel wraps a sql.DB connection pool.
type ExportHistoryModel struct {
	DB *sql.DB
}

// Insert adds a new export history record to the database.
func (m ExportHistoryModel) Insert(ctx context.Context, export *ExportHistory) error {
	query := `
		INSERT INTO export_history (user_id, spreadsheet_id, sheet_name, row_count, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	return m.DB.QueryRowContext(ctx, query,
		export.UserID,
		export.SpreadsheetID,
		export.SheetName,
		export.RowCount,
		export.Status,
		export.ErrorMessage,
	).Scan(&export.ID, &export.CreatedAt)
}

// Update stores the outcome of an export.
func (m ExportHistoryModel) Update(ctx context.Context, export *ExportHistory) error {
	query := `
		UPDATE export_history
		SET status = $1, error_message = $2, row_count = $3
		WHERE id = $4`

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query, export.Status, export.ErrorMessage, export.RowCount, export.ID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// GetAll lists export history, newest first by default.
func (m ExportHistoryModel) GetAll(ctx context.Context, filter ExportFilter) ([]*ExportHistory, MetaData, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) OVER(), id, user_id, spreadsheet_id, sheet_name, row_count, status, COALESCE(error_message, ''), created_at
		FROM export_history
		WHERE ($1 = 0 OR user_id = $1)
		  AND (status = COALESCE(NULLIF($2, ''), status))
		ORDER BY %s %s, id DESC
		LIMIT $3 OFFSET $4`, filter.Filter.SortColumn(), filter.Filter.SortDirection())

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, filter.UserID, filter.Status, filter.Filter.Limit(), filter.Filter.Offset())
	if err != nil {
		return nil, MetaData{}, err
	}
	defer rows.Close()

	exports := []*ExportHistory{}
	totalRecords := int64(0)
	for rows.Next() {
		export := &ExportHistory{}
		err := rows.Scan(
			&totalRecords,
			&export.ID,
			&export.UserID,
			&export.SpreadsheetID,
			&export.SheetName,
			&export.RowCount,
			&export.Status,
			&export.ErrorMessage,
			&export.CreatedAt,
		)
		if err != nil {
			return nil, MetaData{}, err
		}
		exports = append(exports, export)
	}
	if err = rows.Err(); err != nil {
		return nil, MetaData{}, err
	}

	return exports, CalculateMetaData(totalRecords, filter.Filter.Page, filter.Filter.PageSize), nil
}
