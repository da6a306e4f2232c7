// File: internal/sheets/service.go
package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/pedroarca/censoapi/internal/data"
)

// Service exports the censo to the configured spreadsheet.
type Service struct {
	client   *Client
	location *time.Location
}

// NewService creates a new sheets service. Dates are written in loc.
func NewService(client *Client, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		client:   client,
		location: loc,
	}
}

// SpreadsheetID returns the id of the spreadsheet exports are written to.
func (s *Service) SpreadsheetID() string {
	return s.client.SpreadsheetID()
}

// ExportCenso replaces the contents of sheetName with the given admissions and
// returns the number of admissions written.
func (s *Service) ExportCenso(ctx context.Context, sheetName string, ingresos []*data.Ingreso, exportedBy string) (int, error) {
	if _, err := s.client.CreateSheet(ctx, sheetName); err != nil {
		return 0, fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := s.client.ClearSheet(ctx, sheetName); err != nil {
		return 0, fmt.Errorf("failed to clear sheet: %w", err)
	}

	rows := FormatCensoData(ingresos, exportedBy, time.Now().In(s.location), s.location)

	if err := s.client.WriteData(ctx, sheetName, "A1", rows); err != nil {
		return 0, fmt.Errorf("failed to write data: %w", err)
	}

	if err := s.client.FormatHeader(ctx, sheetName, len(rows[0])); err != nil {
		return 0, fmt.Errorf("failed to format header: %w", err)
	}

	return len(ingresos), nil
}

// Ping checks that the spreadsheet is reachable with the configured credentials.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.client.GetSpreadsheet(ctx)
	return err
}

// GenerateSheetName names an export after the admission date range it covers.
func GenerateSheetName(admitted data.DateRange, now time.Time) string {
	const layout = "2006-01-02"

	switch {
	case admitted.From != nil && admitted.To != nil:
		return fmt.Sprintf("Censo_%s_a_%s", admitted.From.Format(layout), admitted.To.Format(layout))
	case admitted.From != nil:
		return fmt.Sprintf("Censo_%s", admitted.From.Format(layout))
	case admitted.To != nil:
		return fmt.Sprintf("Censo_hasta_%s", admitted.To.Format(layout))
	default:
		return fmt.Sprintf("Censo_%s", now.Format("2006-01-02_15-04-05"))
	}
}
