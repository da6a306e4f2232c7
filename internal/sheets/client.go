// File: internal/sheets/client.go
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Client wraps the Google Sheets API client
type Client struct {
	service       *sheets.Service
	spreadsheetID string
}

// Config holds configuration for the Google Sheets client
type Config struct {
	ServiceAccountKeyPath string
	SpreadsheetID         string
}

// NewClient creates a Sheets client authenticated with a service account key file.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	credentials, err := os.ReadFile(cfg.ServiceAccountKeyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account key file: %w", err)
	}
	if err := ValidateCredentials(credentials); err != nil {
		return nil, err
	}

	jwt, err := google.JWTConfigFromJSON(credentials, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account key: %w", err)
	}

	service, err := sheets.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return &Client{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
	}, nil
}

// SpreadsheetID returns the id of the target spreadsheet.
func (c *Client) SpreadsheetID() string {
	return c.spreadsheetID
}

// GetSpreadsheet retrieves spreadsheet metadata
func (c *Client) GetSpreadsheet(ctx context.Context) (*sheets.Spreadsheet, error) {
	spreadsheet, err := c.service.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve spreadsheet: %w", err)
	}
	return spreadsheet, nil
}

// GetSheetByName retrieves a sheet by name
func (c *Client) GetSheetByName(ctx context.Context, sheetName string) (*sheets.Sheet, error) {
	spreadsheet, err := c.GetSpreadsheet(ctx)
	if err != nil {
		return nil, err
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			return sheet, nil
		}
	}

	return nil, fmt.Errorf("sheet %s not found", sheetName)
}

// CreateSheet adds a sheet to the spreadsheet, returning the existing one if the name is taken.
func (c *Client) CreateSheet(ctx context.Context, sheetName string) (*sheets.Sheet, error) {
	if existing, _ := c.GetSheetByName(ctx, sheetName); existing != nil {
		return existing, nil
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: sheetName,
					},
				},
			},
		},
	}

	resp, err := c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create sheet: %w", err)
	}

	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		return &sheets.Sheet{
			Properties: resp.Replies[0].AddSheet.Properties,
		}, nil
	}

	return nil, fmt.Errorf("failed to create sheet")
}

// WriteData writes rows starting at the given cell.
func (c *Client) WriteData(ctx context.Context, sheetName, startRange string, rows [][]any) error {
	rangeSpec := fmt.Sprintf("%s!%s", sheetName, startRange)

	_, err := c.service.Spreadsheets.Values.Update(
		c.spreadsheetID,
		rangeSpec,
		&sheets.ValueRange{Values: rows},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to write data: %w", err)
	}

	return nil
}

// ClearSheet clears all values from a sheet.
func (c *Client) ClearSheet(ctx context.Context, sheetName string) error {
	_, err := c.service.Spreadsheets.Values.Clear(
		c.spreadsheetID,
		sheetName,
		&sheets.ClearValuesRequest{},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to clear sheet: %w", err)
	}

	return nil
}

// FormatHeader makes the first row bold with a grey background and freezes it.
func (c *Client) FormatHeader(ctx context.Context, sheetName string, numColumns int) error {
	sheet, err := c.GetSheetByName(ctx, sheetName)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:          sheet.Properties.SheetId,
						StartRowIndex:    0,
						EndRowIndex:      1,
						StartColumnIndex: 0,
						EndColumnIndex:   int64(numColumns),
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
							TextFormat:      &sheets.TextFormat{Bold: true},
						},
					},
					Fields: "userEnteredFormat(backgroundColor,textFormat)",
				},
			},
			{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId:        sheet.Properties.SheetId,
						GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
		},
	}

	_, err = c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to format header: %w", err)
	}

	return nil
}

// ValidateCredentials checks that the key looks like a service account key.
func ValidateCredentials(credentialsJSON []byte) error {
	var creds map[string]any
	if err := json.Unmarshal(credentialsJSON, &creds); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	requiredFields := []string{"type", "project_id", "private_key_id", "private_key", "client_email"}
	for _, field := range requiredFields {
		if _, ok := creds[field]; !ok {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	if creds["type"] != "service_account" {
		return fmt.Errorf("invalid credential type: expected service_account, got %v", creds["type"])
	}

	return nil
}
