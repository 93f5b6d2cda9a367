package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// ValuesAPI is the subset of the Google Sheets API the ledger needs.
type ValuesAPI interface {
	// AppendRow appends one row after the last row of the table found in sheetRange.
	AppendRow(ctx context.Context, spreadsheetID, sheetRange string, row []interface{}) error

	// ReadRows returns the unformatted cell values of sheetRange.
	ReadRows(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error)

	// CreateSpreadsheet creates a spreadsheet whose first row is header and returns its ID.
	CreateSpreadsheet(ctx context.Context, title string, header []interface{}) (string, error)
}

// GoogleValues implements ValuesAPI on top of the Sheets v4 client.
type GoogleValues struct {
	srv *gsheets.Service
}

// NewGoogleValues creates a Sheets client authenticated with a service account key file.
func NewGoogleValues(ctx context.Context, credentialsFile string) (*GoogleValues, error) {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	srv, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGoogleValues: creating sheets service: %w", err)
	}
	return &GoogleValues{srv: srv}, nil
}

// AppendRow implements ValuesAPI.
func (g *GoogleValues) AppendRow(ctx context.Context, spreadsheetID, sheetRange string, row []interface{}) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{row}}
	_, err := g.srv.Spreadsheets.Values.Append(spreadsheetID, sheetRange, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("AppendRow: %w", err)
	}
	return nil
}

// ReadRows implements ValuesAPI.
func (g *GoogleValues) ReadRows(ctx context.Context, spreadsheetID, sheetRange string) ([][]interface{}, error) {
	resp, err := g.srv.Spreadsheets.Values.Get(spreadsheetID, sheetRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("ReadRows: %w", err)
	}
	return resp.Values, nil
}

// CreateSpreadsheet implements ValuesAPI.
func (g *GoogleValues) CreateSpreadsheet(ctx context.Context, title string, header []interface{}) (string, error) {
	created, err := g.srv.Spreadsheets.Create(&gsheets.Spreadsheet{
		Properties: &gsheets.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("CreateSpreadsheet: %w", err)
	}

	vr := &gsheets.ValueRange{Values: [][]interface{}{header}}
	_, err = g.srv.Spreadsheets.Values.Update(created.SpreadsheetId, "A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("CreateSpreadsheet: writing header: %w", err)
	}
	return created.SpreadsheetId, nil
}
