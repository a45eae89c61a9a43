package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ternarybob/petitor/internal/common"
	"github.com/ternarybob/petitor/internal/interfaces"
)

// GoogleValues adapts the Google Sheets v4 values API to the store's
// backend seam. Each method issues exactly one external request.
type GoogleValues struct {
	service       *sheetsapi.Service
	spreadsheetID string
	timeout       time.Duration
}

// Compile-time assertion
var _ valuesAPI = (*GoogleValues)(nil)

// NewGoogleValues authenticates a service account against the
// spreadsheet named in config. A missing sheet ID or unreadable
// credentials file is a configuration error that aborts startup.
func NewGoogleValues(ctx context.Context, config *common.SheetsConfig) (*GoogleValues, error) {
	if config.SheetID == "" {
		return nil, &interfaces.ConfigError{Field: "sheets.sheet_id", Reason: "required"}
	}
	if config.CredentialsFile == "" {
		return nil, &interfaces.ConfigError{Field: "sheets.credentials_file", Reason: "required"}
	}

	credsJSON, err := os.ReadFile(config.CredentialsFile)
	if err != nil {
		return nil, &interfaces.ConfigError{
			Field:  "sheets.credentials_file",
			Reason: fmt.Sprintf("unreadable: %v", err),
		}
	}

	jwtConfig, err := google.JWTConfigFromJSON(credsJSON, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, &interfaces.ConfigError{
			Field:  "sheets.credentials_file",
			Reason: fmt.Sprintf("not a service account key: %v", err),
		}
	}

	service, err := sheetsapi.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	timeout := 30 * time.Second
	if config.Timeout != "" {
		if parsed, err := time.ParseDuration(config.Timeout); err == nil {
			timeout = parsed
		}
	}

	return &GoogleValues{
		service:       service,
		spreadsheetID: config.SheetID,
		timeout:       timeout,
	}, nil
}

// GetRange reads a rectangular range as rows of cell strings
func (g *GoogleValues) GetRange(ctx context.Context, rangeA1 string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.service.Spreadsheets.Values.Get(g.spreadsheetID, rangeA1).Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprint(cell)
		}
		rows[i] = cells
	}
	return rows, nil
}

// BatchUpdate writes several disjoint ranges in one request
func (g *GoogleValues) BatchUpdate(ctx context.Context, updates []RangeUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	data := make([]*sheetsapi.ValueRange, len(updates))
	for i, update := range updates {
		data[i] = &sheetsapi.ValueRange{
			Range:  update.RangeA1,
			Values: toInterfaceRows(update.Rows),
		}
	}

	req := &sheetsapi.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	_, err := g.service.Spreadsheets.Values.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return classifyAPIError(err)
	}
	return nil
}

// Append adds rows after the last non-empty row in one request
func (g *GoogleValues) Append(ctx context.Context, rangeA1 string, rows [][]string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body := &sheetsapi.ValueRange{Values: toInterfaceRows(rows)}
	_, err := g.service.Spreadsheets.Values.Append(g.spreadsheetID, rangeA1, body).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return classifyAPIError(err)
	}
	return nil
}

func toInterfaceRows(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		out[i] = cells
	}
	return out
}

// classifyAPIError maps googleapi errors onto the typed errors the retry
// executor classifies
func classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 || apiErr.Code == 403 {
			return &interfaces.AuthError{Service: "sheets"}
		}
		return &interfaces.StatusError{Code: apiErr.Code, Body: apiErr.Message}
	}
	return err
}
