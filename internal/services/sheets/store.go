package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
)

// valuesAPI is the narrow slice of the spreadsheet backend the store
// needs. The Google implementation maps each method onto one external
// request, which is what the batch-efficiency contract counts.
type valuesAPI interface {
	// GetRange reads a rectangular range as rows of cell strings
	GetRange(ctx context.Context, rangeA1 string) ([][]string, error)

	// BatchUpdate writes several disjoint ranges in one request
	BatchUpdate(ctx context.Context, updates []RangeUpdate) error

	// Append adds rows after the last non-empty row in one request
	Append(ctx context.Context, rangeA1 string, rows [][]string) error
}

// RangeUpdate is one contiguous write within a batched update
type RangeUpdate struct {
	RangeA1 string
	Rows    [][]string
}

// Store implements interfaces.SheetStore over a values backend. The
// header row is the source of truth for column order; record fields
// absent from the headers are silently dropped.
type Store struct {
	api    valuesAPI
	tab    string
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.SheetStore = (*Store)(nil)

// NewStore creates a sheet store over a values backend
func NewStore(api valuesAPI, tab string, logger arbor.ILogger) *Store {
	if tab == "" {
		tab = "jobs"
	}
	return &Store{
		api:    api,
		tab:    tab,
		logger: logger,
	}
}

// UpdateOne upserts a single record. Same request budget as a one-record
// batch; calling twice with the same record leaves the sheet unchanged
// after the first call.
func (s *Store) UpdateOne(ctx context.Context, record *models.JobRecord) error {
	if record == nil || record.JobID == "" {
		return fmt.Errorf("cannot persist a record without a job_id")
	}
	return s.UpdateMany(ctx, []*models.JobRecord{record})
}

// UpdateMany upserts a batch of records: one header read, one key-column
// read, one batched update for existing rows and one append for new
// ones. Never more than four external requests regardless of batch size.
func (s *Store) UpdateMany(ctx context.Context, records []*models.JobRecord) error {
	if len(records) == 0 {
		return nil
	}

	headers, err := s.readHeaders(ctx)
	if err != nil {
		return err
	}

	keyIdx := indexOf(headers, models.KeyColumn)
	if keyIdx < 0 {
		return &interfaces.ConfigError{
			Field:  "sheets",
			Reason: fmt.Sprintf("header row has no %q column", models.KeyColumn),
		}
	}

	keys, err := s.readKeyColumn(ctx, keyIdx)
	if err != nil {
		return err
	}

	rowByKey := make(map[string]int, len(keys))
	for i, key := range keys {
		if key == "" {
			continue
		}
		// Data rows start at sheet row 2, below the header
		rowByKey[key] = i + 2
	}

	// Collapse duplicate ids within the batch: the last occurrence wins,
	// keeping one sheet row per job id.
	ordered := make([]string, 0, len(records))
	latest := make(map[string]*models.JobRecord, len(records))
	for _, record := range records {
		if record == nil || record.JobID == "" {
			continue
		}
		if _, seen := latest[record.JobID]; !seen {
			ordered = append(ordered, record.JobID)
		}
		latest[record.JobID] = record
	}

	var updates []RangeUpdate
	var appends [][]string
	for _, id := range ordered {
		cells := projectRow(latest[id].ToRow(), headers)
		if rowNum, exists := rowByKey[id]; exists {
			updates = append(updates, RangeUpdate{
				RangeA1: fmt.Sprintf("%s!A%d:%s%d", s.tab, rowNum, columnLetter(len(headers)-1), rowNum),
				Rows:    [][]string{cells},
			})
		} else {
			appends = append(appends, cells)
		}
	}

	if len(updates) > 0 {
		if err := s.api.BatchUpdate(ctx, updates); err != nil {
			return fmt.Errorf("sheet batch update failed: %w", err)
		}
	}
	if len(appends) > 0 {
		appendRange := fmt.Sprintf("%s!A1:%s1", s.tab, columnLetter(len(headers)-1))
		if err := s.api.Append(ctx, appendRange, appends); err != nil {
			return fmt.Errorf("sheet append failed: %w", err)
		}
	}

	s.logger.Debug().
		Int("records", len(records)).
		Int("updated", len(updates)).
		Int("appended", len(appends)).
		Msg("Persisted records to sheet")
	return nil
}

// GetByID returns the record whose key cell equals jobID
func (s *Store) GetByID(ctx context.Context, jobID string) (*models.JobRecord, error) {
	rows, err := s.api.GetRange(ctx, s.tab)
	if err != nil {
		return nil, fmt.Errorf("sheet read failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, interfaces.ErrRecordNotFound
	}

	headers := rows[0]
	keyIdx := indexOf(headers, models.KeyColumn)
	if keyIdx < 0 {
		return nil, &interfaces.ConfigError{
			Field:  "sheets",
			Reason: fmt.Sprintf("header row has no %q column", models.KeyColumn),
		}
	}

	for _, row := range rows[1:] {
		if keyIdx >= len(row) || row[keyIdx] != jobID {
			continue
		}
		cells := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(row) {
				cells[header] = row[i]
			}
		}
		return models.RecordFromRow(cells), nil
	}

	return nil, interfaces.ErrRecordNotFound
}

func (s *Store) readHeaders(ctx context.Context) ([]string, error) {
	rows, err := s.api.GetRange(ctx, fmt.Sprintf("%s!1:1", s.tab))
	if err != nil {
		return nil, fmt.Errorf("sheet header read failed: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, &interfaces.ConfigError{Field: "sheets", Reason: "sheet has no header row"}
	}
	return rows[0], nil
}

// readKeyColumn returns the key cells of every data row, in sheet order
func (s *Store) readKeyColumn(ctx context.Context, keyIdx int) ([]string, error) {
	col := columnLetter(keyIdx)
	rows, err := s.api.GetRange(ctx, fmt.Sprintf("%s!%s2:%s", s.tab, col, col))
	if err != nil {
		return nil, fmt.Errorf("sheet key column read failed: %w", err)
	}
	keys := make([]string, len(rows))
	for i, row := range rows {
		if len(row) > 0 {
			keys[i] = row[0]
		}
	}
	return keys, nil
}

// projectRow orders a record's cells by the header row. Columns the
// record has no value for become empty cells; record fields without a
// matching header are dropped.
func projectRow(cells map[string]string, headers []string) []string {
	row := make([]string, len(headers))
	for i, header := range headers {
		row[i] = cells[strings.TrimSpace(header)]
	}
	return row
}

func indexOf(headers []string, name string) int {
	for i, header := range headers {
		if strings.EqualFold(strings.TrimSpace(header), name) {
			return i
		}
	}
	return -1
}

// columnLetter converts a zero-based column index to A1 notation
func columnLetter(idx int) string {
	letters := ""
	for idx >= 0 {
		letters = string(rune('A'+idx%26)) + letters
		idx = idx/26 - 1
	}
	return letters
}
