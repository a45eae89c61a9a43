package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryValues is an in-memory values backend. Mock pipeline runs use it
// in place of the Google backend, and tests count its external calls to
// hold the store to its request budget.
type MemoryValues struct {
	mu    sync.Mutex
	rows  [][]string
	calls int
}

// Compile-time assertion
var _ valuesAPI = (*MemoryValues)(nil)

// NewMemoryValues creates a backend holding only the given header row
func NewMemoryValues(headers []string) *MemoryValues {
	return &MemoryValues{
		rows: [][]string{append([]string(nil), headers...)},
	}
}

// Calls returns how many external requests the store issued
func (m *MemoryValues) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Rows returns a copy of the sheet contents including the header row
func (m *MemoryValues) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.rows))
	for i, row := range m.rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// GetRange reads a rectangular range as rows of cell strings
func (m *MemoryValues) GetRange(ctx context.Context, rangeA1 string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	firstRow, lastRow, firstCol, lastCol := parseRange(rangeA1, len(m.rows))
	var out [][]string
	for i := firstRow; i <= lastRow && i < len(m.rows); i++ {
		row := m.rows[i]
		var cells []string
		for j := firstCol; j <= lastCol && j < len(row); j++ {
			cells = append(cells, row[j])
		}
		out = append(out, cells)
	}
	return out, nil
}

// BatchUpdate writes several disjoint ranges in one request
func (m *MemoryValues) BatchUpdate(ctx context.Context, updates []RangeUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	for _, update := range updates {
		firstRow, _, firstCol, _ := parseRange(update.RangeA1, len(m.rows))
		for i, row := range update.Rows {
			target := firstRow + i
			for target >= len(m.rows) {
				m.rows = append(m.rows, nil)
			}
			for j, cell := range row {
				col := firstCol + j
				for col >= len(m.rows[target]) {
					m.rows[target] = append(m.rows[target], "")
				}
				m.rows[target][col] = cell
			}
		}
	}
	return nil
}

// Append adds rows after the last non-empty row in one request
func (m *MemoryValues) Append(ctx context.Context, rangeA1 string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	for _, row := range rows {
		m.rows = append(m.rows, append([]string(nil), row...))
	}
	return nil
}

// parseRange resolves an A1 range to zero-based row and column bounds.
// A bare tab name means the whole sheet; an open-ended column range like
// A2:A runs to the last row.
func parseRange(rangeA1 string, rowCount int) (firstRow, lastRow, firstCol, lastCol int) {
	lastRow = rowCount - 1
	lastCol = 1 << 10

	bang := strings.Index(rangeA1, "!")
	if bang < 0 {
		return 0, lastRow, 0, lastCol
	}
	ref := rangeA1[bang+1:]

	parts := strings.SplitN(ref, ":", 2)
	startCol, startRow := parseCell(parts[0])
	firstCol = startCol
	if startRow >= 0 {
		firstRow = startRow
		lastRow = startRow
	}
	if len(parts) == 2 {
		endCol, endRow := parseCell(parts[1])
		lastCol = endCol
		if endCol < 0 {
			lastCol = 1 << 10
		}
		if endRow >= 0 {
			lastRow = endRow
		} else {
			lastRow = rowCount - 1
		}
	} else {
		lastCol = startCol
	}
	if firstCol < 0 {
		firstCol = 0
	}
	return firstRow, lastRow, firstCol, lastCol
}

// parseCell splits "B12" into zero-based column 1, row 11. A missing
// part comes back as -1.
func parseCell(cell string) (col, row int) {
	col, row = -1, -1
	i := 0
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		if col < 0 {
			col = 0
		}
		col = col*26 + int(cell[i]-'A'+1)
		i++
	}
	if col > 0 {
		col--
	}
	if i < len(cell) {
		var n int
		if _, err := fmt.Sscanf(cell[i:], "%d", &n); err == nil {
			row = n - 1
		}
	}
	return col, row
}
