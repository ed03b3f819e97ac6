package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Table is a grid addressed by 1-based row numbers. Formula cells are
// returned as their formula text, starting with "=".
type Table interface {
	Rows(ctx context.Context) ([][]string, error)
	InsertRow(ctx context.Context, index int, values []any) error
	DeleteRow(ctx context.Context, index int) error
}

// Text is a cell value stored verbatim. Backends that interpret input, such as
// Sheets with USER_ENTERED, must not turn it into a number or a date.
type Text string

// MemoryTable is a Table held in memory.
type MemoryTable struct {
	mu   sync.Mutex
	rows [][]string
}

func NewMemoryTable(rows ...[]string) *MemoryTable {
	t := &MemoryTable{}
	for _, r := range rows {
		t.rows = append(t.rows, append([]string(nil), r...))
	}
	return t
}

func (t *MemoryTable) Rows(_ context.Context) ([][]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (t *MemoryTable) InsertRow(_ context.Context, index int, values []any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 1 || index > len(t.rows)+1 {
		return fmt.Errorf("row %d out of range", index)
	}
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = cellString(v)
	}
	t.rows = append(t.rows, nil)
	copy(t.rows[index:], t.rows[index-1:])
	t.rows[index-1] = row
	return nil
}

func (t *MemoryTable) DeleteRow(_ context.Context, index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 1 || index > len(t.rows) {
		return fmt.Errorf("row %d out of range", index)
	}
	t.rows = append(t.rows[:index-1], t.rows[index:]...)
	return nil
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case Text:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
