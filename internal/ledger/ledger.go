package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"receiptbook/internal"
)

var (
	ErrColumnMissing = errors.New("ledger column missing")
	ErrNoReceipt     = errors.New("receipt number is required")
)

var reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const duplicateMessage = "Entry with the same receipt number already exists."

// Ledger is the append-only receipt store. Check-and-append is serialized
// within the process; separate processes writing the same table are not.
type Ledger struct {
	table  Table
	schema Schema
	mu     sync.Mutex
	log    zerolog.Logger
}

func New(table Table, schema Schema, log zerolog.Logger) *Ledger {
	return &Ledger{
		table:  table,
		schema: schema,
		log:    log.With().Str("component", "ledger").Str("schema", schema.Name).Logger(),
	}
}

func (l *Ledger) Schema() Schema { return l.schema }

// EnsureHeader rewrites row 1 when it differs from the schema columns.
func (l *Ledger) EnsureHeader(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureHeader(ctx)
}

func (l *Ledger) ensureHeader(ctx context.Context) error {
	rows, err := l.table.Rows(ctx)
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	var current []string
	if len(rows) > 0 {
		current = trimTrailing(rows[0])
	}
	if equalHeader(current, l.schema.Columns) {
		return nil
	}

	if len(current) > 0 {
		if err := l.table.DeleteRow(ctx, 1); err != nil {
			return fmt.Errorf("delete stale header: %w", err)
		}
	}
	header := make([]any, len(l.schema.Columns))
	for i, c := range l.schema.Columns {
		header[i] = c
	}
	if err := l.table.InsertRow(ctx, 1, header); err != nil {
		return fmt.Errorf("insert header: %w", err)
	}
	l.log.Info().Strs("previous", current).Msg("ledger.header.rewritten")
	return nil
}

// IsDuplicate reports whether receiptNumber is already recorded. It never writes.
func (l *Ledger) IsDuplicate(ctx context.Context, receiptNumber string) (bool, error) {
	rows, err := l.table.Rows(ctx)
	if err != nil {
		return false, fmt.Errorf("read ledger: %w", err)
	}
	return containsReceipt(rows, l.schema.ReceiptColumn, receiptNumber)
}

// Append records rec unless its receipt number is already present. Failures
// are reported in the result, never returned or panicked.
func (l *Ledger) Append(ctx context.Context, rec internal.Record) (result internal.AppendResult) {
	log := l.log.With().Str("receipt_number", rec.ReceiptNumber).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("ledger.append.panic")
			result = internal.AppendResult{Status: internal.AppendError, Message: fmt.Sprintf("ledger append failed: %v", r)}
		}
	}()

	fail := func(err error) internal.AppendResult {
		log.Error().Err(err).Msg("ledger.append.error")
		return internal.AppendResult{Status: internal.AppendError, Message: err.Error()}
	}

	if strings.TrimSpace(rec.ReceiptNumber) == "" {
		return fail(ErrNoReceipt)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureHeader(ctx); err != nil {
		return fail(err)
	}

	rows, err := l.table.Rows(ctx)
	if err != nil {
		return fail(fmt.Errorf("read ledger: %w", err))
	}
	dup, err := containsReceipt(rows, l.schema.ReceiptColumn, rec.ReceiptNumber)
	if err != nil {
		return fail(err)
	}
	if dup {
		log.Info().Msg("ledger.append.duplicate")
		return internal.AppendResult{Status: internal.AppendDuplicate, Message: duplicateMessage}
	}

	pos, err := insertPosition(rows, l.schema)
	if err != nil {
		return fail(err)
	}
	if err := l.table.InsertRow(ctx, pos, l.schema.Row(rec)); err != nil {
		return fail(fmt.Errorf("insert row %d: %w", pos, err))
	}

	log.Info().Int("row", pos).Msg("ledger.append.ok")
	return internal.AppendResult{
		Status:  internal.AppendSuccess,
		Message: fmt.Sprintf("Receipt %s recorded at row %d.", rec.ReceiptNumber, pos),
		Row:     pos,
	}
}

// Snapshot returns the header and every row as currently stored.
func (l *Ledger) Snapshot(ctx context.Context) ([][]string, error) {
	return l.table.Rows(ctx)
}

func containsReceipt(rows [][]string, column, receiptNumber string) (bool, error) {
	if len(rows) == 0 {
		return false, nil
	}
	idx, err := columnIndex(rows[0], column)
	if err != nil {
		return false, err
	}
	want := strings.TrimSpace(receiptNumber)
	for _, row := range rows[1:] {
		if strings.TrimSpace(cell(row, idx)) == want {
			return true, nil
		}
	}
	return false, nil
}

// insertPosition is the row after the last data row: the later of the last
// ISO-dated row and the last row with a literal receipt number, or row 2.
func insertPosition(rows [][]string, schema Schema) (int, error) {
	if len(rows) == 0 {
		return 2, nil
	}
	dateIdx, err := columnIndex(rows[0], schema.DateColumn)
	if err != nil {
		return 0, err
	}
	receiptIdx, err := columnIndex(rows[0], schema.ReceiptColumn)
	if err != nil {
		return 0, err
	}

	lastDate, lastReceipt := 0, 0
	for i := 1; i < len(rows); i++ {
		rowNum := i + 1
		if reISODate.MatchString(strings.TrimSpace(cell(rows[i], dateIdx))) {
			lastDate = rowNum
		}
		if v := strings.TrimSpace(cell(rows[i], receiptIdx)); v != "" && !strings.HasPrefix(v, "=") {
			lastReceipt = rowNum
		}
	}

	last := max(lastDate, lastReceipt)
	if last == 0 {
		return 2, nil
	}
	return last + 1, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func trimTrailing(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}

func equalHeader(current, expected []string) bool {
	if len(current) != len(expected) {
		return false
	}
	for i := range expected {
		if strings.TrimSpace(current[i]) != expected[i] {
			return false
		}
	}
	return true
}
