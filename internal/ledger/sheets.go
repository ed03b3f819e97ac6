package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"receiptbook/internal/config"
)

// SheetsTable is a Table over one tab of a Google spreadsheet.
type SheetsTable struct {
	svc           *sheets.Service
	spreadsheetID string
	title         string
	sheetID       int64
	timeout       time.Duration
}

func NewSheetsTable(ctx context.Context, cfg config.Config) (*SheetsTable, error) {
	if err := cfg.Require("SHEET_ID", cfg.SheetID); err != nil {
		return nil, err
	}
	blob, err := cfg.ServiceAccountCredentials()
	if err != nil {
		return nil, err
	}
	creds, err := google.CredentialsFromJSON(ctx, blob, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, err
	}

	t := &SheetsTable{
		svc:           svc,
		spreadsheetID: cfg.SheetID,
		timeout:       time.Duration(cfg.StoreTimeoutMs) * time.Millisecond,
	}
	if err := t.resolveTab(ctx, cfg.SheetTab); err != nil {
		return nil, err
	}
	return t, nil
}

// resolveTab picks the named tab, or the first one when name is empty.
func (t *SheetsTable) resolveTab(ctx context.Context, name string) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	ss, err := t.svc.Spreadsheets.Get(t.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		if name == "" || s.Properties.Title == name {
			t.title = s.Properties.Title
			t.sheetID = s.Properties.SheetId
			return nil
		}
	}
	return fmt.Errorf("sheet tab %q not found", name)
}

func (t *SheetsTable) Rows(ctx context.Context) ([][]string, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, quoteTab(t.title)).
		ValueRenderOption("FORMULA").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = sheetCellString(v)
		}
	}
	return out, nil
}

// InsertRow opens a blank row at index and fills it with user-entered
// semantics so numbers and dates are recognised by Sheets.
func (t *SheetsTable) InsertRow(ctx context.Context, index int, values []any) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	insert := &sheets.Request{InsertDimension: &sheets.InsertDimensionRequest{
		Range: &sheets.DimensionRange{
			SheetId:         t.sheetID,
			Dimension:       "ROWS",
			StartIndex:      int64(index - 1),
			EndIndex:        int64(index),
			ForceSendFields: []string{"SheetId", "StartIndex"},
		},
		InheritFromBefore: index > 1,
	}}
	_, err := t.svc.Spreadsheets.BatchUpdate(t.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{insert},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert dimension: %w", err)
	}

	rng := fmt.Sprintf("%s!A%d", quoteTab(t.title), index)
	_, err = t.svc.Spreadsheets.Values.Update(t.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]any{userEnteredRow(values)},
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		// Remove the blank row opened above so the sheet is left as it was.
		if delErr := t.DeleteRow(context.WithoutCancel(ctx), index); delErr != nil {
			return fmt.Errorf("write row: %w (blank row %d left behind: %v)", err, index, delErr)
		}
		return fmt.Errorf("write row: %w", err)
	}
	return nil
}

// userEnteredRow quotes Text cells so Sheets keeps them as literal strings.
func userEnteredRow(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if text, ok := v.(Text); ok {
			v = "'" + string(text)
		}
		out[i] = v
	}
	return out
}

func (t *SheetsTable) DeleteRow(ctx context.Context, index int) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	del := &sheets.Request{DeleteDimension: &sheets.DeleteDimensionRequest{
		Range: &sheets.DimensionRange{
			SheetId:         t.sheetID,
			Dimension:       "ROWS",
			StartIndex:      int64(index - 1),
			EndIndex:        int64(index),
			ForceSendFields: []string{"SheetId", "StartIndex"},
		},
	}}
	_, err := t.svc.Spreadsheets.BatchUpdate(t.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{del},
	}).Context(ctx).Do()
	return err
}

func (t *SheetsTable) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

func quoteTab(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func sheetCellString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
