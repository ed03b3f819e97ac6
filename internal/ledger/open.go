package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"receiptbook/internal/config"
)

// Open builds the ledger configured by LEDGER_BACKEND and LEDGER_SCHEMA.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Ledger, error) {
	schema, err := SchemaByName(cfg.LedgerSchema)
	if err != nil {
		return nil, err
	}

	var table Table
	switch strings.ToLower(strings.TrimSpace(cfg.LedgerBackend)) {
	case "", "sheets":
		table, err = NewSheetsTable(ctx, cfg)
	case "xlsx":
		table, err = OpenXLSX(cfg.LedgerXLSXPath, cfg.SheetTab)
	case "memory":
		table = NewMemoryTable()
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.LedgerBackend)
	}
	if err != nil {
		return nil, err
	}
	return New(table, schema, log), nil
}
