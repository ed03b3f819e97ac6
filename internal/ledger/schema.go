package ledger

import (
	"fmt"
	"strings"

	"receiptbook/internal"
	"receiptbook/internal/util"
)

const (
	ColDate          = "Date"
	ColSource        = "Vendor/Source"
	ColPayment       = "Paid Inv/Pcard"
	ColNotes         = "Notes"
	ColItem          = "Item"
	ColReceiptNumber = "Receipt Number"

	ColSenderName  = "Sender Name"
	ColSenderEmail = "Sender Email"
	ColCost        = "Cost"
	ColSourceV1    = "Source"
)

// Schema is one revision of the ledger's column contract.
type Schema struct {
	Name    string
	Columns []string
	// DateColumn and ReceiptColumn drive positioning and duplicate checks.
	DateColumn    string
	ReceiptColumn string
	// AmountColumn names the column receiving the cost for a category.
	AmountColumn func(internal.Category) string
}

var SchemaV2 = Schema{
	Name: "v2",
	Columns: []string{
		ColDate, ColSource, ColPayment,
		string(internal.CategoryOperational),
		string(internal.CategoryCarpenter),
		string(internal.CategoryEquipment),
		string(internal.CategoryMcCabe),
		string(internal.CategoryOther),
		ColNotes, ColItem, ColReceiptNumber,
	},
	DateColumn:    ColDate,
	ReceiptColumn: ColReceiptNumber,
	AmountColumn: func(c internal.Category) string {
		if c == "" {
			return string(internal.CategoryOther)
		}
		return string(c)
	},
}

// SchemaV1 is the legacy layout that still carried the sender identity.
var SchemaV1 = Schema{
	Name: "v1",
	Columns: []string{
		ColSenderName, ColSenderEmail, ColItem, ColCost, ColDate, ColSourceV1, ColReceiptNumber,
	},
	DateColumn:    ColDate,
	ReceiptColumn: ColReceiptNumber,
	AmountColumn:  func(internal.Category) string { return ColCost },
}

func SchemaByName(name string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "v2":
		return SchemaV2, nil
	case "v1":
		return SchemaV1, nil
	default:
		return Schema{}, fmt.Errorf("unknown ledger schema: %s", name)
	}
}

func (s Schema) isAmountColumn(col string) bool {
	if col == ColCost {
		return true
	}
	for _, c := range internal.Categories {
		if col == string(c) {
			return true
		}
	}
	return false
}

// Row lays out rec in column order. Exactly one amount column is filled.
func (s Schema) Row(rec internal.Record) []any {
	amountCol := s.AmountColumn(rec.Category)
	row := make([]any, len(s.Columns))
	for i, col := range s.Columns {
		switch {
		case col == ColDate:
			row[i] = rec.Date
		case col == ColSource || col == ColSourceV1:
			row[i] = rec.Source
		case col == ColPayment:
			row[i] = string(rec.PaymentType)
		case col == ColNotes:
			row[i] = rec.Notes
		case col == ColItem:
			row[i] = rec.Item
		case col == ColReceiptNumber:
			row[i] = Text(rec.ReceiptNumber)
		case col == ColSenderName:
			row[i] = senderField(rec, func(s internal.SenderIdentity) string { return s.Name })
		case col == ColSenderEmail:
			row[i] = senderField(rec, func(s internal.SenderIdentity) string { return s.Email })
		case s.isAmountColumn(col):
			if col == amountCol {
				row[i] = coerceAmount(rec.Cost)
			} else {
				row[i] = ""
			}
		default:
			row[i] = ""
		}
	}
	return row
}

func senderField(rec internal.Record, pick func(internal.SenderIdentity) string) string {
	if rec.Sender == nil {
		return ""
	}
	return pick(*rec.Sender)
}

// coerceAmount returns a number when cost parses, otherwise the raw string.
func coerceAmount(cost string) any {
	if v, ok := util.ParseAmount(cost); ok {
		return v
	}
	return cost
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrColumnMissing, name)
}
