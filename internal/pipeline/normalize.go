package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"receiptbook/internal"
	"receiptbook/internal/util"
)

const (
	maxFieldLen = 50
	maxNotesLen = 200
	itemWords   = 2
	dateLayout  = "2006-01-02"
	unknown     = "unknown"
)

// ErrInvalidRecord wraps every reason Validate rejects an edited record.
var ErrInvalidRecord = errors.New("invalid record")

// Normalizer coerces raw model output into a canonical record. It never fails.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

func (n *Normalizer) Normalize(raw internal.RawFields) internal.Record {
	now := n.now()

	rec := internal.Record{
		Item:          normalizeItem(stringify(raw["item"])),
		Cost:          normalizeCost(stringify(raw["cost"])),
		Date:          normalizeDate(stringify(raw["date"]), now),
		Source:        boundedOr(stringify(raw["source"]), unknown),
		ReceiptNumber: boundedOr(stringify(raw["receipt_number"]), "auto_"+now.Format("20060102150405")),
		Notes:         util.Truncate(strings.TrimSpace(stringify(raw["notes"])), maxNotesLen),
	}
	if pt, ok := ParsePaymentType(stringify(raw["payment_type"])); ok {
		rec.PaymentType = pt
	}
	if cat, ok := ParseCategory(stringify(raw["category"])); ok {
		rec.Category = cat
	}
	return rec
}

// Validate re-applies the record bounds to a human-edited record. Unlike
// Normalize it refuses costs and dates it cannot read instead of defaulting.
func (n *Normalizer) Validate(rec internal.Record) (internal.Record, error) {
	out := rec
	out.Item = normalizeItem(rec.Item)

	cost := util.CleanAmount(rec.Cost)
	if _, ok := util.ParseAmount(cost); !ok {
		return internal.Record{}, fmt.Errorf("%w: cost %q is not an amount", ErrInvalidRecord, rec.Cost)
	}
	out.Cost = cost

	date, ok := parseDate(rec.Date)
	if !ok {
		return internal.Record{}, fmt.Errorf("%w: date %q is not a calendar date", ErrInvalidRecord, rec.Date)
	}
	out.Date = date

	out.Source = boundedOr(rec.Source, unknown)
	out.ReceiptNumber = util.Truncate(strings.TrimSpace(rec.ReceiptNumber), maxFieldLen)
	out.Notes = util.Truncate(strings.TrimSpace(rec.Notes), maxNotesLen)
	if rec.Sender != nil {
		sender := internal.SenderIdentity{
			Name:  util.Truncate(strings.TrimSpace(rec.Sender.Name), maxFieldLen),
			Email: util.Truncate(strings.TrimSpace(rec.Sender.Email), maxFieldLen*2),
		}
		out.Sender = &sender
	}
	return out, nil
}

func normalizeItem(s string) string {
	s = strings.ToLower(util.NormalizeSpaces(s))
	if util.IsPlaceholder(s) {
		return unknown
	}
	return util.Truncate(util.FirstWords(s, itemWords), maxFieldLen)
}

func normalizeCost(s string) string {
	cleaned := util.CleanAmount(s)
	if strings.Trim(cleaned, ".") == "" {
		return "0"
	}
	return cleaned
}

func normalizeDate(s string, now time.Time) string {
	if date, ok := parseDate(s); ok {
		return date
	}
	return now.Format(dateLayout)
}

// parseDate reads s in any common layout and returns it as YYYY-MM-DD.
func parseDate(s string) (out string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	defer func() {
		if recover() != nil {
			out, ok = "", false
		}
	}()
	t, err := dateparse.ParseAny(s)
	if err != nil || t.Year() < 1 || t.Year() > 9999 {
		return "", false
	}
	return t.Format(dateLayout), true
}

// boundedOr trims and truncates s, substituting fallback for placeholders.
func boundedOr(s, fallback string) string {
	s = strings.TrimSpace(s)
	if util.IsPlaceholder(s) {
		return fallback
	}
	return util.Truncate(s, maxFieldLen)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
