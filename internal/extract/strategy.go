package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"receiptbook/internal"
)

var (
	ErrNoText        = errors.New("document has no extractable text")
	ErrEmptyResponse = errors.New("empty response from model")
)

// Strategy turns one document into raw, untrusted fields.
type Strategy interface {
	Name() internal.Strategy
	Extract(ctx context.Context, doc internal.Document) (internal.RawFields, error)
}

// cleanModelJSON strips Markdown fences and any prose around the first JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimLeft(s, "`")
			s = strings.TrimPrefix(s, "json")
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}

// parseRawFields decodes model content into fields, keeping numbers verbatim.
func parseRawFields(content string) (internal.RawFields, error) {
	clean := cleanModelJSON(content)
	if clean == "" {
		return nil, ErrEmptyResponse
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode model json: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode model json: not an object")
	}
	return internal.RawFields(raw), nil
}
