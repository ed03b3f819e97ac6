package extract

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const fieldsSchema = `{
  "type": "object",
  "required": ["item", "cost", "date", "source", "receipt_number"],
  "properties": {
    "item": {"type": "string"},
    "cost": {"type": ["string", "number"]},
    "date": {"type": "string"},
    "source": {"type": "string"},
    "receipt_number": {"type": ["string", "number", "null"]}
  }
}`

var compiledFieldsSchema = jsonschema.MustCompileString("receipt-fields.json", fieldsSchema)

// checkDrift reports how model output deviates from the requested shape.
// Deviations are tolerated downstream; this only feeds the logs.
func checkDrift(content string) error {
	var v any
	if err := json.Unmarshal([]byte(cleanModelJSON(content)), &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := compiledFieldsSchema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
