package receipts

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const receiptSchemaURL = "https://trumpproof.schemas.local/receipt.schema.json"

// receiptSchema constrains the envelope of every receipt and the fixed
// payload of anomaly receipts.
const receiptSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["receipt_type", "ts", "tenant_id", "payload_hash"],
  "properties": {
    "receipt_type": {"type": "string", "minLength": 1},
    "ts": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}T\\d{2}:\\d{2}:\\d{2}(\\.\\d+)?Z$"},
    "tenant_id": {"type": "string", "minLength": 1},
    "payload_hash": {"type": "string", "pattern": "^[0-9a-f]{64}:[0-9a-f]{64}$"}
  },
  "if": {"properties": {"receipt_type": {"const": "anomaly"}}},
  "then": {
    "required": ["metric", "baseline", "delta", "classification", "action"],
    "properties": {
      "metric": {"type": "string"},
      "baseline": {"type": "number"},
      "delta": {"type": "number"},
      "classification": {"enum": ["drift", "degradation", "violation", "deviation", "anti_pattern"]},
      "action": {"enum": ["alert", "escalate", "halt", "auto_fix"]}
    }
  }
}`

// Validator checks receipts against the receipt JSON Schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the receipt schema.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(receiptSchemaURL, strings.NewReader(receiptSchema)); err != nil {
		return nil, fmt.Errorf("receipt schema load failed: %w", err)
	}
	compiled, err := c.Compile(receiptSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("receipt schema compile failed: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks the flat form of r.
func (v *Validator) Validate(r *Receipt) error {
	if err := v.schema.Validate(r.Map()); err != nil {
		return fmt.Errorf("receipt schema violation: %w", err)
	}
	return nil
}
