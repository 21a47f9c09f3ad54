package envelope

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// OutboundSchema describes the client-to-relay messages a user may send
const OutboundSchema = `{
  "type": "array",
  "oneOf": [
    {
      "items": [{"enum": ["REQ", "COUNT"]}, {"type": "string", "minLength": 1}],
      "additionalItems": {"type": "object"},
      "minItems": 2
    },
    {
      "items": [{"enum": ["EVENT", "AUTH"]}, {"type": "object"}],
      "additionalItems": false,
      "minItems": 2
    },
    {
      "items": [{"enum": ["CLOSE"]}, {"type": "string", "minLength": 1}],
      "additionalItems": false,
      "minItems": 2
    }
  ]
}`

// OutboundValidator checks outbound lines against OutboundSchema
type OutboundValidator struct {
	schema *gojsonschema.Schema
}

// NewOutboundValidator compiles the outbound schema
func NewOutboundValidator() (*OutboundValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(OutboundSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile outbound schema: %w", err)
	}
	return &OutboundValidator{schema: schema}, nil
}

// Validate returns an error describing why line is not a client message
func (v *OutboundValidator) Validate(line string) error {
	result, err := v.schema.Validate(gojsonschema.NewStringLoader(line))
	if err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}

	if !result.Valid() {
		errors := []string{}
		for _, err := range result.Errors() {
			errors = append(errors, err.String())
		}
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// ValidateBatch validates every line and reports the first offending line number (1-based)
func (v *OutboundValidator) ValidateBatch(lines []string) error {
	for i, line := range lines {
		if err := v.Validate(line); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}
