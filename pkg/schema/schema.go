// Package schema validates inbound filter request payloads against a JSON
// schema before they reach the engine.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// FilterRequestSchema is the wire contract for the natural-language filter
// endpoint. Extra properties are allowed so clients can attach context.
const FilterRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["query", "available_filters"],
	"properties": {
		"query": {
			"type": "string",
			"minLength": 1
		},
		"available_filters": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name", "label", "sourceType", "sourceId"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"label": {"type": "string"},
					"sourceType": {"type": "string", "enum": ["lens", "dimensions"]},
					"sourceId": {"type": "string", "minLength": 1},
					"joinColumnName": {"type": "string"}
				}
			}
		},
		"conversation_id": {
			"type": "string"
		},
		"context": {
			"type": "object"
		}
	}
}`

var filterRequestLoader = gojsonschema.NewStringLoader(FilterRequestSchema)

// ValidateFilterRequest checks a raw request body against the schema and
// returns one error summarizing every violation.
func ValidateFilterRequest(body []byte) error {
	result, err := gojsonschema.Validate(filterRequestLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("invalid request: %s", strings.Join(errs, "; "))
	}
	return nil
}
