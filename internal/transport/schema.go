// internal/transport/schema.go
package transport

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const chatRequestSchema = `{
	"type": "object",
	"required": ["user_id", "message"],
	"properties": {
		"conversation_id": {"type": "string", "maxLength": 128},
		"user_id": {"type": "integer", "minimum": 1},
		"message": {"type": "string", "minLength": 1, "maxLength": 2000}
	},
	"additionalProperties": false
}`

// validateChatRequest checks the raw body against the request schema and
// returns a single human-readable message listing every violation.
func validateChatRequest(body []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(chatRequestSchema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		return fmt.Errorf("request is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("%s", strings.Join(problems, "; "))
}
