package dispatch

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Identifiers double as file names under inbox/, outbox/ and prompts/.
const identifierPattern = "^[a-z0-9][a-z0-9_-]*$"

var rulesSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "minProperties": 1,
  "propertyNames": {"pattern": "` + identifierPattern + `"},
  "additionalProperties": {"type": "string", "pattern": "` + identifierPattern + `"}
}`)

var assignmentsSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "propertyNames": {"pattern": "` + identifierPattern + `"},
  "additionalProperties": {"type": "string", "minLength": 1}
}`)

// validateDocument validates raw JSON against a schema
func validateDocument(schema gojsonschema.JSONLoader, data []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
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
