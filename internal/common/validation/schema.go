// Package validation pre-checks inbound request shapes against JSON Schema
// before the workflow is invoked.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/apperrors"
)

// Schema is a compiled JSON Schema ready for repeated use.
type Schema struct {
	compiled *gojsonschema.Schema
}

// MustCompile parses a JSON Schema document and panics on malformed schemas.
// Schemas are package-level constants, so a failure here is a programming error.
func MustCompile(schemaJSON string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("validation: compile schema: %v", err))
	}
	return &Schema{compiled: s}
}

// Validate checks raw JSON bytes against the schema. A violation is returned
// as an INVALID_PAYLOAD application error listing every failed field.
func (s *Schema) Validate(document []byte) error {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return apperrors.NewInvalidPayload(err.Error())
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return apperrors.NewInvalidPayload(strings.Join(msgs, "; "))
}
