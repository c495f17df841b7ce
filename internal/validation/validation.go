// Package validation compiles and applies per-endpoint JSON Schemas.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/intexuraos/agents/internal/errors"
)

// Schema wraps a compiled JSON Schema for one endpoint.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
	raw      json.RawMessage
}

// MustCompile compiles a schema document at init time. Schemas are static
// per endpoint, so a malformed one is a programming error.
func MustCompile(name, document string) *Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(name+".json", bytes.NewReader([]byte(document))); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	compiled, err := compiler.Compile(name + ".json")
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return &Schema{name: name, compiled: compiled, raw: json.RawMessage(document)}
}

// Name returns the schema identifier used in the OpenAPI document.
func (s *Schema) Name() string { return s.name }

// Raw returns the schema source for embedding into the OpenAPI document.
func (s *Schema) Raw() json.RawMessage { return s.raw }

// Validate checks raw JSON against the schema and returns a
// VALIDATION_ERROR describing the first violation.
func (s *Schema) Validate(raw []byte) error {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return errors.Validation("request body is not valid JSON")
	}
	if err := s.compiled.Validate(value); err != nil {
		var validationErr *jsonschema.ValidationError
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			validationErr = ve
		}
		if validationErr != nil {
			leaf := leafError(validationErr)
			return errors.Validation(fmt.Sprintf("%s: %s", s.name, leaf.Message)).
				WithDetails("location", leaf.InstanceLocation)
		}
		return errors.Validation(err.Error())
	}
	return nil
}

// leafError walks to the most specific violation for the error message.
func leafError(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}
