// Package openapi assembles the OpenAPI 3.1.1 document each service exposes
// from its endpoint declarations.
package openapi

import (
	"encoding/json"
	"strings"

	"github.com/intexuraos/agents/internal/validation"
)

// Operation describes one endpoint for the document.
type Operation struct {
	Method        string
	Path          string
	Summary       string
	RequestSchema *validation.Schema
	Internal      bool
}

// Build renders the OpenAPI document for a service.
func Build(service, version string, ops []Operation) ([]byte, error) {
	paths := make(map[string]map[string]interface{})
	for _, op := range ops {
		item, ok := paths[op.Path]
		if !ok {
			item = make(map[string]interface{})
			paths[op.Path] = item
		}

		entry := map[string]interface{}{
			"summary": op.Summary,
			"responses": map[string]interface{}{
				"default": map[string]interface{}{
					"description": "Envelope response",
				},
			},
		}
		if op.Internal {
			entry["tags"] = []string{"internal"}
		}
		if op.RequestSchema != nil {
			entry["requestBody"] = map[string]interface{}{
				"required": true,
				"content": map[string]interface{}{
					"application/json": map[string]interface{}{
						"schema": op.RequestSchema.Raw(),
					},
				},
			}
		}
		item[strings.ToLower(op.Method)] = entry
	}

	doc := map[string]interface{}{
		"openapi": "3.1.1",
		"info": map[string]interface{}{
			"title":   service,
			"version": version,
		},
		"paths": paths,
	}
	return json.Marshal(doc)
}
