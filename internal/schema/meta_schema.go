package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// metaSchemaJSON describes the shape json.Marshal produces for a Document
// (spec §3). A malformed surface — a method or namespace with an empty name,
// a missing methods array — fails validation here instead of being handed to codegen
// consumers as a silently broken document.
const metaSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "methods", "namespaces"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "colo": {"type": "string"},
    "methods": {
      "type": "array",
      "items": {"$ref": "#/$defs/method"}
    },
    "namespaces": {
      "type": "array",
      "items": {"$ref": "#/$defs/namespace"}
    },
    "database": {"$ref": "#/$defs/database"}
  },
  "$defs": {
    "method": {
      "type": "object",
      "required": ["name", "path", "params"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "path": {"type": "string", "minLength": 1},
        "params": {"type": "integer", "minimum": 0}
      }
    },
    "namespace": {
      "type": "object",
      "required": ["name", "methods"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "methods": {"type": "array", "items": {"$ref": "#/$defs/method"}}
      }
    },
    "database": {
      "type": "object",
      "required": ["tables"],
      "properties": {
        "tables": {"type": "array", "items": {"$ref": "#/$defs/table"}}
      }
    },
    "table": {
      "type": "object",
      "required": ["name", "columns", "indexes"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "columns": {"type": "array", "items": {"$ref": "#/$defs/column"}},
        "indexes": {"type": "array", "items": {"$ref": "#/$defs/index"}}
      }
    },
    "column": {
      "type": "object",
      "required": ["name", "type", "nullable", "pk"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "type": {"type": "string"},
        "nullable": {"type": "boolean"},
        "pk": {"type": "boolean"}
      }
    },
    "index": {
      "type": "object",
      "required": ["name", "columns", "unique"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "columns": {"type": "array", "items": {"type": "string"}},
        "unique": {"type": "boolean"}
      }
    }
  }
}`

var compiledMetaSchema *jsonschema.Schema

func metaSchema() (*jsonschema.Schema, error) {
	if compiledMetaSchema != nil {
		return compiledMetaSchema, nil
	}

	var doc any
	if err := json.Unmarshal([]byte(metaSchemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("schema: meta-schema is not valid JSON: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("actorrpc-document.json", doc); err != nil {
		return nil, fmt.Errorf("schema: adding meta-schema resource: %w", err)
	}
	s, err := c.Compile("actorrpc-document.json")
	if err != nil {
		return nil, fmt.Errorf("schema: compiling meta-schema: %w", err)
	}

	compiledMetaSchema = s
	return s, nil
}

// Validate marshals doc and checks it against the meta-schema, returning a
// descriptive error on the first violation. Handlers call this right before
// serving /__schema so a malformed surface fails loudly server-side instead
// of shipping a broken document to codegen consumers.
func Validate(doc *Document) error {
	s, err := metaSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("schema: marshaling document: %w", err)
	}

	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return fmt.Errorf("schema: re-decoding document: %w", err)
	}

	if err := s.Validate(inst); err != nil {
		return fmt.Errorf("schema: document failed validation: %w", err)
	}
	return nil
}
