package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// fileSchema describes the shape of the JSON config file. Types caught
// here produce a readable message instead of a viper unmarshal error.
const fileSchema = `{
  "type": "object",
  "properties": {
    "server": {
      "type": "object",
      "properties": {
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535},
        "auth_token": {"type": "string"},
        "timeout": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": false
    },
    "speech": {
      "type": "object",
      "properties": {
        "api_key": {"type": "string"},
        "endpoint": {"type": "string"},
        "language": {"type": "string"},
        "format": {"type": "string"},
        "sample_rate": {"type": "integer", "minimum": 8000},
        "timeout": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": false
    },
    "webhook": {
      "type": "object",
      "properties": {
        "url": {"type": "string"},
        "secret": {"type": "string"},
        "timeout": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": false
    },
    "storage": {
      "type": "object",
      "properties": {
        "backend": {"type": "string", "enum": ["memory", "sqlite"]},
        "path": {"type": "string"}
      },
      "additionalProperties": false
    },
    "relay": {
      "type": "object",
      "properties": {
        "trigger_command": {"type": "string", "minLength": 1},
        "challenge_ttl": {"type": "integer", "minimum": 1},
        "sweep_interval": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": false
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "redaction": {"type": "boolean"}
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

// ValidateSchema checks a raw config document against the file schema
func ValidateSchema(raw []byte) error {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(fileSchema))
	})
	if schemaErr != nil {
		return fmt.Errorf("failed to compile config schema: %w", schemaErr)
	}

	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("config file is not valid JSON: %w", err)
	}

	if !result.Valid() {
		details := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			details[i] = desc.String()
		}
		return fmt.Errorf("invalid config file: %s", strings.Join(details, "; "))
	}

	return nil
}
