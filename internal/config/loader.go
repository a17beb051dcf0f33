package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

const embeddedSchemaURL = "anubad.v1.schema.json"

//go:embed anubad.v1.schema.json
var embeddedSchema []byte

// Schema returns the embedded JSON schema the config is validated against.
func Schema() []byte {
	return embeddedSchema
}

// LoadAndValidate loads and validates the configuration.
// An empty schemaPath validates against the embedded schema.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	return Parse(data, schemaPath)
}

// LoadOrDefault loads the config at path, falling back to Default when
// the file does not exist. Any other error is returned.
func LoadOrDefault(path, schemaPath string) (*Config, error) {
	cfg, err := LoadAndValidate(path, schemaPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("Config file not found, using built-in defaults", "path", path)
		return Default(), nil
	}

	return cfg, err
}

// Parse validates raw YAML against the schema and decodes it into a Config.
func Parse(data []byte, schemaPath string) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}

	schema, err := compileSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("config: failed to convert YAML to JSON: %w", err)
	}
	var doc any
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return nil, fmt.Errorf("config: failed to decode JSON document: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	if err := config.validateReferences(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	config.ApplyDefaults()

	return &config, nil
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	if schemaPath != "" {
		return jsonschema.Compile(schemaPath)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(embeddedSchemaURL, bytes.NewReader(embeddedSchema)); err != nil {
		return nil, err
	}

	return compiler.Compile(embeddedSchemaURL)
}

// validateReferences checks the cross references the schema cannot express.
func (c *Config) validateReferences() error {
	for _, id := range c.Services.Translate.Models {
		if _, ok := c.Models[id]; !ok {
			return fmt.Errorf("services.translate references unknown model %q", id)
		}
	}

	if d := c.Services.Translate.Default; d != "" {
		found := false
		for _, id := range c.Services.Translate.Models {
			if id == d {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("services.translate.default %q is not assigned to the service", d)
		}
	}

	return nil
}
