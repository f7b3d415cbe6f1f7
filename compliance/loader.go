package compliance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// RulesFile is the on-disk ruleset shape, loadable from YAML or JSON.
type RulesFile struct {
	Version int    `json:"version,omitempty"`
	Rules   []Rule `json:"rules"`
}

// LoadFile reads and compiles a ruleset from path. The format is chosen by
// extension: .json is JSON, everything else is YAML.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(data)
	}
	return LoadYAML(data)
}

// LoadYAML validates and compiles a YAML ruleset document.
func LoadYAML(data []byte) (*RuleSet, error) {
	doc, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse ruleset yaml: %v: %w", err, ErrInvalidRule)
	}
	return LoadJSON(doc)
}

// LoadJSON validates and compiles a JSON ruleset document. The document is
// checked against the generated schema before any pattern compiles, so
// structural problems report field paths rather than compile errors.
func LoadJSON(data []byte) (*RuleSet, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}
	var file RulesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode ruleset: %v: %w", err, ErrInvalidRule)
	}
	return Compile(file.Rules)
}

// Schema returns the JSON Schema for the ruleset file format, for editor
// integration and external validation.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&RulesFile{})
	// Leave the draft unpinned; the validator treats the document as a
	// plain hybrid-draft schema.
	schema.Version = ""
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal ruleset schema: %w", err)
	}
	return raw, nil
}

func validateSchema(doc []byte) error {
	schemaJSON, err := Schema()
	if err != nil {
		return err
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate ruleset: %v: %w", err, ErrInvalidRule)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("ruleset schema: %s: %w", strings.Join(msgs, "; "), ErrInvalidRule)
	}
	return nil
}
