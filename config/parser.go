package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dkengine/datakit/errkind"
)

// Parser loads a Document from bytes in either JSON or YAML form. DataKit
// configuration is typically authored as YAML and deployed as JSON; both
// decode into the same Document shape since their struct tags agree field
// for field.
type Parser struct{}

// NewParser returns a Parser. Parser holds no state; it exists to mirror
// the construction style of the other configuration-adjacent components
// it's wired alongside.
func NewParser() *Parser { return &Parser{} }

// ParseJSON decodes a JSON-encoded Document.
func (Parser) ParseJSON(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errkind.Configurationf("config: parse JSON: %v", err)
	}
	return &doc, nil
}

// ParseYAML decodes a YAML-encoded Document.
func (Parser) ParseYAML(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errkind.Configurationf("config: parse YAML: %v", err)
	}
	return &doc, nil
}

// ParseFile reads path and parses it as YAML or JSON based on its
// extension (.json decodes as JSON; anything else is tried as YAML, which
// is a superset of JSON for this purpose).
func (p Parser) ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Configurationf("config: read %s: %v", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return p.ParseJSON(data)
	}
	return p.ParseYAML(data)
}
