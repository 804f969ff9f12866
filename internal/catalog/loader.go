package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultDocument []byte

//go:embed schema.json
var schemaDocument []byte

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultDocument)
})

// Default returns the catalog compiled into the binary. It is parsed once
// per process.
func Default() (*Catalog, error) {
	return defaultCatalog()
}

// Load returns the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}

	slog.Info("catalog loaded", "path", path, "courses", len(c.names), "assessments", len(c.order))
	return c, nil
}

// Parse decodes a YAML catalog document, validates it against the catalog
// schema and the bracket rules, and builds a Catalog.
func Parse(data []byte) (*Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return New(doc)
}

func validateSchema(doc any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaDocument),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validating catalog: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &ValidationError{Problems: problems}
}
