package roster

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/p-n-ai/pai-progress/internal/catalog"
)

// CSVSource reads a comma-separated export of the progression sheet.
type CSVSource struct {
	path    string
	catalog *catalog.Catalog
}

// NewCSVSource creates a source for the file at path.
func NewCSVSource(path string, cat *catalog.Catalog) *CSVSource {
	return &CSVSource{path: path, catalog: cat}
}

func (s *CSVSource) Name() string {
	return "csv:" + s.path
}

// Fingerprint hashes the file bytes.
func (s *CSVSource) Fingerprint(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("reading csv: %w", err)
	}
	return fingerprint(data), nil
}

func (s *CSVSource) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}

	students, err := decodeRows(rows, s.catalog)
	if err != nil {
		return nil, fmt.Errorf("decoding csv: %w", err)
	}

	return &Snapshot{
		Students:    students,
		Fingerprint: fingerprint(data),
		Source:      s.Name(),
		LoadedAt:    time.Now(),
	}, nil
}
