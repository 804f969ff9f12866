package roster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-progress/internal/catalog"
)

// XLSXSource reads one worksheet of a workbook.
type XLSXSource struct {
	path    string
	sheet   string
	catalog *catalog.Catalog
}

// NewXLSXSource creates a source for sheet in the workbook at path.
func NewXLSXSource(path, sheet string, cat *catalog.Catalog) *XLSXSource {
	return &XLSXSource{path: path, sheet: sheet, catalog: cat}
}

func (s *XLSXSource) Name() string {
	return "xlsx:" + s.path
}

// Fingerprint hashes the workbook bytes.
func (s *XLSXSource) Fingerprint(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("reading workbook: %w", err)
	}
	return fingerprint(data), nil
}

func (s *XLSXSource) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading workbook: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	// Raw values keep numbers and date serials free of display formatting.
	rows, err := f.GetRows(s.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", s.sheet, err)
	}

	students, err := decodeRows(rows, s.catalog)
	if err != nil {
		return nil, fmt.Errorf("decoding sheet %q: %w", s.sheet, err)
	}

	return &Snapshot{
		Students:    students,
		Fingerprint: fingerprint(data),
		Source:      s.Name(),
		LoadedAt:    time.Now(),
	}, nil
}
