package roster_test

import (
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/roster"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster")

	tests := []struct {
		kind     string
		wantName string
		wantErr  bool
	}{
		{config.SourceXLSX, "xlsx:" + path, false},
		{"", "xlsx:" + path, false},
		{config.SourceCSV, "csv:" + path, false},
		{config.SourcePostgres, "", true},
		{"sqlite", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := config.RosterConfig{Source: tt.kind, Path: path, Sheet: "SMEI"}
			src, err := roster.Open(cfg, defaultCatalog(t), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if src.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", src.Name(), tt.wantName)
			}
		})
	}
}
