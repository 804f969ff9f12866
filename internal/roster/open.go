package roster

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/platform/config"
)

// Open builds the source cfg selects. pool is only used, and then
// required, by the postgres source.
func Open(cfg config.RosterConfig, cat *catalog.Catalog, pool *pgxpool.Pool) (Source, error) {
	switch cfg.Source {
	case config.SourceXLSX, "":
		return NewXLSXSource(cfg.Path, cfg.Sheet, cat), nil
	case config.SourceCSV:
		return NewCSVSource(cfg.Path, cat), nil
	case config.SourcePostgres:
		return NewPostgresSource(pool, cat)
	default:
		return nil, fmt.Errorf("unknown roster source: %q", cfg.Source)
	}
}
