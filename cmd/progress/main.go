package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/platform/database"
	"github.com/p-n-ai/pai-progress/internal/platform/logging"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/roster"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "progress",
		Short:        "Query student assessment progression",
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.String("source", "", "Roster source (xlsx, csv, postgres); default from PROGRESS_ROSTER_SOURCE")
	f.String("path", "", "Roster file path; default from PROGRESS_ROSTER_PATH")
	f.String("sheet", "", "Worksheet name for xlsx rosters")
	f.String("database-url", "", "PostgreSQL URL for the postgres source")
	f.String("catalog", "", "Catalog YAML file (empty uses the built-in catalog)")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.String("log-format", "", "Log format (text, json)")
	f.Bool("json", false, "Print results as JSON")

	root.AddCommand(
		requirementsCmd(),
		classifyCmd(),
		statusCmd(),
		findCmd(),
		searchCmd(),
		summaryCmd(),
		exportCmd(),
		importCmd(),
	)
	return root
}

// loadConfig reads the environment and applies any flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	override := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	override("source", &cfg.Roster.Source)
	override("path", &cfg.Roster.Path)
	override("sheet", &cfg.Roster.Sheet)
	override("database-url", &cfg.Database.URL)
	override("catalog", &cfg.Catalog.Path)
	override("log-level", &cfg.Log.Level)
	override("log-format", &cfg.Log.Format)
	cfg.Roster.Source = strings.ToLower(cfg.Roster.Source)

	// Diagnostics go to stderr so results can be piped.
	logging.Setup(cfg.Log, cmd.ErrOrStderr())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is what a command needs to answer queries.
type session struct {
	cfg     *config.Config
	engine  *progress.Engine
	closers []func()
}

// Close releases everything the session opened.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, engine: progress.NewEngine(cat)}, nil
}

// loadRoster opens the configured source and reads one snapshot.
func (s *session) loadRoster(ctx context.Context) (*roster.Snapshot, error) {
	var pool *pgxpool.Pool
	if s.cfg.Roster.Source == config.SourcePostgres {
		db, err := database.New(ctx, s.cfg.Database.URL, s.cfg.Database.MaxConns, s.cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		pool = db.Pool
	}

	src, err := roster.Open(s.cfg.Roster, s.engine.Catalog(), pool)
	if err != nil {
		return nil, err
	}
	snap, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster from %s: %w", src.Name(), err)
	}
	return snap, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
