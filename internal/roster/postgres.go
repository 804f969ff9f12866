package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

const dbTimeout = 5 * time.Second

// Schema creates the tables the PostgreSQL source and event logger use.
// Apply it with database.DB.Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS students (
	student_id     text PRIMARY KEY,
	position       integer NOT NULL DEFAULT 0,
	name           text NOT NULL DEFAULT '',
	course         text NOT NULL DEFAULT '',
	duration_weeks integer,
	start_date     date,
	finish_date    date,
	attendance     double precision,
	phone          text NOT NULL DEFAULT '',
	results        jsonb NOT NULL DEFAULT '{}'::jsonb,
	updated_at     timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS roster_events (
	id          bigserial PRIMARY KEY,
	event_type  text NOT NULL,
	source      text NOT NULL,
	fingerprint text,
	students    integer NOT NULL DEFAULT 0,
	error       text,
	created_at  timestamptz NOT NULL DEFAULT NOW()
);
`

// PostgresSource reads the table from the students relation.
type PostgresSource struct {
	pool    *pgxpool.Pool
	catalog *catalog.Catalog
}

// NewPostgresSource creates a PostgreSQL-backed source.
func NewPostgresSource(pool *pgxpool.Pool, cat *catalog.Catalog) (*PostgresSource, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresSource{pool: pool, catalog: cat}, nil
}

func (s *PostgresSource) Name() string {
	return "postgres:students"
}

// Fingerprint combines the row count with the latest update time.
func (s *PostgresSource) Fingerprint(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var count int64
	var latest *time.Time
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*), max(updated_at) FROM students`,
	).Scan(&count, &latest); err != nil {
		return "", fmt.Errorf("fingerprint students: %w", err)
	}

	stamp := "none"
	if latest != nil {
		stamp = latest.UTC().Format(time.RFC3339Nano)
	}
	return fingerprint([]byte(fmt.Sprintf("%d|%s", count, stamp))), nil
}

func (s *PostgresSource) Load(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	fp, err := s.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT student_id, name, course, duration_weeks, start_date, finish_date,
		        attendance, phone, results
		 FROM students
		 ORDER BY position ASC, student_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	students := []progress.Student{}
	for rows.Next() {
		var st progress.Student
		var weeks *int32
		var start, finish *time.Time
		var results []byte
		if err := rows.Scan(
			&st.ID,
			&st.Name,
			&st.Course,
			&weeks,
			&start,
			&finish,
			&st.Attendance,
			&st.Phone,
			&results,
		); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		if weeks != nil {
			st.DurationWeeks = int(*weeks)
		}
		if start != nil {
			st.StartDate = *start
		}
		if finish != nil {
			st.FinishDate = *finish
		}
		st.Course = canonicalCourse(s.catalog, st.Course)
		if st.Results, err = decodeResults(results); err != nil {
			return nil, fmt.Errorf("student %s: %w", st.ID, err)
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}

	return &Snapshot{
		Students:    students,
		Fingerprint: fp,
		Source:      s.Name(),
		LoadedAt:    time.Now(),
	}, nil
}

// Replace overwrites the students relation with table in one transaction.
func (s *PostgresSource) Replace(ctx context.Context, table []progress.Student) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM students`); err != nil {
			return fmt.Errorf("clear students: %w", err)
		}

		batch := &pgx.Batch{}
		for i, st := range table {
			results, err := json.Marshal(st.Results)
			if err != nil {
				return fmt.Errorf("encode results for %s: %w", st.ID, err)
			}
			batch.Queue(
				`INSERT INTO students (student_id, position, name, course, duration_weeks,
				                       start_date, finish_date, attendance, phone, results)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)`,
				st.ID, i, st.Name, st.Course, st.DurationWeeks,
				nullIfZeroTime(st.StartDate), nullIfZeroTime(st.FinishDate),
				st.Attendance, st.Phone, string(results),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert students: %w", err)
		}
		return nil
	})
}

func decodeResults(data []byte) (map[string]progress.Value, error) {
	out := make(map[string]progress.Value)
	if len(data) == 0 {
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	for name, v := range raw {
		if value := progress.ValueOf(v); !value.IsAbsent() {
			out[name] = value
		}
	}
	return out, nil
}

func nullIfZeroTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
