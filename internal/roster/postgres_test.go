package roster_test

import (
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/platform/database"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/roster"
)

func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := t.Context()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("progress"),
		tcpostgres.WithUsername("progress"),
		tcpostgres.WithPassword("progress"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	db, err := database.New(ctx, url, 4, 1)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestPostgresSource_RoundTrip(t *testing.T) {
	db := startPostgres(t)
	ctx := t.Context()

	src, err := roster.NewPostgresSource(db.Pool, defaultCatalog(t))
	if err != nil {
		t.Fatalf("NewPostgresSource() error = %v", err)
	}
	if err := db.Migrate(ctx, roster.Schema); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	attendance := 88.0
	table := []progress.Student{
		{
			ID: "S010", Name: "Ana Souza", Course: "eap", DurationWeeks: 10,
			StartDate:  time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC),
			FinishDate: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			Attendance: &attendance, Phone: "+61 2 9744 1356",
			Results: map[string]progress.Value{
				intMid: progress.Number(71),
				intEnd: progress.Text("fail"),
			},
		},
		{ID: "S002", Name: "Bui Minh", Course: catalog.CourseGeneralEnglish, DurationWeeks: 4},
	}
	if err := src.Replace(ctx, table); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	snap, err := src.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Students) != 2 {
		t.Fatalf("Students = %d, want 2", len(snap.Students))
	}

	ana := snap.Students[0]
	if ana.ID != "S010" {
		t.Errorf("first student = %q, want insertion order", ana.ID)
	}
	if ana.Course != catalog.CourseEAP {
		t.Errorf("Course = %q, want %q", ana.Course, catalog.CourseEAP)
	}
	if !ana.FinishDate.Equal(table[0].FinishDate) {
		t.Errorf("FinishDate = %v, want %v", ana.FinishDate, table[0].FinishDate)
	}
	if ana.Attendance == nil || *ana.Attendance != attendance {
		t.Errorf("Attendance = %v, want %v", ana.Attendance, attendance)
	}
	if v := ana.Result(intMid); v.Kind() != progress.KindNumber || v.String() != "71" {
		t.Errorf("%s = %#v, want number 71", intMid, v)
	}
	if got := ana.Result(intEnd).String(); got != "fail" {
		t.Errorf("%s = %q, want fail", intEnd, got)
	}

	bui := snap.Students[1]
	if bui.Attendance != nil || !bui.StartDate.IsZero() || len(bui.Results) != 0 {
		t.Errorf("absent fields not preserved: %+v", bui)
	}

	fp, err := src.Fingerprint(ctx)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if fp != snap.Fingerprint {
		t.Errorf("Fingerprint() = %q, snapshot has %q", fp, snap.Fingerprint)
	}

	logger := roster.NewPostgresEventLogger(db.Pool)
	if err := logger.LogEvent(roster.Event{
		Type: roster.EventReloaded, Source: src.Name(), Fingerprint: fp, Students: 2,
	}); err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}
	var count int
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM roster_events`).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Errorf("roster_events rows = %d, want 1", count)
	}
}
