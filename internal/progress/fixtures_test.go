package progress_test

import (
	"testing"
	"time"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

const (
	intMid   = "Intermediate Mid Course Test"
	intEnd   = "Intermediate End Course Test"
	upperMid = "Upper Intermediate Mid Course Test"
	elemMid  = "Elementary Mid Course Test"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *progress.Engine {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}
	return progress.NewEngine(cat)
}

func ptr(f float64) *float64 { return &f }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sampleTable mixes courses, durations and every kind of recorded value.
func sampleTable() []progress.Student {
	return []progress.Student{
		{
			ID: "S001", Name: "Ana Souza", Course: catalog.CourseEAP, DurationWeeks: 10,
			StartDate: date(2024, 12, 2), FinishDate: date(2025, 3, 14),
			Attendance: ptr(92), Phone: "+61 2 9744 1356",
			Results: map[string]progress.Value{
				intMid: progress.Number(71),
				intEnd: progress.Text("35"),
			},
		},
		{
			ID: "S002", Name: "Bui Minh", Course: catalog.CourseEAP, DurationWeeks: 18,
			StartDate: date(2024, 10, 7), FinishDate: date(2025, 6, 20),
			Attendance: ptr(64), Phone: "+61 0412 555 010",
			Results: map[string]progress.Value{
				intMid: progress.Text("PASS"),
			},
		},
		{
			ID: "S003", Name: "José Ramírez", Course: catalog.CourseGeneralEnglish, DurationWeeks: 30,
			StartDate: date(2024, 8, 5), FinishDate: date(2025, 3, 7),
			Phone: "0412 000 111",
			Results: map[string]progress.Value{
				elemMid: progress.Text("Completed"),
				intMid:  progress.Text("fail"),
			},
		},
		{
			ID: "S004", Name: "Chen Li", Course: "Business English", DurationWeeks: 12,
			Attendance: ptr(85),
			Results: map[string]progress.Value{
				intMid: progress.Number(90),
			},
		},
		{
			ID: "S005", Name: "Dara Okafor", Course: catalog.CourseGeneralEnglish, DurationWeeks: 4,
			StartDate: date(2025, 2, 3), FinishDate: date(2025, 2, 28),
			Attendance: ptr(80),
		},
	}
}
