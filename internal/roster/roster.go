// Package roster loads the student progression table from its backing
// store and keeps an immutable snapshot of it for the query engine.
package roster

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

// Column headers of the progression sheet. Every other header that names a
// catalog assessment is read as a result column.
const (
	ColStudentID  = "StudentID"
	ColName       = "Name"
	ColCourse     = "Course"
	ColStartDate  = "Start Date"
	ColFinishDate = "Finish Date"
	ColDuration   = "Duration (weeks)"
	ColAttendance = "Attendance"
	ColPhone      = "Phone"
)

var requiredColumns = []string{ColStudentID, ColName, ColCourse, ColDuration}

// ErrMissingColumn is returned when the table lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Snapshot is one complete load of the table. It is never modified after
// it is published, so readers may share it without locking.
type Snapshot struct {
	Students    []progress.Student
	Fingerprint string
	Source      string
	LoadedAt    time.Time
}

// Source reads the table from a backing store.
type Source interface {
	// Name identifies the source in logs and events.
	Name() string
	// Fingerprint summarises the current content cheaply enough to poll.
	Fingerprint(ctx context.Context) (string, error)
	Load(ctx context.Context) (*Snapshot, error)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2/1/2006",
	"02/01/2006",
	"2-Jan-2006",
	"2 Jan 2006",
}

// decodeRows turns a header row plus data rows into students. Blank rows
// are skipped and short rows are padded.
func decodeRows(rows [][]string, cat *catalog.Catalog) ([]progress.Student, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s (no header row)", ErrMissingColumn, ColStudentID)
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[strings.TrimSpace(h)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	assessments := make(map[string]int)
	for _, a := range cat.AllAssessments() {
		if i, ok := index[a]; ok {
			assessments[a] = i
		}
	}

	students := make([]progress.Student, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		cell := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		s := progress.Student{
			ID:            cell(ColStudentID),
			Name:          cell(ColName),
			Course:        canonicalCourse(cat, cell(ColCourse)),
			DurationWeeks: parseWeeks(cell(ColDuration)),
			StartDate:     parseDate(cell(ColStartDate)),
			FinishDate:    parseDate(cell(ColFinishDate)),
			Attendance:    parseAttendance(cell(ColAttendance)),
			Phone:         cell(ColPhone),
			Results:       make(map[string]progress.Value, len(assessments)),
		}
		for a, i := range assessments {
			if i < len(row) {
				if v := progress.ParseCell(row[i]); !v.IsAbsent() {
					s.Results[a] = v
				}
			}
		}
		students = append(students, s)
	}
	return students, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// canonicalCourse keeps unknown course names as written.
func canonicalCourse(cat *catalog.Catalog, name string) string {
	if canonical, ok := cat.CanonicalCourse(name); ok {
		return canonical
	}
	return name
}

func parseWeeks(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

func parseAttendance(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	return &f
}

// parseDate accepts the usual written layouts and spreadsheet serial
// numbers. Unparseable dates are left zero.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t
		}
	}
	return time.Time{}
}

func fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
