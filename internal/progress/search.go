package progress

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AttendanceBand filters students by attendance standing.
type AttendanceBand string

const (
	BandAll    AttendanceBand = "All"
	BandGood   AttendanceBand = "Good"
	BandAtRisk AttendanceBand = "At Risk"
)

// ParseAttendanceBand reads a band name in any case ("at-risk", "At Risk").
func ParseAttendanceBand(s string) (AttendanceBand, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch key {
	case "", "all":
		return BandAll, nil
	case "good":
		return BandGood, nil
	case "atrisk":
		return BandAtRisk, nil
	default:
		return "", fmt.Errorf("invalid attendance band: %q", s)
	}
}

// Matches reports whether an attendance figure falls in the band. Students
// without a figure only match BandAll.
func (b AttendanceBand) Matches(attendance *float64) bool {
	switch b {
	case BandGood:
		return attendance != nil && *attendance >= GoodAttendance
	case BandAtRisk:
		return attendance != nil && *attendance < GoodAttendance
	default:
		return true
	}
}

// StudentFilter narrows a student search.
type StudentFilter struct {
	Course        string
	Attendance    AttendanceBand
	FinishingSoon bool
	Now           time.Time
}

// SearchStudents finds students whose name or identifier contains term,
// ignoring case and accents. Name matches come first, then students
// matched only by identifier; table order is kept within each group. An
// empty term matches every student that passes the filter.
func SearchStudents(table []Student, term string, f StudentFilter) []Student {
	now := f.Now
	if f.FinishingSoon && now.IsZero() {
		now = time.Now()
	}
	needle := foldSearch(strings.TrimSpace(term))

	byName := []Student{}
	var byID []Student
	for _, s := range table {
		if !courseMatches(f.Course, s.Course) || !f.Attendance.Matches(s.Attendance) {
			continue
		}
		if f.FinishingSoon && !finishingWithin(s, now, FinishingSoonWindow) {
			continue
		}

		switch {
		case strings.Contains(foldSearch(s.Name), needle):
			byName = append(byName, s)
		case strings.Contains(foldSearch(s.ID), needle):
			byID = append(byID, s)
		}
	}
	return append(byName, byID...)
}

// FindStudent returns the student with exactly the given identifier.
func FindStudent(table []Student, id string) (Student, bool) {
	for _, s := range table {
		if s.ID == id {
			return s, true
		}
	}
	return Student{}, false
}

// foldSearch strips diacritics and case-folds s so "José" matches "jose".
func foldSearch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}
