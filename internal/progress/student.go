package progress

import (
	"strings"
	"time"
)

// GoodAttendance is the attendance percentage a student must reach to be
// in good standing.
const GoodAttendance = 80.0

// Attendance standings.
const (
	AttendanceGood   = "Good"
	AttendanceAtRisk = "At Risk"
	AttendanceNoData = "No Data"
)

// Student is one row of the progression table.
type Student struct {
	ID            string    `json:"student_id"`
	Name          string    `json:"name"`
	Course        string    `json:"course"`
	DurationWeeks int       `json:"duration_weeks"`
	StartDate     time.Time `json:"start_date"`
	FinishDate    time.Time `json:"finish_date"`
	// Attendance is a percentage; nil when the sheet has no figure.
	Attendance *float64 `json:"attendance"`
	Phone      string   `json:"phone"`
	// Results maps assessment names to the raw recorded value. A missing
	// key means the assessment was not attempted.
	Results map[string]Value `json:"results"`
}

// Result returns the recorded value for an assessment, absent if none.
func (s Student) Result(assessment string) Value {
	return s.Results[assessment]
}

// AttendanceStatus returns the standing for an attendance percentage.
func AttendanceStatus(attendance *float64) string {
	switch {
	case attendance == nil:
		return AttendanceNoData
	case *attendance >= GoodAttendance:
		return AttendanceGood
	default:
		return AttendanceAtRisk
	}
}

// FormatPhone restores the leading zero of Australian area codes written
// as "+61 2 ...".
func FormatPhone(phone string) string {
	if strings.HasPrefix(phone, "+61") && !strings.HasPrefix(phone, "+61 0") {
		return strings.ReplaceAll(phone, "+61 ", "+61 0")
	}
	return phone
}

func finishingWithin(s Student, now time.Time, window time.Duration) bool {
	if s.FinishDate.IsZero() {
		return false
	}
	return !s.FinishDate.Before(now) && !s.FinishDate.After(now.Add(window))
}
