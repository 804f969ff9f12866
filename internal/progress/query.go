package progress

import (
	"fmt"
	"strings"
	"time"
)

// FinishingSoonWindow is how far ahead "finishing soon" looks.
const FinishingSoonWindow = 30 * 24 * time.Hour

// AllCourses disables the course filter.
const AllCourses = "All"

// StatusFilter selects rows by their classification.
type StatusFilter string

const (
	FilterAll             StatusFilter = "All"
	FilterPassed          StatusFilter = "Passed"
	FilterFailed          StatusFilter = "Failed"
	FilterPending         StatusFilter = "Pending"
	FilterPendingOrFailed StatusFilter = "Pending + Failed"
)

// ParseStatusFilter reads a filter name in any case. The compound filter
// is accepted as "Pending + Failed", "pending+failed" or "pending_or_failed".
func ParseStatusFilter(s string) (StatusFilter, error) {
	key := strings.ToLower(strings.Join(strings.Fields(s), ""))
	switch key {
	case "", "all":
		return FilterAll, nil
	case "passed":
		return FilterPassed, nil
	case "failed":
		return FilterFailed, nil
	case "pending":
		return FilterPending, nil
	case "pending+failed", "pending_or_failed", "pendingorfailed":
		return FilterPendingOrFailed, nil
	default:
		return "", fmt.Errorf("invalid status filter: %q", s)
	}
}

// Matches reports whether a status passes the filter. The empty filter
// matches everything.
func (f StatusFilter) Matches(s Status) bool {
	switch f {
	case FilterPassed:
		return s == StatusPassed
	case FilterFailed:
		return s == StatusFailed
	case FilterPending:
		return s == StatusPending
	case FilterPendingOrFailed:
		return s == StatusPending || s == StatusFailed
	default:
		return true
	}
}

// AssessmentQuery asks which students need a given assessment.
type AssessmentQuery struct {
	Assessment string
	// Course is an exact course name; "" or AllCourses matches every course.
	Course string
	Status StatusFilter
	// FinishingSoon keeps only students whose finish date lies within
	// FinishingSoonWindow of Now.
	FinishingSoon bool
	Now           time.Time
}

// AssessmentRow is one student that requires the queried assessment.
type AssessmentRow struct {
	StudentID     string    `json:"student_id"`
	Name          string    `json:"name"`
	Course        string    `json:"course"`
	StartDate     time.Time `json:"start_date"`
	FinishDate    time.Time `json:"finish_date"`
	DurationWeeks int       `json:"duration_weeks"`
	Attendance    *float64  `json:"attendance"`
	Phone         string    `json:"phone"`
	Status        Status    `json:"status"`
	Label         string    `json:"label"`
	RecordedValue string    `json:"recorded_value"`
}

// FindByAssessment returns, in table order, the students whose required
// set includes q.Assessment and who pass every filter in q.
func (e *Engine) FindByAssessment(table []Student, q AssessmentQuery) []AssessmentRow {
	now := q.Now
	if q.FinishingSoon && now.IsZero() {
		now = time.Now()
	}

	rows := []AssessmentRow{}
	for _, s := range table {
		if !courseMatches(q.Course, s.Course) {
			continue
		}
		if q.FinishingSoon && !finishingWithin(s, now, FinishingSoonWindow) {
			continue
		}
		if !e.catalog.Requires(s.Course, s.DurationWeeks, q.Assessment) {
			continue
		}

		c := Classify(s.Result(q.Assessment))
		if !q.Status.Matches(c.Status) {
			continue
		}

		rows = append(rows, AssessmentRow{
			StudentID:     s.ID,
			Name:          s.Name,
			Course:        s.Course,
			StartDate:     s.StartDate,
			FinishDate:    s.FinishDate,
			DurationWeeks: s.DurationWeeks,
			Attendance:    s.Attendance,
			Phone:         s.Phone,
			Status:        c.Status,
			Label:         c.Label,
			RecordedValue: c.Value.Recorded(),
		})
	}
	return rows
}

// AssessmentSummary counts the rows of an assessment query.
type AssessmentSummary struct {
	Total            int `json:"total"`
	Passed           int `json:"passed"`
	Failed           int `json:"failed"`
	Pending          int `json:"pending"`
	GoodAttendance   int `json:"good_attendance"`
	AtRiskAttendance int `json:"at_risk_attendance"`
}

// SummarizeRows tallies statuses and attendance standings. Rows without an
// attendance figure count towards neither standing.
func SummarizeRows(rows []AssessmentRow) AssessmentSummary {
	sum := AssessmentSummary{Total: len(rows)}
	for _, r := range rows {
		switch r.Status {
		case StatusPassed:
			sum.Passed++
		case StatusFailed:
			sum.Failed++
		default:
			sum.Pending++
		}
		switch AttendanceStatus(r.Attendance) {
		case AttendanceGood:
			sum.GoodAttendance++
		case AttendanceAtRisk:
			sum.AtRiskAttendance++
		}
	}
	return sum
}

func courseMatches(filter, course string) bool {
	return filter == "" || filter == AllCourses || filter == course
}
