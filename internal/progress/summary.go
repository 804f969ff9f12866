package progress

// Summary is a table-wide reduction of every student's status.
type Summary struct {
	// Total is the number of students in the table.
	Total int `json:"count_total"`
	// Passed, Failed and Pending count required assessments across all
	// students.
	Passed   int `json:"count_passed"`
	Failed   int `json:"count_failed"`
	Pending  int `json:"count_pending"`
	Required int `json:"count_required"`
	// Completed is Passed plus Failed.
	Completed int            `json:"count_completed"`
	ByCourse  map[string]int `json:"students_by_course"`
	// AvgAttendance averages students with an attendance figure; nil when
	// none has one.
	AvgAttendance *float64 `json:"avg_attendance"`
	// AvgProgression averages the progression rate of students with at
	// least one required assessment.
	AvgProgression float64 `json:"avg_progression"`
}

// SummaryStats reduces the per-student statuses of table.
func (e *Engine) SummaryStats(table []Student) Summary {
	sum := Summary{
		Total:    len(table),
		ByCourse: make(map[string]int),
	}

	var (
		attendanceTotal  float64
		attendanceCount  int
		progressionTotal float64
		progressionCount int
	)
	for _, s := range table {
		sum.ByCourse[s.Course]++

		st := e.ComputeStatus(s)
		sum.Passed += len(st.Passed)
		sum.Failed += len(st.Failed)
		sum.Pending += len(st.Pending)
		sum.Required += len(st.Required)

		if len(st.Required) > 0 {
			progressionTotal += st.ProgressionRate()
			progressionCount++
		}
		if s.Attendance != nil {
			attendanceTotal += *s.Attendance
			attendanceCount++
		}
	}

	sum.Completed = sum.Passed + sum.Failed
	if attendanceCount > 0 {
		avg := attendanceTotal / float64(attendanceCount)
		sum.AvgAttendance = &avg
	}
	if progressionCount > 0 {
		sum.AvgProgression = progressionTotal / float64(progressionCount)
	}
	return sum
}
