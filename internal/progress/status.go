// Package progress classifies recorded assessment results and derives
// per-student and table-wide progression metrics.
//
// Everything here is a pure function of its inputs: no I/O, no logging, no
// shared mutable state. A table passed to the Engine is only read.
package progress

import "github.com/p-n-ai/pai-progress/internal/catalog"

// AssessmentResult is the classification of one required assessment.
type AssessmentResult struct {
	Assessment string `json:"assessment"`
	Classification
}

// StudentStatus is derived on demand from a Student and the catalog.
type StudentStatus struct {
	Required []string `json:"required"`
	Passed   []string `json:"passed"`
	Failed   []string `json:"failed"`
	Pending  []string `json:"pending"`
	// Results follows the order of Required.
	Results []AssessmentResult `json:"results"`
	// Remaining counts required assessments not yet passed. Failed ones
	// still need a retake, so they are included.
	Remaining      int     `json:"remaining"`
	CompletionRate float64 `json:"completion_rate"`
	PassRate       float64 `json:"pass_rate"`
}

// ProgressionRate is the share of required assessments passed, in percent.
// It is the pass rate under the name the progression reports use.
func (s StudentStatus) ProgressionRate() float64 {
	return s.PassRate
}

// Engine answers status and batch queries against a catalog.
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine creates an engine over cat.
func NewEngine(cat *catalog.Catalog) *Engine {
	return &Engine{catalog: cat}
}

// Catalog returns the catalog the engine resolves requirements with.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// RequiredAssessments resolves the ordered required assessments for a
// course and enrolment length.
func (e *Engine) RequiredAssessments(course string, weeks int) []string {
	return e.catalog.RequiredAssessments(course, weeks)
}

// ComputeStatus classifies every required assessment of s and derives the
// student's rates.
func (e *Engine) ComputeStatus(s Student) StudentStatus {
	required := e.RequiredAssessments(s.Course, s.DurationWeeks)

	st := StudentStatus{
		Required: required,
		Passed:   []string{},
		Failed:   []string{},
		Pending:  []string{},
		Results:  make([]AssessmentResult, 0, len(required)),
	}

	for _, a := range required {
		c := Classify(s.Result(a))
		st.Results = append(st.Results, AssessmentResult{Assessment: a, Classification: c})

		switch c.Status {
		case StatusPassed:
			st.Passed = append(st.Passed, a)
		case StatusFailed:
			st.Failed = append(st.Failed, a)
		default:
			st.Pending = append(st.Pending, a)
		}
	}

	st.Remaining = len(required) - len(st.Passed)
	st.CompletionRate = percent(len(st.Passed)+len(st.Failed), len(required))
	st.PassRate = percent(len(st.Passed), len(required))
	return st
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
