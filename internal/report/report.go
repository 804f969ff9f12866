// Package report renders query results as downloadable CSV, XLSX or PDF
// documents.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/p-n-ai/pai-progress/internal/progress"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// NotRecorded stands in for an assessment with no recorded value.
const NotRecorded = progress.NotRecorded

const dateLayout = "2006-01-02"

// ParseFormat reads a format name in any case. "excel" is accepted for
// XLSX.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", s)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Record returns row i in header order.
func (d Dataset) Record(i int) []string {
	out := make([]string, len(d.Headers))
	for j, h := range d.Headers {
		out[j] = d.Rows[i][h]
	}
	return out
}

// Renderer turns a dataset into file bytes.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
}

// RendererFor returns the renderer for f.
func RendererFor(f Format) (Renderer, error) {
	switch f {
	case FormatCSV:
		return NewCSVExporter(), nil
	case FormatXLSX:
		return NewXLSXExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %q", f)
	}
}

// Render is shorthand for RendererFor(f) followed by Render.
func Render(f Format, data Dataset) ([]byte, error) {
	r, err := RendererFor(f)
	if err != nil {
		return nil, err
	}
	return r.Render(data)
}

// Column headers of an assessment export.
const (
	HeaderStudentID  = "Student ID"
	HeaderName       = "Name"
	HeaderCourse     = "Course"
	HeaderStart      = "Start Date"
	HeaderFinish     = "Finish Date"
	HeaderDuration   = "Duration (weeks)"
	HeaderAttendance = "Attendance"
	HeaderPhone      = "Phone"
	HeaderStatus     = "Status"
	HeaderResult     = "Result"
	HeaderAssessment = "Assessment"
)

// AssessmentDataset builds the export of a find-by-assessment result.
func AssessmentDataset(assessment string, rows []progress.AssessmentRow) Dataset {
	data := Dataset{
		Title: assessment + " students",
		Headers: []string{
			HeaderStudentID, HeaderName, HeaderCourse, HeaderStart, HeaderFinish,
			HeaderDuration, HeaderAttendance, HeaderPhone, HeaderStatus, HeaderResult,
		},
		Rows: make([]map[string]string, 0, len(rows)),
	}
	for _, r := range rows {
		data.Rows = append(data.Rows, map[string]string{
			HeaderStudentID:  r.StudentID,
			HeaderName:       r.Name,
			HeaderCourse:     r.Course,
			HeaderStart:      formatDate(r.StartDate),
			HeaderFinish:     formatDate(r.FinishDate),
			HeaderDuration:   strconv.Itoa(r.DurationWeeks),
			HeaderAttendance: formatAttendance(r.Attendance),
			HeaderPhone:      progress.FormatPhone(r.Phone),
			HeaderStatus:     r.Label,
			HeaderResult:     recorded(r.RecordedValue),
		})
	}
	return data
}

// StatusDataset builds the per-assessment table of one student.
func StatusDataset(s progress.Student, st progress.StudentStatus) Dataset {
	data := Dataset{
		Title:   fmt.Sprintf("%s (%s) %s", s.Name, s.ID, s.Course),
		Headers: []string{HeaderAssessment, HeaderStatus, HeaderResult},
		Rows:    make([]map[string]string, 0, len(st.Results)),
	}
	for _, r := range st.Results {
		data.Rows = append(data.Rows, map[string]string{
			HeaderAssessment: r.Assessment,
			HeaderStatus:     r.Label,
			HeaderResult:     recorded(r.Value.Recorded()),
		})
	}
	return data
}

// Filename builds a download name such as "intermediate_end_students.pdf".
func Filename(base string, f Format) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, strings.TrimSpace(base))
	if name == "" {
		name = "export"
	}
	return name + f.Extension()
}

func recorded(s string) string {
	if s == "" {
		return NotRecorded
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatAttendance(a *float64) string {
	if a == nil {
		return ""
	}
	return strconv.FormatFloat(*a, 'f', -1, 64) + "%"
}
