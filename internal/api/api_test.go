package api_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-progress/internal/api"
	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/platform/metrics"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/roster"
)

const (
	intMid  = "Intermediate Mid Course Test"
	intEnd  = "Intermediate End Course Test"
	elemMid = "Elementary Mid Course Test"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr(f float64) *float64 { return &f }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

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
			Attendance: ptr(64),
			Results:    map[string]progress.Value{intMid: progress.Text("PASS")},
		},
		{
			ID: "S003", Name: "José Ramírez", Course: catalog.CourseGeneralEnglish, DurationWeeks: 30,
			StartDate: date(2024, 8, 5), FinishDate: date(2025, 3, 7),
			Results: map[string]progress.Value{
				elemMid: progress.Text("Completed"),
				intMid:  progress.Text("fail"),
			},
		},
		{
			ID: "S004", Name: "Chen Li", Course: "Business English", DurationWeeks: 12,
			Attendance: ptr(85),
		},
		{
			ID: "S005", Name: "Dara Okafor", Course: catalog.CourseGeneralEnglish, DurationWeeks: 4,
			FinishDate: date(2025, 2, 28), Attendance: ptr(80),
		},
	}
}

type fixture struct {
	mux     *http.ServeMux
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, loaded bool) fixture {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}

	store := roster.NewStore(roster.NewMemorySource(sampleTable()), nil)
	if loaded {
		if _, err := store.Reload(t.Context()); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
	}

	m := metrics.New()
	srv := api.NewServer(progress.NewEngine(cat), store, api.Options{
		Metrics: m,
		Now:     func() time.Time { return testNow },
	})
	mux := http.NewServeMux()
	srv.Register(mux)
	return fixture{mux: mux, metrics: m}
}

func (f fixture) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func assessmentPath(name, suffix string) string {
	return "/api/assessments/" + url.PathEscape(name) + "/students" + suffix
}

func TestRequirements(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		want       []string
	}{
		{"eap ten weeks", "/api/requirements?course=EAP&weeks=10", http.StatusOK, []string{intMid, intEnd}},
		{"unknown course", "/api/requirements?course=Cooking&weeks=10", http.StatusOK, []string{}},
		{"zero weeks", "/api/requirements?course=EAP&weeks=0", http.StatusOK, []string{}},
		{"missing weeks", "/api/requirements?course=EAP", http.StatusBadRequest, nil},
		{"non-numeric weeks", "/api/requirements?course=EAP&weeks=ten", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.want == nil {
				return
			}
			var resp struct {
				Assessments []string `json:"assessments"`
			}
			decode(t, rec, &resp)
			if strings.Join(resp.Assessments, "|") != strings.Join(tt.want, "|") {
				t.Errorf("assessments = %v, want %v", resp.Assessments, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		body       string
		wantStatus int
		wantLabel  string
	}{
		{`{"value": 65}`, http.StatusOK, "Passed"},
		{`{"value": 49.9}`, http.StatusOK, "Failed"},
		{`{"value": "Completed"}`, http.StatusOK, "Passed"},
		{`{"value": "fail"}`, http.StatusOK, "Failed"},
		{`{"value": null}`, http.StatusOK, "Pending"},
		{`{}`, http.StatusOK, "Pending"},
		{`{"value": {"score": 1}}`, http.StatusBadRequest, ""},
		{`not json`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/classify", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantLabel == "" {
				var e map[string]string
				decode(t, rec, &e)
				if e["error"] == "" {
					t.Error("error response has no message")
				}
				return
			}
			var resp progress.Classification
			decode(t, rec, &resp)
			if resp.Label != tt.wantLabel {
				t.Errorf("label = %q, want %q", resp.Label, tt.wantLabel)
			}
		})
	}
}

func TestAssessments(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/assessments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Assessments []string `json:"assessments"`
		Courses     []string `json:"courses"`
	}
	decode(t, rec, &resp)
	if len(resp.Assessments) == 0 || resp.Assessments[0] != elemMid {
		t.Errorf("assessments = %v, want canonical order starting with %q", resp.Assessments, elemMid)
	}
	if len(resp.Courses) != 2 {
		t.Errorf("courses = %v", resp.Courses)
	}
}

func TestNotLoaded(t *testing.T) {
	f := newFixture(t, false)
	for _, target := range []string{
		"/api/students",
		"/api/students/S001/status",
		"/api/summary",
		assessmentPath(intEnd, ""),
	} {
		rec := f.do(t, http.MethodGet, target, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", target, rec.Code)
		}
	}
}

func TestStudents(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantIDs    string
	}{
		{"all", "", http.StatusOK, "S001,S002,S003,S004,S005"},
		{"accent insensitive", "?q=jose", http.StatusOK, "S003"},
		{"by id", "?q=s00", http.StatusOK, "S001,S002,S003,S004,S005"},
		{"course", "?course=EAP", http.StatusOK, "S001,S002"},
		{"at risk", "?attendance=at-risk", http.StatusOK, "S002"},
		{"finishing soon", "?finishing_soon=true", http.StatusOK, "S001,S003"},
		{"bad band", "?attendance=great", http.StatusBadRequest, ""},
		{"bad flag", "?finishing_soon=maybe", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/students"+tt.query, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Students []struct {
					ID string `json:"student_id"`
				} `json:"students"`
				Count int `json:"count"`
			}
			decode(t, rec, &resp)
			ids := make([]string, 0, len(resp.Students))
			for _, s := range resp.Students {
				ids = append(ids, s.ID)
			}
			if got := strings.Join(ids, ","); got != tt.wantIDs {
				t.Errorf("ids = %s, want %s", got, tt.wantIDs)
			}
			if resp.Count != len(ids) {
				t.Errorf("count = %d, want %d", resp.Count, len(ids))
			}
		})
	}
}

func TestStudentStatus(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/students/S001/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Student struct {
			ID               string `json:"student_id"`
			Phone            string `json:"phone"`
			AttendanceStatus string `json:"attendance_status"`
		} `json:"student"`
		Status          progress.StudentStatus `json:"status"`
		ProgressionRate float64                `json:"progression_rate"`
	}
	decode(t, rec, &resp)

	if resp.Student.Phone != "+61 02 9744 1356" {
		t.Errorf("phone = %q", resp.Student.Phone)
	}
	if resp.Student.AttendanceStatus != progress.AttendanceGood {
		t.Errorf("attendance_status = %q", resp.Student.AttendanceStatus)
	}
	if len(resp.Status.Required) != 2 || len(resp.Status.Passed) != 1 || len(resp.Status.Failed) != 1 {
		t.Errorf("status = %+v", resp.Status)
	}
	if resp.Status.Remaining != 1 || resp.ProgressionRate != 50 || resp.Status.CompletionRate != 100 {
		t.Errorf("rates: remaining=%d progression=%v completion=%v",
			resp.Status.Remaining, resp.ProgressionRate, resp.Status.CompletionRate)
	}

	if rec := f.do(t, http.MethodGet, "/api/students/S999/status", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown student status = %d, want 404", rec.Code)
	}
}

func TestAssessmentStudents(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantIDs    string
	}{
		{"all", "", http.StatusOK, "S001,S002"},
		{"failed", "?status=failed", http.StatusOK, "S001"},
		{"pending", "?status=Pending", http.StatusOK, "S002"},
		{"compound", "?status=pending%2Bfailed", http.StatusOK, "S001,S002"},
		{"finishing soon", "?finishing_soon=1", http.StatusOK, "S001"},
		{"course", "?course=General+English", http.StatusOK, ""},
		{"bad status", "?status=excellent", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, assessmentPath(intEnd, tt.query), "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Assessment string                     `json:"assessment"`
				Rows       []progress.AssessmentRow   `json:"rows"`
				Summary    progress.AssessmentSummary `json:"summary"`
			}
			decode(t, rec, &resp)
			if resp.Assessment != intEnd {
				t.Errorf("assessment = %q", resp.Assessment)
			}
			ids := make([]string, 0, len(resp.Rows))
			for _, r := range resp.Rows {
				ids = append(ids, r.StudentID)
			}
			if got := strings.Join(ids, ","); got != tt.wantIDs {
				t.Errorf("ids = %s, want %s", got, tt.wantIDs)
			}
			if resp.Summary.Total != len(resp.Rows) {
				t.Errorf("summary total = %d, rows = %d", resp.Summary.Total, len(resp.Rows))
			}
		})
	}
}

func TestAssessmentExport(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, assessmentPath(intEnd, "/export?format=csv&status=failed"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "intermediate_end_course_test_students.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("body is not CSV: %v", err)
	}
	if len(records) != 2 || records[1][0] != "S001" {
		t.Errorf("records = %v", records)
	}

	for _, format := range []string{"xlsx", "pdf"} {
		rec := f.do(t, http.MethodGet, assessmentPath(intEnd, "/export?format="+format), "")
		if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
			t.Errorf("format %s: status = %d, %d bytes", format, rec.Code, rec.Body.Len())
		}
	}

	if rec := f.do(t, http.MethodGet, assessmentPath(intEnd, "/export?format=docx"), ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", rec.Code)
	}
}

func TestStudentExport(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/students/S002/status/export?format=csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Upper Intermediate Mid Course Test,Pending,Not Recorded") {
		t.Errorf("body = %q", body)
	}

	if rec := f.do(t, http.MethodGet, "/api/students/S999/status/export?format=pdf", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown student export = %d, want 404", rec.Code)
	}
}

func TestSummary(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sum progress.Summary
	decode(t, rec, &sum)
	if sum.Total != 5 {
		t.Errorf("count_total = %d, want 5", sum.Total)
	}
	if sum.ByCourse[catalog.CourseEAP] != 2 {
		t.Errorf("students_by_course = %v", sum.ByCourse)
	}
	if sum.AvgAttendance == nil {
		t.Error("avg_attendance is null")
	}
}

func TestRequestsAreInstrumented(t *testing.T) {
	f := newFixture(t, true)
	f.do(t, http.MethodGet, "/api/summary", "")

	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `progress_http_requests_total{method="GET",route="GET /api/summary",status="200"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics missing %q", want)
	}
}
