// Package api serves the progression engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/p-n-ai/pai-progress/internal/platform/cache"
	"github.com/p-n-ai/pai-progress/internal/platform/metrics"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/report"
	"github.com/p-n-ai/pai-progress/internal/roster"
)

const maxBodyBytes = 1 << 16

var errNotLoaded = errors.New("roster not loaded")

// SnapshotProvider returns the current roster snapshot, nil before the
// first successful load. *roster.Store satisfies it.
type SnapshotProvider interface {
	Snapshot() *roster.Snapshot
}

// Options holds the optional collaborators of a Server.
type Options struct {
	// Cache stores summaries per snapshot fingerprint. Nil disables it.
	Cache    *cache.Cache
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
	// Hub serves GET /ws when set.
	Hub *Hub
	// Now overrides the clock used by finishing-soon filters.
	Now func() time.Time
}

// Server holds the handler dependencies.
type Server struct {
	engine   *progress.Engine
	roster   SnapshotProvider
	cache    *cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	hub      *Hub
	now      func() time.Time
}

// NewServer creates the API over engine and the roster snapshots.
func NewServer(engine *progress.Engine, rp SnapshotProvider, opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		engine:   engine,
		roster:   rp,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		metrics:  opts.Metrics,
		hub:      opts.Hub,
		now:      now,
	}
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	s.handle(mux, "GET /api/requirements", s.handleRequirements)
	s.handle(mux, "POST /api/classify", s.handleClassify)
	s.handle(mux, "GET /api/assessments", s.handleAssessments)
	s.handle(mux, "GET /api/assessments/{name}/students", s.handleAssessmentStudents)
	s.handle(mux, "GET /api/assessments/{name}/students/export", s.handleAssessmentExport)
	s.handle(mux, "GET /api/students", s.handleStudents)
	s.handle(mux, "GET /api/students/{id}/status", s.handleStudentStatus)
	s.handle(mux, "GET /api/students/{id}/status/export", s.handleStudentExport)
	s.handle(mux, "GET /api/summary", s.handleSummary)

	// The upgrade needs the raw writer, so /ws is not instrumented.
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.metrics.Middleware(pattern, h))
}

func (s *Server) handleRequirements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	course := q.Get("course")
	weeks, err := strconv.Atoi(strings.TrimSpace(q.Get("weeks")))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid weeks: %q", q.Get("weeks")))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"course":      course,
		"weeks":       weeks,
		"assessments": s.engine.RequiredAssessments(course, weeks),
	})
}

type classifyRequest struct {
	Value progress.Value `json:"value"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, progress.Classify(req.Value))
}

func (s *Server) handleAssessments(w http.ResponseWriter, r *http.Request) {
	cat := s.engine.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"assessments": cat.AllAssessments(),
		"courses":     cat.Courses(),
	})
}

// studentView adds the derived display fields to a student.
type studentView struct {
	progress.Student
	Phone            string `json:"phone"`
	AttendanceStatus string `json:"attendance_status"`
}

func viewOf(st progress.Student) studentView {
	return studentView{
		Student:          st,
		Phone:            progress.FormatPhone(st.Phone),
		AttendanceStatus: progress.AttendanceStatus(st.Attendance),
	}
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	band, err := progress.ParseAttendanceBand(q.Get("attendance"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	soon, err := parseFlag(q.Get("finishing_soon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	found := progress.SearchStudents(snap.Students, q.Get("q"), progress.StudentFilter{
		Course:        q.Get("course"),
		Attendance:    band,
		FinishingSoon: soon,
		Now:           s.now(),
	})

	views := make([]studentView, 0, len(found))
	for _, st := range found {
		views = append(views, viewOf(st))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"students": views,
		"count":    len(views),
	})
}

type statusResponse struct {
	Student         studentView            `json:"student"`
	Status          progress.StudentStatus `json:"status"`
	ProgressionRate float64                `json:"progression_rate"`
}

func (s *Server) studentStatus(w http.ResponseWriter, r *http.Request) (progress.Student, progress.StudentStatus, bool) {
	snap, ok := s.snapshot(w)
	if !ok {
		return progress.Student{}, progress.StudentStatus{}, false
	}

	id := r.PathValue("id")
	st, found := progress.FindStudent(snap.Students, id)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("student %q not found", id))
		return progress.Student{}, progress.StudentStatus{}, false
	}
	return st, s.engine.ComputeStatus(st), true
}

func (s *Server) handleStudentStatus(w http.ResponseWriter, r *http.Request) {
	st, status, ok := s.studentStatus(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Student:         viewOf(st),
		Status:          status,
		ProgressionRate: status.ProgressionRate(),
	})
}

func (s *Server) handleStudentExport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, status, ok := s.studentStatus(w, r)
	if !ok {
		return
	}
	s.writeExport(w, format, st.ID+" status", report.StatusDataset(st, status))
}

type assessmentResponse struct {
	Assessment string                     `json:"assessment"`
	Rows       []progress.AssessmentRow   `json:"rows"`
	Summary    progress.AssessmentSummary `json:"summary"`
}

func (s *Server) assessmentRows(w http.ResponseWriter, r *http.Request) (string, []progress.AssessmentRow, bool) {
	name := r.PathValue("name")
	q := r.URL.Query()

	filter, err := progress.ParseStatusFilter(q.Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	soon, err := parseFlag(q.Get("finishing_soon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}

	snap, ok := s.snapshot(w)
	if !ok {
		return "", nil, false
	}

	rows := s.engine.FindByAssessment(snap.Students, progress.AssessmentQuery{
		Assessment:    name,
		Course:        q.Get("course"),
		Status:        filter,
		FinishingSoon: soon,
		Now:           s.now(),
	})
	return name, rows, true
}

func (s *Server) handleAssessmentStudents(w http.ResponseWriter, r *http.Request) {
	name, rows, ok := s.assessmentRows(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, assessmentResponse{
		Assessment: name,
		Rows:       rows,
		Summary:    progress.SummarizeRows(rows),
	})
}

func (s *Server) handleAssessmentExport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name, rows, ok := s.assessmentRows(w, r)
	if !ok {
		return
	}
	s.writeExport(w, format, name+" students", report.AssessmentDataset(name, rows))
}

func (s *Server) writeExport(w http.ResponseWriter, format report.Format, base string, data report.Dataset) {
	body, err := report.Render(format, data)
	if err != nil {
		slog.Error("export failed", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	s.metrics.RecordExport(string(format))

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(base, format)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	key := cache.Key("summary", snap.Fingerprint)
	if s.cache != nil {
		var cached progress.Summary
		hit, err := s.cache.GetJSON(r.Context(), key, &cached)
		if err != nil {
			slog.Warn("summary cache read failed", "error", err)
		}
		s.metrics.RecordCacheLookup(hit)
		if hit {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	summary := s.engine.SummaryStats(snap.Students)
	if s.cache != nil {
		if err := s.cache.SetJSON(r.Context(), key, summary, s.cacheTTL); err != nil {
			slog.Warn("summary cache write failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) snapshot(w http.ResponseWriter) (*roster.Snapshot, bool) {
	snap := s.roster.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, errNotLoaded.Error())
		return nil, false
	}
	return snap, true
}

func parseFlag(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean: %q", v)
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
