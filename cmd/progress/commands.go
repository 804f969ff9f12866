package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/platform/database"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/report"
	"github.com/p-n-ai/pai-progress/internal/roster"
)

func requirementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requirements <course> <weeks>",
		Short: "List the assessments a course and enrolment length require",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			weeks, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid weeks: %q", args[1])
			}
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			required := s.engine.RequiredAssessments(args[0], weeks)
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), required)
			}
			for _, a := range required {
				fmt.Fprintln(cmd.OutOrStdout(), a)
			}
			return nil
		},
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <value>",
		Short: "Classify a recorded result as passed, failed or pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := progress.Classify(progress.ParseCell(args[0]))
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.Label)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <student-id>",
		Short: "Show a student's required assessments and progression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.loadRoster(cmd.Context())
			if err != nil {
				return err
			}
			st, ok := progress.FindStudent(snap.Students, args[0])
			if !ok {
				return fmt.Errorf("student %q not found", args[0])
			}
			status := s.engine.ComputeStatus(st)

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, map[string]any{"student": st, "status": status})
			}

			fmt.Fprintf(out, "%s  %s\n", st.ID, st.Name)
			fmt.Fprintf(out, "Course: %s, %d weeks\n", st.Course, st.DurationWeeks)
			fmt.Fprintf(out, "Attendance: %s\n", progress.AttendanceStatus(st.Attendance))
			if st.Phone != "" {
				fmt.Fprintf(out, "Phone: %s\n", progress.FormatPhone(st.Phone))
			}
			fmt.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ASSESSMENT\tSTATUS\tRESULT")
			for _, r := range status.Results {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Assessment, r.Label, r.Value.Recorded())
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nProgression: %.1f%%  Completion: %.1f%%  Remaining: %d\n",
				status.ProgressionRate(), status.CompletionRate, status.Remaining)
			return nil
		},
	}
}

type assessmentFlags struct {
	course        string
	status        string
	finishingSoon bool
}

func (f *assessmentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.course, "course", "c", progress.AllCourses, "Course name or All")
	cmd.Flags().StringVarP(&f.status, "status", "s", string(progress.FilterAll), "All, Passed, Failed, Pending or \"Pending + Failed\"")
	cmd.Flags().BoolVar(&f.finishingSoon, "finishing-soon", false, "Only students finishing within 30 days")
}

func (f *assessmentFlags) query(assessment string) (progress.AssessmentQuery, error) {
	filter, err := progress.ParseStatusFilter(f.status)
	if err != nil {
		return progress.AssessmentQuery{}, err
	}
	return progress.AssessmentQuery{
		Assessment:    assessment,
		Course:        f.course,
		Status:        filter,
		FinishingSoon: f.finishingSoon,
	}, nil
}

func findCmd() *cobra.Command {
	var flags assessmentFlags
	cmd := &cobra.Command{
		Use:   "find <assessment>",
		Short: "List the students who require an assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query(args[0])
			if err != nil {
				return err
			}
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.loadRoster(cmd.Context())
			if err != nil {
				return err
			}
			rows := s.engine.FindByAssessment(snap.Students, q)
			sum := progress.SummarizeRows(rows)

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, map[string]any{"rows": rows, "summary": sum})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOURSE\tFINISH\tATTENDANCE\tSTATUS\tRESULT")
			for _, r := range rows {
				finish := ""
				if !r.FinishDate.IsZero() {
					finish = r.FinishDate.Format("2006-01-02")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StudentID, r.Name, r.Course, finish,
					progress.AttendanceStatus(r.Attendance), r.Label, r.RecordedValue)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d students: %d passed, %d failed, %d pending (%d good attendance, %d at risk)\n",
				sum.Total, sum.Passed, sum.Failed, sum.Pending, sum.GoodAttendance, sum.AtRiskAttendance)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		course        string
		attendance    string
		finishingSoon bool
	)
	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Find students by name or identifier",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			band, err := progress.ParseAttendanceBand(attendance)
			if err != nil {
				return err
			}
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.loadRoster(cmd.Context())
			if err != nil {
				return err
			}
			found := progress.SearchStudents(snap.Students, term, progress.StudentFilter{
				Course:        course,
				Attendance:    band,
				FinishingSoon: finishingSoon,
			})

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, found)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOURSE\tWEEKS\tATTENDANCE")
			for _, st := range found {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					st.ID, st.Name, st.Course, st.DurationWeeks, progress.AttendanceStatus(st.Attendance))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&course, "course", "c", progress.AllCourses, "Course name or All")
	cmd.Flags().StringVarP(&attendance, "attendance", "a", string(progress.BandAll), "All, Good or \"At Risk\"")
	cmd.Flags().BoolVar(&finishingSoon, "finishing-soon", false, "Only students finishing within 30 days")
	return cmd
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show table-wide progression statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.loadRoster(cmd.Context())
			if err != nil {
				return err
			}
			sum := s.engine.SummaryStats(snap.Students)

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, sum)
			}

			attendance := "n/a"
			if sum.AvgAttendance != nil {
				attendance = fmt.Sprintf("%.1f%%", *sum.AvgAttendance)
			}
			fmt.Fprintf(out, "Students:          %d\n", sum.Total)
			fmt.Fprintf(out, "Required tests:    %d\n", sum.Required)
			fmt.Fprintf(out, "Completed:         %d (%d passed, %d failed)\n", sum.Completed, sum.Passed, sum.Failed)
			fmt.Fprintf(out, "Pending:           %d\n", sum.Pending)
			fmt.Fprintf(out, "Avg attendance:    %s\n", attendance)
			fmt.Fprintf(out, "Avg progression:   %.1f%%\n", sum.AvgProgression)

			courses := make([]string, 0, len(sum.ByCourse))
			for c := range sum.ByCourse {
				courses = append(courses, c)
			}
			slices.Sort(courses)
			for _, c := range courses {
				fmt.Fprintf(out, "  %-16s %d\n", c, sum.ByCourse[c])
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		flags   assessmentFlags
		format  string
		output  string
		student string
	)
	cmd := &cobra.Command{
		Use:   "export [assessment]",
		Short: "Export an assessment's students, or one student's status, as CSV, XLSX or PDF",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (student != "") {
				return fmt.Errorf("give either an assessment or --student")
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			var q progress.AssessmentQuery
			if len(args) == 1 {
				if q, err = flags.query(args[0]); err != nil {
					return err
				}
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.loadRoster(cmd.Context())
			if err != nil {
				return err
			}

			var data report.Dataset
			if student != "" {
				st, ok := progress.FindStudent(snap.Students, student)
				if !ok {
					return fmt.Errorf("student %q not found", student)
				}
				data = report.StatusDataset(st, s.engine.ComputeStatus(st))
			} else {
				data = report.AssessmentDataset(q.Assessment, s.engine.FindByAssessment(snap.Students, q))
			}

			body, err := report.Render(f, data)
			if err != nil {
				return err
			}
			if output == "" {
				output = report.Filename(data.Title, f)
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", len(data.Rows), output)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatCSV), "Export format (csv, xlsx, pdf)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (- for stdout; default derived from the title)")
	cmd.Flags().StringVar(&student, "student", "", "Export this student's status instead of an assessment")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Copy the roster file into PostgreSQL",
		Long: "Reads the xlsx or csv roster selected by --source and --path and replaces the\n" +
			"students table at --database-url with it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.cfg.Roster.Source == config.SourcePostgres {
				return fmt.Errorf("import reads a file roster; use --source xlsx or csv")
			}
			if s.cfg.Database.URL == "" {
				return fmt.Errorf("--database-url is required")
			}

			ctx := cmd.Context()
			snap, err := s.loadRoster(ctx)
			if err != nil {
				return err
			}

			db, err := database.New(ctx, s.cfg.Database.URL, s.cfg.Database.MaxConns, s.cfg.Database.MinConns)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(ctx, roster.Schema); err != nil {
				return err
			}

			dst, err := roster.NewPostgresSource(db.Pool, s.engine.Catalog())
			if err != nil {
				return err
			}
			if err := dst.Replace(ctx, snap.Students); err != nil {
				return err
			}

			fp, err := dst.Fingerprint(ctx)
			if err != nil {
				return err
			}
			if err := roster.NewPostgresEventLogger(db.Pool).LogEvent(roster.Event{
				Type:        roster.EventReloaded,
				Source:      snap.Source,
				Fingerprint: fp,
				Students:    len(snap.Students),
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d students from %s\n", len(snap.Students), snap.Source)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
