package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/domain/analysis"
	"github.com/labflow/labflow/internal/platform/ai"
)

// Token resolution failures. Expired tokens are distinguished so the handler
// can answer 410 instead of 404.
var (
	ErrTokenNotFound = errors.New("share token not found")
	ErrTokenExpired  = errors.New("share token expired")
)

// TxRunner runs fn transactionally; repository calls made inside fn join the
// transaction. Production wires db.WithTx over the pgx pool.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo   Repository
	runTx  TxRunner
	ttl    time.Duration
	logger zerolog.Logger
}

func NewService(repo Repository, runTx TxRunner, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Service{
		repo:   repo,
		runTx:  runTx,
		ttl:    ttl,
		logger: logger.With().Str("component", "report").Logger(),
	}
}

// Compose writes the report, its exam results and a share token in one
// transaction. On any failure everything rolls back and the job keeps no
// report or token. Prescription and orientation lines get stable IDs here.
func (s *Service) Compose(ctx context.Context, job *analysis.Job, interp ai.Interpretation, results []analysis.ExamResult) (*analysis.ComposedReport, error) {
	token, err := NewShareTokenValue()
	if err != nil {
		return nil, err
	}

	// The classifier produces rows before a job is known to it; the exam_result
	// schema requires job_id, so it is stamped here.
	for i := range results {
		results[i].JobID = job.ID
	}

	rep := &Report{
		ID:            uuid.New(),
		JobID:         job.ID,
		PatientName:   interp.Patient.Name,
		PatientAge:    interp.Patient.Age,
		PatientSex:    interp.Patient.Sex,
		Summary:       interp.Summary,
		Prescriptions: newItems(interp.Prescriptions),
		Orientations:  newItems(interp.Orientations),
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateReport(ctx, rep); err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		if err := s.repo.InsertExamResults(ctx, rep.ID, results); err != nil {
			return fmt.Errorf("insert exam results: %w", err)
		}
		if err := s.repo.CreateShareToken(ctx, &ShareToken{
			Token:     token,
			ReportID:  rep.ID,
			ExpiresAt: time.Now().Add(s.ttl),
		}); err != nil {
			return fmt.Errorf("create share token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, &analysis.PersistenceError{Cause: err}
	}

	s.logger.Info().
		Str("report_id", rep.ID.String()).
		Str("job_id", job.ID.String()).
		Msg("report composed")

	return &analysis.ComposedReport{
		ReportID: rep.ID,
		Token:    token,
		ViewPath: "/reports/" + token,
	}, nil
}

// newItems wraps raw lines with stable item IDs.
func newItems(lines []string) []Item {
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		items = append(items, Item{ID: uuid.New().String(), Text: line})
	}
	return items
}

// ResolveToken loads the report behind a share token, distinguishing expiry
// from absence.
func (s *Service) ResolveToken(ctx context.Context, token string) (*View, error) {
	t, err := s.repo.GetShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if t.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}

	rep, err := s.repo.GetReport(ctx, t.ReportID)
	if err != nil {
		return nil, err
	}
	exams, err := s.repo.ListExamResults(ctx, t.ReportID)
	if err != nil {
		return nil, err
	}
	return &View{Report: rep, Exams: exams}, nil
}

// Export formats.
const (
	FormatHTML = "html"
	FormatXLSX = "xlsx"
)

// ExportRequest carries the client-side adjustments applied to an export.
// Overrides live only in the rendered output; the stored report is never
// modified.
type ExportRequest struct {
	PatientName          string   `json:"patient_name,omitempty"`
	PatientAge           string   `json:"patient_age,omitempty"`
	PatientSex           string   `json:"patient_sex,omitempty"`
	Summary              *string  `json:"summary,omitempty"`
	ExcludePrescriptions []string `json:"exclude_prescriptions,omitempty"`
	ExcludeOrientations  []string `json:"exclude_orientations,omitempty"`
	Format               string   `json:"format,omitempty"`
}

// ExportResult is a rendered document ready to send.
type ExportResult struct {
	Content     []byte
	ContentType string
	FileName    string
}

// Export resolves the token and renders the report with the requested
// overrides applied to an in-memory copy only.
func (s *Service) Export(ctx context.Context, token string, req ExportRequest) (*ExportResult, error) {
	view, err := s.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	adjusted := applyOverrides(view, req)

	switch req.Format {
	case "", FormatHTML:
		content, err := renderHTML(adjusted)
		if err != nil {
			return nil, err
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/html; charset=utf-8",
			FileName:    exportFileName(adjusted.Report, "html"),
		}, nil
	case FormatXLSX:
		content, err := renderXLSX(adjusted)
		if err != nil {
			return nil, err
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			FileName:    exportFileName(adjusted.Report, "xlsx"),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", req.Format)
	}
}

// applyOverrides builds an adjusted copy of the view. The stored report and
// exam slices are never touched.
func applyOverrides(view *View, req ExportRequest) *View {
	rep := *view.Report
	if req.PatientName != "" {
		rep.PatientName = req.PatientName
	}
	if req.PatientAge != "" {
		rep.PatientAge = req.PatientAge
	}
	if req.PatientSex != "" {
		rep.PatientSex = req.PatientSex
	}
	if req.Summary != nil {
		rep.Summary = *req.Summary
	}
	rep.Prescriptions = filterItems(view.Report.Prescriptions, req.ExcludePrescriptions)
	rep.Orientations = filterItems(view.Report.Orientations, req.ExcludeOrientations)

	exams := make([]analysis.ExamResult, len(view.Exams))
	copy(exams, view.Exams)
	return &View{Report: &rep, Exams: exams}
}

// filterItems drops the referenced items. References are stable item IDs;
// position indexes are still accepted for older clients.
func filterItems(items []Item, exclusions []string) []Item {
	if len(exclusions) == 0 {
		out := make([]Item, len(items))
		copy(out, items)
		return out
	}

	excluded := make(map[string]struct{}, len(exclusions))
	indexes := make(map[int]struct{})
	for _, ref := range exclusions {
		excluded[ref] = struct{}{}
		if idx, err := strconv.Atoi(ref); err == nil {
			indexes[idx] = struct{}{}
		}
	}

	var out []Item
	for i, item := range items {
		if _, ok := excluded[item.ID]; ok {
			continue
		}
		if _, ok := indexes[i]; ok {
			continue
		}
		out = append(out, item)
	}
	return out
}

func exportFileName(rep *Report, ext string) string {
	name := strings.TrimSpace(rep.PatientName)
	if name == "" {
		name = "relatorio"
	}
	name = strings.ToLower(strings.Join(strings.Fields(name), "-"))
	return fmt.Sprintf("%s-%s.%s", name, rep.CreatedAt.Format("2006-01-02"), ext)
}
