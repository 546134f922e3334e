package analysis

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labflow/labflow/internal/domain/reference"
	"github.com/labflow/labflow/internal/platform/ai"
	"github.com/labflow/labflow/internal/platform/blobstore"
	"github.com/labflow/labflow/internal/platform/extract"
	"github.com/labflow/labflow/internal/platform/progress"
)

// Extractor pulls text out of an uploaded document.
type Extractor interface {
	Extract(ctx context.Context, doc []byte, onOCR func()) (extract.Extraction, error)
}

// Interpreter turns report text into a structured interpretation.
type Interpreter interface {
	Interpret(ctx context.Context, req ai.Request) (ai.Interpretation, error)
}

// ComposedReport locates the report written for a finished job.
type ComposedReport struct {
	ReportID uuid.UUID `json:"report_id"`
	Token    string    `json:"token"`
	ViewPath string    `json:"view_path"`
}

// Composer persists a finished analysis as a report with a share token. The
// whole write is transactional: on error nothing is stored.
type Composer interface {
	Compose(ctx context.Context, job *Job, interp ai.Interpretation, results []ExamResult) (*ComposedReport, error)
}

// Submission is one analysis request, either an uploaded PDF or pasted text.
type Submission struct {
	SourceMode    string
	FileName      string
	FileData      []byte
	ManualText    string
	Patient       PatientContext
	NotifyDoctor  string
	NotifyPatient string
	SessionID     string
	UserID        string
}

type Service struct {
	repo        Repository
	refs        *reference.Service
	extractor   Extractor
	interpreter Interpreter
	composer    Composer
	blobs       blobstore.BlobStore
	hub         *progress.Hub
	logger      zerolog.Logger
}

func NewService(
	repo Repository,
	refs *reference.Service,
	extractor Extractor,
	interpreter Interpreter,
	composer Composer,
	blobs blobstore.BlobStore,
	hub *progress.Hub,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:        repo,
		refs:        refs,
		extractor:   extractor,
		interpreter: interpreter,
		composer:    composer,
		blobs:       blobs,
		hub:         hub,
		logger:      logger.With().Str("component", "analysis").Logger(),
	}
}

// Submit validates the submission, creates the job, and starts the pipeline
// in its own goroutine. Stage events go to the emitter and the hub topic
// "job:<id>". The returned channel closes when the pipeline finishes; the
// pipeline itself runs on a detached context, so an abandoning client never
// cancels persistence.
func (s *Service) Submit(ctx context.Context, sub Submission, emitter progress.Emitter) (*Job, <-chan struct{}, error) {
	if err := validate(&sub); err != nil {
		return nil, nil, err
	}

	job := &Job{
		SourceMode:    sub.SourceMode,
		Stage:         progress.StageUpload,
		NotifyDoctor:  optional(sub.NotifyDoctor),
		NotifyPatient: optional(sub.NotifyPatient),
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, nil, &PersistenceError{Cause: err}
	}

	// A viewer tab watching the submission session learns the job ID from
	// this handoff and can subscribe to the job topic.
	if sub.SessionID != "" && s.hub != nil {
		_ = s.hub.Publish(ctx, progress.Event{
			Type:      progress.EventStatus,
			Topic:     progress.SessionTopic(sub.SessionID),
			JobID:     job.ID.String(),
			Stage:     progress.StageUpload,
			Message:   "analysis started",
			Timestamp: time.Now().UTC(),
		})
	}

	tracker := progress.NewTracker(job.ID.String(), emitter, s.hub)
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.run(context.WithoutCancel(ctx), job, sub, tracker)
	}()

	return job, done, nil
}

// GetJob fetches a job's current state.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

// ListJobs pages through jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, limit, offset int) ([]*Job, int, error) {
	return s.repo.ListJobs(ctx, limit, offset)
}

func validate(sub *Submission) error {
	switch sub.SourceMode {
	case SourcePDF:
		if len(sub.FileData) == 0 {
			return &ValidationError{Reason: "the uploaded file is empty"}
		}
	case SourceManual:
		sub.ManualText = strings.TrimSpace(sub.ManualText)
		if sub.ManualText == "" {
			return &ValidationError{Reason: "manual_text is empty"}
		}
	default:
		return &ValidationError{Reason: "a file or manual_text is required"}
	}
	return nil
}

// optional maps a trimmed request value to a nullable column.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) run(ctx context.Context, job *Job, sub Submission, tracker *progress.Tracker) {
	logger := s.logger.With().Str("job_id", job.ID.String()).Logger()

	if err := s.execute(ctx, job, sub, tracker, logger); err != nil {
		logger.Error().Err(err).Str("failure_code", FailureCode(err)).Msg("analysis failed")
		if ferr := s.repo.FailJob(ctx, job.ID, FailureCode(err)); ferr != nil {
			logger.Error().Err(ferr).Msg("failed to record job failure")
		}
		_ = tracker.Fail(UserMessage(err))
	}
}

func (s *Service) execute(ctx context.Context, job *Job, sub Submission, tracker *progress.Tracker, logger zerolog.Logger) error {
	s.advance(ctx, job, tracker, progress.StageUpload, "submission received")

	doc, err := s.obtainDocument(ctx, job, sub, tracker, logger)
	if err != nil {
		return err
	}
	if strings.TrimSpace(doc.Content) == "" {
		return &ExtractionError{Cause: errors.New("no text extracted")}
	}
	if err := s.repo.SaveDocument(ctx, doc); err != nil {
		return &PersistenceError{Cause: err}
	}

	s.advance(ctx, job, tracker, progress.StageOpenAI, "interpreting report")
	catalog := s.snapshotCatalog(ctx, logger)
	interp, err := s.interpreter.Interpret(ctx, ai.Request{
		Text: doc.Content,
		Patient: ai.PatientContext{
			Name: sub.Patient.Name,
			Age:  sub.Patient.Age,
			Sex:  sub.Patient.Sex,
		},
		References: relevantHints(catalog, doc.Content),
	})
	if err != nil {
		return err
	}

	s.advance(ctx, job, tracker, progress.StagePostprocess, "classifying results")
	results := ClassifyAll(interp.Exams, catalog)

	s.advance(ctx, job, tracker, progress.StageDBSave, "saving report")
	composed, err := s.composer.Compose(ctx, job, interp, results)
	if err != nil {
		var persistErr *PersistenceError
		if errors.As(err, &persistErr) {
			return err
		}
		return &PersistenceError{Cause: err}
	}
	if err := s.repo.CompleteJob(ctx, job.ID); err != nil {
		return &PersistenceError{Cause: err}
	}

	logger.Info().
		Str("report_id", composed.ReportID.String()).
		Int("exam_count", len(results)).
		Msg("analysis complete")
	return tracker.Done(composed)
}

// obtainDocument produces the report text: extraction (with OCR fallback) for
// uploads, pass-through for pasted text.
func (s *Service) obtainDocument(ctx context.Context, job *Job, sub Submission, tracker *progress.Tracker, logger zerolog.Logger) (*Document, error) {
	if sub.SourceMode == SourceManual {
		text := extract.NormalizeText(sub.ManualText)
		return &Document{
			JobID:     job.ID,
			Content:   text,
			Method:    extract.MethodDirect,
			CharCount: extract.MeaningfulChars(text),
		}, nil
	}

	s.storeUpload(ctx, job, sub, logger)

	s.advance(ctx, job, tracker, progress.StageExtract, "extracting text")
	onOCR := func() {
		s.advance(ctx, job, tracker, progress.StageOCR, "recognizing scanned pages")
	}
	ext, err := s.extractor.Extract(ctx, sub.FileData, onOCR)
	if err != nil {
		if errors.Is(err, extract.ErrOCR) {
			return nil, &OCRError{Cause: err}
		}
		return nil, &ExtractionError{Cause: err}
	}

	return &Document{
		JobID:     job.ID,
		Content:   ext.Text,
		Method:    ext.Method,
		PageCount: ext.Pages,
		CharCount: ext.Chars,
	}, nil
}

// storeUpload keeps the original file for audit. Storage trouble is logged
// but never blocks the analysis.
func (s *Service) storeUpload(ctx context.Context, job *Job, sub Submission, logger zerolog.Logger) {
	if s.blobs == nil {
		return
	}
	meta, err := s.blobs.Upload(ctx, blobstore.BlobMetadata{
		FileName:    sub.FileName,
		ContentType: "application/pdf",
		JobID:       job.ID.String(),
		Category:    "lab-report",
		CreatedBy:   sub.UserID,
	}, bytes.NewReader(sub.FileData))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to store uploaded document")
		return
	}
	if err := s.repo.SetUploadRef(ctx, job.ID, meta.ID); err != nil {
		logger.Warn().Err(err).Msg("failed to record upload ref")
	}
}

func (s *Service) advance(ctx context.Context, job *Job, tracker *progress.Tracker, stage, message string) {
	if err := tracker.Advance(stage, message); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID.String()).Msg("stage transition rejected")
		return
	}
	if err := s.repo.UpdateStage(ctx, job.ID, stage); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID.String()).Msg("failed to persist stage")
	}
}

// snapshotCatalog loads the reference catalog for one run. A catalog failure
// degrades the analysis (no overrides) rather than failing it.
func (s *Service) snapshotCatalog(ctx context.Context, logger zerolog.Logger) *reference.Catalog {
	if s.refs == nil {
		return reference.NewCatalog(nil)
	}
	catalog, err := s.refs.Snapshot(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("reference catalog unavailable, proceeding without overrides")
		return reference.NewCatalog(nil)
	}
	return catalog
}

// relevantHints picks the catalog entries whose names appear in the report
// text, so the prompt stays bounded.
func relevantHints(catalog *reference.Catalog, text string) []ai.ReferenceHint {
	if catalog == nil || catalog.Len() == 0 {
		return nil
	}
	normalized := strings.ToLower(text)
	var hints []ai.ReferenceHint
	for _, e := range catalog.Entries() {
		if strings.Contains(normalized, e.NormalizedName) {
			hints = append(hints, ai.ReferenceHint{Name: e.DisplayName, Range: e.IdealRange})
		}
	}
	return hints
}
