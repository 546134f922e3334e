package analysis

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/internal/platform/progress"
	"github.com/labflow/labflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireScope("analyses", "read"))
	read.GET("/analyses", h.ListJobs)
	read.GET("/analyses/:id", h.GetJob)

	write := api.Group("", auth.RequireScope("analyses", "write"))
	write.POST("/analyses", h.SubmitAnalysis)
}

type manualRequest struct {
	ManualText    string         `json:"manual_text"`
	Patient       PatientContext `json:"patient"`
	NotifyDoctor  string         `json:"notify_doctor"`
	NotifyPatient string         `json:"notify_patient"`
	SessionID     string         `json:"session_id"`
}

// SubmitAnalysis accepts a lab report as a multipart PDF upload or as pasted
// text, and runs the analysis pipeline. With "Accept: text/event-stream" the
// stage events stream live; otherwise the reply is a single JSON body with
// the buffered event log and the final result.
func (h *Handler) SubmitAnalysis(c echo.Context) error {
	sub, err := parseSubmission(c)
	if err != nil {
		return err
	}
	sub.UserID = auth.UserIDFromContext(c.Request().Context())

	if wantsStream(c) {
		return h.submitStreaming(c, sub)
	}
	return h.submitBuffered(c, sub)
}

func (h *Handler) submitStreaming(c echo.Context, sub Submission) error {
	// The SSE emitter commits a 200 and the stream headers immediately, so an
	// invalid submission must be rejected before the emitter exists.
	if err := validate(&sub); err != nil {
		return submissionError(err)
	}

	emitter, err := progress.NewSSEEmitter(c.Response())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	_, done, err := h.svc.Submit(c.Request().Context(), sub, emitter)
	if err != nil {
		return submissionError(err)
	}

	// The SSE emitter already wrote the response header; block until the
	// pipeline finishes so the stream stays open.
	<-done
	return nil
}

func (h *Handler) submitBuffered(c echo.Context, sub Submission) error {
	emitter := progress.NewBufferEmitter()

	job, done, err := h.svc.Submit(c.Request().Context(), sub, emitter)
	if err != nil {
		return submissionError(err)
	}
	<-done

	body := map[string]any{
		"job_id": job.ID,
		"events": emitter.Events(),
	}
	if final, ok := emitter.Final(); ok {
		body["result"] = final
	}
	return c.JSON(http.StatusOK, body)
}

func (h *Handler) GetJob(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	job, err := h.svc.GetJob(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "analysis not found")
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) ListJobs(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListJobs(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func parseSubmission(c echo.Context) (Submission, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)

	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return Submission{}, echo.NewHTTPError(http.StatusBadRequest, "a file or manual_text is required")
		}
		f, err := fh.Open()
		if err != nil {
			return Submission{}, echo.NewHTTPError(http.StatusBadRequest, "the uploaded file could not be read")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return Submission{}, echo.NewHTTPError(http.StatusBadRequest, "the uploaded file could not be read")
		}
		return Submission{
			SourceMode: SourcePDF,
			FileName:   fh.Filename,
			FileData:   data,
			Patient: PatientContext{
				Name: c.FormValue("patient_name"),
				Age:  c.FormValue("patient_age"),
				Sex:  c.FormValue("patient_sex"),
			},
			NotifyDoctor:  c.FormValue("notify_doctor"),
			NotifyPatient: c.FormValue("notify_patient"),
			SessionID:     c.FormValue("session_id"),
		}, nil
	}

	var req manualRequest
	if err := c.Bind(&req); err != nil {
		return Submission{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return Submission{
		SourceMode:    SourceManual,
		ManualText:    req.ManualText,
		Patient:       req.Patient,
		NotifyDoctor:  req.NotifyDoctor,
		NotifyPatient: req.NotifyPatient,
		SessionID:     req.SessionID,
	}, nil
}

func wantsStream(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get("Accept"), "text/event-stream")
}

func submissionError(err error) error {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validationErr.UserMessage())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, UserMessage(err))
}
