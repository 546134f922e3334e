package analysis

import (
	"errors"
	"fmt"

	"github.com/labflow/labflow/internal/platform/ai"
)

// Pipeline failure codes recorded on failed jobs.
const (
	FailureExtraction     = "extraction"
	FailureOCR            = "ocr"
	FailureInterpretation = "interpretation"
	FailureValidation     = "validation"
	FailurePersistence    = "persistence"
)

// ExtractionError means the uploaded document's text layer could not be read.
type ExtractionError struct {
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %v", e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// UserMessage is the client-safe description of the failure.
func (e *ExtractionError) UserMessage() string {
	return "The document could not be read. Please check that the file is a valid lab report PDF."
}

// OCRError means the OCR fallback produced no usable text.
type OCRError struct {
	Cause error
}

func (e *OCRError) Error() string {
	return fmt.Sprintf("ocr failed: %v", e.Cause)
}

func (e *OCRError) Unwrap() error { return e.Cause }

func (e *OCRError) UserMessage() string {
	return "The document appears to be a scan but its pages could not be recognized."
}

// ValidationError rejects a submission before the pipeline starts.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func (e *ValidationError) UserMessage() string { return e.Reason }

// PersistenceError means the composed report could not be written; the
// transaction rolled back and the job holds no report or share token.
type PersistenceError struct {
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

func (e *PersistenceError) UserMessage() string {
	return "The analysis finished but the report could not be saved. Please try again."
}

// UserMessage maps any pipeline error to the message sent to clients. Causes
// are logged server-side, never surfaced.
func UserMessage(err error) string {
	var (
		extractionErr  *ExtractionError
		ocrErr         *OCRError
		validationErr  *ValidationError
		persistenceErr *PersistenceError
		interpErr      *ai.InterpretationError
	)
	switch {
	case errors.As(err, &extractionErr):
		return extractionErr.UserMessage()
	case errors.As(err, &ocrErr):
		return ocrErr.UserMessage()
	case errors.As(err, &validationErr):
		return validationErr.UserMessage()
	case errors.As(err, &persistenceErr):
		return persistenceErr.UserMessage()
	case errors.As(err, &interpErr):
		return interpretationUserMessage(interpErr.Kind)
	default:
		return "The analysis could not be completed. Please try again."
	}
}

func interpretationUserMessage(kind string) string {
	switch kind {
	case ai.KindAuth:
		return "The interpretation service rejected our credentials. Please contact support."
	case ai.KindTimeout:
		return "The interpretation service took too long to respond. Please try again."
	case ai.KindRateLimited:
		return "The interpretation service is busy. Please wait a moment and try again."
	case ai.KindMalformed:
		return "The interpretation service returned an unusable answer. Please try again."
	default:
		return "The interpretation service is unavailable. Please try again later."
	}
}

// FailureCode maps a pipeline error to the code stored on the failed job.
func FailureCode(err error) string {
	var (
		extractionErr  *ExtractionError
		ocrErr         *OCRError
		validationErr  *ValidationError
		persistenceErr *PersistenceError
		interpErr      *ai.InterpretationError
	)
	switch {
	case errors.As(err, &extractionErr):
		return FailureExtraction
	case errors.As(err, &ocrErr):
		return FailureOCR
	case errors.As(err, &validationErr):
		return FailureValidation
	case errors.As(err, &persistenceErr):
		return FailurePersistence
	case errors.As(err, &interpErr):
		return FailureInterpretation
	default:
		return "unknown"
	}
}
