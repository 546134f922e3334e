// Package analysis owns the lab-report analysis pipeline: a submitted
// document or pasted text moves through extraction, AI interpretation,
// classification and persistence, reporting progress along the way.
package analysis

import (
	"time"

	"github.com/google/uuid"
)

// Source modes of a submission.
const (
	SourcePDF    = "pdf"
	SourceManual = "manual"
)

// Job outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Exam row statuses assigned by the classifier.
const (
	StatusNormal        = "normal"
	StatusHigh          = "high"
	StatusLow           = "low"
	StatusAltered       = "altered"
	StatusIndeterminate = "indeterminate"
)

// Where an exam row's reference range came from.
const (
	RangeSourceCustom  = "custom"  // clinic catalog entry
	RangeSourceDefault = "default" // range printed on the report itself
	RangeSourceNone    = "none"    // no range available
)

// Job maps to the analysis_job table.
type Job struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	SourceMode  string     `db:"source_mode" json:"source_mode"`
	Stage       string     `db:"stage" json:"stage"`
	Outcome     *string    `db:"outcome" json:"outcome,omitempty"`
	FailureCode *string    `db:"failure_code" json:"failure_code,omitempty"`
	UploadRef   *string    `db:"upload_ref" json:"upload_ref,omitempty"`
	// Contacts to notify about the finished report. Recorded with the job;
	// delivery happens outside this service.
	NotifyDoctor  *string    `db:"notify_doctor" json:"notify_doctor,omitempty"`
	NotifyPatient *string    `db:"notify_patient" json:"notify_patient,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Document maps to the extracted_document table: the text pulled out of a
// submission, and how.
type Document struct {
	JobID     uuid.UUID `db:"job_id" json:"job_id"`
	Content   string    `db:"content" json:"content"`
	Method    string    `db:"method" json:"method"`
	PageCount int       `db:"page_count" json:"page_count"`
	CharCount int       `db:"char_count" json:"char_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ExamResult maps to the exam_result table: one classified exam row. Rows are
// written only by the report composer's transaction.
type ExamResult struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	JobID          uuid.UUID  `db:"job_id" json:"job_id"`
	ReportID       *uuid.UUID `db:"report_id" json:"report_id,omitempty"`
	Name           string     `db:"name" json:"name"`
	NormalizedName string     `db:"normalized_name" json:"normalized_name"`
	Value          string     `db:"value" json:"value"`
	Unit           string     `db:"unit" json:"unit,omitempty"`
	ReferenceText  string     `db:"reference_text" json:"reference_text,omitempty"`
	Status         string     `db:"status" json:"status"`
	RangeSource    string     `db:"range_source" json:"range_source"`
	Position       int        `db:"position" json:"position"`
}

// PatientContext carries optional patient fields supplied with a submission.
type PatientContext struct {
	Name string `json:"name,omitempty"`
	Age  string `json:"age,omitempty"`
	Sex  string `json:"sex,omitempty"`
}
