// Package report persists finished analyses as shareable reports: the
// composed report row, its classified exam results, and the share token that
// gates public access.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/labflow/labflow/internal/domain/analysis"
)

// Item is one prescription or orientation line. IDs are assigned at
// composition and stay stable, so export exclusions keyed by ID survive
// reordering.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Report maps to the report table. Prescriptions and orientations are stored
// as jsonb.
type Report struct {
	ID            uuid.UUID `db:"id" json:"id"`
	JobID         uuid.UUID `db:"job_id" json:"job_id"`
	PatientName   string    `db:"patient_name" json:"patient_name,omitempty"`
	PatientAge    string    `db:"patient_age" json:"patient_age,omitempty"`
	PatientSex    string    `db:"patient_sex" json:"patient_sex,omitempty"`
	Summary       string    `db:"summary" json:"summary"`
	Prescriptions []Item    `db:"prescriptions" json:"prescriptions"`
	Orientations  []Item    `db:"orientations" json:"orientations"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ShareToken maps to the share_token table.
type ShareToken struct {
	Token     string    `db:"token" json:"token"`
	ReportID  uuid.UUID `db:"report_id" json:"report_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the token is past its expiry at the given time.
func (t *ShareToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// View is a resolved report with its exam results, as served to viewers.
type View struct {
	Report *Report               `json:"report"`
	Exams  []analysis.ExamResult `json:"exams"`
}
