// Package reference manages the clinic's catalog of ideal exam ranges. Each
// entry overrides the range printed on lab reports when the classifier scores
// an exam row.
package reference

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry maps to the reference_entry table.
type Entry struct {
	ID             uuid.UUID `db:"id" json:"id"`
	NormalizedName string    `db:"normalized_name" json:"normalized_name"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	IdealRange     string    `db:"ideal_range" json:"ideal_range"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// NormalizeName canonicalizes an exam name for catalog lookup: lower-cased,
// trimmed, internal whitespace collapsed to single spaces. Accent folding is
// deliberately not applied; lab reports from the same clinic spell exam names
// consistently.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// BatchItem is one entry in a batch range update, keyed by normalized name.
type BatchItem struct {
	Name       string `json:"name"`
	IdealRange string `json:"ideal_range"`
}

// BatchResult reports the outcome of a batch update. Entries whose range was
// already the submitted value are counted as skipped, not rewritten.
type BatchResult struct {
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Missing []string `json:"missing,omitempty"`
}
