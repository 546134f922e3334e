package analysis

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	UpdateStage(ctx context.Context, id uuid.UUID, stage string) error
	SetUploadRef(ctx context.Context, id uuid.UUID, ref string) error
	// CompleteJob and FailJob set the outcome exactly once; a job that
	// already has an outcome is left untouched.
	CompleteJob(ctx context.Context, id uuid.UUID) error
	FailJob(ctx context.Context, id uuid.UUID, failureCode string) error
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, jobID uuid.UUID) (*Document, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*Job, int, error)
}
