package report

import (
	"context"

	"github.com/google/uuid"

	"github.com/labflow/labflow/internal/domain/analysis"
)

type Repository interface {
	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*Report, error)
	InsertExamResults(ctx context.Context, reportID uuid.UUID, results []analysis.ExamResult) error
	ListExamResults(ctx context.Context, reportID uuid.UUID) ([]analysis.ExamResult, error)
	CreateShareToken(ctx context.Context, t *ShareToken) error
	GetShareToken(ctx context.Context, token string) (*ShareToken, error)
}
