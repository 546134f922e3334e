package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labflow/labflow/internal/platform/db"
)

type analysisRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &analysisRepoPG{pool: pool}
}

func (r *analysisRepoPG) conn(ctx context.Context) db.Conn {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const jobCols = `id, patient_id, source_mode, stage, outcome, failure_code, upload_ref, notify_doctor, notify_patient, created_at, completed_at`

func (r *analysisRepoPG) scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.PatientID, &j.SourceMode, &j.Stage, &j.Outcome,
		&j.FailureCode, &j.UploadRef, &j.NotifyDoctor, &j.NotifyPatient,
		&j.CreatedAt, &j.CompletedAt)
	return &j, err
}

func (r *analysisRepoPG) CreateJob(ctx context.Context, job *Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO analysis_job (id, patient_id, source_mode, stage, notify_doctor, notify_patient)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		job.ID, job.PatientID, job.SourceMode, job.Stage, job.NotifyDoctor, job.NotifyPatient)
	return err
}

func (r *analysisRepoPG) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	return r.scanJob(r.conn(ctx).QueryRow(ctx,
		`SELECT `+jobCols+` FROM analysis_job WHERE id = $1`, id))
}

func (r *analysisRepoPG) UpdateStage(ctx context.Context, id uuid.UUID, stage string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE analysis_job SET stage = $2 WHERE id = $1`, id, stage)
	return err
}

func (r *analysisRepoPG) SetUploadRef(ctx context.Context, id uuid.UUID, ref string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE analysis_job SET upload_ref = $2 WHERE id = $1`, id, ref)
	return err
}

func (r *analysisRepoPG) CompleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE analysis_job SET outcome = 'success', stage = 'done', completed_at = NOW()
		WHERE id = $1 AND outcome IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s already has an outcome", id)
	}
	return nil
}

func (r *analysisRepoPG) FailJob(ctx context.Context, id uuid.UUID, failureCode string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE analysis_job SET outcome = 'failed', stage = 'error', failure_code = $2, completed_at = NOW()
		WHERE id = $1 AND outcome IS NULL`, id, failureCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s already has an outcome", id)
	}
	return nil
}

func (r *analysisRepoPG) SaveDocument(ctx context.Context, doc *Document) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO extracted_document (job_id, content, method, page_count, char_count)
		VALUES ($1,$2,$3,$4,$5)`,
		doc.JobID, doc.Content, doc.Method, doc.PageCount, doc.CharCount)
	return err
}

func (r *analysisRepoPG) GetDocument(ctx context.Context, jobID uuid.UUID) (*Document, error) {
	var d Document
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT job_id, content, method, page_count, char_count, created_at
		FROM extracted_document WHERE job_id = $1`, jobID).
		Scan(&d.JobID, &d.Content, &d.Method, &d.PageCount, &d.CharCount, &d.CreatedAt)
	return &d, err
}

func (r *analysisRepoPG) ListJobs(ctx context.Context, limit, offset int) ([]*Job, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM analysis_job`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+jobCols+` FROM analysis_job ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Job
	for rows.Next() {
		j, err := r.scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, j)
	}
	return items, total, rows.Err()
}
