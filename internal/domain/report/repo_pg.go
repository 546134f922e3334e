package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labflow/labflow/internal/domain/analysis"
	"github.com/labflow/labflow/internal/platform/db"
)

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &reportRepoPG{pool: pool}
}

func (r *reportRepoPG) conn(ctx context.Context) db.Conn {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *reportRepoPG) CreateReport(ctx context.Context, rep *Report) error {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	prescriptions, err := json.Marshal(rep.Prescriptions)
	if err != nil {
		return fmt.Errorf("marshal prescriptions: %w", err)
	}
	orientations, err := json.Marshal(rep.Orientations)
	if err != nil {
		return fmt.Errorf("marshal orientations: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO report (id, job_id, patient_name, patient_age, patient_sex, summary, prescriptions, orientations)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rep.ID, rep.JobID, rep.PatientName, rep.PatientAge, rep.PatientSex,
		rep.Summary, prescriptions, orientations)
	return err
}

func (r *reportRepoPG) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	var (
		rep           Report
		prescriptions []byte
		orientations  []byte
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, job_id, patient_name, patient_age, patient_sex, summary, prescriptions, orientations, created_at
		FROM report WHERE id = $1`, id).
		Scan(&rep.ID, &rep.JobID, &rep.PatientName, &rep.PatientAge, &rep.PatientSex,
			&rep.Summary, &prescriptions, &orientations, &rep.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(prescriptions, &rep.Prescriptions); err != nil {
		return nil, fmt.Errorf("unmarshal prescriptions: %w", err)
	}
	if err := json.Unmarshal(orientations, &rep.Orientations); err != nil {
		return nil, fmt.Errorf("unmarshal orientations: %w", err)
	}
	return &rep, nil
}

func (r *reportRepoPG) InsertExamResults(ctx context.Context, reportID uuid.UUID, results []analysis.ExamResult) error {
	for i := range results {
		res := &results[i]
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		res.ReportID = &reportID
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO exam_result (id, job_id, report_id, name, normalized_name, value, unit, reference_text, status, range_source, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			res.ID, res.JobID, reportID, res.Name, res.NormalizedName, res.Value,
			res.Unit, res.ReferenceText, res.Status, res.RangeSource, res.Position)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *reportRepoPG) ListExamResults(ctx context.Context, reportID uuid.UUID) ([]analysis.ExamResult, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, job_id, report_id, name, normalized_name, value, unit, reference_text, status, range_source, position
		FROM exam_result WHERE report_id = $1 ORDER BY position`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []analysis.ExamResult
	for rows.Next() {
		var res analysis.ExamResult
		if err := rows.Scan(&res.ID, &res.JobID, &res.ReportID, &res.Name, &res.NormalizedName,
			&res.Value, &res.Unit, &res.ReferenceText, &res.Status, &res.RangeSource, &res.Position); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *reportRepoPG) CreateShareToken(ctx context.Context, t *ShareToken) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO share_token (token, report_id, expires_at)
		VALUES ($1,$2,$3)`,
		t.Token, t.ReportID, t.ExpiresAt)
	return err
}

func (r *reportRepoPG) GetShareToken(ctx context.Context, token string) (*ShareToken, error) {
	var t ShareToken
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT token, report_id, expires_at, created_at
		FROM share_token WHERE token = $1`, token).
		Scan(&t.Token, &t.ReportID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
