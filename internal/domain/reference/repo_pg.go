package reference

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labflow/labflow/internal/platform/db"
)

type referenceRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &referenceRepoPG{pool: pool}
}

func (r *referenceRepoPG) conn(ctx context.Context) db.Conn {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const entryCols = `id, normalized_name, display_name, ideal_range, created_at, updated_at`

func (r *referenceRepoPG) scanRow(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.NormalizedName, &e.DisplayName, &e.IdealRange, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *referenceRepoPG) Create(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO reference_entry (id, normalized_name, display_name, ideal_range)
		VALUES ($1,$2,$3,$4)`,
		e.ID, e.NormalizedName, e.DisplayName, e.IdealRange)
	return err
}

func (r *referenceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM reference_entry WHERE id = $1`, id))
}

func (r *referenceRepoPG) GetByNormalizedName(ctx context.Context, name string) (*Entry, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM reference_entry WHERE normalized_name = $1`, name))
}

func (r *referenceRepoPG) Update(ctx context.Context, e *Entry) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE reference_entry SET display_name=$2, ideal_range=$3, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.DisplayName, e.IdealRange)
	return err
}

func (r *referenceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM reference_entry WHERE id = $1`, id)
	return err
}

func (r *referenceRepoPG) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM reference_entry`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+entryCols+` FROM reference_entry ORDER BY normalized_name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *referenceRepoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Entry, int, error) {
	pattern := "%" + query + "%"
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM reference_entry WHERE normalized_name LIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	// Exact matches sort ahead of substring matches.
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM reference_entry
		WHERE normalized_name LIKE $1
		ORDER BY (normalized_name = $2) DESC, normalized_name
		LIMIT $3 OFFSET $4`,
		pattern, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *referenceRepoPG) ListAll(ctx context.Context) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+entryCols+` FROM reference_entry ORDER BY normalized_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items, _, err := r.collect(rows, 0)
	return items, err
}

func (r *referenceRepoPG) collect(rows pgx.Rows, total int) ([]*Entry, int, error) {
	var items []*Entry
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
