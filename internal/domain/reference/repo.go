package reference

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetByNormalizedName(ctx context.Context, name string) (*Entry, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Entry, int, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*Entry, int, error)
	ListAll(ctx context.Context) ([]*Entry, error)
}
