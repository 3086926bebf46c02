package tweet

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists tweets together with the links extracted from their text.
type Repository interface {
	// Save assigns the tweet an id and a date and stores it. Only ID, Date
	// and Links of the returned tweet are set by the store.
	Save(ctx context.Context, t Tweet) (Tweet, error)
	// FindByID returns nil and no error when the tweet does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Tweet, error)
	ListActive(ctx context.Context) ([]Tweet, error)
	ListDiscarded(ctx context.Context, publisher string) ([]Tweet, error)
	Discard(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
