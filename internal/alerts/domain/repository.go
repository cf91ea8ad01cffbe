package alerts

import (
	"context"
	"time"
)

// Update is the write half of a read-modify-write against one alert.
// Nil pointer fields leave the stored value untouched. Lifecycle
// preconditions are expressed here so every backend enforces them as
// store-level predicates rather than post-filtering.
type Update struct {
	Title       *string
	Content     *string
	Type        *string
	Priority    *int
	BannerImage *string
	Gallery     *[]string
	ArticleURL  *string
	StartTime   *time.Time
	EndTime     *time.Time
	IsActive    *bool

	// SetDeletedAt moves the record to trash; ClearDeletedAt restores it.
	SetDeletedAt   *time.Time
	ClearDeletedAt bool

	// RequireTrashed constrains the update to records whose deleted_at
	// is present (true) or absent (false). Nil applies no precondition.
	// A record excluded by the precondition reports ErrNotFound.
	RequireTrashed *bool

	UpdatedAt time.Time
}

// Repository is the document-store contract for alerts. Update returns
// the post-update document, never the pre-image. Implementations must
// serialize per-document mutations.
type Repository interface {
	Insert(ctx context.Context, alert Alert) (string, error)
	Get(ctx context.Context, id string) (*Alert, error)
	List(ctx context.Context, filter ListFilter) ([]Alert, error)
	ListActive(ctx context.Context, now time.Time, limit int) ([]Alert, error)
	ListTrash(ctx context.Context) ([]Alert, error)
	Update(ctx context.Context, id string, update Update) (*Alert, error)
	Delete(ctx context.Context, id string) (bool, error)
	Counts(ctx context.Context, now time.Time) (Statistics, error)
}
