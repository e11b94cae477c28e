package repository

import (
	"context"
	"time"

	"cyber-monitor/backend/internal/event/domain"
)

// Repository defines persistence for events.
type Repository interface {
	// Create stores e, assigning a new ID when e.ID is empty.
	Create(ctx context.Context, e *domain.Event) error
	// GetByID returns the event for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	// MarkRead sets is_read on the event and returns it, or nil if not found.
	MarkRead(ctx context.Context, id string) (*domain.Event, error)
	// Delete removes the event and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// List returns events matching f ordered by occurred_at descending.
	List(ctx context.Context, f domain.Filter) ([]*domain.Event, error)
	// Count returns the number of events matching f; Limit is ignored.
	Count(ctx context.Context, f domain.Filter) (int64, error)
	// CountByKind returns all-time counts keyed by kind.
	CountByKind(ctx context.Context) (map[domain.Kind]int64, error)
	// DistinctDevices counts distinct device ids, optionally only for events at or after since.
	DistinctDevices(ctx context.Context, since *time.Time) (int64, error)
	// DailyActivity buckets events at or after since by calendar day in loc, ascending by date.
	DailyActivity(ctx context.Context, since time.Time, loc *time.Location) ([]domain.DailyActivity, error)
}
