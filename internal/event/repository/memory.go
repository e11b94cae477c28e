package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cyber-monitor/backend/internal/event/domain"
)

// MemoryRepository keeps events in process memory. Used when no database is configured and in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.Event
}

// NewMemoryRepository returns an empty in-memory event repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[string]*domain.Event)}
}

func (r *MemoryRepository) Create(ctx context.Context, e *domain.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	r.mu.Lock()
	r.events[e.ID] = e.Clone()
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events[id].Clone(), nil
}

func (r *MemoryRepository) MarkRead(ctx context.Context, id string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	e.IsRead = true
	return e.Clone(), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return false, nil
	}
	delete(r.events, id)
	return true, nil
}

func (r *MemoryRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Event, error) {
	r.mu.RLock()
	out := make([]*domain.Event, 0, len(r.events))
	for _, e := range r.events {
		if f.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if n := f.EffectiveLimit(); n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *MemoryRepository) Count(ctx context.Context, f domain.Filter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, e := range r.events {
		if f.Matches(e) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountByKind(ctx context.Context) (map[domain.Kind]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.Kind]int64)
	for _, e := range r.events {
		out[e.Kind]++
	}
	return out, nil
}

func (r *MemoryRepository) DistinctDevices(ctx context.Context, since *time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range r.events {
		if since != nil && e.OccurredAt.Before(*since) {
			continue
		}
		seen[e.DeviceID] = struct{}{}
	}
	return int64(len(seen)), nil
}

func (r *MemoryRepository) DailyActivity(ctx context.Context, since time.Time, loc *time.Location) ([]domain.DailyActivity, error) {
	if loc == nil {
		loc = time.UTC
	}
	type bucket struct {
		count int64
		kinds map[domain.Kind]struct{}
	}
	buckets := make(map[string]*bucket)

	r.mu.RLock()
	for _, e := range r.events {
		if e.OccurredAt.Before(since) {
			continue
		}
		day := e.OccurredAt.In(loc).Format(time.DateOnly)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{kinds: make(map[domain.Kind]struct{})}
			buckets[day] = b
		}
		b.count++
		b.kinds[e.Kind] = struct{}{}
	}
	r.mu.RUnlock()

	out := make([]domain.DailyActivity, 0, len(buckets))
	for day, b := range buckets {
		kinds := make([]domain.Kind, 0, len(b.kinds))
		for k := range b.kinds {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		out = append(out, domain.DailyActivity{Date: day, Count: b.count, Kinds: kinds})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
