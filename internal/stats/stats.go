// Package stats computes dashboard aggregates and filtered listings over stored events.
package stats

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"cyber-monitor/backend/internal/event/domain"
)

// DefaultTimelineDays is used when a timeline request does not name a window.
const DefaultTimelineDays = 7

// MaxTimelineDays is the widest timeline window accepted.
const MaxTimelineDays = 3650

const week = 7 * 24 * time.Hour

// Reader is the read side of the event store.
type Reader interface {
	List(ctx context.Context, f domain.Filter) ([]*domain.Event, error)
	Count(ctx context.Context, f domain.Filter) (int64, error)
	CountByKind(ctx context.Context) (map[domain.Kind]int64, error)
	DistinctDevices(ctx context.Context, since *time.Time) (int64, error)
	DailyActivity(ctx context.Context, since time.Time, loc *time.Location) ([]domain.DailyActivity, error)
}

// Summary is the dashboard overview.
type Summary struct {
	TotalEvents int64 `json:"totalEvents"`
	TodayEvents int64 `json:"todayEvents"`
	WeekEvents  int64 `json:"weekEvents"`
	// ActiveDeviceCount counts distinct devices over all time.
	ActiveDeviceCount int64 `json:"activeDeviceCount"`
	// RecentDeviceCount counts distinct devices with events in the last seven days.
	RecentDeviceCount int64                 `json:"recentDeviceCount"`
	CountsByKind      map[domain.Kind]int64 `json:"countsByKind"`
	UnreadAlertCount  int64                 `json:"unreadAlertCount"`
	AsOf              time.Time             `json:"asOf"`
}

// Service answers aggregate queries. It never writes.
type Service struct {
	reader Reader
	loc    *time.Location
	now    func() time.Time
}

// New returns a service that buckets days in loc (UTC when nil).
func New(reader Reader, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{reader: reader, loc: loc, now: time.Now}
}

// Summary runs the sub-queries concurrently. They are not a single snapshot.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	now := s.now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	weekAgo := now.Add(-week)
	unread := false

	var out Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalEvents, err = s.reader.Count(gctx, domain.Filter{})
		return err
	})
	g.Go(func() (err error) {
		out.TodayEvents, err = s.reader.Count(gctx, domain.Filter{From: &midnight})
		return err
	})
	g.Go(func() (err error) {
		out.WeekEvents, err = s.reader.Count(gctx, domain.Filter{From: &weekAgo})
		return err
	})
	g.Go(func() (err error) {
		out.ActiveDeviceCount, err = s.reader.DistinctDevices(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		out.RecentDeviceCount, err = s.reader.DistinctDevices(gctx, &weekAgo)
		return err
	})
	g.Go(func() (err error) {
		out.CountsByKind, err = s.reader.CountByKind(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.UnreadAlertCount, err = s.reader.Count(gctx, domain.Filter{Kind: domain.KindAlert, IsRead: &unread})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, &domain.StoreError{Op: "summary", Err: err}
	}
	if out.CountsByKind == nil {
		out.CountsByKind = map[domain.Kind]int64{}
	}
	out.AsOf = now.UTC()
	return &out, nil
}

// Timeline returns one bucket per local calendar day with events in the last days*24h, ascending.
func (s *Service) Timeline(ctx context.Context, days int) ([]domain.DailyActivity, error) {
	if days < 1 || days > MaxTimelineDays {
		return nil, domain.Invalid("days", "must be between 1 and %d", MaxTimelineDays)
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	buckets, err := s.reader.DailyActivity(ctx, since, s.loc)
	if err != nil {
		return nil, &domain.StoreError{Op: "timeline", Err: err}
	}
	if buckets == nil {
		buckets = []domain.DailyActivity{}
	}
	return buckets, nil
}

// List returns events matching f, newest first.
func (s *Service) List(ctx context.Context, f domain.Filter) ([]*domain.Event, error) {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, domain.Invalid("to", "must not be before from")
	}
	events, err := s.reader.List(ctx, f)
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return events, nil
}
