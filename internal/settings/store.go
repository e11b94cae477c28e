// Package settings holds the mutable alerting configuration shared by ingestion and the alert dispatcher.
package settings

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	eventdomain "cyber-monitor/backend/internal/event/domain"
	"cyber-monitor/backend/internal/settings/domain"
	"cyber-monitor/backend/internal/settings/repository"
)

// Store is the process-wide settings holder. Reads are lock-protected snapshots; updates are last-write-wins.
// With a nil repository settings live for the process lifetime only.
type Store struct {
	mu       sync.RWMutex
	current  domain.Settings
	defaults domain.Settings
	repo     repository.Repository
}

// NewStore returns a store seeded with defaults. Call Load to overlay persisted values.
func NewStore(defaults domain.Settings, repo repository.Repository) (*Store, error) {
	normalized, err := validate(defaults)
	if err != nil {
		return nil, err
	}
	return &Store{current: normalized, defaults: normalized, repo: repo}, nil
}

// Load replaces the in-memory settings with the persisted copy. A no-op without a repository.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	loaded, err := s.repo.Load(ctx, s.defaults)
	if err != nil {
		return fmt.Errorf("settings: load: %w", err)
	}
	loaded, err = validate(loaded)
	if err != nil {
		return fmt.Errorf("settings: stored value: %w", err)
	}
	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return nil
}

// Reload re-reads the durable copy, discarding in-memory state.
func (s *Store) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// Get returns a snapshot of the current settings.
func (s *Store) Get(ctx context.Context) domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// AlertRecipient returns the configured default alert address.
func (s *Store) AlertRecipient(ctx context.Context) string {
	return s.Get(ctx).AlertRecipient
}

// AlertThreshold returns the configured threshold as a severity.
func (s *Store) AlertThreshold(ctx context.Context) eventdomain.Severity {
	return eventdomain.Severity(s.Get(ctx).AlertThreshold)
}

// Update applies p after validation and persists the result before it becomes visible.
// Returns a *eventdomain.ValidationError for a malformed recipient or unknown threshold.
func (s *Store) Update(ctx context.Context, p domain.Patch) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	if p.AlertRecipient != nil {
		next.AlertRecipient = *p.AlertRecipient
	}
	if p.AlertThreshold != nil {
		next.AlertThreshold = *p.AlertThreshold
	}
	next, err := validate(next)
	if err != nil {
		return s.current, err
	}
	if s.repo != nil {
		if err := s.repo.Save(ctx, next); err != nil {
			return s.current, &eventdomain.StoreError{Op: "save settings", Err: err}
		}
	}
	s.current = next
	return next, nil
}

func validate(in domain.Settings) (domain.Settings, error) {
	out := domain.Settings{
		AlertRecipient: strings.TrimSpace(in.AlertRecipient),
		AlertThreshold: strings.ToLower(strings.TrimSpace(in.AlertThreshold)),
	}
	if out.AlertRecipient != "" {
		addr, err := mail.ParseAddress(out.AlertRecipient)
		if err != nil {
			return in, eventdomain.Invalid("alertEmail", "not a valid email address")
		}
		out.AlertRecipient = addr.Address
	}
	if out.AlertThreshold == "" {
		out.AlertThreshold = string(eventdomain.SeverityHigh)
	}
	if !eventdomain.Severity(out.AlertThreshold).Valid() {
		return in, eventdomain.Invalid("alertThreshold", "must be one of low, medium, high, critical")
	}
	return out, nil
}
