package repository

import (
	"context"

	"cyber-monitor/backend/internal/settings/domain"
)

// Repository persists settings as key/value rows.
type Repository interface {
	// Load overlays stored values onto defaults. Keys absent from the store keep the default.
	Load(ctx context.Context, defaults domain.Settings) (domain.Settings, error)
	// Save writes every setting in one transaction.
	Save(ctx context.Context, s domain.Settings) error
}
