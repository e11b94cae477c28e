package repository

import (
	"context"

	"cyber-monitor/backend/internal/device/domain"
)

// Repository defines persistence for devices.
type Repository interface {
	// Touch records a sighting: creates the device on first sight, otherwise refreshes
	// its descriptive fields and last-seen time and increments its event count atomically.
	Touch(ctx context.Context, s domain.Sighting) error
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	// List returns devices ordered by last seen, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*domain.Device, error)
}
