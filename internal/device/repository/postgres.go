package repository

import (
	"context"
	"database/sql"
	"errors"

	"cyber-monitor/backend/internal/device/domain"
)

const deviceColumns = `id, hostname, platform, ip, agent_version, first_seen_at, last_seen_at, event_count`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Touch upserts the device row. The event counter is incremented in the same statement.
func (r *PostgresRepository) Touch(ctx context.Context, s domain.Sighting) error {
	at := s.At.UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO devices (`+deviceColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $6, 1)
ON CONFLICT (id) DO UPDATE SET
	hostname      = COALESCE(NULLIF(EXCLUDED.hostname, ''), devices.hostname),
	platform      = COALESCE(NULLIF(EXCLUDED.platform, ''), devices.platform),
	ip            = COALESCE(NULLIF(EXCLUDED.ip, ''), devices.ip),
	agent_version = COALESCE(NULLIF(EXCLUDED.agent_version, ''), devices.agent_version),
	last_seen_at  = GREATEST(devices.last_seen_at, EXCLUDED.last_seen_at),
	first_seen_at = LEAST(devices.first_seen_at, EXCLUDED.first_seen_at),
	event_count   = devices.event_count + 1`,
		s.DeviceID, s.Hostname, s.Platform, s.IP, s.AgentVersion, at,
	)
	return err
}

// GetByID returns the device for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	var d domain.Device
	err := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id).
		Scan(&d.ID, &d.Hostname, &d.Platform, &d.IP, &d.AgentVersion, &d.FirstSeenAt, &d.LastSeenAt, &d.EventCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// List returns devices by last seen descending. Returns (nil, error) only on database errors.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*domain.Device, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices ORDER BY last_seen_at DESC, id`
	var args []any
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Device
	for rows.Next() {
		var d domain.Device
		if err := rows.Scan(&d.ID, &d.Hostname, &d.Platform, &d.IP, &d.AgentVersion, &d.FirstSeenAt, &d.LastSeenAt, &d.EventCount); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
