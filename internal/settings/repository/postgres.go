package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cyber-monitor/backend/internal/settings/domain"
)

const (
	keyAlertRecipient = "alert_recipient"
	keyAlertThreshold = "alert_threshold"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a settings repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Load reads the settings table. Values are JSON strings; undecodable rows are reported as errors.
func (r *PostgresRepository) Load(ctx context.Context, defaults domain.Settings) (domain.Settings, error) {
	out := defaults
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE key IN ($1, $2)`, keyAlertRecipient, keyAlertThreshold)
	if err != nil {
		return defaults, err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return defaults, err
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return defaults, fmt.Errorf("settings: decode %s: %w", key, err)
		}
		switch key {
		case keyAlertRecipient:
			out.AlertRecipient = v
		case keyAlertThreshold:
			out.AlertThreshold = v
		}
	}
	if err := rows.Err(); err != nil {
		return defaults, err
	}
	return out, nil
}

// Save upserts both keys in one transaction.
func (r *PostgresRepository) Save(ctx context.Context, s domain.Settings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for key, v := range map[string]string{keyAlertRecipient: s.AlertRecipient, keyAlertThreshold: s.AlertThreshold} {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, key, raw); err != nil {
			return err
		}
	}
	return tx.Commit()
}
