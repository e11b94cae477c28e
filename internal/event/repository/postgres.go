package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cyber-monitor/backend/internal/event/domain"
)

const eventColumns = `id, kind, payload, device_id, device_info, severity, occurred_at, tags, metadata, is_read`

// PostgresRepository stores events in the events table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an event repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts e. ID is assigned when empty; nil tags and metadata are stored as empty JSON.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	deviceInfo, err := nullableJSON(e.DeviceInfo)
	if err != nil {
		return err
	}
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	payload := []byte(e.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, string(e.Kind), payload, e.DeviceID, deviceInfo, string(e.Severity), e.OccurredAt.UTC(), tagsJSON, metaJSON, e.IsRead,
	)
	return err
}

// GetByID returns the event for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// MarkRead flips is_read to true and returns the updated event, or nil if not found.
func (r *PostgresRepository) MarkRead(ctx context.Context, id string) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx, `UPDATE events SET is_read = TRUE WHERE id = $1 RETURNING `+eventColumns, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// Delete removes the event for id. Returns false when no row matched.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns events matching f, newest first.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Event, error) {
	where, args := filterClause(f)
	q := `SELECT ` + eventColumns + ` FROM events` + where + ` ORDER BY occurred_at DESC, id DESC`
	if n := f.EffectiveLimit(); n > 0 {
		args = append(args, n)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of events matching f.
func (r *PostgresRepository) Count(ctx context.Context, f domain.Filter) (int64, error) {
	where, args := filterClause(f)
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&n)
	return n, err
}

// CountByKind returns all-time event counts grouped by kind.
func (r *PostgresRepository) CountByKind(ctx context.Context) (map[domain.Kind]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.Kind]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[domain.Kind(kind)] = n
	}
	return out, rows.Err()
}

// DistinctDevices counts distinct device ids, optionally restricted to events since the given instant.
func (r *PostgresRepository) DistinctDevices(ctx context.Context, since *time.Time) (int64, error) {
	var n int64
	var err error
	if since == nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT device_id) FROM events`).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT device_id) FROM events WHERE occurred_at >= $1`, since.UTC()).Scan(&n)
	}
	return n, err
}

// DailyActivity groups events since the given instant by local calendar day.
// Named zones are resolved by Postgres; "Local" is sent as its current UTC offset.
func (r *PostgresRepository) DailyActivity(ctx context.Context, since time.Time, loc *time.Location) ([]domain.DailyActivity, error) {
	if loc == nil {
		loc = time.UTC
	}
	zoneExpr, zoneArg := `$2::text`, any(loc.String())
	if loc == time.Local || loc.String() == "Local" {
		_, offset := time.Now().In(loc).Zone()
		zoneExpr, zoneArg = `$2::interval`, fmt.Sprintf("%d seconds", offset)
	}
	q := `SELECT to_char(occurred_at AT TIME ZONE ` + zoneExpr + `, 'YYYY-MM-DD') AS day,
		COUNT(*),
		string_agg(DISTINCT kind, ',' ORDER BY kind)
	FROM events
	WHERE occurred_at >= $1
	GROUP BY day
	ORDER BY day ASC`

	rows, err := r.db.QueryContext(ctx, q, since.UTC(), zoneArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyActivity
	for rows.Next() {
		var (
			day   string
			count int64
			kinds sql.NullString
		)
		if err := rows.Scan(&day, &count, &kinds); err != nil {
			return nil, err
		}
		bucket := domain.DailyActivity{Date: day, Count: count, Kinds: []domain.Kind{}}
		if kinds.Valid && kinds.String != "" {
			for _, k := range strings.Split(kinds.String, ",") {
				bucket.Kinds = append(bucket.Kinds, domain.Kind(k))
			}
		}
		out = append(out, bucket)
	}
	return out, rows.Err()
}

func filterClause(f domain.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.DeviceID != "" {
		add("device_id = $%d", f.DeviceID)
	}
	if f.From != nil {
		add("occurred_at >= $%d", f.From.UTC())
	}
	if f.To != nil {
		add("occurred_at <= $%d", f.To.UTC())
	}
	if f.IsRead != nil {
		add("is_read = $%d", *f.IsRead)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(s rowScanner) (*domain.Event, error) {
	var (
		e                   domain.Event
		kind, severity      string
		payload, tags, meta []byte
		deviceInfo          []byte
	)
	if err := s.Scan(&e.ID, &kind, &payload, &e.DeviceID, &deviceInfo, &severity, &e.OccurredAt, &tags, &meta, &e.IsRead); err != nil {
		return nil, err
	}
	e.Kind = domain.Kind(kind)
	e.Severity = domain.Severity(severity)
	e.Payload = json.RawMessage(payload)
	e.OccurredAt = e.OccurredAt.UTC()
	if len(deviceInfo) > 0 && string(deviceInfo) != "null" {
		var di domain.DeviceInfo
		if err := json.Unmarshal(deviceInfo, &di); err != nil {
			return nil, fmt.Errorf("decode device_info: %w", err)
		}
		e.DeviceInfo = &di
	}
	if err := json.Unmarshal(tags, &e.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal(meta, &e.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &e, nil
}

func nullableJSON(v *domain.DeviceInfo) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
