package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
)

const createAlarmEventsTable = `
	CREATE TABLE IF NOT EXISTS alarm_events (
		event_id     TEXT PRIMARY KEY,
		device_id    TEXT NOT NULL,
		device_name  TEXT NOT NULL DEFAULT '',
		event_type   TEXT NOT NULL,
		alarm_level  TEXT NOT NULL,
		alarm_status TEXT NOT NULL DEFAULT 'active',
		value        DOUBLE PRECISION NOT NULL,
		threshold    DOUBLE PRECISION NOT NULL,
		triggered_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alarm_events_device_time ON alarm_events (device_id, triggered_at DESC);
`

// DefaultListLimit page size when the caller passes none
const DefaultListLimit = 50

// AlarmEventsRepository alarm event persistence
type AlarmEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlarmEventsRepository creates the repository
func NewAlarmEventsRepository(db *sql.DB, logger *zap.Logger) *AlarmEventsRepository {
	return &AlarmEventsRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the alarm_events table if missing
func (r *AlarmEventsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAlarmEventsTable); err != nil {
		return fmt.Errorf("failed to create alarm_events table: %w", err)
	}
	return nil
}

// CreateAlarmEvent inserts one event
func (r *AlarmEventsRepository) CreateAlarmEvent(ctx context.Context, event *models.AlarmEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	query := `
		INSERT INTO alarm_events (
			event_id,
			device_id,
			device_name,
			event_type,
			alarm_level,
			alarm_status,
			value,
			threshold,
			triggered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.DeviceID,
		event.DeviceName,
		event.EventType,
		event.AlarmLevel,
		event.AlarmStatus,
		event.Value,
		event.Threshold,
		event.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alarm event: %w", err)
	}

	r.logger.Debug("Alarm event created",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
		zap.String("event_type", event.EventType),
	)
	return nil
}

// SaveAlarm implements the alerting sink contract
func (r *AlarmEventsRepository) SaveAlarm(ctx context.Context, event models.AlarmEvent) error {
	return r.CreateAlarmEvent(ctx, &event)
}

// ListAlarmEvents returns the newest events first. An empty deviceID lists all devices.
func (r *AlarmEventsRepository) ListAlarmEvents(ctx context.Context, deviceID string, limit int) ([]models.AlarmEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT
			event_id,
			device_id,
			device_name,
			event_type,
			alarm_level,
			alarm_status,
			value,
			threshold,
			triggered_at
		FROM alarm_events
	`
	args := []interface{}{}
	if deviceID != "" {
		query += " WHERE device_id = $1 ORDER BY triggered_at DESC LIMIT $2"
		args = append(args, deviceID, limit)
	} else {
		query += " ORDER BY triggered_at DESC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarm events: %w", err)
	}
	defer rows.Close()

	events := []models.AlarmEvent{}
	for rows.Next() {
		var e models.AlarmEvent
		if err := rows.Scan(
			&e.EventID,
			&e.DeviceID,
			&e.DeviceName,
			&e.EventType,
			&e.AlarmLevel,
			&e.AlarmStatus,
			&e.Value,
			&e.Threshold,
			&e.TriggeredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alarm event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alarm events: %w", err)
	}
	return events, nil
}
