package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nidhi/pkg/domain"
	"nidhi/pkg/sentinel"
)

// PostgresStore persists notification events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, ev *Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_events (id, source_id, kind, audience_role, audience_scope, payload, created_at, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(ev.ID), ev.SourceID, string(ev.Kind), string(ev.AudienceRole),
		ev.AudienceScope, payload, ev.CreatedAt, ev.Acknowledged,
	)
	if err != nil {
		return fmt.Errorf("insert notification event: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, role domain.Role, scope string, onlyUnacknowledged bool) ([]*Event, error) {
	query := `
		SELECT id, source_id, kind, audience_role, audience_scope, payload, created_at, acknowledged
		FROM notification_events
		WHERE audience_role = $1 AND audience_scope = $2`
	if onlyUnacknowledged {
		query += " AND NOT acknowledged"
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, string(role), scope)
	if err != nil {
		return nil, fmt.Errorf("list notification events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Acknowledge(ctx context.Context, id domain.EventID) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE notification_events SET acknowledged = TRUE
		WHERE id = $1
		RETURNING id, source_id, kind, audience_role, audience_scope, payload, created_at, acknowledged`,
		uuid.UUID(id),
	)
	ev, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("acknowledge notification event: %w", err)
	}
	return ev, nil
}

func scanEvent(scan func(dest ...any) error) (*Event, error) {
	var (
		id           uuid.UUID
		sourceID     string
		kind         string
		role         string
		scope        string
		payload      []byte
		createdAt    time.Time
		acknowledged bool
	)
	if err := scan(&id, &sourceID, &kind, &role, &scope, &payload, &createdAt, &acknowledged); err != nil {
		return nil, err
	}
	ev := &Event{
		ID:            domain.EventID(id),
		SourceID:      sourceID,
		Kind:          Kind(kind),
		AudienceRole:  domain.Role(role),
		AudienceScope: scope,
		CreatedAt:     createdAt,
		Acknowledged:  acknowledged,
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return ev, nil
}

// PostgresMarkerStore is the fallback marker store when Redis is not
// configured: same at-most-once contract through a primary-key insert.
type PostgresMarkerStore struct {
	db *sql.DB
}

func NewPostgresMarkerStore(db *sql.DB) *PostgresMarkerStore {
	return &PostgresMarkerStore{db: db}
}

func (s *PostgresMarkerStore) SetIfAbsent(ctx context.Context, sourceID, audienceKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_markers (event_source_id, audience_key, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_source_id, audience_key) DO NOTHING`,
		sourceID, audienceKey,
	)
	if err != nil {
		return false, fmt.Errorf("insert notification marker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("notification marker rows affected: %w", err)
	}
	return n == 1, nil
}
