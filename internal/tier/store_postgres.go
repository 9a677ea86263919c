package tier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nidhi/pkg/domain"
	"nidhi/pkg/sentinel"
)

// PostgresStore persists tiers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, t *Tier) error {
	var parent any
	if t.ParentID != nil {
		parent = uuid.UUID(*t.ParentID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tiers (id, level, name, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(t.ID), int(t.Level), t.Name, parent, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tier: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.TierID) (*Tier, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, level, name, parent_id, created_at
		FROM tiers WHERE id = $1`,
		uuid.UUID(id),
	)
	return scanTier(row)
}

func (s *PostgresStore) ListByLevel(ctx context.Context, level domain.TierLevel) ([]*Tier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, level, name, parent_id, created_at
		FROM tiers WHERE level = $1 ORDER BY name`,
		int(level),
	)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()

	var out []*Tier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTier(row rowScanner) (*Tier, error) {
	var (
		id        uuid.UUID
		level     int
		name      string
		parent    sql.Null[uuid.UUID]
		createdAt time.Time
	)
	if err := row.Scan(&id, &level, &name, &parent, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan tier: %w", err)
	}
	t := &Tier{
		ID:        domain.TierID(id),
		Level:     domain.TierLevel(level),
		Name:      name,
		CreatedAt: createdAt,
	}
	if parent.Valid {
		pid := domain.TierID(parent.V)
		t.ParentID = &pid
	}
	return t, nil
}
