package utilization

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

// PostgresStore persists utilization certificates in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *Certificate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO utilization_certificates (id, recipient_tier_id, allocation_id, component, amount_rupees, period, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(c.ID), uuid.UUID(c.RecipientTierID), uuid.UUID(c.AllocationID),
		string(c.Component), c.AmountRupees, c.Period, string(c.Status), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.CertificateID) (*Certificate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, recipient_tier_id, allocation_id, component, amount_rupees, period, status, decided_by, decided_at, created_at
		FROM utilization_certificates WHERE id = $1`,
		uuid.UUID(id),
	)
	c, err := scanCertificate(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Decide(ctx context.Context, id domain.CertificateID, decision Decision, decidedBy string) (*Certificate, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE utilization_certificates
		SET status = $2, decided_by = $3, decided_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING id, recipient_tier_id, allocation_id, component, amount_rupees, period, status, decided_by, decided_at, created_at`,
		uuid.UUID(id), string(decision), decidedBy,
	)
	c, err := scanCertificate(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, findErr := s.FindByID(ctx, id); findErr != nil {
				return nil, findErr
			}
			return nil, sentinel.ErrInvalidState
		}
		return nil, fmt.Errorf("decide certificate: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) CountUnverified(ctx context.Context, recipient domain.TierID, component domain.Component) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM utilization_certificates
		WHERE recipient_tier_id = $1 AND component = $2 AND status <> 'VERIFIED'`,
		uuid.UUID(recipient), string(component),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unverified certificates: %w", err)
	}
	return n, nil
}

func scanCertificate(scan func(dest ...any) error) (*Certificate, error) {
	var (
		cid, recipient, allocation uuid.UUID
		component                  string
		amount                     int64
		period                     string
		status                     string
		decidedBy                  sql.NullString
		decidedAt                  sql.NullTime
		createdAt                  time.Time
	)
	if err := scan(&cid, &recipient, &allocation, &component, &amount, &period, &status, &decidedBy, &decidedAt, &createdAt); err != nil {
		return nil, err
	}
	c := &Certificate{
		ID:              domain.CertificateID(cid),
		RecipientTierID: domain.TierID(recipient),
		AllocationID:    domain.AllocationID(allocation),
		Component:       domain.Component(component),
		AmountRupees:    amount,
		Period:          period,
		Status:          Status(status),
		DecidedBy:       decidedBy.String,
		CreatedAt:       createdAt,
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		c.DecidedAt = &t
	}
	return c, nil
}
