package proposal

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

// PostgresStore persists proposals in PostgreSQL. The status guard rides on
// a conditional UPDATE: zero rows affected with an existing id means another
// reviewer moved the proposal first.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *Proposal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proposals (id, submitter_tier_id, component, estimated_cost_rupees, status, decision_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(p.ID), uuid.UUID(p.SubmitterTierID), string(p.Component),
		p.EstimatedCostRupees, string(p.Status), p.DecisionReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ProposalID) (*Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, submitter_tier_id, component, estimated_cost_rupees, status, decision_reason, created_at, updated_at
		FROM proposals WHERE id = $1`,
		uuid.UUID(id),
	)
	p, err := scanProposal(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find proposal: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]*Proposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submitter_tier_id, component, estimated_cost_rupees, status, decision_reason, created_at, updated_at
		FROM proposals WHERE status = $1 ORDER BY created_at`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []*Proposal
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM proposals WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count proposals: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id domain.ProposalID, from, to Status, reason string) (*Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE proposals
		SET status = $3, decision_reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING id, submitter_tier_id, component, estimated_cost_rupees, status, decision_reason, created_at, updated_at`,
		uuid.UUID(id), string(from), string(to), reason,
	)
	p, err := scanProposal(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the proposal is missing or the status guard failed;
			// disambiguate so the service can report IllegalTransition
			// against the current status.
			if _, findErr := s.FindByID(ctx, id); findErr != nil {
				return nil, findErr
			}
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("update proposal status: %w", err)
	}
	return p, nil
}

func scanProposal(scan func(dest ...any) error) (*Proposal, error) {
	var (
		pid, submitter uuid.UUID
		component      string
		cost           int64
		status         string
		reason         sql.NullString
		createdAt      time.Time
		updatedAt      time.Time
	)
	if err := scan(&pid, &submitter, &component, &cost, &status, &reason, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &Proposal{
		ID:                  domain.ProposalID(pid),
		SubmitterTierID:     domain.TierID(submitter),
		Component:           domain.Component(component),
		EstimatedCostRupees: cost,
		Status:              Status(status),
		DecisionReason:      reason.String,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
	}, nil
}
