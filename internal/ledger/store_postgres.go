package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"nidhi/pkg/domain"
	"nidhi/pkg/sentinel"
)

// PostgresStore persists allocations and releases in PostgreSQL. The atomic
// check-and-write contract of InTx is met by locking the allocation row
// (SELECT ... FOR UPDATE) so the balance aggregation and the release insert
// happen in one serialized critical section per allocation.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier abstracts *sql.DB and *sql.Tx so the same queries serve both.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) CreateAllocation(ctx context.Context, a *Allocation) error {
	return createAllocation(ctx, s.db, a)
}

func (s *PostgresStore) FindAllocation(ctx context.Context, id domain.AllocationID) (*Allocation, error) {
	return findAllocation(ctx, s.db, id, false)
}

func (s *PostgresStore) ReleasedTotal(ctx context.Context, id domain.AllocationID) (int64, error) {
	return releasedTotal(ctx, s.db, id)
}

func (s *PostgresStore) ListReleases(ctx context.Context, id domain.AllocationID) ([]*Release, error) {
	return listReleases(ctx, s.db, id)
}

func (s *PostgresStore) AppendRelease(ctx context.Context, r *Release) error {
	return appendRelease(ctx, s.db, r)
}

// InTx opens a transaction, locks the allocation row, and runs fn against a
// tx-scoped view. Lock conflicts and serialization aborts surface as
// sentinel.ErrSerialization so the engine can retry with a fresh read.
func (s *PostgresStore) InTx(ctx context.Context, id domain.AllocationID, fn func(view Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the allocation row for the duration of the section. Concurrent
	// releases against the same allocation queue here.
	var locked uuid.UUID
	err = tx.QueryRowContext(ctx, `SELECT id FROM allocations WHERE id = $1 FOR UPDATE`, uuid.UUID(id)).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return mapPgError(err, "lock allocation")
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapPgError(err, "commit release tx")
	}
	return nil
}

// txStore is the view handed to InTx callbacks: same queries, bound to the
// open transaction. Nested InTx reuses the already-held section.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) CreateAllocation(ctx context.Context, a *Allocation) error {
	return createAllocation(ctx, t.tx, a)
}

func (t *txStore) FindAllocation(ctx context.Context, id domain.AllocationID) (*Allocation, error) {
	return findAllocation(ctx, t.tx, id, true)
}

func (t *txStore) ReleasedTotal(ctx context.Context, id domain.AllocationID) (int64, error) {
	return releasedTotal(ctx, t.tx, id)
}

func (t *txStore) ListReleases(ctx context.Context, id domain.AllocationID) ([]*Release, error) {
	return listReleases(ctx, t.tx, id)
}

func (t *txStore) AppendRelease(ctx context.Context, r *Release) error {
	return appendRelease(ctx, t.tx, r)
}

func (t *txStore) InTx(ctx context.Context, _ domain.AllocationID, fn func(view Store) error) error {
	return fn(t)
}

func createAllocation(ctx context.Context, q querier, a *Allocation) error {
	var proposal any
	if a.ProposalID != nil {
		proposal = uuid.UUID(*a.ProposalID)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO allocations (id, granter_tier_id, recipient_tier_id, component, proposal_id, amount_rupees, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(a.ID), uuid.UUID(a.GranterTierID), uuid.UUID(a.RecipientTierID),
		string(a.Component), proposal, a.AmountRupees, a.CreatedAt,
	)
	if err != nil {
		return mapPgError(err, "insert allocation")
	}
	return nil
}

func findAllocation(ctx context.Context, q querier, id domain.AllocationID, forUpdate bool) (*Allocation, error) {
	query := `
		SELECT id, granter_tier_id, recipient_tier_id, component, proposal_id, amount_rupees, created_at
		FROM allocations WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var (
		aid, granter, recipient uuid.UUID
		component               string
		proposal                sql.Null[uuid.UUID]
		amount                  int64
		createdAt               time.Time
	)
	err := q.QueryRowContext(ctx, query, uuid.UUID(id)).
		Scan(&aid, &granter, &recipient, &component, &proposal, &amount, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, mapPgError(err, "find allocation")
	}
	a := &Allocation{
		ID:              domain.AllocationID(aid),
		GranterTierID:   domain.TierID(granter),
		RecipientTierID: domain.TierID(recipient),
		Component:       domain.Component(component),
		AmountRupees:    amount,
		CreatedAt:       createdAt,
	}
	if proposal.Valid {
		pid := domain.ProposalID(proposal.V)
		a.ProposalID = &pid
	}
	return a, nil
}

func releasedTotal(ctx context.Context, q querier, id domain.AllocationID) (int64, error) {
	// The required access pattern: a single indexed aggregation over
	// releases by allocation id. COALESCE covers the no-releases case.
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM allocations WHERE id = $1)`, uuid.UUID(id)).Scan(&exists); err != nil {
		return 0, mapPgError(err, "check allocation")
	}
	if !exists {
		return 0, sentinel.ErrNotFound
	}
	var total int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_rupees), 0) FROM releases WHERE allocation_id = $1`,
		uuid.UUID(id),
	).Scan(&total)
	if err != nil {
		return 0, mapPgError(err, "sum releases")
	}
	return total, nil
}

func listReleases(ctx context.Context, q querier, id domain.AllocationID) ([]*Release, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, allocation_id, kind, amount_rupees, release_date, released_by, remarks, created_at
		FROM releases WHERE allocation_id = $1 ORDER BY created_at`,
		uuid.UUID(id),
	)
	if err != nil {
		return nil, mapPgError(err, "list releases")
	}
	defer rows.Close()

	var out []*Release
	for rows.Next() {
		var (
			rid, aid    uuid.UUID
			kind        string
			amount      int64
			releaseDate time.Time
			releasedBy  string
			remarks     string
			createdAt   time.Time
		)
		if err := rows.Scan(&rid, &aid, &kind, &amount, &releaseDate, &releasedBy, &remarks, &createdAt); err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		out = append(out, &Release{
			ID:           domain.ReleaseID(rid),
			AllocationID: domain.AllocationID(aid),
			Kind:         ReleaseKind(kind),
			AmountRupees: amount,
			ReleaseDate:  releaseDate,
			ReleasedBy:   releasedBy,
			Remarks:      remarks,
			CreatedAt:    createdAt,
		})
	}
	return out, rows.Err()
}

func appendRelease(ctx context.Context, q querier, r *Release) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO releases (id, allocation_id, kind, amount_rupees, release_date, released_by, remarks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(r.ID), uuid.UUID(r.AllocationID), string(r.Kind), r.AmountRupees,
		r.ReleaseDate, r.ReleasedBy, r.Remarks, r.CreatedAt,
	)
	if err != nil {
		return mapPgError(err, "insert release")
	}
	return nil
}

// Postgres error classes that mean "retry with a fresh read".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

func mapPgError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%s: %w", op, sentinel.ErrSerialization)
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
