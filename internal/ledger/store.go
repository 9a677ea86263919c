package ledger

import (
	"context"

	"nidhi/pkg/domain"
)

// Store persists allocations and releases. Implementations must satisfy one
// contract above all others: InTx runs fn inside a critical section scoped to
// the allocation, so a balance read followed by an AppendRelease in the same
// fn can never interleave with another writer on the same allocation. The
// Postgres store uses a row-locked transaction; the in-memory store uses
// per-allocation sharded mutexes.
//
// InTx returns sentinel.ErrSerialization when the section was aborted by a
// concurrent writer and may be retried with a fresh balance read.
type Store interface {
	CreateAllocation(ctx context.Context, a *Allocation) error
	FindAllocation(ctx context.Context, id domain.AllocationID) (*Allocation, error)
	// ReleasedTotal is the canonical aggregation backing Available():
	// one indexed SUM over releases by allocation id.
	ReleasedTotal(ctx context.Context, id domain.AllocationID) (int64, error)
	ListReleases(ctx context.Context, id domain.AllocationID) ([]*Release, error)
	AppendRelease(ctx context.Context, r *Release) error
	InTx(ctx context.Context, id domain.AllocationID, fn func(view Store) error) error
}
