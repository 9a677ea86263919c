package ledger

import (
	"context"
	"sync"

	"nidhi/pkg/domain"
	"nidhi/pkg/sentinel"
)

// numShards spreads allocation-scoped critical sections across independent
// mutexes so unrelated allocations do not contend.
const numShards = 128

// InMemoryStore is the test and standalone-mode implementation. The sharded
// mutexes give InTx the same isolation the Postgres row lock provides:
// writers on the same allocation serialize, writers on different allocations
// usually do not.
type InMemoryStore struct {
	mu          sync.RWMutex
	allocations map[domain.AllocationID]*Allocation
	releases    map[domain.AllocationID][]*Release

	shards [numShards]sync.Mutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		allocations: make(map[domain.AllocationID]*Allocation),
		releases:    make(map[domain.AllocationID][]*Release),
	}
}

func (s *InMemoryStore) CreateAllocation(_ context.Context, a *Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.allocations[a.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *a
	s.allocations[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindAllocation(_ context.Context, id domain.AllocationID) (*Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.allocations[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) ReleasedTotal(_ context.Context, id domain.AllocationID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.allocations[id]; !ok {
		return 0, sentinel.ErrNotFound
	}
	var total int64
	for _, r := range s.releases[id] {
		total += r.AmountRupees
	}
	return total, nil
}

func (s *InMemoryStore) ListReleases(_ context.Context, id domain.AllocationID) ([]*Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Release, 0, len(s.releases[id]))
	for _, r := range s.releases[id] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) AppendRelease(_ context.Context, r *Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allocations[r.AllocationID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *r
	s.releases[r.AllocationID] = append(s.releases[r.AllocationID], &cp)
	return nil
}

// InTx serializes all sections for the same allocation behind one shard
// mutex. fn sees the store itself; reads inside fn are consistent because no
// other writer for this allocation can run concurrently.
func (s *InMemoryStore) InTx(ctx context.Context, id domain.AllocationID, fn func(view Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	shard := &s.shards[hashID(id)%numShards]
	shard.Lock()
	defer shard.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

// hashID uses FNV-1a over the canonical UUID string.
func hashID(id domain.AllocationID) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	s := id.String()
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
