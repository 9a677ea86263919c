package tier

import (
	"context"
	"sort"
	"sync"

	"nidhi/pkg/domain"
	"nidhi/pkg/sentinel"
)

// InMemoryStore keeps tiers in a map guarded by a RWMutex. The hierarchy is
// small (one ministry, tens of states, hundreds of districts) so a flat map
// is enough.
type InMemoryStore struct {
	mu    sync.RWMutex
	tiers map[domain.TierID]*Tier
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tiers: make(map[domain.TierID]*Tier)}
}

func (s *InMemoryStore) Create(_ context.Context, t *Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tiers[t.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *t
	s.tiers[t.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.TierID) (*Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) ListByLevel(_ context.Context, level domain.TierLevel) ([]*Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Tier
	for _, t := range s.tiers {
		if t.Level == level {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
