package proposal

import (
	"context"
	"sort"
	"sync"
	"time"

	"nidhi/pkg/domain"
	"nidhi/pkg/sentinel"
)

// InMemoryStore keeps proposals in a map guarded by a RWMutex. UpdateStatus
// performs its compare-and-set under the write lock, which gives the same
// guard the Postgres conditional UPDATE provides.
type InMemoryStore struct {
	mu        sync.RWMutex
	proposals map[domain.ProposalID]*Proposal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{proposals: make(map[domain.ProposalID]*Proposal)}
}

func (s *InMemoryStore) Create(_ context.Context, p *Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.proposals[p.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *p
	s.proposals[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ProposalID) (*Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status Status) ([]*Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Proposal
	for _, p := range s.proposals {
		if p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) CountByStatus(_ context.Context, status Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.proposals {
		if p.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id domain.ProposalID, from, to Status, reason string) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if p.Status != from {
		return nil, sentinel.ErrConflict
	}
	p.Status = to
	p.DecisionReason = reason
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}
