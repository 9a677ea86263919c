package utilization

import (
	"context"
	"sync"
	"time"

	"nidhi/pkg/domain"
	"nidhi/pkg/sentinel"
)

// InMemoryStore keeps certificates in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu    sync.RWMutex
	certs map[domain.CertificateID]*Certificate
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{certs: make(map[domain.CertificateID]*Certificate)}
}

func (s *InMemoryStore) Create(_ context.Context, c *Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.certs[c.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *c
	s.certs[c.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.CertificateID) (*Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) Decide(_ context.Context, id domain.CertificateID, decision Decision, decidedBy string) (*Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.certs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if c.Status != StatusPending {
		return nil, sentinel.ErrInvalidState
	}
	now := time.Now()
	c.Status = decision
	c.DecidedBy = decidedBy
	c.DecidedAt = &now
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) CountUnverified(_ context.Context, recipient domain.TierID, component domain.Component) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.certs {
		if c.RecipientTierID == recipient && c.Component == component && c.Status != StatusVerified {
			n++
		}
	}
	return n, nil
}
