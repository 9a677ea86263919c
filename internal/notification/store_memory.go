package notification

import (
	"context"
	"sort"
	"sync"

	"nidhi/pkg/domain"
	"nidhi/pkg/sentinel"
)

// InMemoryStore keeps events in a slice guarded by a RWMutex.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.EventID]*Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.EventID]*Event)}
}

func (s *InMemoryStore) Append(_ context.Context, ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	s.events[ev.ID] = &cp
	return nil
}

func (s *InMemoryStore) List(_ context.Context, role domain.Role, scope string, onlyUnacknowledged bool) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Event
	for _, ev := range s.events {
		if ev.AudienceRole != role || ev.AudienceScope != scope {
			continue
		}
		if onlyUnacknowledged && ev.Acknowledged {
			continue
		}
		cp := *ev
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Acknowledge(_ context.Context, id domain.EventID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	ev.Acknowledged = true
	cp := *ev
	return &cp, nil
}

// InMemoryMarkerStore mirrors the Redis marker semantics for tests and
// standalone mode.
type InMemoryMarkerStore struct {
	mu      sync.Mutex
	markers map[string]struct{}
}

func NewInMemoryMarkerStore() *InMemoryMarkerStore {
	return &InMemoryMarkerStore{markers: make(map[string]struct{})}
}

func (s *InMemoryMarkerStore) SetIfAbsent(_ context.Context, sourceID, audienceKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sourceID + "|" + audienceKey
	if _, exists := s.markers[key]; exists {
		return false, nil
	}
	s.markers[key] = struct{}{}
	return true, nil
}
