package webhook

import (
	"context"
	"sync"

	id "kyc-service/pkg/domain"
	"kyc-service/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	endpoints map[id.EndpointID]*Endpoint
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{endpoints: make(map[id.EndpointID]*Endpoint)}
}

func (s *InMemoryStore) Create(_ context.Context, e *Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.endpoints[e.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *e
	s.endpoints[e.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, endpointID id.EndpointID) (*Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.endpoints[endpointID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *InMemoryStore) ListActiveByOrg(_ context.Context, orgID id.OrgID) ([]*Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Endpoint
	for _, e := range s.endpoints {
		if e.OrgID == orgID && e.Active {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Deactivate(_ context.Context, endpointID id.EndpointID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[endpointID]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.Active = false
	return nil
}
