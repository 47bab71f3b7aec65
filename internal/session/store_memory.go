package session

import (
	"context"
	"sync"

	id "kyc-service/pkg/domain"
	"kyc-service/pkg/platform/sentinel"
)

// In-memory stores back tests and single-process deployments. They favor
// clarity over performance and return copies so callers never alias the map
// contents.

type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]*Session)}
}

func (s *InMemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// Execute holds the store lock across validate and mutate so concurrent
// callers observe a serialized view of status transitions.
func (s *InMemoryStore) Execute(_ context.Context, sessionID id.SessionID, validate func(*Session) error, mutate func(*Session)) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(sess); err != nil {
			return nil, err
		}
	}
	mutate(sess)
	cp := *sess
	return &cp, nil
}

type InMemoryEvidenceStore struct {
	mu      sync.RWMutex
	records map[id.SessionID][]*Evidence
}

func NewInMemoryEvidenceStore() *InMemoryEvidenceStore {
	return &InMemoryEvidenceStore{records: make(map[id.SessionID][]*Evidence)}
}

func (s *InMemoryEvidenceStore) Append(_ context.Context, e *Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.records[e.SessionID] = append(s.records[e.SessionID], &cp)
	return nil
}

func (s *InMemoryEvidenceStore) ListBySession(_ context.Context, sessionID id.SessionID) ([]*Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Evidence, 0, len(s.records[sessionID]))
	for _, e := range s.records[sessionID] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryEvidenceStore) TypesBySession(_ context.Context, sessionID id.SessionID) (map[MediaType]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make(map[MediaType]bool)
	for _, e := range s.records[sessionID] {
		types[e.MediaType] = true
	}
	return types, nil
}

type InMemoryResultStore struct {
	mu      sync.RWMutex
	results map[id.SessionID]*Result
}

func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{results: make(map[id.SessionID]*Result)}
}

// Upsert keeps the original result ID on overwrite so the row identity is
// stable across repeated callbacks.
func (s *InMemoryResultStore) Upsert(_ context.Context, r *Result) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	if existing, ok := s.results[r.SessionID]; ok {
		cp.ID = existing.ID
	}
	s.results[r.SessionID] = &cp
	out := cp
	return &out, nil
}

func (s *InMemoryResultStore) FindBySession(_ context.Context, sessionID id.SessionID) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// InMemoryDispatchGuard is the single-process guard implementation.
type InMemoryDispatchGuard struct {
	mu         sync.Mutex
	dispatched map[id.SessionID]bool
}

func NewInMemoryDispatchGuard() *InMemoryDispatchGuard {
	return &InMemoryDispatchGuard{dispatched: make(map[id.SessionID]bool)}
}

func (g *InMemoryDispatchGuard) Acquire(_ context.Context, sessionID id.SessionID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dispatched[sessionID] {
		return false, nil
	}
	g.dispatched[sessionID] = true
	return true, nil
}

func (g *InMemoryDispatchGuard) Release(_ context.Context, sessionID id.SessionID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.dispatched, sessionID)
	return nil
}
