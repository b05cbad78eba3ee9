// Package session owns the per-trace state shared across requests: the
// stream handle and the once-per-session cached call tree.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tracelens/tracelens/internal/calltree"
	"github.com/tracelens/tracelens/internal/tracesource"
)

// Session is one open trace. The call tree is the single most expensive
// artifact, so it is built at most once per session: readers that observe a
// populated cache proceed without locking, the first reader through the
// mutex rebuilds after re-checking. The cache is dropped only on teardown,
// never mutated in place.
type Session struct {
	ID       string
	Source   tracesource.Source
	OpenedAt time.Time

	tree    atomic.Pointer[calltree.Tree]
	buildMu sync.Mutex
}

func New(src tracesource.Source) *Session {
	return &Session{
		ID:       uuid.New().String(),
		Source:   src,
		OpenedAt: time.Now().UTC(),
	}
}

// CallTree returns the session's call tree, building it on first use.
func (s *Session) CallTree() (*calltree.Tree, error) {
	if t := s.tree.Load(); t != nil {
		return t, nil
	}
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	if t := s.tree.Load(); t != nil {
		return t, nil
	}
	t, err := calltree.Build(s.Source, nil)
	if err != nil {
		return nil, err
	}
	s.tree.Store(t)
	return t, nil
}

// Registry tracks open sessions. Sessions share nothing with each other.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes a session. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
