package form

import "sync"

// Sessions keeps one Controller per form session.
type Sessions struct {
	mu          sync.Mutex
	mode        CatalogMode
	controllers map[string]*Controller
}

func NewSessions(mode CatalogMode) *Sessions {
	return &Sessions{
		mode:        mode,
		controllers: make(map[string]*Controller),
	}
}

// Get returns the controller of the session, creating an empty survey on first use.
func (s *Sessions) Get(id string) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.controllers[id]
	if !ok {
		c = NewController(s.mode)
		s.controllers[id] = c
	}
	return c
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.controllers)
}
