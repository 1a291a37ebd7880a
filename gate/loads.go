package gate

import (
	"context"
	"sync"
)

// Loads keeps the gate of the latest page load of each form session. Every
// load gets its own Gate and so exactly one status check.
type Loads struct {
	// checks outlive the request that started them
	ctx     context.Context
	checker StatusChecker

	mu    sync.Mutex
	gates map[string]*Gate
}

// NewLoads runs checks under ctx, so they stop when the server does.
func NewLoads(ctx context.Context, checker StatusChecker) *Loads {
	return &Loads{
		ctx:     ctx,
		checker: checker,
		gates:   make(map[string]*Gate),
	}
}

// Start begins a new load for session, replacing the previous one, and runs
// its check in the background.
func (l *Loads) Start(session string) *Gate {
	g := New(l.checker)

	l.mu.Lock()
	l.gates[session] = g
	l.mu.Unlock()

	go g.Resolve(l.ctx)
	return g
}

// Current returns the gate of the latest load of session, or nil before the
// first load.
func (l *Loads) Current(session string) *Gate {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gates[session]
}

// State is the state of the latest load of session; Pending before the first.
func (l *Loads) State(session string) State {
	if g := l.Current(session); g != nil {
		return g.State()
	}
	return Pending
}
