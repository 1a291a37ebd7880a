// Package gate decides, once per page load, whether the form or a login
// prompt is shown.
package gate

import (
	"context"
	"sync"

	"github.com/mbolis/pozo-survey/log"
	"go.uber.org/atomic"
)

type State int32

const (
	Pending State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusChecker returns nil when the backend session is valid.
type StatusChecker interface {
	AuthStatus(ctx context.Context) error
}

type Gate struct {
	checker StatusChecker
	state   *atomic.Int32
	once    sync.Once
	done    chan struct{}
}

func New(checker StatusChecker) *Gate {
	return &Gate{
		checker: checker,
		state:   atomic.NewInt32(int32(Pending)),
		done:    make(chan struct{}),
	}
}

// Resolve runs the status check the first time it is called; later calls
// return the state decided then. A failure to reach the backend and a
// rejected session both end in Unauthenticated.
func (g *Gate) Resolve(ctx context.Context) State {
	g.once.Do(func() {
		next := Authenticated
		if err := g.checker.AuthStatus(ctx); err != nil {
			log.Debugf("gate.resolve: %s", err)
			next = Unauthenticated
		}
		g.state.CAS(int32(Pending), int32(next))
		close(g.done)
		log.Infof("gate.resolve: %s", next)
	})
	return g.State()
}

func (g *Gate) State() State {
	return State(g.state.Load())
}

// Wait blocks until the gate is resolved or ctx is done.
func (g *Gate) Wait(ctx context.Context) State {
	select {
	case <-g.done:
	case <-ctx.Done():
	}
	return g.State()
}
