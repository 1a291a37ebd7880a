// Package submit forwards finished surveys to the backend, one at a time and
// in the order they were submitted.
package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
	"github.com/mbolis/pozo-survey/backend"
	"github.com/mbolis/pozo-survey/log"
	"github.com/mbolis/pozo-survey/model"
)

var (
	ErrBusy   = errors.New("a submission for this session is still pending")
	ErrClosed = errors.New("submission pipeline stopped")
)

// Policy decides what happens when a session submits again while an earlier
// submission of the same session has not completed.
type Policy string

const (
	// Queue sends every submission, in order.
	Queue Policy = "queue"
	// Reject refuses a new submission while another one is queued or sending.
	Reject Policy = "reject"
	// Coalesce replaces a submission that is still queued with the newer one.
	Coalesce Policy = "coalesce"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case Queue, Reject, Coalesce:
		return p, nil
	}
	return "", fmt.Errorf("unknown submit policy %q", s)
}

type Sender interface {
	Ingest(ctx context.Context, e model.Encuesta, fotos []model.Attachment) (int, error)
}

// Recorder keeps track of submissions; the journal implements it.
type Recorder interface {
	Queued(ctx context.Context, s model.Submission) error
	Sending(ctx context.Context, id string) error
	Finished(ctx context.Context, s model.Submission) error
}

type Result struct {
	model.Submission
	Err error `json:"-"`
}

// Ticket follows one queued submission until it completes.
type Ticket struct {
	ID     string
	done   chan struct{}
	result Result
}

func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Result is only meaningful once Done is closed.
func (t *Ticket) Result() Result {
	<-t.done
	return t.result
}

func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

type job struct {
	ticket   *Ticket
	session  string
	encuesta model.Encuesta
	fotos    []model.Attachment
	queuedAt time.Time
	recorded chan struct{} // closed once the queued entry is journaled
}

type Pipeline struct {
	sender   Sender
	recorder Recorder
	policy   Policy
	now      func() time.Time

	mu       sync.Mutex
	queue    []*job
	inflight *job
	closed   bool
	wake     chan struct{}
}

// New creates a pipeline; recorder may be nil.
func New(sender Sender, recorder Recorder, policy Policy) *Pipeline {
	if policy == "" {
		policy = Queue
	}
	return &Pipeline{
		sender:   sender,
		recorder: recorder,
		policy:   policy,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
}

// Submit queues a snapshot of a survey. The queue has no bound.
func (p *Pipeline) Submit(ctx context.Context, session string, e model.Encuesta, fotos []model.Attachment) (*Ticket, error) {
	logSurvey(session, e)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	switch p.policy {
	case Reject:
		if p.pending(session) {
			p.mu.Unlock()
			return nil, ErrBusy
		}
	case Coalesce:
		for _, j := range p.queue {
			if j.session == session {
				j.encuesta, j.fotos, j.queuedAt = e, fotos, p.now()
				entry := p.entry(j)
				p.mu.Unlock()

				p.record(ctx, entry)
				log.Debugf("submit.coalesce: %s replaced for session %s", j.ticket.ID, session)
				return j.ticket, nil
			}
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("submit: ticket id: %w", err)
	}
	j := &job{
		ticket:   &Ticket{ID: id.String(), done: make(chan struct{})},
		session:  session,
		encuesta: e,
		fotos:    fotos,
		queuedAt: p.now(),
		recorded: make(chan struct{}),
	}
	entry := p.entry(j)
	p.queue = append(p.queue, j)
	p.mu.Unlock()

	// the worker may pick j up already, but waits for this entry before journaling more
	p.record(ctx, entry)
	close(j.recorded)

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return j.ticket, nil
}

// Len is the number of queued submissions, the one being sent excluded.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Run sends queued submissions one after the other until ctx is done.
// Submissions still queued then are cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		j := p.next(ctx)
		if j == nil {
			p.shutdown()
			return
		}
		p.send(ctx, j)
	}
}

func (p *Pipeline) next(ctx context.Context) *job {
	for {
		if ctx.Err() != nil {
			return nil
		}

		p.mu.Lock()
		if len(p.queue) > 0 {
			j := p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
			p.inflight = j
			p.mu.Unlock()
			return j
		}
		p.mu.Unlock()

		select {
		case <-p.wake:
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Pipeline) send(ctx context.Context, j *job) {
	logger := log.WithFields(log.Fields{"id": j.ticket.ID, "session": j.session})
	logger.Info("submit.send: sending survey")

	<-j.recorded
	if p.recorder != nil {
		if err := p.recorder.Sending(ctx, j.ticket.ID); err != nil {
			logger.Warn("submit.journal.sending: ", err)
		}
	}

	res := p.result(j)
	status, err := p.sender.Ingest(ctx, j.encuesta, j.fotos)
	res.HTTPStatus = status
	res.Err = err

	switch {
	case err == nil:
		res.Status = model.StatusSent
		if status < 200 || status >= 300 {
			logger.Warnf("submit.send: backend answered %d", status)
		} else {
			logger.Info("submit.send: survey delivered")
		}
	case errors.Is(err, backend.ErrUnauthorized):
		res.Status = model.StatusUnauthorized
		res.Error = err.Error()
		logger.Warn("submit.send: backend session expired, login required: ", err)
	default:
		res.Status = model.StatusFailed
		res.Error = err.Error()
		logger.Error("submit.send: ", err)
	}

	p.finish(j, res)
}

func (p *Pipeline) finish(j *job, res Result) {
	<-j.recorded
	finishedAt := p.now()
	res.FinishedAt = &finishedAt

	if p.recorder != nil {
		// the run context may already be cancelled; the outcome is still written
		if err := p.recorder.Finished(context.Background(), res.Submission); err != nil {
			log.Warn("submit.journal.finished: ", err)
		}
	}

	p.mu.Lock()
	if p.inflight == j {
		p.inflight = nil
	}
	p.mu.Unlock()

	j.ticket.result = res
	close(j.ticket.done)
}

func (p *Pipeline) shutdown() {
	p.mu.Lock()
	p.closed = true
	queue := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, j := range queue {
		res := p.result(j)
		res.Status = model.StatusCancelled
		res.Err = ErrClosed
		res.Error = ErrClosed.Error()
		p.finish(j, res)
	}
	if len(queue) > 0 {
		log.Warnf("submit.shutdown: %d queued submissions cancelled", len(queue))
	}
}

// pending reports whether session has a submission queued or being sent.
// Must be called with p.mu held.
func (p *Pipeline) pending(session string) bool {
	if p.inflight != nil && p.inflight.session == session {
		return true
	}
	for _, j := range p.queue {
		if j.session == session {
			return true
		}
	}
	return false
}

func (p *Pipeline) result(j *job) Result {
	return Result{Submission: model.Submission{
		ID:         j.ticket.ID,
		Session:    j.session,
		PozoNumero: j.encuesta.PozoNumero,
		Conexiones: len(j.encuesta.ListaConexiones),
		Fotos:      len(j.fotos),
		Status:     model.StatusQueued,
		QueuedAt:   j.queuedAt,
	}}
}

// entry is the journal row of a queued job. Must be called with p.mu held.
func (p *Pipeline) entry(j *job) model.Submission {
	s := p.result(j).Submission
	if data, err := json.Marshal(j.encuesta); err == nil {
		s.Data = string(data)
	}
	return s
}

func (p *Pipeline) record(ctx context.Context, s model.Submission) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Queued(ctx, s); err != nil {
		log.Warn("submit.journal.queued: ", err)
	}
}

func logSurvey(session string, e model.Encuesta) {
	logger := log.WithFields(log.Fields{"session": session, "pozo_numero": e.PozoNumero})
	logger.Infof("submit: survey with %d connections", len(e.ListaConexiones))
	for i, c := range e.ListaConexiones {
		logger.Debugf("submit: connection %d: %+v", i, c)
	}
}
