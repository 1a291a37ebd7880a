package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mbolis/pozo-survey/backend"
	"github.com/mbolis/pozo-survey/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stubSender struct {
	mu     sync.Mutex
	sent   []string
	gate   chan struct{} // when set, each send waits for a token
	status int
	err    error
}

func (s *stubSender) Ingest(ctx context.Context, e model.Encuesta, fotos []model.Attachment) (int, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, e.PozoNumero)
	if s.status == 0 {
		return 200, s.err
	}
	return s.status, s.err
}

func (s *stubSender) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type memRecorder struct {
	mu       sync.Mutex
	queued   map[string]model.Submission
	sending  map[string]bool
	finished map[string]model.Submission

	hold    chan struct{} // when set, Queued of survey "slow" waits for it
	holding chan struct{}
}

func newMemRecorder() *memRecorder {
	return &memRecorder{
		queued:   map[string]model.Submission{},
		sending:  map[string]bool{},
		finished: map[string]model.Submission{},
	}
}

func (r *memRecorder) Queued(ctx context.Context, s model.Submission) error {
	if r.hold != nil && s.PozoNumero == "slow" {
		close(r.holding)
		<-r.hold
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued[s.ID] = s
	return nil
}

func (r *memRecorder) Sending(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queued[id]; !ok {
		return errors.New("sending before queued: " + id)
	}
	r.sending[id] = true
	return nil
}

func (r *memRecorder) Finished(ctx context.Context, s model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queued[s.ID]; !ok {
		return errors.New("finished before queued: " + s.ID)
	}
	r.finished[s.ID] = s
	return nil
}

func start(t *testing.T, p *Pipeline) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func survey(n string) model.Encuesta {
	return model.Encuesta{PozoNumero: n}
}

func wait(t *testing.T, tk *Ticket) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := tk.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestSubmissionsAreSentInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &stubSender{}
	rec := newMemRecorder()
	p := New(sender, rec, Queue)
	stop := start(t, p)
	defer stop()

	var tickets []*Ticket
	for i := 0; i < 5; i++ {
		tk, err := p.Submit(context.Background(), "s", survey(fmt.Sprintf("P-%d", i)), nil)
		require.NoError(t, err)
		tickets = append(tickets, tk)
	}
	for _, tk := range tickets {
		res := wait(t, tk)
		assert.Equal(t, model.StatusSent, res.Status)
		assert.Equal(t, 200, res.HTTPStatus)
		assert.NoError(t, res.Err)
	}

	assert.Equal(t, []string{"P-0", "P-1", "P-2", "P-3", "P-4"}, sender.Sent())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.queued, 5)
	assert.Len(t, rec.sending, 5)
	assert.Len(t, rec.finished, 5)
	assert.Contains(t, rec.queued[tickets[0].ID].Data, `"pozo_numero":"P-0"`)
}

func TestUnauthorizedIsDistinct(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &stubSender{status: 401, err: &backend.StatusError{StatusCode: 401}}
	p := New(sender, nil, Queue)
	stop := start(t, p)
	defer stop()

	tk, err := p.Submit(context.Background(), "s", survey("P-1"), nil)
	require.NoError(t, err)

	res := wait(t, tk)
	assert.Equal(t, model.StatusUnauthorized, res.Status)
	assert.ErrorIs(t, res.Err, backend.ErrUnauthorized)
}

func TestTransportFailureIsReportedNotRetried(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &stubSender{err: errors.New("connection refused")}
	p := New(sender, nil, Queue)
	stop := start(t, p)
	defer stop()

	tk, err := p.Submit(context.Background(), "s", survey("P-1"), nil)
	require.NoError(t, err)

	res := wait(t, tk)
	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, "connection refused", res.Error)
	assert.Len(t, sender.Sent(), 1)
}

func TestEncodeFailureFailsOnlyThatAttempt(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &stubSender{err: fmt.Errorf("%w: unsupported value", backend.ErrEncode)}
	p := New(sender, nil, Queue)
	stop := start(t, p)
	defer stop()

	tk, err := p.Submit(context.Background(), "s", survey("P-1"), nil)
	require.NoError(t, err)
	res := wait(t, tk)
	assert.Equal(t, model.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, backend.ErrEncode)

	// the worker goes on with the next submission
	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()

	tk, err = p.Submit(context.Background(), "s", survey("P-2"), nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, wait(t, tk).Status)
	assert.Equal(t, []string{"P-1", "P-2"}, sender.Sent())
}

func TestSlowJournalDoesNotBlockSubmit(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &stubSender{}
	rec := newMemRecorder()
	rec.hold = make(chan struct{})
	rec.holding = make(chan struct{})
	p := New(sender, rec, Queue)
	stop := start(t, p)
	defer stop()

	slow := make(chan *Ticket, 1)
	go func() {
		tk, err := p.Submit(context.Background(), "a", survey("slow"), nil)
		assert.NoError(t, err)
		slow <- tk
	}()
	<-rec.holding

	submitted := make(chan *Ticket, 1)
	go func() {
		tk, err := p.Submit(context.Background(), "b", survey("P-2"), nil)
		assert.NoError(t, err)
		submitted <- tk
	}()

	var fast *Ticket
	select {
	case fast = <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked behind a journal write")
	}

	close(rec.hold)
	first := <-slow
	assert.Equal(t, model.StatusSent, wait(t, first).Status)
	assert.Equal(t, model.StatusSent, wait(t, fast).Status)
	assert.Equal(t, []string{"slow", "P-2"}, sender.Sent())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.sending[first.ID])
	assert.Equal(t, model.StatusSent, rec.finished[first.ID].Status)
}

func TestNon2xxIsDelivered(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(&stubSender{status: 500}, nil, Queue)
	stop := start(t, p)
	defer stop()

	tk, err := p.Submit(context.Background(), "s", survey("P-1"), nil)
	require.NoError(t, err)

	res := wait(t, tk)
	assert.Equal(t, model.StatusSent, res.Status)
	assert.Equal(t, 500, res.HTTPStatus)
}

func TestRejectPolicy(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &stubSender{gate: make(chan struct{})}
	p := New(sender, nil, Reject)
	stop := start(t, p)
	defer stop()

	first, err := p.Submit(context.Background(), "s", survey("P-1"), nil)
	require.NoError(t, err)

	_, err = p.Submit(context.Background(), "s", survey("P-2"), nil)
	assert.ErrorIs(t, err, ErrBusy)

	other, err := p.Submit(context.Background(), "other", survey("P-3"), nil)
	require.NoError(t, err)

	sender.gate <- struct{}{}
	wait(t, first)
	sender.gate <- struct{}{}
	wait(t, other)

	again, err := p.Submit(context.Background(), "s", survey("P-4"), nil)
	require.NoError(t, err)
	sender.gate <- struct{}{}
	wait(t, again)

	assert.Equal(t, []string{"P-1", "P-3", "P-4"}, sender.Sent())
}

func TestCoalescePolicy(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &stubSender{gate: make(chan struct{})}
	p := New(sender, nil, Coalesce)
	stop := start(t, p)
	defer stop()

	// P-1 is picked up by the worker and blocks in the sender
	first, err := p.Submit(context.Background(), "s", survey("P-1"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Len() == 0 }, time.Second, time.Millisecond)

	second, err := p.Submit(context.Background(), "s", survey("P-2"), nil)
	require.NoError(t, err)
	third, err := p.Submit(context.Background(), "s", survey("P-3"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, second.ID, third.ID)
	assert.Equal(t, 1, p.Len())

	sender.gate <- struct{}{}
	sender.gate <- struct{}{}
	wait(t, first)
	res := wait(t, third)
	assert.Equal(t, "P-3", res.PozoNumero)

	assert.Equal(t, []string{"P-1", "P-3"}, sender.Sent())
}

func TestShutdownCancelsQueued(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &stubSender{gate: make(chan struct{})}
	rec := newMemRecorder()
	p := New(sender, rec, Queue)
	stop := start(t, p)

	inflight, err := p.Submit(context.Background(), "s", survey("P-1"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Len() == 0 }, time.Second, time.Millisecond)
	queued, err := p.Submit(context.Background(), "s", survey("P-2"), nil)
	require.NoError(t, err)

	stop()

	assert.Equal(t, model.StatusFailed, wait(t, inflight).Status)
	res := wait(t, queued)
	assert.Equal(t, model.StatusCancelled, res.Status)
	assert.ErrorIs(t, res.Err, ErrClosed)

	_, err = p.Submit(context.Background(), "s", survey("P-3"), nil)
	assert.ErrorIs(t, err, ErrClosed)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, model.StatusCancelled, rec.finished[queued.ID].Status)
}

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"queue", "reject", "coalesce"} {
		p, err := ParsePolicy(s)
		require.NoError(t, err)
		assert.Equal(t, Policy(s), p)
	}
	_, err := ParsePolicy("drop")
	assert.Error(t, err)
}
