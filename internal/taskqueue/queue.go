// Package taskqueue runs a bounded number of actions concurrently and hands
// back results in completion order.
//
// Queue is the scheduler behind parallel page rebuilds: the build driver
// pushes every changed input, then pulls or drains. At most N actions are in
// flight; further inputs wait in an overflow buffer. By default the buffer is
// served last-in-first-out. WithFIFO restores submission order.
package taskqueue

import (
	"context"
	"errors"
	"iter"
	"sync"

	stasiserrors "github.com/conneroisu/stasis/internal/errors"
)

// ErrEmptyQueue is returned by Pull when nothing is in flight or buffered.
var ErrEmptyQueue = errors.New("taskqueue: nothing in flight or buffered")

// Action produces the result for one input.
type Action[In, Out any] func(ctx context.Context, in In) (Out, error)

// Task correlates a settled action with the slot it occupied.
type Task[Out any] struct {
	ID    uint64
	Value Out
	Err   error
}

// Option configures a Queue.
type Option func(*options)

type options struct {
	fifo bool
}

// WithFIFO serves the overflow buffer oldest first.
func WithFIFO() Option {
	return func(o *options) { o.fifo = true }
}

type pending[In any] struct {
	ctx context.Context
	in  In
}

// Queue is a bounded-concurrency scheduler. Push and Pull may be called from
// different goroutines, but results are meant for a single consumer: two
// concurrent Pulls racing for the last in-flight task leave one of them
// waiting until its context ends.
type Queue[In, Out any] struct {
	action Action[In, Out]
	limit  int
	fifo   bool

	mu       sync.Mutex
	nextID   uint64
	inFlight map[uint64]struct{}
	buffer   []pending[In]

	// done has capacity limit, so settling actions never block.
	done chan *Task[Out]
	pool sync.Pool
}

// New creates a queue running at most concurrency actions at once. A
// concurrency below 1 is treated as 1.
func New[In, Out any](action Action[In, Out], concurrency int, opts ...Option) *Queue[In, Out] {
	if concurrency < 1 {
		concurrency = 1
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	q := &Queue[In, Out]{
		action:   action,
		limit:    concurrency,
		fifo:     o.fifo,
		inFlight: make(map[uint64]struct{}, concurrency),
		done:     make(chan *Task[Out], concurrency),
	}
	q.pool.New = func() interface{} { return new(Task[Out]) }
	return q
}

// Push starts in immediately if a slot is free, otherwise buffers it. ctx is
// handed to the action when it eventually runs.
func (q *Queue[In, Out]) Push(ctx context.Context, in In) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.inFlight) < q.limit {
		q.start(ctx, in)
		return
	}
	q.buffer = append(q.buffer, pending[In]{ctx: ctx, in: in})
}

// start must be called with mu held.
func (q *Queue[In, Out]) start(ctx context.Context, in In) {
	q.nextID++
	id := q.nextID
	q.inFlight[id] = struct{}{}

	go func() {
		var (
			value Out
			err   error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = stasiserrors.Normalize(r)
				}
			}()
			value, err = q.action(ctx, in)
		}()

		t := q.pool.Get().(*Task[Out])
		t.ID, t.Value, t.Err = id, value, err
		q.done <- t
	}()
}

// next pops a buffered input according to the overflow order. mu must be held.
func (q *Queue[In, Out]) next() (pending[In], bool) {
	n := len(q.buffer)
	if n == 0 {
		return pending[In]{}, false
	}
	var p pending[In]
	if q.fifo {
		p = q.buffer[0]
		q.buffer[0] = pending[In]{}
		q.buffer = q.buffer[1:]
	} else {
		p = q.buffer[n-1]
		q.buffer[n-1] = pending[In]{}
		q.buffer = q.buffer[:n-1]
	}
	return p, true
}

// Pull waits for whichever in-flight action settles first and returns its
// result. The freed slot is immediately given to a buffered input.
func (q *Queue[In, Out]) Pull(ctx context.Context) (Out, error) {
	var zero Out

	q.mu.Lock()
	if len(q.inFlight) == 0 {
		p, ok := q.next()
		if !ok {
			q.mu.Unlock()
			return zero, ErrEmptyQueue
		}
		q.start(p.ctx, p.in)
	}
	q.mu.Unlock()

	var t *Task[Out]
	select {
	case t = <-q.done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	q.mu.Lock()
	delete(q.inFlight, t.ID)
	value, err := t.Value, t.Err
	// The id is retired above, so the wrapper can be reused.
	*t = Task[Out]{}
	q.pool.Put(t)
	if p, ok := q.next(); ok {
		q.start(p.ctx, p.in)
	}
	q.mu.Unlock()

	return value, err
}

// Drain pulls until the queue is empty, discarding values. It stops at the
// first action error and returns it; remaining work stays queued.
func (q *Queue[In, Out]) Drain(ctx context.Context) error {
	for {
		_, err := q.Pull(ctx)
		if errors.Is(err, ErrEmptyQueue) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// All yields one settled result per step until the queue is exhausted.
func (q *Queue[In, Out]) All(ctx context.Context) iter.Seq2[Out, error] {
	return func(yield func(Out, error) bool) {
		for {
			v, err := q.Pull(ctx)
			if errors.Is(err, ErrEmptyQueue) {
				return
			}
			if !yield(v, err) {
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// InFlight returns the number of running actions.
func (q *Queue[In, Out]) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// Buffered returns the number of inputs waiting for a slot.
func (q *Queue[In, Out]) Buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// Len returns the number of results still to be pulled.
func (q *Queue[In, Out]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight) + len(q.buffer)
}
