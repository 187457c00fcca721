package net

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"

	"github.com/eapache/queue"

	"github.com/lcx/gatesvr/log"
	"github.com/lcx/gatesvr/metrics"
)

var (
	ErrLoopClosed     = errors.New("event loop closed")
	ErrLoopOverloaded = errors.New("event loop task queue is full")
)

// Task runs on an event loop. ctx identifies the loop it runs on.
type Task func(ctx context.Context)

type loopKey struct{}

// LoopFromContext returns the loop executing the task that received ctx.
func LoopFromContext(ctx context.Context) (*EventLoop, bool) {
	if ctx == nil {
		return nil, false
	}
	l, ok := ctx.Value(loopKey{}).(*EventLoop)
	return l, ok
}

// EventLoop runs posted tasks one at a time on a single goroutine, in post
// order. State owned by a loop is only touched from its tasks.
type EventLoop struct {
	id    int
	label string
	cpu   int
	limit int
	ctx   context.Context

	mu      sync.Mutex
	pending *queue.Queue
	closed  bool
	exited  bool
	started bool

	wake chan struct{}
	done chan struct{}
}

// NewEventLoop creates a stopped loop. limit bounds the pending tasks; 0
// means unbounded. cpu >= 0 pins the loop goroutine to that CPU.
func NewEventLoop(id, limit, cpu int) *EventLoop {
	l := &EventLoop{
		id:      id,
		label:   strconv.Itoa(id),
		cpu:     cpu,
		limit:   limit,
		pending: queue.New(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	l.ctx = context.WithValue(context.Background(), loopKey{}, l)
	return l
}

func (l *EventLoop) ID() int {
	return l.id
}

// Context is the context tasks of this loop receive.
func (l *EventLoop) Context() context.Context {
	return l.ctx
}

// IsInLoop reports whether ctx belongs to a task running on l.
func (l *EventLoop) IsInLoop(ctx context.Context) bool {
	cur, ok := LoopFromContext(ctx)
	return ok && cur == l
}

// Start launches the loop goroutine. It is a no-op on a started or stopped
// loop.
func (l *EventLoop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.closed {
		return
	}
	l.started = true
	go l.run()
}

// Post queues task behind every task already queued.
func (l *EventLoop) Post(task Task) error {
	return l.post(task, false)
}

// PostUrgent ignores the queue bound and is still accepted while a stopping
// loop drains. It is used for events that must not be lost, such as
// connection close. ErrLoopClosed from it means the loop goroutine has run
// its last task.
func (l *EventLoop) PostUrgent(task Task) error {
	return l.post(task, true)
}

func (l *EventLoop) post(task Task, urgent bool) error {
	l.mu.Lock()
	if l.exited || (l.closed && !urgent) {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	if !urgent && l.limit > 0 && l.pending.Length() >= l.limit {
		l.mu.Unlock()
		metrics.IncrCounterWithDimGroup("net.loop", "task_dropped_total", 1, metrics.Dimension{"loop": l.label})
		return ErrLoopOverloaded
	}
	l.pending.Add(task)
	n := l.pending.Length()
	l.mu.Unlock()

	metrics.UpdateGaugeWithDimGroup("net.loop", "queue_length", metrics.Value(n), metrics.Dimension{"loop": l.label})

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// RunInLoop runs task inline when ctx already belongs to l, and posts it
// otherwise.
func (l *EventLoop) RunInLoop(ctx context.Context, task Task) error {
	if l.IsInLoop(ctx) {
		task(ctx)
		return nil
	}
	return l.Post(task)
}

// Len is the number of tasks waiting to run.
func (l *EventLoop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending.Length()
}

// Stop rejects new Post tasks, runs the queued ones and any PostUrgent
// arriving meanwhile, and waits for the loop goroutine to exit. It must not be called from a task of l.
func (l *EventLoop) Stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		if l.started {
			<-l.done
		}
		return
	}
	l.closed = true
	started := l.started
	if !started {
		l.exited = true
	}
	l.mu.Unlock()

	if !started {
		close(l.done)
		return
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

func (l *EventLoop) run() {
	defer close(l.done)

	if l.cpu >= 0 {
		if err := pinToCPU(l.cpu); err != nil {
			log.Warn().Int("loop", l.id).Int("cpu", l.cpu).Err(err).Msg("pin event loop failed")
		}
	}

	log.Info().Int("loop", l.id).Msg("event loop start")
	defer log.Info().Int("loop", l.id).Msg("event loop exit")

	var closed bool
	batch := make([]Task, 0, 64)
	for range l.wake {
		for {
			batch, closed = l.take(batch[:0])
			for i, task := range batch {
				l.runTask(task)
				batch[i] = nil
			}
			if len(batch) > 0 {
				continue
			}
			if closed {
				return
			}
			break
		}
	}
}

func (l *EventLoop) take(batch []Task) ([]Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.pending.Length() > 0 {
		batch = append(batch, l.pending.Remove().(Task))
	}
	if len(batch) == 0 && l.closed {
		l.exited = true
	}
	return batch, l.closed
}

func (l *EventLoop) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncrCounterWithDimGroup("net.loop", "task_panic_total", 1, metrics.Dimension{"loop": l.label})
			log.Error().Int("loop", l.id).Str("panic", fmt.Sprint(r)).Str("stack", string(debug.Stack())).Msg("event loop task panic")
		}
	}()
	task(l.ctx)
}
