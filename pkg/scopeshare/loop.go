package scopeshare

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// defaultInboxSize is the buffer of a Loop's inbox.
const defaultInboxSize = 64

// Loop is a minimal reference host for a node: it owns a state value,
// processes messages strictly one at a time, and merges background emissions
// back into its own inbox. It implements Ctx, so bridged steps built with
// Observe and Bind run on it unchanged.
//
// Loop exists so the propagation machinery has a real event loop to run on
// in tests, previews and the demo; a full host framework supplies its own
// scheduling and message types.
type Loop[S, M any] struct {
	id    uint64
	step  Step[S, M]
	state *S

	inbox  chan M
	ctx    context.Context
	cancel context.CancelFunc
	base   context.Context

	started  atomic.Bool
	stopped  atomic.Bool
	done     chan struct{}
	tasks    sync.WaitGroup
	logger   *slog.Logger
	cleanups []func()
	mu       sync.Mutex
}

// NewLoop creates a loop over state and step. The loop does not process
// anything until Start.
func NewLoop[S, M any](state *S, step Step[S, M]) *Loop[S, M] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop[S, M]{
		id:     nextID(),
		step:   step,
		state:  state,
		inbox:  make(chan M, defaultInboxSize),
		ctx:    ctx,
		cancel: cancel,
		base:   ctx,
		done:   make(chan struct{}),
	}
}

// WithScope returns the loop configured to carry id as the ambient scope on
// StdContext. Must be called before Start.
func (l *Loop[S, M]) WithScope(id ScopeID) *Loop[S, M] {
	l.base = WithScope(l.ctx, id)
	return l
}

// WithLogger returns the loop configured with a logger for dropped-message
// warnings. Must be called before Start.
func (l *Loop[S, M]) WithLogger(logger *slog.Logger) *Loop[S, M] {
	l.logger = logger
	return l
}

// ID returns the unique identifier for this loop.
func (l *Loop[S, M]) ID() uint64 {
	return l.id
}

// Start begins processing the inbox on a new goroutine.
func (l *Loop[S, M]) Start() {
	if l.started.Swap(true) {
		return
	}
	go l.run()
}

func (l *Loop[S, M]) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case m := <-l.inbox:
			l.step(l, l.state, m)
		}
	}
}

// Send queues a message for processing. Implements Ctx. Messages sent after
// Stop are discarded; a full inbox drops the message with a warning rather
// than blocking the sender.
func (l *Loop[S, M]) Send(msg M) {
	if l.stopped.Load() {
		return
	}
	select {
	case l.inbox <- msg:
	case <-l.ctx.Done():
		// Loop is closing, discard
	default:
		if l.logger != nil {
			l.logger.Warn("inbox full, dropping message", "loop", l.id)
		}
	}
}

// Go runs fn concurrently with the loop. Implements Ctx. The context passed
// to fn is cancelled at Stop; Stop waits for fn to return.
func (l *Loop[S, M]) Go(fn func(ctx context.Context)) {
	if l.stopped.Load() {
		return
	}
	l.tasks.Add(1)
	go func() {
		defer l.tasks.Done()
		fn(l.ctx)
	}()
}

// StdContext returns the loop's context, carrying the ambient scope when one
// was configured. Implements Ctx.
func (l *Loop[S, M]) StdContext() context.Context {
	return l.base
}

// Process applies one message synchronously on the caller's goroutine.
// It exists for driving an unstarted loop deterministically in tests; never
// mix it with Start.
func (l *Loop[S, M]) Process(msg M) {
	l.step(l, l.state, msg)
}

// State returns the loop's state value. Outside of steps it is only safe to
// touch after Stop has returned.
func (l *Loop[S, M]) State() *S {
	return l.state
}

// OnCleanup registers a cleanup function to run when the loop stops.
// If the loop has already stopped, fn runs immediately.
func (l *Loop[S, M]) OnCleanup(fn func()) {
	if l.stopped.Load() {
		fn()
		return
	}
	l.mu.Lock()
	l.cleanups = append(l.cleanups, fn)
	l.mu.Unlock()
}

// Stop tears the loop down: the processing goroutine exits, background
// tasks are cancelled and awaited, and cleanups run in reverse order.
// Idempotent; blocks until teardown completes.
func (l *Loop[S, M]) Stop() {
	if l.stopped.Swap(true) {
		return
	}
	l.cancel()
	if l.started.Load() {
		<-l.done
	}
	l.tasks.Wait()

	l.mu.Lock()
	cleanups := l.cleanups
	l.cleanups = nil
	l.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
