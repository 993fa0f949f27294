package scopeshare

import (
	"context"
	"sync"
	"testing"
	"time"
)

// counterKey is the main test key. Its default of 1 gives every scope a
// non-zero starting value.
type counterKey struct{}

func (counterKey) Default() int { return 1 }

// nameKey exists to prove that keys with the same value type stay separate.
type labelKey struct{}

func (labelKey) Default() string { return "unlabeled" }

type nameKey struct{}

func (nameKey) Default() string { return "" }

// testCtx is an in-memory Ctx implementation for driving bridged steps
// deterministically: sent messages accumulate in a queue the test pumps by
// hand, and background tasks run under a cancellable context.
type testCtx[M any] struct {
	mu     sync.Mutex
	queue  []M
	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
}

func newTestCtx[M any]() *testCtx[M] {
	ctx, cancel := context.WithCancel(context.Background())
	return &testCtx[M]{ctx: ctx, cancel: cancel}
}

func (c *testCtx[M]) Send(msg M) {
	c.mu.Lock()
	c.queue = append(c.queue, msg)
	c.mu.Unlock()
}

func (c *testCtx[M]) Go(fn func(ctx context.Context)) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		fn(c.ctx)
	}()
}

func (c *testCtx[M]) StdContext() context.Context {
	return c.ctx
}

// drain removes and returns all queued messages.
func (c *testCtx[M]) drain() []M {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.queue
	c.queue = nil
	return msgs
}

func (c *testCtx[M]) queueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// stop cancels background tasks and waits for them.
func (c *testCtx[M]) stop() {
	c.cancel()
	c.tasks.Wait()
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", msg)
}

// never verifies cond stays false for a settle window.
func never(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("condition unexpectedly reached: %s", msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
