package scopeshare

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// slotKey addresses one (scope, key) slot in the store.
type slotKey struct {
	scope ScopeID
	key   keyToken
}

// Store is the central thread-safe table mapping (ScopeID, Key) to the
// current value, with a live change subscription per (scope, key) slot.
//
// The store is shared, not owned, by every node in the tree. Its lifetime
// equals the lifetime of the root state machine; tests and previews should
// substitute an isolated instance so they never observe cross-leak. All
// mutation is serialized behind a single mutex, so every Set is observed by
// every live subscription in program order relative to other Sets on the
// same slot. Cross-slot ordering is unspecified.
type Store struct {
	mu     sync.Mutex
	scopes map[ScopeID]map[keyToken]any
	subs   map[slotKey][]*subscriber
	taps   map[uint64]func(ChangeEvent)

	metrics *storeMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMetrics registers Prometheus metrics for store activity (writes,
// notifications, suppressed duplicates, active subscriptions) with the
// given registerer.
func WithMetrics(reg prometheus.Registerer) StoreOption {
	return func(s *Store) {
		s.metrics = newStoreMetrics(reg)
	}
}

// WithTracing records an OpenTelemetry span per Set, attributed with the
// scope and key being written. The tracer comes from the global tracer
// provider.
func WithTracing(tracerName string) StoreOption {
	return func(s *Store) {
		s.tracer = otel.Tracer(tracerName)
	}
}

// WithLogger enables debug logging of store writes.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		scopes: make(map[ScopeID]map[keyToken]any),
		subs:   make(map[slotKey][]*subscriber),
		taps:   make(map[uint64]func(ChangeEvent)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value stored for (scope, key), or the key's default when
// no entry exists. It never fails: absence is equivalent to the default.
//
// A stored value that does not assert back to the key's value type indicates
// two key types sharing a token, which the type-identity scheme rules out;
// it is reported as a fatal misuse.
func Get[T any](s *Store, scope ScopeID, key Key[T]) T {
	tok := tokenFor(key)
	s.mu.Lock()
	raw, ok := s.lookup(scope, tok)
	s.mu.Unlock()
	if !ok {
		return key.Default()
	}
	value, ok := raw.(T)
	if !ok {
		panic(misuse(codeTypeMismatch, "stored value for %s at %s is %T, key expects %T",
			tok, scope, raw, key.Default()))
	}
	return value
}

// Set inserts or replaces the value for (scope, key), creating the scope's
// sub-table lazily. It never fails. All live subscriptions for the slot are
// woken, in write order; consecutive duplicate values are suppressed per
// subscription.
func Set[T any](s *Store, scope ScopeID, key Key[T], value T) {
	s.set(scope, tokenFor(key), value)
}

// Seed writes an initial value for (scope, key), bypassing the owner
// construction path. This is the sanctioned entry point for isolated
// construction in tests and previews; behavior is identical to Set.
func Seed[T any](s *Store, scope ScopeID, key Key[T], value T) {
	s.set(scope, tokenFor(key), value)
}

// Watch returns a live subscription over (scope, key). Each call produces an
// independent subscription: the stream is infinite, not restartable, yields
// every subsequent write in order, and suppresses consecutive duplicate
// values. It never yields the value current at subscription time.
func Watch[T any](s *Store, scope ScopeID, key Key[T]) *Subscription[T] {
	slot := slotKey{scope: scope, key: tokenFor(key)}
	sub := newSubscriber()

	s.mu.Lock()
	s.subs[slot] = append(s.subs[slot], sub)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.activeSubscriptions.Inc()
	}
	return &Subscription[T]{store: s, slot: slot, sub: sub}
}

// lookup reads one slot. Caller holds s.mu.
func (s *Store) lookup(scope ScopeID, tok keyToken) (any, bool) {
	table, ok := s.scopes[scope]
	if !ok {
		return nil, false
	}
	v, ok := table[tok]
	return v, ok
}

// set is the erased write path shared by Set and Seed.
func (s *Store) set(scope ScopeID, tok keyToken, value any) {
	var span trace.Span
	if s.tracer != nil {
		_, span = s.tracer.Start(context.Background(), "scopeshare.store.set",
			trace.WithAttributes(
				attribute.String("scopeshare.scope", scope.String()),
				attribute.String("scopeshare.key", tok.String()),
			))
		defer span.End()
	}

	s.mu.Lock()
	table := s.scopes[scope]
	if table == nil {
		table = make(map[keyToken]any)
		s.scopes[scope] = table
	}
	table[tok] = value

	subs := s.subs[slotKey{scope: scope, key: tok}]
	delivered, suppressed := 0, 0
	for _, sub := range subs {
		if sub.deliver(value) {
			delivered++
		} else {
			suppressed++
		}
	}

	var taps []func(ChangeEvent)
	if len(s.taps) > 0 {
		taps = make([]func(ChangeEvent), 0, len(s.taps))
		for _, tap := range s.taps {
			taps = append(taps, tap)
		}
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.setsTotal.Inc()
		s.metrics.notificationsTotal.Add(float64(delivered))
		s.metrics.suppressedTotal.Add(float64(suppressed))
	}
	if s.logger != nil {
		s.logger.Debug("store set",
			"scope", scope.String(),
			"key", tok.String(),
			"delivered", delivered,
			"suppressed", suppressed)
	}

	for _, tap := range taps {
		tap(ChangeEvent{Scope: scope.String(), Key: tok.String(), Value: value})
	}
}

// removeSubscriber detaches sub from its slot and closes it. Idempotent;
// after removal the subscription delivers nothing, queued values included.
func (s *Store) removeSubscriber(slot slotKey, sub *subscriber) {
	s.mu.Lock()
	subs := s.subs[slot]
	for i, existing := range subs {
		if existing == sub {
			// Remove by swapping with last element (order doesn't matter)
			subs[i] = subs[len(subs)-1]
			s.subs[slot] = subs[:len(subs)-1]
			break
		}
	}
	if len(s.subs[slot]) == 0 {
		delete(s.subs, slot)
	}
	s.mu.Unlock()

	if sub.close() && s.metrics != nil {
		s.metrics.activeSubscriptions.Dec()
	}
}

// =============================================================================
// Introspection
// =============================================================================

// ChangeEvent describes one store write, as seen by taps.
type ChangeEvent struct {
	Scope string `json:"scope"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Tap registers fn to observe every store write across all scopes and keys.
// Taps run after the write, outside the store lock, on the writer's
// goroutine. The returned function removes the tap.
//
// Taps exist for introspection tooling; change propagation between nodes
// goes through Watch.
func (s *Store) Tap(fn func(ChangeEvent)) (remove func()) {
	id := nextID()
	s.mu.Lock()
	s.taps[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.taps, id)
		s.mu.Unlock()
	}
}

// EntrySnapshot is one key's current value within a scope snapshot.
type EntrySnapshot struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ScopeSnapshot is the current contents of one scope.
type ScopeSnapshot struct {
	Scope   string          `json:"scope"`
	Entries []EntrySnapshot `json:"entries"`
}

// Snapshot returns the current contents of every scope, sorted by scope and
// key for stable output.
func (s *Store) Snapshot() []ScopeSnapshot {
	s.mu.Lock()
	snaps := make([]ScopeSnapshot, 0, len(s.scopes))
	for scope, table := range s.scopes {
		snap := ScopeSnapshot{
			Scope:   scope.String(),
			Entries: make([]EntrySnapshot, 0, len(table)),
		}
		for tok, value := range table {
			snap.Entries = append(snap.Entries, EntrySnapshot{Key: tok.String(), Value: value})
		}
		sort.Slice(snap.Entries, func(i, j int) bool {
			return snap.Entries[i].Key < snap.Entries[j].Key
		})
		snaps = append(snaps, snap)
	}
	s.mu.Unlock()

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Scope < snaps[j].Scope
	})
	return snaps
}
