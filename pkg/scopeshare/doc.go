// Package scopeshare lets a tree of independently-testable state machines
// share typed values without each node knowing who produces or consumes them.
//
// A parent node publishes a value under a typed key into a Store; any
// descendant can read the current value, and optionally observe it to be
// notified exactly once per change. Descendants holding the owning scope's
// identifier may also push a value back up through a Client.
//
// # Core Types
//
// Store is the central table mapping (ScopeID, Key) to a value:
//
//	store := NewStore()
//	v := Get(store, scope, CounterKey{})   // key default when absent
//	Set(store, scope, CounterKey{}, 5)     // wakes live subscriptions
//
// Shared[T] is the owner form of a value handle. It mints a scope from its
// call site and writes through to the store on construction and on every Set:
//
//	count := NewShared(store, CounterKey{}, WithInitial[int](1))
//
// Reader[T] is the descendant form. It snapshots the store at construction
// and stays put until explicitly synchronized or bridged for propagation:
//
//	count := NewReader(ctx.StdContext(), store, CounterKey{})
//
// # Change Propagation
//
// Observe wraps a node's Step so that store changes arrive inside the node's
// own processing loop as Change[T] messages, delivered before the handle's
// cached value moves so the node can diff old against new:
//
//	step = Observe(step,
//	    func(s *state) Handle[int] { return s.count },
//	    func(c Change[int]) msg { return countChanged(c) },
//	    func(m msg) (Change[int], bool) { c, ok := m.(countChanged); return Change[int](c), ok },
//	)
//
// # Thread Safety
//
// The Store is the only shared mutable resource and supports concurrent
// Get/Set/Watch from arbitrarily many nodes. Handles are owned by a single
// node and must only be touched from that node's own steps; the host
// serializes a node's processing.
package scopeshare
