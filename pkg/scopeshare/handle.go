package scopeshare

import "context"

// Handle is the part of a value handle the propagation bridge works with.
// Shared (the owner form) and Reader (the descendant form) both implement
// it; the bridge is one mechanism parameterized by which form it wraps.
type Handle[T any] interface {
	// Get returns the locally cached value.
	Get() T

	// Scope returns the identifier the handle is bound to.
	Scope() ScopeID

	// update moves the cached value. Called by the bridge after the wrapped
	// step has seen the corresponding Change message.
	update(v T)

	// beginObserving latches the handle as observing. Reports whether this
	// call performed the latch; once latched it stays latched for the life
	// of the handle.
	beginObserving() bool

	// current reads the store's value for the handle's slot right now.
	current() T

	// watch opens a live subscription on the handle's slot.
	watch() *Subscription[T]
}

// =============================================================================
// Shared — owner form
// =============================================================================

// Shared is the owner form of a value handle: the write-authoritative holder
// of a key's value for its scope. Construction mints a scope identifier from
// the call site (stable across re-entrant construction) and writes through
// to the store; every Set updates the cache and the store together.
//
// A Shared must only be touched from its owning node's processing steps.
type Shared[T any] struct {
	store     *Store
	scope     ScopeID
	key       Key[T]
	value     T
	observing bool
}

// sharedConfig collects construction options for NewShared.
type sharedConfig[T any] struct {
	scope      ScopeID
	hasScope   bool
	initial    T
	hasInitial bool
}

// SharedOption configures NewShared.
type SharedOption[T any] func(*sharedConfig[T])

// WithInitial supplies an explicit initial value. Without it, construction
// reads through to the store's current value for the scope (the key's
// default when nothing has been written).
func WithInitial[T any](v T) SharedOption[T] {
	return func(c *sharedConfig[T]) {
		c.initial = v
		c.hasInitial = true
	}
}

// WithScopeID overrides the call-site scope identifier. This is the override
// entry point for isolated construction in tests and previews, typically
// paired with Seed.
func WithScopeID[T any](id ScopeID) SharedOption[T] {
	return func(c *sharedConfig[T]) {
		c.scope = id
		c.hasScope = true
	}
}

// NewShared constructs the owner handle for key. The scope identifier is
// derived from the caller's file and line, so the same call site always
// addresses the same scope entry.
func NewShared[T any](store *Store, key Key[T], opts ...SharedOption[T]) *Shared[T] {
	var cfg sharedConfig[T]
	for _, opt := range opts {
		opt(&cfg)
	}

	scope := cfg.scope
	if !cfg.hasScope {
		scope = ScopeAt(1)
	}

	h := &Shared[T]{store: store, scope: scope, key: key}
	if cfg.hasInitial {
		h.value = cfg.initial
	} else {
		h.value = Get(store, scope, key)
	}
	Set(store, scope, key, h.value)
	return h
}

// Get returns the cached value.
func (h *Shared[T]) Get() T {
	return h.value
}

// Set writes v to the cache and the store. Subscribers for the slot are
// notified before Set returns.
func (h *Shared[T]) Set(v T) {
	h.value = v
	Set(h.store, h.scope, h.key, v)
}

// Scope returns the handle's scope identifier.
func (h *Shared[T]) Scope() ScopeID {
	return h.scope
}

// Client returns an owner client for this handle's slot, for handing to
// descendants that need the sanctioned back-write path.
func (h *Shared[T]) Client() Client[T] {
	return NewClient(h.store, h.key, h.scope)
}

// Equal reports whether two handles address the same scope and cache equal
// values. The observing latch deliberately does not participate.
func (h *Shared[T]) Equal(other *Shared[T]) bool {
	if other == nil {
		return false
	}
	return h.scope == other.scope && valuesEqual(h.value, other.value)
}

func (h *Shared[T]) update(v T) { h.value = v }

func (h *Shared[T]) beginObserving() bool {
	if h.observing {
		return false
	}
	h.observing = true
	return true
}

func (h *Shared[T]) current() T { return Get(h.store, h.scope, h.key) }

func (h *Shared[T]) watch() *Subscription[T] { return Watch(h.store, h.scope, h.key) }

// =============================================================================
// Reader — descendant form
// =============================================================================

// Reader is the descendant form of a value handle. It snapshots the store
// once at construction; later writes are not reflected until Sync is called
// or the reader is bridged with Observe. The snapshot behavior is what lets
// a reader be constructed and inspected in isolation, with no propagation
// machinery running.
//
// Readers have no write path; the sanctioned back-write path is a Client for
// the owning scope.
type Reader[T any] struct {
	store     *Store
	scope     ScopeID
	key       Key[T]
	value     T
	observing bool
}

// NewReader constructs a reader under the ambient scope carried by ctx
// (the default sentinel when none is established).
func NewReader[T any](ctx context.Context, store *Store, key Key[T]) *Reader[T] {
	return NewReaderAt(store, key, ScopeFrom(ctx))
}

// NewReaderAt constructs a reader under an explicitly supplied scope.
func NewReaderAt[T any](store *Store, key Key[T], scope ScopeID) *Reader[T] {
	return &Reader[T]{
		store: store,
		scope: scope,
		key:   key,
		value: Get(store, scope, key),
	}
}

// Get returns the cached snapshot.
func (r *Reader[T]) Get() T {
	return r.value
}

// Sync re-reads the store into the cache and returns the fresh value.
func (r *Reader[T]) Sync() T {
	r.value = Get(r.store, r.scope, r.key)
	return r.value
}

// Scope returns the reader's scope identifier.
func (r *Reader[T]) Scope() ScopeID {
	return r.scope
}

// Equal reports whether two readers address the same scope and cache equal
// values. The observing latch deliberately does not participate.
func (r *Reader[T]) Equal(other *Reader[T]) bool {
	if other == nil {
		return false
	}
	return r.scope == other.scope && valuesEqual(r.value, other.value)
}

func (r *Reader[T]) update(v T) { r.value = v }

func (r *Reader[T]) beginObserving() bool {
	if r.observing {
		return false
	}
	r.observing = true
	return true
}

func (r *Reader[T]) current() T { return Get(r.store, r.scope, r.key) }

func (r *Reader[T]) watch() *Subscription[T] { return Watch(r.store, r.scope, r.key) }

// =============================================================================
// Client — the sanctioned back-write path
// =============================================================================

// Client is direct store access for a slot under an ancestor's scope. Any
// node holding a reference to the owning scope's identifier can read and
// write through it; this is the only sanctioned way for a descendant to push
// a value back up.
type Client[T any] struct {
	store *Store
	scope ScopeID
	key   Key[T]
}

// NewClient builds a client for (scope, key) on store.
func NewClient[T any](store *Store, key Key[T], scope ScopeID) Client[T] {
	return Client[T]{store: store, scope: scope, key: key}
}

// Get reads the store's current value for the slot.
func (c Client[T]) Get() T {
	return Get(c.store, c.scope, c.key)
}

// Set writes v to the slot and notifies subscribers. Writing to the default
// sentinel scope is a fatal misuse: no owner can have established it, so a
// client addressing it means the call graph was wired up wrong.
func (c Client[T]) Set(v T) {
	if c.scope.IsDefault() {
		panic(misuse(codeDefaultScopeWrite, "Client.Set on %s: the default scope is read-only",
			tokenFor(c.key)))
	}
	Set(c.store, c.scope, c.key, v)
}

// Scope returns the client's scope identifier.
func (c Client[T]) Scope() ScopeID {
	return c.scope
}
