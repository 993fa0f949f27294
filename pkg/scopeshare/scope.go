package scopeshare

import (
	"context"
	"fmt"
	"runtime"
)

// ScopeID names one scope instance: the namespace within which a key's value
// is uniquely defined. It is either the default sentinel, meaning no scope
// has been established, or a static identifier derived from the call site
// that declared the scope.
//
// ScopeID is comparable; two identifiers are equal when they carry the same
// origin token. Re-evaluating the same source location yields the same
// identifier, so re-entrant construction reuses the same scope entry instead
// of fragmenting it.
type ScopeID struct {
	origin string
}

// DefaultScope returns the sentinel scope used until a node establishes its
// own or a test explicitly assigns one. It is distinct from every static
// identifier and is read-only through write-restricted paths.
func DefaultScope() ScopeID {
	return ScopeID{}
}

// ScopeAt derives a scope identifier from a call site. skip follows the
// runtime.Caller convention: 0 identifies the caller of ScopeAt itself.
func ScopeAt(skip int) ScopeID {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		panic(misuse(codeUnknownCallSite, "ScopeAt could not resolve its call site"))
	}
	return ScopeID{origin: fmt.Sprintf("%s:%d", file, line)}
}

// NamedScope builds a scope identifier from an explicit token. This is the
// override API for tests that need two call sites to alias deliberately, or
// need a stable identifier independent of source layout.
func NamedScope(name string) ScopeID {
	if name == "" {
		panic(misuse(codeEmptyScopeName, "NamedScope requires a non-empty name"))
	}
	return ScopeID{origin: "named:" + name}
}

// IsDefault reports whether this is the default sentinel scope.
func (s ScopeID) IsDefault() bool {
	return s.origin == ""
}

// String returns the origin token, or "default" for the sentinel.
func (s ScopeID) String() string {
	if s.IsDefault() {
		return "default"
	}
	return s.origin
}

// scopeContextKey is the context key carrying the ambient scope identifier.
type scopeContextKey struct{}

// WithScope returns a context carrying id as the ambient scope identifier.
// The override is immutable: it shadows the caller's ambient scope for the
// subtree that receives the returned context and nothing else.
func WithScope(ctx context.Context, id ScopeID) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, id)
}

// ScopeFrom returns the ambient scope identifier carried by ctx, or the
// default sentinel when none has been established.
func ScopeFrom(ctx context.Context) ScopeID {
	if ctx == nil {
		return DefaultScope()
	}
	if id, ok := ctx.Value(scopeContextKey{}).(ScopeID); ok {
		return id
	}
	return DefaultScope()
}
