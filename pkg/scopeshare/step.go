package scopeshare

import "context"

// Step is one unit of work applied to a node's state. The host framework is
// responsible for serializing the steps of any single node; steps of
// different nodes may run concurrently.
type Step[S, M any] func(ctx Ctx[M], state *S, msg M)

// Ctx is the host surface available to a step. Loop provides a reference
// implementation; a host framework supplies its own.
type Ctx[M any] interface {
	// Send merges a message back into the node's own inbox, to be processed
	// as a later step. Safe to call from any goroutine.
	Send(msg M)

	// Go runs fn concurrently with the node's processing. The supplied
	// context is cancelled when the node is torn down; fn must return
	// promptly once it is.
	Go(fn func(ctx context.Context))

	// StdContext returns the context for the current step. It carries the
	// ambient scope identifier and is cancelled at node teardown.
	StdContext() context.Context
}

// Bind establishes id as the ambient scope identifier for the duration of
// each of step's invocations. Reader constructors below the binding point
// that were not given an explicit identifier resolve against it.
//
// The override is a per-invocation wrapper, never shared mutable state:
// concurrent subtrees each see their own ambient value, and the caller's
// ambient scope is untouched once the step returns.
func Bind[S, M any](step Step[S, M], id ScopeID) Step[S, M] {
	return func(ctx Ctx[M], state *S, msg M) {
		step(boundCtx[M]{Ctx: ctx, id: id}, state, msg)
	}
}

// boundCtx overlays an ambient scope onto a host context.
type boundCtx[M any] struct {
	Ctx[M]
	id ScopeID
}

func (b boundCtx[M]) StdContext() context.Context {
	return WithScope(b.Ctx.StdContext(), b.id)
}
