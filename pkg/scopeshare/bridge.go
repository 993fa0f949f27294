package scopeshare

import "context"

// Change is the value-will-change notification for a bridged handle. It is
// delivered to the wrapped step before the handle's cached value moves to
// Value, so the step can compare old against new within one unit of work.
type Change[T any] struct {
	Value T
}

// Observe opts a handle into live synchronization with the store. It wraps
// step so that, on each unit of work the node processes:
//
//  1. If msg carries a Change for the bridged handle (extract reports true),
//     the wrapped step runs first and the handle's cache is updated to the
//     changed value only afterwards.
//  2. Exactly once per handle lifetime, observation starts: the current
//     cached value is captured as the baseline and a background listener is
//     launched over the handle's slot. The listener forwards every change
//     back into the node's inbox as embed(Change{v}); its first emission is
//     dropped if and only if it equals the baseline, which keeps a write
//     racing the subscription start silent without ever dropping a change to
//     a different value. The cost is that a genuine but value-identical
//     first change is also dropped.
//  3. On every later step the latch short-circuits; activating the bridge
//     again is a no-op.
//
// A write that landed between handle construction and observation start is
// caught up on synchronously: the slot's current value is compared against
// the baseline and, when different, forwarded immediately.
//
// The listener runs under the host context from Ctx.Go and stops promptly at
// node teardown, delivering nothing afterwards.
func Observe[S, M, T any](
	step Step[S, M],
	handle func(*S) Handle[T],
	embed func(Change[T]) M,
	extract func(M) (Change[T], bool),
) Step[S, M] {
	return func(ctx Ctx[M], state *S, msg M) {
		h := handle(state)

		change, isChange := extract(msg)
		step(ctx, state, msg)
		if isChange {
			h.update(change.Value)
		}

		if !h.beginObserving() {
			return
		}

		// Subscribe before reading the slot so no write can fall between
		// the catch-up read and the live stream.
		sub := h.watch()
		baseline := h.Get()
		if now := h.current(); !valuesEqual(now, baseline) {
			ctx.Send(embed(Change[T]{Value: now}))
			baseline = now
		}

		ctx.Go(func(taskCtx context.Context) {
			defer sub.Cancel()
			first := true
			for {
				v, err := sub.Next(taskCtx)
				if err != nil {
					return
				}
				if first {
					first = false
					if valuesEqual(v, baseline) {
						continue
					}
				}
				ctx.Send(embed(Change[T]{Value: v}))
			}
		})
	}
}
