package executor

import (
	"sync"

	"github.com/relay-tools/graphqlrt/graphql/executor/internal/future"
	"github.com/relay-tools/graphqlrt/graphql/schema"
)

func resultFromResolve(r ResolveResult) future.Result[any] {
	var result future.Result[any]
	if !isNil(r.Error) {
		result.Error = r.Error
	} else {
		result.Value = r.Value
	}
	return result
}

// resolveAsync drives a field's ResolvePromise to completion using the given strategy, returning a
// future that the caller polls (directly or via wait) like any other.
func (e *executor) resolveAsync(strategy schema.AwaitStrategy, promise ResolvePromise) future.Future[any] {
	switch strategy {
	case schema.AwaitStrategyQueued:
		return e.queue.submit(promise)
	case schema.AwaitStrategyThreaded:
		return threadedResolve(promise)
	default:
		return deferredResolve(promise)
	}
}

// deferredResolve polls the promise's channel without blocking, relying on the request's idle
// handler (invoked by wait) to make progress on whatever is producing the result. This is the
// strategy the unmodified executor always used.
func deferredResolve(promise ResolvePromise) future.Future[any] {
	return future.New(func() (future.Result[any], bool) {
		select {
		case r := <-promise:
			return resultFromResolve(r), true
		default:
			var zero future.Result[any]
			return zero, false
		}
	})
}

// threadedResolve hands the promise to a dedicated goroutine that blocks on it, letting it resolve
// concurrently with whatever else the request is doing.
func threadedResolve(promise ResolvePromise) future.Future[any] {
	done := make(chan future.Result[any], 1)
	go func() {
		done <- resultFromResolve(<-promise)
	}()
	return future.New(func() (future.Result[any], bool) {
		select {
		case result := <-done:
			return result, true
		default:
			var zero future.Result[any]
			return zero, false
		}
	})
}

// queuedScheduler resolves ResolvePromises one at a time, strictly in the order they were
// submitted, no matter which of them become ready first. It's shared by every selection set in a
// request that's using the queued strategy.
type queuedScheduler struct {
	mu      sync.Mutex
	pending []*queuedItem
}

type queuedItem struct {
	promise ResolvePromise
	done    chan future.Result[any]
}

func (q *queuedScheduler) submit(promise ResolvePromise) future.Future[any] {
	item := &queuedItem{promise: promise, done: make(chan future.Result[any], 1)}
	q.mu.Lock()
	q.pending = append(q.pending, item)
	q.mu.Unlock()

	return future.New(func() (future.Result[any], bool) {
		select {
		case result := <-item.done:
			return result, true
		default:
		}
		q.drainReadyPrefix()
		select {
		case result := <-item.done:
			return result, true
		default:
			var zero future.Result[any]
			return zero, false
		}
	})
}

// drainReadyPrefix resolves submissions starting from the head of the queue, stopping at the
// first one whose promise hasn't produced a value yet. This keeps delivery order equal to
// submission order even when later promises resolve sooner.
func (q *queuedScheduler) drainReadyPrefix() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) > 0 {
		head := q.pending[0]
		select {
		case r := <-head.promise:
			head.done <- resultFromResolve(r)
			q.pending = q.pending[1:]
		default:
			return
		}
	}
}

// effectiveAwaitStrategy resolves the strategy a selection set should use: an explicit override
// found on one of its selections (see collectFieldsImpl), or else whatever the parent selection set
// was using, defaulting to AwaitStrategyDeferred at the root. forceSerial (mutation root fields)
// always wins, since mutation root fields must resolve one at a time regardless of caller choice.
func effectiveAwaitStrategy(inherited, override schema.AwaitStrategy, forceSerial bool) schema.AwaitStrategy {
	if forceSerial {
		return schema.AwaitStrategyDeferred
	}
	if override != schema.AwaitStrategyUnspecified {
		return override
	}
	if inherited == schema.AwaitStrategyUnspecified {
		return schema.AwaitStrategyDeferred
	}
	return inherited
}
