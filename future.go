// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// Future is the pool-native single-assignment cell: write-once, many-reader,
// completable and observable from any goroutine. Its notification primitive
// is channel close, so pool-side code can select on Done or block in Wait.
//
// Completion is idempotent-guarded: a second Resolve or Reject is a
// programming error and panics, matching promise semantics on both sides of
// the bridge.
type Future[T any] struct {
	state atomix.Uint32 // 0 pending, 1 completed
	doneC chan struct{}
	val   T
	err   error

	mu   sync.Mutex
	subs []func(v any, err error)
}

// NewFuture creates a pending future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{doneC: make(chan struct{})}
}

// Resolve completes the future with a value. Panics if already completed.
func (f *Future[T]) Resolve(v T) {
	f.complete(v, nil)
}

// Reject completes the future with a failure. Panics if already completed.
func (f *Future[T]) Reject(err error) {
	var zero T
	f.complete(zero, err)
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.doneC
}

// Wait blocks until completion and returns the result. It must not be
// called while holding the exclusion token; pool callbacks wrap it in
// [Session.Blocking].
func (f *Future[T]) Wait() (T, error) {
	<-f.doneC
	return f.val, f.err
}

// TryResult returns the result without blocking; ok is false while pending.
func (f *Future[T]) TryResult() (v T, err error, ok bool) {
	select {
	case <-f.doneC:
		return f.val, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// OnComplete registers fn to run once the future completes. If it already
// has, fn runs synchronously on the calling goroutine; otherwise it runs on
// whichever goroutine completes the future.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.subscribe(func(v any, err error) {
		if err != nil {
			var zero T
			fn(zero, err)
			return
		}
		fn(v.(T), nil)
	})
}

func (f *Future[T]) complete(v T, err error) {
	if !f.tryComplete(v, err) {
		panic("bridge: future completed twice")
	}
}

// tryComplete is the non-panicking internal path used at session teardown,
// where a completion racing normal resolution is expected.
func (f *Future[T]) tryComplete(v T, err error) bool {
	if !f.state.CompareAndSwap(0, 1) {
		return false
	}
	f.val, f.err = v, err
	close(f.doneC)
	f.mu.Lock()
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()
	for _, fn := range subs {
		fn(v, err)
	}
	return true
}

// completeAny is the type-erased completion used by fiber outcomes.
func (f *Future[T]) completeAny(v any, err error) {
	if err != nil {
		f.Reject(err)
		return
	}
	if v == nil {
		var zero T
		f.Resolve(zero)
		return
	}
	f.Resolve(v.(T))
}

// subscribe registers a type-erased completion callback. Exactly-once
// delivery: callbacks registered before completion run during complete,
// later ones run inline.
func (f *Future[T]) subscribe(fn func(v any, err error)) {
	f.mu.Lock()
	select {
	case <-f.doneC:
		f.mu.Unlock()
		if f.err != nil {
			fn(nil, f.err)
			return
		}
		fn(f.val, nil)
		return
	default:
	}
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
}

// cancel rejects a still-pending future at teardown.
func (f *Future[T]) cancel(err error) {
	var zero T
	f.tryComplete(zero, err)
}
