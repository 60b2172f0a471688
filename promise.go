// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// Promise is the fiber-native single-assignment cell: write-once,
// many-reader, awaited by parking fibers. Resolve and Reject are safe from
// any goroutine: waking the parked waiters crosses back over the session's
// job channel, so the waiter list itself stays driver-goroutine state.
//
// A second Resolve or Reject is a programming error and panics.
type Promise[T any] struct {
	s     *Session
	state atomix.Uint32 // 0 pending, 1 writing, 2 completed
	val   T
	err   error

	// waiters is touched only on the driver goroutine: appended by
	// promiseAwait dispatch, drained by the wake job.
	waiters []*fiber
}

// NewPromise creates a pending promise bound to the session's scope.
func NewPromise[T any](s *Session) *Promise[T] {
	return &Promise[T]{s: s}
}

// Resolve completes the promise with a value. Panics if already completed.
func (p *Promise[T]) Resolve(v T) {
	p.complete(v, nil)
}

// Reject completes the promise with a failure. Panics if already completed.
func (p *Promise[T]) Reject(err error) {
	var zero T
	p.complete(zero, err)
}

func (p *Promise[T]) complete(v T, err error) {
	if !p.state.CompareAndSwap(0, 1) {
		panic("bridge: promise completed twice")
	}
	p.val, p.err = v, err
	p.state.Store(2)
	// Wake the parked waiters on the driver goroutine. If the session has
	// already stopped the post is dropped; the waiters were abandoned at
	// teardown.
	_ = p.s.post(p.wake)
}

func (p *Promise[T]) wake() {
	ws := p.waiters
	p.waiters = nil
	for _, f := range ws {
		p.s.ready(f, outcome{val: p.val, err: p.err})
	}
}

// park implements promiseParker. Driver goroutine only.
func (p *Promise[T]) park(f *fiber) (outcome, bool) {
	if p.state.Load() == 2 {
		return outcome{val: p.val, err: p.err}, true
	}
	// Pending, or mid-write: the resolver's wake job is posted after the
	// state store and runs after this append, on the same goroutine.
	p.waiters = append(p.waiters, f)
	return outcome{}, false
}

// AwaitPromise suspends the calling fiber until p completes.
func AwaitPromise[T any](p *Promise[T]) kont.Eff[kont.Either[error, T]] {
	raw := kont.Perform(promiseAwait{p: p})
	return kont.Map[kont.Resumed, outcome, kont.Either[error, T]](raw, fromOutcome[T])
}

// BridgePromise produces a pool-scheduler future that completes when p
// does, translating promise failure into future failure. Built on the
// pool→fiber primitive: a fiber awaits the promise and reports back.
func BridgePromise[T any](p *Promise[T]) *Future[T] {
	return runFiberOn(p.s, func() kont.Eff[kont.Either[error, T]] {
		return AwaitPromise(p)
	})
}
