// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"errors"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// outcome is the type-erased result every fiber computation is normalized
// to before stepping. val holds the Right payload, err the Left.
type outcome struct {
	val any
	err error
}

// Dispatch control-flow sentinels. Never observed by callers: they tell the
// driver what to do with the suspended fiber.
var (
	// errParked: the fiber stays suspended until a job resumes it.
	errParked = errors.New("bridge: fiber parked")
	// errYield: the fiber goes to the back of the run queue.
	errYield = errors.New("bridge: fiber yielded")
)

// bridgeDispatcher is the structural interface for bridge effect
// operations, dispatched by the session driver while it holds the token.
type bridgeDispatcher interface {
	DispatchBridge(s *Session, f *fiber) (kont.Resumed, error)
}

// poolCall is the effect operation behind RunPool: run fn on the pool
// scheduler, park the fiber until the result comes back over the job
// channel.
type poolCall struct {
	kont.Phantom[outcome]
	fn func() (any, error)
}

// DispatchBridge enqueues the call on the fiber→pool lane. The lane is
// bounded: on would-block the driver backs off and retries; the pump drains
// the lane without needing the token, so the wait is always finite.
func (op poolCall) DispatchBridge(s *Session, f *fiber) (kont.Resumed, error) {
	call := op.fn
	task := func() {
		defer func() {
			if v := recover(); v != nil {
				s.fault(faultOf(v))
			}
		}()
		v, err := call()
		// Post is dropped cleanly if the session stopped meanwhile; the
		// fiber-side wait was already abandoned at teardown.
		_ = s.post(func() { s.ready(f, outcome{val: v, err: err}) })
	}
	var bo iox.Backoff
	for {
		s.laneSlot = task
		if err := s.lane.Enqueue(&s.laneSlot); err == nil {
			break
		}
		// A cancelled scope means the pump may be gone; nothing will drain
		// the lane. Leave the fiber parked for teardown to discard.
		if s.ctx.Err() != nil {
			return nil, errParked
		}
		bo.Wait()
	}
	return nil, errParked
}

// completable is the type-erased view of a Future used by awaitCall.
type completable interface {
	subscribe(fn func(v any, err error))
}

// awaitCall is the effect operation behind AwaitFuture: park the fiber
// until the future completes. The completion callback may fire on any
// goroutine; it crosses back via the job channel.
type awaitCall struct {
	kont.Phantom[outcome]
	c completable
}

func (op awaitCall) DispatchBridge(s *Session, f *fiber) (kont.Resumed, error) {
	op.c.subscribe(func(v any, err error) {
		_ = s.post(func() { s.ready(f, outcome{val: v, err: err}) })
	})
	return nil, errParked
}

// forkCall is the effect operation behind Go: attach a sibling fiber to the
// session scope. The forked fiber's Left is an uncaught failure and faults
// the session; catch inside the body to keep it local.
type forkCall struct {
	kont.Phantom[struct{}]
	expr kont.Expr[outcome]
}

func (op forkCall) DispatchBridge(s *Session, f *fiber) (kont.Resumed, error) {
	s.spawn(&fiber{expr: op.expr, done: func(o outcome) {
		if o.err != nil {
			s.fault(o.err)
		}
	}})
	return struct{}{}, nil
}

// yieldCall is the effect operation behind Yield: reschedule the fiber
// behind every other runnable fiber and give the pool a token window.
type yieldCall struct {
	kont.Phantom[struct{}]
}

func (yieldCall) DispatchBridge(s *Session, f *fiber) (kont.Resumed, error) {
	return struct{}{}, errYield
}

// promiseAwait is the effect operation behind AwaitPromise. Waiter lists
// are driver-goroutine state: appending here and waking in a resolution job
// never race.
type promiseAwait struct {
	kont.Phantom[outcome]
	p promiseParker
}

// promiseParker is the type-erased view of a Promise used by promiseAwait.
type promiseParker interface {
	// park returns (result, true) when the promise already resolved, or
	// registers f as a waiter and returns (_, false).
	park(f *fiber) (outcome, bool)
}

func (op promiseAwait) DispatchBridge(s *Session, f *fiber) (kont.Resumed, error) {
	if o, done := op.p.park(f); done {
		return o, nil
	}
	return nil, errParked
}
