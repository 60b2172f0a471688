// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"code.hybscloud.com/kont"
)

// eraseOutcome normalizes a fiber computation to the driver's type-erased
// representation: Left becomes outcome.err, Right becomes outcome.val, and
// construction moves to Expr-world for allocation-free stepping.
func eraseOutcome[R any](m kont.Eff[kont.Either[error, R]]) kont.Expr[outcome] {
	mapped := kont.Map[kont.Resumed, kont.Either[error, R], outcome](m, func(e kont.Either[error, R]) outcome {
		if err, ok := e.GetLeft(); ok {
			return outcome{err: err}
		}
		v, _ := e.GetRight()
		return outcome{val: v}
	})
	return kont.Reify(mapped)
}

// fromOutcome recovers the typed Either from a dispatched outcome.
func fromOutcome[T any](o outcome) kont.Either[error, T] {
	if o.err != nil {
		return kont.Left[error, T](o.err)
	}
	if o.val == nil {
		var zero T
		return kont.Right[error, T](zero)
	}
	return kont.Right[error, T](o.val.(T))
}

// RunPool runs fn under the pool scheduler and suspends the calling fiber
// until it completes. fn executes on a pool worker while holding the
// exclusion token; its error crosses back payload-intact as Left, whether
// fn fails before any scheduling or deep inside. A panic in fn faults the
// whole session.
//
// The returned computation is inert: it only runs when stepped by the
// session driver, so performing it outside a session is impossible by
// construction (a foreign handler panics on the unhandled effect).
func RunPool[T any](fn func() (T, error)) kont.Eff[kont.Either[error, T]] {
	raw := kont.Perform(poolCall{fn: func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		return v, nil
	}})
	return kont.Map[kont.Resumed, outcome, kont.Either[error, T]](raw, fromOutcome[T])
}

// AwaitFuture suspends the calling fiber until f completes. The completion
// callback may fire on any pool worker; resumption crosses back over the
// job channel.
func AwaitFuture[T any](f *Future[T]) kont.Eff[kont.Either[error, T]] {
	raw := kont.Perform(awaitCall{c: f})
	return kont.Map[kont.Resumed, outcome, kont.Either[error, T]](raw, fromOutcome[T])
}

// RunFiber runs fn as a new fiber under the active session and returns a
// pool-scheduler future for its result. Callable from any goroutine,
// including pool workers that do not own the session's driver thread: the
// fork crosses over the job channel.
//
// With no active session the returned future is already rejected with
// ErrNoSession, deterministically and without side effects. A Left from the
// fiber body rejects the future with the original error; a panic in the
// body is an uncaught fiber failure and faults the session instead.
func RunFiber[T any](fn func() kont.Eff[kont.Either[error, T]]) *Future[T] {
	s := active.Load()
	if s == nil {
		fut := NewFuture[T]()
		fut.Reject(ErrNoSession)
		return fut
	}
	return runFiberOn(s, fn)
}

func runFiberOn[T any](s *Session, fn func() kont.Eff[kont.Either[error, T]]) *Future[T] {
	fut := NewFuture[T]()
	s.track(fut)
	err := s.post(func() {
		s.spawn(&fiber{
			expr: eraseOutcome(fn()),
			done: func(o outcome) {
				s.untrack(fut)
				fut.completeAny(o.val, o.err)
			},
		})
	})
	if err != nil {
		s.untrack(fut)
		fut.cancel(err)
	}
	return fut
}
