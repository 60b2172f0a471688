// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"code.hybscloud.com/kont"
)

// Done completes a fiber computation with a value.
func Done[R any](v R) kont.Eff[kont.Either[error, R]] {
	return kont.Pure(kont.Right[error, R](v))
}

// Fail completes a fiber computation with a failure.
func Fail[R any](err error) kont.Eff[kont.Either[error, R]] {
	return kont.Pure(kont.Left[error, R](err))
}

// bindE sequences through the error channel: Left short-circuits, Right
// feeds f.
func bindE[A, B any](m kont.Eff[kont.Either[error, A]], f func(A) kont.Eff[kont.Either[error, B]]) kont.Eff[kont.Either[error, B]] {
	return kont.Bind(m, func(e kont.Either[error, A]) kont.Eff[kont.Either[error, B]] {
		if err, ok := e.GetLeft(); ok {
			return Fail[B](err)
		}
		v, _ := e.GetRight()
		return f(v)
	})
}

// PoolBind runs fn on the pool scheduler and passes its value to k.
// Fuses RunPool + Left short-circuit.
func PoolBind[T, B any](fn func() (T, error), k func(T) kont.Eff[kont.Either[error, B]]) kont.Eff[kont.Either[error, B]] {
	return bindE(RunPool(fn), k)
}

// AwaitBind awaits a future and passes its value to k.
// Fuses AwaitFuture + Left short-circuit.
func AwaitBind[T, B any](f *Future[T], k func(T) kont.Eff[kont.Either[error, B]]) kont.Eff[kont.Either[error, B]] {
	return bindE(AwaitFuture(f), k)
}

// PromiseBind awaits a promise and passes its value to k.
// Fuses AwaitPromise + Left short-circuit.
func PromiseBind[T, B any](p *Promise[T], k func(T) kont.Eff[kont.Either[error, B]]) kont.Eff[kont.Either[error, B]] {
	return bindE(AwaitPromise(p), k)
}

// Yield reschedules the calling fiber behind every other runnable fiber
// and opens a token window for pool workers.
func Yield() kont.Eff[struct{}] {
	return kont.Perform(yieldCall{})
}

// YieldThen yields and then continues with next.
// Fuses Perform(yield) + Then.
func YieldThen[B any](next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(Yield(), next)
}

// Go forks body as a sibling fiber under the session scope, then continues
// with next. The forked fiber's Left is an uncaught failure and faults the
// session; catch inside body to keep failures local.
func Go[B any](body kont.Eff[kont.Either[error, struct{}]], next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(forkCall{expr: eraseOutcome(body)}), next)
}
