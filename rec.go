// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import "code.hybscloud.com/kont"

// Loop runs a recursive fiber protocol. step returns Left(nextState) to
// continue or Right(result) to finish; a failure at any iteration
// short-circuits the loop.
func Loop[S, A any](initial S, step func(S) kont.Eff[kont.Either[error, kont.Either[S, A]]]) kont.Eff[kont.Either[error, A]] {
	return kont.Bind(step(initial), func(e kont.Either[error, kont.Either[S, A]]) kont.Eff[kont.Either[error, A]] {
		if err, ok := e.GetLeft(); ok {
			return Fail[A](err)
		}
		next, _ := e.GetRight()
		if state, ok := next.GetLeft(); ok {
			return Loop(state, step)
		}
		result, _ := next.GetRight()
		return Done(result)
	})
}
