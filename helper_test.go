// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge_test

import (
	"code.hybscloud.com/bridge"
	"code.hybscloud.com/kont"
)

// runBridged drives fn as the root fiber of a fresh session on a small
// reference pool. Used by tests that don't care about the pool's shape.
func runBridged[R any](fn func(*bridge.Session) kont.Eff[kont.Either[error, R]]) (R, error) {
	return bridge.Run(bridge.NewThreadPool(2), fn)
}
