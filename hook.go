// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import "sync"

// Hook is the exclusion handoff interface between the bridge and a pool
// scheduler. The pool calls Acquire immediately before running a user
// callback and Release before any operation that can block, so the fiber
// side can run during the window. It is the one point where the bridge
// reaches into the pool scheduler; any host pool must expose an equivalent
// plug-in surface.
type Hook interface {
	Acquire()
	Release()
}

// tokenHook backs a Hook with the session's exclusion token.
type tokenHook struct {
	mu *sync.Mutex
}

func (h tokenHook) Acquire() { h.mu.Lock() }
func (h tokenHook) Release() { h.mu.Unlock() }

// noopHook is the pool's exclusion protocol when no session is bridged.
type noopHook struct{}

func (noopHook) Acquire() {}
func (noopHook) Release() {}
