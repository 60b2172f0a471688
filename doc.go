// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bridge lets a multi-threaded pool scheduler and a single-threaded
// cooperative fiber scheduler execute inside one process without breaking
// each other's invariants. Fibers are effect computations on
// [code.hybscloud.com/kont]; the pool side is any [Pool] implementation
// whose workers run callbacks under a global exclusion token.
//
// # Architecture
//
//   - Exclusion: a single token serializes pool callbacks and fiber steps.
//     The bridge installs a [Hook] into the pool at session start; the pool
//     acquires around each callback and releases around anything that blocks.
//   - Job channel: an unbounded multi-producer queue moves fiber work onto
//     the session's driver goroutine from anywhere. Producers never block
//     (blocking there could deadlock against the token), so sustained
//     pathological posting grows memory instead of back-pressuring.
//   - Submission lane: fiber→pool calls travel over a bounded lock-free
//     SPSC queue via [code.hybscloud.com/lfq]; a pump goroutine drains it
//     into [Pool.Submit].
//   - Execution: [Run] drives fibers one suspension at a time with
//     [code.hybscloud.com/kont.StepExpr], dispatching bridge effects and
//     consuming jobs while holding the token, releasing it whenever idle.
//
// # API Topologies
//
//   - Session: [Run], [Session.Blocking], [Session.Context].
//   - Crossing points: [RunPool] (fiber→pool suspension point), [RunFiber]
//     (pool→fiber, returns a [Future]), [AwaitFuture], [AwaitPromise],
//     [BridgePromise].
//   - Fused constructors: [Done], [Fail], [PoolBind], [AwaitBind],
//     [PromiseBind], [YieldThen], [Go], [Yield], [Loop].
//   - Streams: [Reader] and [Writer] lift pool-side [io.Reader]/[io.Writer]
//     into fiber-side operations.
//
// # Failure Model
//
// Error values cross the bridge intact in both directions as the Left of
// [code.hybscloud.com/kont.Either]. Panics in bridged user code and faults
// in the pool loop cancel the session and surface from [Run] as a
// [FaultError]; a pool-loop fault after the user function already finished
// is expected shutdown noise and is suppressed.
//
// # Example
//
//	pool := bridge.NewThreadPool(4)
//	n, err := bridge.Run(pool, func(s *bridge.Session) kont.Eff[kont.Either[error, int]] {
//		return bridge.PoolBind(func() (int, error) {
//			return 21, nil // runs on a pool worker, under the token
//		}, func(n int) kont.Eff[kont.Either[error, int]] {
//			return bridge.Done(n * 2)
//		})
//	})
package bridge
