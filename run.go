// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"context"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Pool is the bridge's view of a pool scheduler. The scheduler's own
// thread management, I/O polling, and timers stay behind this interface;
// the bridge only needs submission, a drivable loop, and the exclusion
// hook plug-in point.
type Pool interface {
	// Submit schedules fn to run on a pool worker. Workers run callbacks
	// while holding the installed Hook. Submit must not require the
	// exclusion token to make progress.
	Submit(fn func()) error

	// Run drives the pool scheduler's loop until ctx is done, then joins
	// its workers. A non-nil return is a fault in the pool itself, not in
	// user callbacks.
	Run(ctx context.Context) error

	// InstallHook supplies the exclusion callbacks at session start;
	// RemoveHook detaches them at session end.
	InstallHook(h Hook)
	RemoveHook()
}

// Run starts a bridging session on p and executes fn as the root fiber,
// returning whatever it returns. Three activities run under one scope: the
// root fiber (on the calling goroutine, which becomes the session's driver),
// the pool loop, and the job/lane consumers. The first to finish wins: root
// completion or a fault cancels the siblings.
//
// Starting a second session while one is active fails with
// ErrSessionActive. The session is torn down before Run returns, so
// sequential sessions are fine.
func Run[R any](p Pool, fn func(*Session) kont.Eff[kont.Either[error, R]]) (R, error) {
	var zero R
	s, err := newSession(p)
	if err != nil {
		return zero, err
	}

	var rootExpr kont.Expr[outcome]
	func() {
		defer func() {
			if v := recover(); v != nil {
				s.teardown()
				panic(v)
			}
		}()
		rootExpr = eraseOutcome(fn(s))
	}()

	poolDone := make(chan error, 1)
	go func() {
		perr := p.Run(s.ctx)
		if perr != nil && s.ctx.Err() == nil {
			ferr, ok := perr.(*FaultError)
			if !ok {
				ferr = &FaultError{Value: perr}
			}
			s.fault(ferr)
		}
		poolDone <- perr
	}()
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.pump()
	}()

	s.spawn(&fiber{expr: rootExpr, done: s.rootDone})
	s.drive()
	s.teardown()
	<-poolDone
	<-pumpDone

	if s.finished.Load() == 0 {
		// The session faulted before the user function finished.
		if ferr := s.faultError(); ferr != nil {
			return zero, ferr
		}
		return zero, ErrClosed
	}
	if s.root.err != nil {
		return zero, s.root.err
	}
	if s.root.val == nil {
		return zero, nil
	}
	return s.root.val.(R), nil
}

// pump drains the fiber→pool lane into Pool.Submit. Submission happens off
// the driver goroutine and without the token, so a full pool inbox can
// never wedge the fiber side.
func (s *Session) pump() {
	var bo iox.Backoff
	for {
		task, err := s.lane.Dequeue()
		if err != nil {
			// iox.ErrWouldBlock: lane empty.
			if s.ctx.Err() != nil {
				return
			}
			bo.Wait()
			continue
		}
		bo.Reset()
		if serr := s.pool.Submit(task); serr != nil {
			if s.ctx.Err() == nil {
				s.fault(&FaultError{Value: serr})
			}
			return
		}
	}
}
