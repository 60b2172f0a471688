// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
	"code.hybscloud.com/lfq"
)

// laneCapacity is the bounded capacity of the fiber→pool submission lane.
// The lane's producer is only ever the driver goroutine, so a small ring
// amortizes cached-index refresh without buffering stale work.
const laneCapacity = 16

// active is the process-wide single-slot session registry. It exists for
// the two operations that cannot take a handle: RunFiber from arbitrary
// pool contexts, and the second-Run guard.
var active atomic.Pointer[Session]

// Serial is a monotonically increasing session identifier.
// Each session started by Run is assigned the next serial value.
type Serial = uint32

var serialCounter atomix.Uint32

func nextSerial() Serial {
	return serialCounter.Add(1)
}

// fiber is one cooperative computation attached to a session scope,
// normalized to the type-erased outcome result.
type fiber struct {
	expr   kont.Expr[outcome]
	susp   *kont.Suspension[outcome]
	resume kont.Resumed
	done   func(outcome)
}

// Session is one bridging run. It owns the cancellation scope bounding
// every fiber the bridge spawns, the job channel, the exclusion token, and
// the fiber run queue. Exactly one session is active per process; exactly
// one goroutine (the one inside Run) executes fiber code.
type Session struct {
	pool   Pool
	ctx    context.Context
	cancel context.CancelFunc

	// token is the exclusion right to run user code of either runtime.
	// Held by the driver while stepping fibers and consuming jobs, by
	// pool workers while running callbacks.
	token sync.Mutex

	jobs *taskQueue

	// lane carries fiber→pool submissions. Single producer (driver
	// goroutine, via the staging slot), single consumer (the pump).
	lane     lfq.SPSC[func()]
	laneSlot func()

	// runq and parked are driver-goroutine state.
	runq   []*fiber
	parked map[*fiber]struct{}

	serial   Serial
	finished atomix.Uint32
	root     outcome

	faultMu  sync.Mutex
	faultErr error

	pendingMu sync.Mutex
	pending   map[canceller]struct{}
}

// canceller is the teardown view of a pending bridge future.
type canceller interface {
	cancel(err error)
}

func newSession(p Pool) (*Session, error) {
	s := &Session{
		pool:    p,
		jobs:    newTaskQueue(),
		parked:  make(map[*fiber]struct{}),
		pending: make(map[canceller]struct{}),
		serial:  nextSerial(),
	}
	s.lane.Init(laneCapacity)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if !active.CompareAndSwap(nil, s) {
		s.cancel()
		return nil, ErrSessionActive
	}
	p.InstallHook(tokenHook{mu: &s.token})
	return s, nil
}

// Serial returns the serial number assigned to this session.
func (s *Session) Serial() Serial {
	return s.serial
}

// Context returns the session's cancellation scope. It is done once the
// user function finishes or the session faults.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Blocking releases the exclusion token around fn and reacquires it after.
// It must be called while the token is held, which is the case inside any
// pool callback; use it around operations that block (I/O waits,
// Future.Wait), so fibers keep running during the wait.
func (s *Session) Blocking(fn func()) {
	s.token.Unlock()
	defer s.token.Lock()
	fn()
}

// post moves fn onto the driver goroutine. Safe from any goroutine; never
// blocks. Returns ErrClosed once the session stopped.
func (s *Session) post(fn func()) error {
	return s.jobs.push(fn)
}

// fault records the session's first fault and cancels the scope. If the
// primary activity already finished, the cancel is a no-op and the fault is
// suppressed by Run.
func (s *Session) fault(err error) {
	s.faultMu.Lock()
	if s.faultErr == nil {
		s.faultErr = err
	}
	s.faultMu.Unlock()
	s.cancel()
}

func (s *Session) faultError() error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.faultErr
}

// spawn attaches f to the session scope. Driver goroutine only; foreign
// threads spawn through the job channel.
func (s *Session) spawn(f *fiber) {
	s.runq = append(s.runq, f)
}

// ready stages a resumption value for a parked fiber and requeues it.
// Driver goroutine only: ready runs inside jobs.
func (s *Session) ready(f *fiber, o outcome) {
	delete(s.parked, f)
	f.resume = o
	s.runq = append(s.runq, f)
}

func (s *Session) rootDone(o outcome) {
	s.root = o
	s.finished.Store(1)
	s.cancel()
}

// track registers a pending bridge future for teardown rejection.
func (s *Session) track(c canceller) {
	s.pendingMu.Lock()
	if s.pending != nil {
		s.pending[c] = struct{}{}
	}
	s.pendingMu.Unlock()
}

func (s *Session) untrack(c canceller) {
	s.pendingMu.Lock()
	delete(s.pending, c)
	s.pendingMu.Unlock()
}

// drive is the session's main loop: consume jobs and step fibers under the
// token, hand the token to pool workers between rounds, release it entirely
// while idle. Returns once the root fiber finished or the scope cancelled.
func (s *Session) drive() {
	s.token.Lock()
	for {
		if s.finished.Load() != 0 || s.ctx.Err() != nil {
			s.token.Unlock()
			return
		}
		ran := false
		if j, ok := s.jobs.pop(); ok {
			s.runJob(j)
			ran = true
		}
		if n := len(s.runq); n > 0 {
			f := s.runq[0]
			copy(s.runq, s.runq[1:])
			s.runq = s.runq[:n-1]
			s.step(f)
			ran = true
		}
		if ran {
			// Bounded handoff: a worker waiting on the token gets a
			// window between rounds, so neither side starves.
			s.token.Unlock()
			s.token.Lock()
			continue
		}
		s.token.Unlock()
		select {
		case <-s.jobs.wake():
		case <-s.ctx.Done():
		}
		s.token.Lock()
	}
}

// runJob executes one job on the driver goroutine. A panic escaping a job
// is plumbing-or-uncaught failure and faults the session.
func (s *Session) runJob(j func()) {
	defer func() {
		if v := recover(); v != nil {
			s.fault(faultOf(v))
		}
	}()
	j()
}

// step advances one fiber until it completes, parks, or yields. Runs with
// the token held: fiber user code never overlaps pool callbacks.
func (s *Session) step(f *fiber) {
	defer func() {
		if v := recover(); v != nil {
			s.fault(faultOf(v))
		}
	}()
	var (
		res  outcome
		susp *kont.Suspension[outcome]
	)
	if f.susp == nil {
		res, susp = kont.StepExpr(f.expr)
	} else {
		prev := f.susp
		f.susp = nil
		res, susp = prev.Resume(f.resume)
	}
	for {
		if susp == nil {
			f.done(res)
			return
		}
		op, ok := susp.Op().(bridgeDispatcher)
		if !ok {
			panic("bridge: unhandled effect in session driver")
		}
		v, err := op.DispatchBridge(s, f)
		switch {
		case err == nil:
			res, susp = susp.Resume(v)
		case errors.Is(err, errParked):
			f.susp = susp
			s.parked[f] = struct{}{}
			return
		case errors.Is(err, errYield):
			f.susp = susp
			f.resume = v
			s.runq = append(s.runq, f)
			return
		default:
			panic("bridge: unhandled dispatch result in session driver")
		}
	}
}

// teardown cancels the scope, abandons parked fibers, rejects pending
// bridge futures, and clears the registry slot. Driver goroutine, after
// drive returned.
func (s *Session) teardown() {
	s.cancel()
	s.pool.RemoveHook()
	s.jobs.close()
	for f := range s.parked {
		if f.susp != nil {
			f.susp.Discard()
		}
		delete(s.parked, f)
	}
	for _, f := range s.runq {
		if f.susp != nil {
			f.susp.Discard()
		}
	}
	s.runq = nil
	s.pendingMu.Lock()
	pend := s.pending
	s.pending = nil
	s.pendingMu.Unlock()
	for c := range pend {
		c.cancel(ErrClosed)
	}
	active.CompareAndSwap(s, nil)
}
