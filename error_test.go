// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"code.hybscloud.com/bridge"
	"code.hybscloud.com/kont"
)

func TestPoolFailureImmediate(t *testing.T) {
	skipRace(t)
	boom := errors.New("failed before scheduling")
	_, err := runBridged(func(s *bridge.Session) kont.Eff[kont.Either[error, int]] {
		return bridge.PoolBind(func() (int, error) {
			return 0, boom
		}, func(n int) kont.Eff[kont.Either[error, int]] {
			return bridge.Done(n)
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestPoolFailureDelayed(t *testing.T) {
	skipRace(t)
	boom := errors.New("failed after a suspension")
	// Fails only after the fiber already crossed once: both shapes must
	// surface the identical payload.
	_, err := runBridged(func(s *bridge.Session) kont.Eff[kont.Either[error, int]] {
		return bridge.PoolBind(func() (int, error) {
			return 1, nil
		}, func(int) kont.Eff[kont.Either[error, int]] {
			return bridge.PoolBind(func() (int, error) {
				return 0, boom
			}, func(n int) kont.Eff[kont.Either[error, int]] {
				return bridge.Done(n)
			})
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestFailurePayloadPreserved(t *testing.T) {
	skipRace(t)
	_, err := runBridged(func(s *bridge.Session) kont.Eff[kont.Either[error, int]] {
		return bridge.PoolBind(func() (int, error) {
			return 0, errors.New("original payload intact")
		}, func(n int) kont.Eff[kont.Either[error, int]] {
			return bridge.Done(n)
		})
	})
	if err == nil || err.Error() != "original payload intact" {
		t.Fatalf("payload rewritten: %v", err)
	}
}

func TestPanicInPoolCallbackFaultsSession(t *testing.T) {
	skipRace(t)
	_, err := runBridged(func(s *bridge.Session) kont.Eff[kont.Either[error, int]] {
		return bridge.PoolBind(func() (int, error) {
			panic("pool callback blew up")
		}, func(n int) kont.Eff[kont.Either[error, int]] {
			return bridge.Done(n)
		})
	})
	var fe *bridge.FaultError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want *FaultError", err)
	}
	if !strings.Contains(fe.Error(), "pool callback blew up") {
		t.Fatalf("fault lost its payload: %v", fe)
	}
}

func TestPanicInFiberFaultsSession(t *testing.T) {
	skipRace(t)
	_, err := runBridged(func(s *bridge.Session) kont.Eff[kont.Either[error, int]] {
		return bridge.PoolBind(func() (int, error) {
			return 1, nil
		}, func(int) kont.Eff[kont.Either[error, int]] {
			panic("fiber blew up")
		})
	})
	var fe *bridge.FaultError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want *FaultError", err)
	}
}

func TestForkedFiberFailureFaultsSession(t *testing.T) {
	skipRace(t)
	boom := errors.New("uncaught in forked fiber")
	_, err := runBridged(func(s *bridge.Session) kont.Eff[kont.Either[error, struct{}]] {
		p := bridge.NewPromise[struct{}](s)
		// The forked fiber fails without a catcher; the park below is
		// abandoned when the session faults.
		return bridge.Go(bridge.Fail[struct{}](boom),
			bridge.PromiseBind(p, func(struct{}) kont.Eff[kont.Either[error, struct{}]] {
				return bridge.Done(struct{}{})
			}))
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestDirectSubmitPanicIsPoolFault(t *testing.T) {
	skipRace(t)
	pool := bridge.NewThreadPool(2)
	_, err := bridge.Run(pool, func(s *bridge.Session) kont.Eff[kont.Either[error, struct{}]] {
		p := bridge.NewPromise[struct{}](s)
		if serr := pool.Submit(func() { panic("pool plumbing fault") }); serr != nil {
			return bridge.Fail[struct{}](serr)
		}
		// Park forever: only the fault can end the session.
		return bridge.PromiseBind(p, func(struct{}) kont.Eff[kont.Either[error, struct{}]] {
			return bridge.Done(struct{}{})
		})
	})
	var fe *bridge.FaultError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want *FaultError", err)
	}
	if !strings.Contains(fe.Error(), "pool plumbing fault") {
		t.Fatalf("fault lost its payload: %v", fe)
	}
}

func TestPoolFaultAfterFinishSuppressed(t *testing.T) {
	skipRace(t)
	pool := bridge.NewThreadPool(1)
	got, err := bridge.Run(pool, func(s *bridge.Session) kont.Eff[kont.Either[error, int]] {
		return bridge.Done(5)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
	// The pool loop stopping as a consequence of normal completion is
	// shutdown noise, not an error; a fresh session still works.
	got, err = bridge.Run(pool, func(s *bridge.Session) kont.Eff[kont.Either[error, int]] {
		return bridge.Done(6)
	})
	if err != nil || got != 6 {
		t.Fatalf("second session: got %d, %v", got, err)
	}
}

// A second worker panic recovered after the pool loop already returned the
// first refills the fault channel. That leftover belongs to the finished
// session and must not surface from the next Run on the same pool.
func TestStaleFaultDoesNotLeakIntoNextSession(t *testing.T) {
	skipRace(t)
	pool := bridge.NewThreadPool(2)
	_, err := bridge.Run(pool, func(s *bridge.Session) kont.Eff[kont.Either[error, struct{}]] {
		p := bridge.NewPromise[struct{}](s)
		if serr := pool.Submit(func() { panic("first fault") }); serr != nil {
			return bridge.Fail[struct{}](serr)
		}
		// The second panic lands after the pool loop consumed the first.
		if serr := pool.Submit(func() {
			time.Sleep(20 * time.Millisecond)
			panic("second fault")
		}); serr != nil {
			return bridge.Fail[struct{}](serr)
		}
		return bridge.PromiseBind(p, func(struct{}) kont.Eff[kont.Either[error, struct{}]] {
			return bridge.Done(struct{}{})
		})
	})
	var fe *bridge.FaultError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want *FaultError", err)
	}
	got, err := bridge.Run(pool, func(s *bridge.Session) kont.Eff[kont.Either[error, int]] {
		return bridge.Done(8)
	})
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if got != 8 {
		t.Fatalf("second session: got %d, want 8", got)
	}
}

// Closing the pool under a live session kills the submission path; the
// session must fault and Run must return instead of spinning on the lane.
func TestPoolClosedMidSessionFaults(t *testing.T) {
	skipRace(t)
	pool := bridge.NewThreadPool(1)
	_, err := bridge.Run(pool, func(s *bridge.Session) kont.Eff[kont.Either[error, int]] {
		pool.Close()
		return bridge.PoolBind(func() (int, error) {
			return 1, nil
		}, func(n int) kont.Eff[kont.Either[error, int]] {
			return bridge.Done(n)
		})
	})
	var fe *bridge.FaultError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want *FaultError", err)
	}
	if !errors.Is(err, bridge.ErrPoolClosed) {
		t.Fatalf("fault lost its payload: %v", err)
	}
}

func TestSubmitAfterPoolClose(t *testing.T) {
	pool := bridge.NewThreadPool(1)
	pool.Close()
	if err := pool.Submit(func() {}); !errors.Is(err, bridge.ErrPoolClosed) {
		t.Fatalf("got %v, want ErrPoolClosed", err)
	}
}

func TestFaultErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	fe := &bridge.FaultError{Value: inner}
	if !errors.Is(fe, inner) {
		t.Fatal("FaultError does not unwrap to its error payload")
	}
	fe = &bridge.FaultError{Value: "not an error"}
	if errors.Unwrap(fe) != nil {
		t.Fatal("non-error payload should not unwrap")
	}
}
