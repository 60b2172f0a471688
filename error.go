// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for session lifecycle misuse. User-code failures are never
// wrapped in these: they cross the bridge payload-intact as the Left of
// kont.Either or as a rejected Future's error.
var (
	// ErrNoSession reports a bridge operation invoked while no session
	// is active. Surfaced to the caller, never retried.
	ErrNoSession = errors.New("bridge: no active session")

	// ErrSessionActive reports an attempt to start a second session while
	// one is live. The second Run fails immediately; sessions neither nest
	// nor queue.
	ErrSessionActive = errors.New("bridge: session already active")

	// ErrClosed reports work posted to a session that has already stopped.
	// Pending futures of a torn-down session are rejected with it.
	ErrClosed = errors.New("bridge: session closed")

	// ErrPoolClosed reports a submission to a ThreadPool after Close.
	ErrPoolClosed = errors.New("bridge: pool closed")

	// ErrPoolRunning reports a second concurrent Run on the same ThreadPool.
	ErrPoolRunning = errors.New("bridge: pool already running")
)

// FaultError is an unexpected fault in bridged plumbing or uncaught in user
// code: a panic escaping a bridged callback or fiber body, or a failure of
// the pool scheduler's own loop. A fault before the primary activity
// finishes is fatal to the session; after, it is suppressed as shutdown
// noise.
type FaultError struct {
	// Value is the recovered panic value, or the pool loop's error.
	Value any
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("bridge: session fault: %v", e.Value)
}

// Unwrap exposes an underlying error fault for errors.Is/As chains.
func (e *FaultError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// faultOf recovers a panic value into a session-fatal error.
func faultOf(v any) *FaultError {
	return &FaultError{Value: v}
}
