// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"context"
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"
)

// ThreadPool is the reference pool scheduler: a fixed set of worker
// goroutines running submitted callbacks while holding the installed
// exclusion hook. It exists so the hook contract has one executable
// statement in-package; any host pool with an equivalent hook surface can
// replace it.
type ThreadPool struct {
	workers int
	tasks   *taskQueue

	hookMu sync.Mutex
	hook   Hook

	running atomix.Uint32
	closed  atomix.Uint32
	faultCh chan error
}

// NewThreadPool creates a pool with the given worker count; non-positive
// means GOMAXPROCS-sized via NumCPU.
func NewThreadPool(workers int) *ThreadPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &ThreadPool{
		workers: workers,
		tasks:   newTaskQueue(),
		hook:    noopHook{},
		faultCh: make(chan error, 1),
	}
}

// Submit schedules fn on a worker. Unbounded and non-blocking; workers pick
// tasks up once Run is driving the pool. Returns ErrPoolClosed after Close.
func (p *ThreadPool) Submit(fn func()) error {
	if p.closed.Load() != 0 {
		return ErrPoolClosed
	}
	if err := p.tasks.push(fn); err != nil {
		return ErrPoolClosed
	}
	return nil
}

// InstallHook supplies the exclusion callbacks workers wrap around each
// task. Installed once per bridging session.
func (p *ThreadPool) InstallHook(h Hook) {
	p.hookMu.Lock()
	p.hook = h
	p.hookMu.Unlock()
}

// RemoveHook detaches the session's hook.
func (p *ThreadPool) RemoveHook() {
	p.hookMu.Lock()
	p.hook = noopHook{}
	p.hookMu.Unlock()
}

func (p *ThreadPool) currentHook() Hook {
	p.hookMu.Lock()
	defer p.hookMu.Unlock()
	return p.hook
}

// Run drives the pool loop: starts the workers, waits for scope
// cancellation or an internal fault, then stops and joins the workers.
// A panic escaping a directly submitted callback is a pool fault and is
// returned; user code bridged through RunPool recovers before the pool
// ever sees it.
func (p *ThreadPool) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(0, 1) {
		return ErrPoolRunning
	}
	defer p.running.Store(0)
	// A fault recovered after the previous Run stopped selecting stays in
	// the channel; it belongs to that run, not this one.
	select {
	case <-p.faultCh:
	default:
	}
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.work(stop, &wg)
	}
	var err error
	select {
	case <-ctx.Done():
	case err = <-p.faultCh:
	}
	close(stop)
	wg.Wait()
	return err
}

// Close rejects further submissions. Queued tasks still run while Run is
// driving.
func (p *ThreadPool) Close() {
	p.closed.Store(1)
}

// NumWorkers returns the configured worker count.
func (p *ThreadPool) NumWorkers() int {
	return p.workers
}

func (p *ThreadPool) work(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		fn, ok := p.tasks.pop()
		if !ok {
			select {
			case <-stop:
				return
			case <-p.tasks.wake():
				continue
			}
		}
		// Exclusion protocol: acquire around the callback, never while
		// blocked between tasks.
		h := p.currentHook()
		h.Acquire()
		p.exec(fn)
		h.Release()
	}
}

func (p *ThreadPool) exec(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			select {
			case p.faultCh <- faultOf(v):
			default:
			}
		}
	}()
	fn()
}
