package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/scmvm/vm"
)

// ErrWorkerStopped is returned for requests submitted after Stop.
var ErrWorkerStopped = errors.New("worker stopped")

// request is a unit of work to be executed on the machine goroutine.
type request struct {
	fn   func(*vm.Machine) (any, error)
	done chan result
}

// result holds the return value from a machine operation.
type result struct {
	value any
	err   error
}

// Worker serializes all Machine access through a single goroutine.
// A Machine is not safe for concurrent use; ticks, inspection and
// snapshots must all go through the worker so a sweep always finishes
// before anything else observes the machine.
type Worker struct {
	machine  *vm.Machine
	requests chan request
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(m *vm.Machine) *Worker {
	w := &Worker{
		machine:  m,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.stopped)
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn on the machine, recovering from panics.
func (w *Worker) execute(fn func(*vm.Machine) (any, error)) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: fmt.Errorf("panic on machine goroutine: %v", r)}
		}
	}()
	v, err := fn(w.machine)
	return result{value: v, err: err}
}

// Do submits fn for execution on the machine goroutine and blocks until it
// completes or ctx is done. A request abandoned by ctx still runs.
func (w *Worker) Do(ctx context.Context, fn func(*vm.Machine) (any, error)) (any, error) {
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.stopped:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Tick advances the machine by one sweep of ms milliseconds.
func (w *Worker) Tick(ctx context.Context, ms int) error {
	_, err := w.Do(ctx, func(m *vm.Machine) (any, error) {
		return nil, m.Execute(ms)
	})
	return err
}

// Snapshot captures the machine state between sweeps.
func (w *Worker) Snapshot(ctx context.Context) (*vm.Snapshot, error) {
	v, err := w.Do(ctx, func(m *vm.Machine) (any, error) {
		return m.Snapshot(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*vm.Snapshot), nil
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.stopped
}

// Machine returns the underlying machine for metadata that never changes
// after construction, like the container and module.
func (w *Worker) Machine() *vm.Machine {
	return w.machine
}
