package server

import (
	"errors"
	"sync"
)

// ErrBusy is returned by TryRun when the session is occupied by another
// operation.
var ErrBusy = errors.New("another operation is in progress")

// Worker serializes every operation that touches the Telegram session onto
// one goroutine. The underlying client models a single authenticated
// connection whose calls are not safe to interleave, so this is a
// correctness requirement, not a throughput choice.
type Worker struct {
	jobs chan func()

	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	closed  bool
}

// NewWorker starts the worker goroutine.
func NewWorker() *Worker {
	w := &Worker{jobs: make(chan func(), 16)}
	w.idle = sync.NewCond(&w.mu)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for fn := range w.jobs {
		fn()
	}
}

// Run queues fn behind any in-flight operation and blocks until it has
// executed.
func (w *Worker) Run(fn func()) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending++
	w.mu.Unlock()

	w.dispatch(fn)
}

// TryRun executes fn only if the session is idle; otherwise it returns
// ErrBusy without queueing. Session reinitialization goes through here so
// it can never land in the middle of a running batch.
func (w *Worker) TryRun(fn func()) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrBusy
	}
	if w.pending > 0 {
		w.mu.Unlock()
		return ErrBusy
	}
	w.pending++
	w.mu.Unlock()

	w.dispatch(fn)
	return nil
}

func (w *Worker) dispatch(fn func()) {
	done := make(chan struct{})
	w.jobs <- func() {
		defer close(done)
		defer w.finish()
		fn()
	}
	<-done
}

func (w *Worker) finish() {
	w.mu.Lock()
	w.pending--
	if w.pending == 0 {
		w.idle.Broadcast()
	}
	w.mu.Unlock()
}

// Close stops accepting jobs, waits for in-flight ones to finish and lets
// the worker goroutine exit. Waiting before closing the channel matters: a
// Run that passed the closed check may still be about to send, and pending
// stays positive until its job has executed.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for w.pending > 0 {
		w.idle.Wait()
	}
	w.mu.Unlock()
	close(w.jobs)
}
