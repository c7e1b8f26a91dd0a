// Package workers contains the concurrent synchronization executors:
// a bounded fan-out harness and the GitHub, LDAP, and transition
// runners built on it.
package workers

import (
	"fmt"
	"sync"
)

// DefaultMaxThreads caps the executor thread count. The effective
// default is min(5, pool-1) so a full fan-out cannot starve the
// database connection pool.
const DefaultMaxThreads = 5

// Executor is the shared fan-out harness. Workers pull items from one
// mutex-protected queue; Synchronize guards all cross-worker aggregate
// state. The harness provides no per-item error isolation; the using
// executor is responsible for catching failures inside each item.
type Executor struct {
	// ThreadCount is the maximum number of concurrent workers.
	ThreadCount int

	mu     sync.Mutex
	errors []error
}

// NewExecutor sizes the harness for the given connection pool.
func NewExecutor(poolSize int) *Executor {
	threads := poolSize - 1
	if threads > DefaultMaxThreads {
		threads = DefaultMaxThreads
	}
	if threads < 1 {
		threads = 1
	}
	return &Executor{ThreadCount: threads}
}

// Synchronize obtains the executor lock, runs fn, and releases the
// lock. All mutation of shared counters and error lists must go
// through it. Never wrap a network call in it.
func (e *Executor) Synchronize(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// AddError appends to the run's error list under the lock.
func (e *Executor) AddError(err error) {
	e.Synchronize(func() {
		e.errors = append(e.errors, err)
	})
}

// Errors returns the errors accumulated by the most recent run.
func (e *Executor) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errors...)
}

// ResetErrors clears the error list at the start of a run.
func (e *Executor) ResetErrors() {
	e.Synchronize(func() {
		e.errors = nil
	})
}

// ForEach runs fn for every item using up to min(len(items),
// ThreadCount) concurrent workers and blocks until all complete.
// Workers pop items from the front of a shared queue under the
// executor lock, so no two workers process the same item; processing
// order across workers is unspecified.
func ForEach[T any](e *Executor, items []T, fn func(item T)) {
	queue := append([]T(nil), items...)
	next := 0

	workers := len(queue)
	if workers > e.ThreadCount {
		workers = e.ThreadCount
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e.mu.Lock()
				if next >= len(queue) {
					e.mu.Unlock()
					return
				}
				item := queue[next]
				next++
				e.mu.Unlock()

				fn(item)
			}
		}()
	}
	wg.Wait()
}

// capture runs fn and converts a panic into an error, giving each
// threaded loop an outermost per-item boundary that never lets a
// programmer error kill sibling workers.
func capture(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
