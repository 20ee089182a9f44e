package testutil

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrConflict marks an attempt that lost a race, such as a claim already
// owned by another address.
var ErrConflict = errors.New("conflict")

// ConcurrentResult counts how the attempts of a RunConcurrent call ended.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts
}

func (r *ConcurrentResult) record(err error) {
	switch {
	case err == nil:
		atomic.AddInt32(&r.Successes, 1)
	case errors.Is(err, ErrConflict):
		atomic.AddInt32(&r.Conflicts, 1)
	default:
		atomic.AddInt32(&r.Errors, 1)
	}
}

// RunConcurrent calls fn from n goroutines released together, so the calls
// contend for the same state.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	result := &ConcurrentResult{}
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			<-start
			result.record(fn(i))
		})
	}
	close(start)
	wg.Wait()
	return result
}
