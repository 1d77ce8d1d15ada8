// Package parallel runs loop bodies across a bounded number of goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
)

var limit atomic.Int64

func init() {
	limit.Store(int64(detectLimit()))
}

func detectLimit() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// DefaultLimit returns the number of goroutines kernels fan out to.
func DefaultLimit() int {
	return int(limit.Load())
}

// SetDefaultLimit overrides the fan-out width. Values below 1 restore the
// detected core count.
func SetDefaultLimit(n int) {
	if n < 1 {
		n = detectLimit()
	}
	limit.Store(int64(n))
}

// ForEach calls body for every i in [0, length) using at most limit
// concurrent goroutines. It returns once all calls have finished.
// Each index is processed exactly once; callers that write only to
// index-owned memory get deterministic results regardless of scheduling.
// A panic in body is re-raised on the calling goroutine.
func ForEach(length, limit int, body func(i int)) {
	if length <= 0 {
		return
	}
	if limit <= 0 {
		limit = 1
	}
	if limit == 1 || length == 1 {
		for i := 0; i < length; i++ {
			body(i)
		}
		return
	}

	sem := make(chan struct{}, limit)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		panicked any
	)
	wg.Add(length)
	for i := 0; i < length; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { panicked = r })
				}
			}()
			body(i)
		}(i)
	}
	wg.Wait()
	if panicked != nil {
		panic(panicked)
	}
}

// Each is ForEach with the default limit.
func Each(length int, body func(i int)) {
	ForEach(length, DefaultLimit(), body)
}
