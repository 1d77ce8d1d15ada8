package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForEachVisitsEveryIndexOnce(t *testing.T) {
	for _, limit := range []int{0, 1, 3, 64} {
		seen := make([]int32, 100)
		ForEach(len(seen), limit, func(i int) {
			atomic.AddInt32(&seen[i], 1)
		})
		for i, n := range seen {
			if n != 1 {
				t.Errorf("limit %d: index %d visited %d times", limit, i, n)
			}
		}
	}
}

func TestForEachBoundsConcurrency(t *testing.T) {
	var active, peak int32
	ForEach(50, 4, func(int) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
	})
	if peak > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", peak)
	}
}

func TestForEachRepanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic to propagate to caller")
		}
	}()
	ForEach(8, 4, func(i int) {
		if i == 5 {
			panic("boom")
		}
	})
}

func TestSetDefaultLimit(t *testing.T) {
	orig := DefaultLimit()
	defer SetDefaultLimit(orig)

	SetDefaultLimit(3)
	if got := DefaultLimit(); got != 3 {
		t.Errorf("DefaultLimit() = %d, want 3", got)
	}
	SetDefaultLimit(0)
	if got := DefaultLimit(); got < 1 {
		t.Errorf("DefaultLimit() after reset = %d, want >= 1", got)
	}
}
