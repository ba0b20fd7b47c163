package admission

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Advance(d)
	return nil
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func maxInAnyWindow(times []time.Time, window time.Duration) int {
	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	best := 0
	for i := range sorted {
		n := 0
		for j := i; j < len(sorted) && sorted[j].Sub(sorted[i]) < window; j++ {
			n++
		}
		if n > best {
			best = n
		}
	}
	return best
}

func TestAdmitNeverExceedsCeilingInRollingWindow(t *testing.T) {
	clock := newFakeClock()
	c := New(8, WithClock(clock))
	var times []time.Time
	for i := 0; i < 50; i++ {
		if err := c.Admit(context.Background()); err != nil {
			t.Fatalf("Admit %d: %v", i, err)
		}
		times = append(times, clock.Now())
		// Irregular gaps between calls.
		clock.Advance(time.Duration(i%4) * 3 * time.Second)
	}
	if got := maxInAnyWindow(times, time.Minute); got > 8 {
		t.Fatalf("rolling window: want<=8 got=%d", got)
	}
}

func TestAdmitBurstBlocksUntilWindowCloses(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	var waits []time.Duration
	c := New(3, WithClock(clock), WithWaitObserver(func(d time.Duration) { waits = append(waits, d) }))
	for i := 0; i < 4; i++ {
		if err := c.Admit(context.Background()); err != nil {
			t.Fatalf("Admit: %v", err)
		}
	}
	if len(waits) != 1 || waits[0] != time.Minute {
		t.Fatalf("waits: want=[1m] got=%v", waits)
	}
	if got := clock.Now().Sub(start); got != time.Minute {
		t.Fatalf("elapsed: want=1m got=%v", got)
	}
	if c.InWindow() != 1 {
		t.Fatalf("in window after reset: want=1 got=%d", c.InWindow())
	}
}

func TestAdmitConcurrentCallersShareCeiling(t *testing.T) {
	clock := newFakeClock()
	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	c := New(8, WithClock(clock), WithAdmitObserver(func(at time.Time) {
		mu.Lock()
		times = append(times, at)
		mu.Unlock()
	}))
	for g := 0; g < 6; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if err := c.Admit(context.Background()); err != nil {
					t.Errorf("Admit: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if len(times) != 30 {
		t.Fatalf("admitted: want=30 got=%d", len(times))
	}
	if got := maxInAnyWindow(times, time.Minute); got > 8 {
		t.Fatalf("rolling window: want<=8 got=%d", got)
	}
}

func TestAdmitHonorsCancellation(t *testing.T) {
	c := New(1, WithClock(newFakeClock()))
	if err := c.Admit(context.Background()); err != nil {
		t.Fatalf("first Admit: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Admit(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled Admit: want context.Canceled got %v", err)
	}
}
