// Package admission gates calls to rate-limited providers with a sliding
// one-minute window.
package admission

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/platform/httpx"
)

type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error { return httpx.Sleep(ctx, d) }

// Controller admits at most Ceiling calls in any rolling Window. All
// permission checks share one mutex; waiting happens outside it.
type Controller struct {
	mu       sync.Mutex
	ceiling  int
	window   time.Duration
	clock    Clock
	admitted []time.Time
	onWait   func(time.Duration)
	onAdmit  func(time.Time)
}

type Option func(*Controller)

// WithAdmitObserver is called, under the controller lock, with the clock
// reading of every admission.
func WithAdmitObserver(fn func(time.Time)) Option {
	return func(ctl *Controller) { ctl.onAdmit = fn }
}

func WithClock(c Clock) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.window = d
		}
	}
}

// WithWaitObserver is called with the length of every blocking wait.
func WithWaitObserver(fn func(time.Duration)) Option {
	return func(ctl *Controller) { ctl.onWait = fn }
}

func New(ceiling int, opts ...Option) *Controller {
	if ceiling < 1 {
		ceiling = 1
	}
	c := &Controller{
		ceiling:  ceiling,
		window:   time.Minute,
		clock:    realClock{},
		admitted: make([]time.Time, 0, ceiling),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Ceiling() int { return c.ceiling }

// Admit blocks until a call may be issued or ctx is done.
func (c *Controller) Admit(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.mu.Lock()
		now := c.clock.Now()
		c.evict(now)
		if len(c.admitted) < c.ceiling {
			c.admitted = append(c.admitted, now)
			if c.onAdmit != nil {
				c.onAdmit(now)
			}
			c.mu.Unlock()
			return nil
		}
		wait := c.admitted[0].Add(c.window).Sub(now)
		c.mu.Unlock()

		if c.onWait != nil {
			c.onWait(wait)
		}
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// InWindow reports how many admissions the current window holds.
func (c *Controller) InWindow() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evict(c.clock.Now())
	return len(c.admitted)
}

func (c *Controller) evict(now time.Time) {
	cut := 0
	for cut < len(c.admitted) && !now.Before(c.admitted[cut].Add(c.window)) {
		cut++
	}
	if cut > 0 {
		c.admitted = append(c.admitted[:0], c.admitted[cut:]...)
	}
}
