package measure

import (
	"context"
	"time"
)

// Clock paces probe iterations at a fixed interval. Deadlines advance
// additively so scheduler jitter does not accumulate; an iteration that
// overruns its deadline resynchronises the cadence instead of catching up.
type Clock struct {
	interval time.Duration
	next     time.Time
	start    time.Time

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewClock(interval time.Duration) *Clock {
	c := &Clock{
		interval: interval,
		now:      time.Now,
		after:    time.After,
	}
	c.Reset()
	return c
}

// Reset starts a measurement now and schedules the next iteration one
// interval ahead.
func (c *Clock) Reset() {
	now := c.now()
	c.start = now
	c.next = now.Add(c.interval)
}

// Elapsed returns the time since the current measurement started.
func (c *Clock) Elapsed() time.Duration {
	return c.now().Sub(c.start)
}

// Wait blocks until the next deadline and starts the next measurement.
// It reports an overrun when the deadline had already passed, in which case
// it does not sleep at all.
func (c *Clock) Wait(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := c.now()
	if now.After(c.next) {
		c.next = now.Add(c.interval)
		c.start = now
		return true, nil
	}

	select {
	case <-c.after(c.next.Sub(now)):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	c.next = c.next.Add(c.interval)
	c.start = c.now()
	return false, nil
}
