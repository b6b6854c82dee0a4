// Package countdown breaks the time left until an unlock instant into
// days, hours, minutes and seconds, and drives periodic refreshes of it.
package countdown

import (
	"context"
	"fmt"
	"time"
)

const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// Breakdown is the remaining time split into whole units. Elapsed is set
// once the target has been reached; all units are zero then.
type Breakdown struct {
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
	Elapsed bool
}

// Remaining decomposes target-now at millisecond resolution. Elapsed is
// decided on the exact difference, so it agrees with the lock state even
// in the last millisecond.
func Remaining(now, target time.Time) Breakdown {
	d := target.Sub(now)
	if d <= 0 {
		return Breakdown{Elapsed: true}
	}
	diff := d.Milliseconds()
	return Breakdown{
		Days:    diff / msPerDay,
		Hours:   diff % msPerDay / msPerHour,
		Minutes: diff % msPerHour / msPerMinute,
		Seconds: diff % msPerMinute / msPerSecond,
	}
}

// Format renders b as "DDd HHh MMm SSs".
func Format(b Breakdown) string {
	if b.Elapsed {
		return "unlocked"
	}
	return fmt.Sprintf("%02dd %02dh %02dm %02ds", b.Days, b.Hours, b.Minutes, b.Seconds)
}

func (b Breakdown) String() string {
	return Format(b)
}

// Clock returns the current time.
type Clock func() time.Time

// Ticker yields ticks every interval until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// newTicker is replaced in tests.
var newTicker = func(d time.Duration) Ticker {
	return stdTicker{time.NewTicker(d)}
}

// Watch calls fn with the current breakdown immediately and then on every
// tick, until the target elapses or ctx is done. When the target elapses fn
// receives a final Breakdown with Elapsed set and Watch returns nil;
// otherwise it returns ctx.Err().
func Watch(ctx context.Context, interval time.Duration, clock Clock, target time.Time, fn func(Breakdown)) error {
	if clock == nil {
		clock = time.Now
	}
	if interval <= 0 {
		interval = time.Second
	}

	b := Remaining(clock(), target)
	fn(b)
	if b.Elapsed {
		return nil
	}

	t := newTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
			b = Remaining(clock(), target)
			fn(b)
			if b.Elapsed {
				return nil
			}
		}
	}
}
