package notify

import (
	"database/sql"
	"time"

	"github.com/juju/clock"
)

// DefaultWindow is the look-back window used when a subscription has no
// timestamp watermark yet. It matches the usual scheduler interval.
const DefaultWindow = 15 * time.Minute

// Threshold decides whether a record is new. It captures "now" once so
// every finder in one digest sees the same instant.
type Threshold struct {
	now    time.Time
	window time.Duration
}

// NewThreshold captures the current time from clk. A non-positive window
// falls back to DefaultWindow.
func NewThreshold(clk clock.Clock, window time.Duration) Threshold {
	if clk == nil {
		clk = clock.WallClock
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return Threshold{now: clk.Now(), window: window}
}

// Now returns the captured instant.
func (t Threshold) Now() time.Time {
	return t.now
}

// Window returns the look-back window.
func (t Threshold) Window() time.Duration {
	return t.window
}

// Cutoff returns now - window.
func (t Threshold) Cutoff() time.Time {
	return t.now.Add(-t.window)
}

// Since returns the lower bound for a subscription: its own watermark, or
// the cutoff if the watermark was never set.
func (t Threshold) Since(watermark time.Time) time.Time {
	if watermark.IsZero() {
		return t.Cutoff()
	}
	return watermark
}

// IsNew reports whether ts is at or after since.
func IsNew(ts, since time.Time) bool {
	return !ts.Before(since)
}

// IsNewNull is IsNew for nullable timestamps. A null timestamp is never new.
func IsNewNull(ts sql.NullTime, since time.Time) bool {
	return ts.Valid && IsNew(ts.Time, since)
}
