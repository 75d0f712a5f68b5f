// Package retry decides what happens to a digest whose delivery failed:
// try again after a backoff delay, or park it in the dead letter queue.
package retry

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Strategy configures exponential backoff for digest deliveries.
//
// The delay before attempt n+1 is min(BaseDelay * ExponentialBase^n, MaxDelay).
// With the defaults (1m base, doubling, 1h cap, DLQ after 5 attempts):
//
//	after attempt 1: 2m
//	after attempt 2: 4m
//	after attempt 3: 8m
//	after attempt 4: 16m
//	after attempt 5: dead letter queue
type Strategy struct {
	MaxAttempts     int           // attempts allowed for one queue item
	BaseDelay       time.Duration // delay unit
	MaxDelay        time.Duration // delay cap
	ExponentialBase float64       // backoff multiplier
	DLQThreshold    int           // park after this many failed attempts
}

// DefaultStrategy returns the strategy used when none is configured.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxAttempts:     6,
		BaseDelay:       time.Minute,
		MaxDelay:        time.Hour,
		ExponentialBase: 2.0,
		DLQThreshold:    5,
	}
}

// Delay returns the wait before the next try after attempt failed attempts.
func (s Strategy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return s.BaseDelay
	}

	delay := float64(s.BaseDelay) * math.Pow(s.ExponentialBase, float64(attempt))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// Action is the outcome of a failed attempt.
type Action int

const (
	// Retry schedules another attempt after Decision.Delay.
	Retry Action = iota

	// DeadLetter parks the digest for an operator.
	DeadLetter
)

func (a Action) String() string {
	switch a {
	case Retry:
		return "retry"
	case DeadLetter:
		return "dead_letter"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision tells the worker what to do with a failed queue item.
type Decision struct {
	Action Action
	Delay  time.Duration
	Reason string
}

// Decide classifies a failure. attempts is the number of failed attempts
// including the one that produced err.
func (s Strategy) Decide(attempts int, err error) Decision {
	if IsPermanent(err) {
		return Decision{Action: DeadLetter, Reason: fmt.Sprintf("Permanent failure after %d attempts: %v", attempts, err)}
	}
	if s.DLQThreshold > 0 && attempts >= s.DLQThreshold {
		return Decision{Action: DeadLetter, Reason: fmt.Sprintf("Max retry attempts exceeded (%d >= %d)", attempts, s.DLQThreshold)}
	}
	if s.MaxAttempts > 0 && attempts >= s.MaxAttempts {
		return Decision{Action: DeadLetter, Reason: fmt.Sprintf("Attempt limit reached (%d >= %d)", attempts, s.MaxAttempts)}
	}
	return Decision{Action: Retry, Delay: s.Delay(attempts)}
}

// Schedule describes the retry plan, one line per attempt.
func (s Strategy) Schedule() string {
	var b strings.Builder
	b.WriteString("Retry Schedule:\n")
	for i := 1; i <= s.MaxAttempts; i++ {
		d := s.Decide(i, nil)
		if d.Action == DeadLetter {
			fmt.Fprintf(&b, "  Attempt %d fails: move to DLQ\n", i)
			break
		}
		fmt.Fprintf(&b, "  Attempt %d fails: retry after %v\n", i, d.Delay)
	}
	return b.String()
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, e.g. a rejected recipient or a
// payload that cannot be decoded. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err or anything it wraps was marked Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
