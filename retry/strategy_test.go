package retry

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStrategy(t *testing.T) {
	s := DefaultStrategy()

	assert.Equal(t, 6, s.MaxAttempts)
	assert.Equal(t, time.Minute, s.BaseDelay)
	assert.Equal(t, time.Hour, s.MaxDelay)
	assert.Equal(t, 2.0, s.ExponentialBase)
	assert.Equal(t, 5, s.DLQThreshold)
}

func TestStrategy_Delay(t *testing.T) {
	s := DefaultStrategy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, time.Minute},
		{0, time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{4, 16 * time.Minute},
		{6, time.Hour},
		{20, time.Hour},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, s.Delay(tt.attempt))
		})
	}
}

func TestStrategy_Decide(t *testing.T) {
	s := DefaultStrategy()
	transient := errors.New("421 service not available")

	d := s.Decide(1, transient)
	assert.Equal(t, Retry, d.Action)
	assert.Equal(t, 2*time.Minute, d.Delay)
	assert.Empty(t, d.Reason)

	d = s.Decide(4, transient)
	assert.Equal(t, Retry, d.Action)

	d = s.Decide(5, transient)
	assert.Equal(t, DeadLetter, d.Action)
	assert.Equal(t, "Max retry attempts exceeded (5 >= 5)", d.Reason)
}

func TestStrategy_DecideAttemptLimit(t *testing.T) {
	s := Strategy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Minute, ExponentialBase: 2}

	assert.Equal(t, Retry, s.Decide(1, nil).Action)
	d := s.Decide(2, nil)
	assert.Equal(t, DeadLetter, d.Action)
	assert.Contains(t, d.Reason, "Attempt limit reached")
}

func TestStrategy_DecidePermanent(t *testing.T) {
	s := DefaultStrategy()
	err := fmt.Errorf("smtp send: %w", Permanent(errors.New("550 no such user")))

	d := s.Decide(1, err)
	assert.Equal(t, DeadLetter, d.Action)
	assert.Contains(t, d.Reason, "550 no such user")
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(errors.New("timeout")))

	base := errors.New("bad payload")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "bad payload", err.Error())
}

func TestStrategy_Schedule(t *testing.T) {
	schedule := DefaultStrategy().Schedule()

	assert.True(t, strings.HasPrefix(schedule, "Retry Schedule:\n"))
	assert.Contains(t, schedule, "Attempt 1 fails: retry after 2m0s")
	assert.Contains(t, schedule, "Attempt 4 fails: retry after 16m0s")
	assert.Contains(t, schedule, "Attempt 5 fails: move to DLQ")
	assert.NotContains(t, schedule, "Attempt 6")
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "retry", Retry.String())
	assert.Equal(t, "dead_letter", DeadLetter.String())
	assert.Equal(t, "action(7)", Action(7).String())
}
