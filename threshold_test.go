package notify

import (
	"database/sql"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
)

func TestThreshold_Cutoff(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	th := NewThreshold(testclock.NewClock(now), 15*time.Minute)

	assert.Equal(t, now, th.Now())
	assert.Equal(t, now.Add(-15*time.Minute), th.Cutoff())
}

func TestThreshold_DefaultWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	th := NewThreshold(testclock.NewClock(now), 0)

	assert.Equal(t, DefaultWindow, th.Window())
}

func TestThreshold_Since(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	th := NewThreshold(testclock.NewClock(now), time.Hour)

	watermark := now.Add(-3 * time.Hour)
	assert.Equal(t, watermark, th.Since(watermark))
	assert.Equal(t, now.Add(-time.Hour), th.Since(time.Time{}))
}

func TestIsNew(t *testing.T) {
	since := time.Date(2024, 6, 1, 11, 45, 0, 0, time.UTC)

	tests := []struct {
		name     string
		ts       time.Time
		expected bool
	}{
		{"exactly at threshold", since, true},
		{"after threshold", since.Add(time.Second), true},
		{"before threshold", since.Add(-time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNew(tt.ts, since))
			assert.Equal(t, tt.expected, IsNewNull(sql.NullTime{Time: tt.ts, Valid: true}, since))
		})
	}

	assert.False(t, IsNewNull(sql.NullTime{}, since))
}
