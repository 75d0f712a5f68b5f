package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewUser(t *testing.T) {
	now := time.Now()
	u := NewUser("ada", "ada@example.org", "hash", now)

	assert.False(t, u.IsActive)
	assert.Equal(t, "notify_user", u.TableName())

	u.Activate()
	assert.True(t, u.IsActive)
}

func TestSubscriptionProfile_Expiry(t *testing.T) {
	issued := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	p := NewSubscriptionProfile(3, "key-1", issued)

	assert.Equal(t, issued.Add(ActivationKeyTTL), p.KeyExpires)
	assert.False(t, p.IsExpired(issued.Add(23*time.Hour)))
	assert.True(t, p.IsExpired(issued.Add(25*time.Hour)))

	later := issued.Add(48 * time.Hour)
	p.Reissue("key-2", later)

	assert.Equal(t, "key-2", p.ActivationKey)
	assert.False(t, p.IsExpired(later.Add(time.Hour)))
}
