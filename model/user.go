package model

import (
	"time"
)

// ActivationKeyTTL is how long a freshly issued activation key stays valid.
const ActivationKeyTTL = 24 * time.Hour

// User is a site account that can own subscriptions.
// Accounts are created inactive and become active once the emailed key is used.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for User.
func (u User) TableName() string {
	return tablePrefix + "user"
}

// NewUser creates an inactive user.
func NewUser(username, email, passwordHash string, now time.Time) User {
	return User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     false,
		CreatedAt:    now,
	}
}

// Activate marks the account as usable.
func (u *User) Activate() {
	u.IsActive = true
}

// SubscriptionProfile holds the activation state for a user.
type SubscriptionProfile struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"userID" db:"user_id"`
	ActivationKey string    `json:"-" db:"activation_key"`
	KeyExpires    time.Time `json:"keyExpires" db:"key_expires"`
}

// TableName returns the database table name for SubscriptionProfile.
func (p SubscriptionProfile) TableName() string {
	return tablePrefix + "subscription_profile"
}

// NewSubscriptionProfile issues an activation key valid for ActivationKeyTTL.
func NewSubscriptionProfile(userID int64, key string, now time.Time) SubscriptionProfile {
	return SubscriptionProfile{
		UserID:        userID,
		ActivationKey: key,
		KeyExpires:    now.Add(ActivationKeyTTL),
	}
}

// IsExpired reports whether the activation key can no longer be used at now.
func (p *SubscriptionProfile) IsExpired(now time.Time) bool {
	return now.After(p.KeyExpires)
}

// Reissue replaces an expired key and restarts its validity window.
func (p *SubscriptionProfile) Reissue(key string, now time.Time) {
	p.ActivationKey = key
	p.KeyExpires = now.Add(ActivationKeyTTL)
}
