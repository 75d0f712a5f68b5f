package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
)

// Users is an in-memory notify.UserRepository.
type Users struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]model.User
}

// NewUsers creates an empty store.
func NewUsers() *Users {
	return &Users{rows: make(map[int64]model.User)}
}

// Load implements notify.UserRepository.
func (r *Users) Load(_ context.Context, id int64) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.rows[id]
	if !ok {
		return model.User{}, notify.ErrNoData
	}
	return u, nil
}

// FindByUsername implements notify.UserRepository.
func (r *Users) FindByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.rows {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, notify.ErrNoData
}

// FindByEmail implements notify.UserRepository. Emails compare case-insensitively.
func (r *Users) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.rows {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, notify.ErrNoData
}

// Save implements notify.UserRepository.
func (r *Users) Save(_ context.Context, m model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		r.nextID++
		m.ID = r.nextID
	}
	r.rows[m.ID] = m
	return m, nil
}

// Profiles is an in-memory notify.ProfileRepository.
type Profiles struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]model.SubscriptionProfile
}

// NewProfiles creates an empty store.
func NewProfiles() *Profiles {
	return &Profiles{rows: make(map[int64]model.SubscriptionProfile)}
}

// FindByUserID implements notify.ProfileRepository.
func (r *Profiles) FindByUserID(_ context.Context, userID int64) (model.SubscriptionProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.rows {
		if p.UserID == userID {
			return p, nil
		}
	}
	return model.SubscriptionProfile{}, notify.ErrNoData
}

// FindByActivationKey implements notify.ProfileRepository.
func (r *Profiles) FindByActivationKey(_ context.Context, key string) (model.SubscriptionProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.rows {
		if p.ActivationKey == key {
			return p, nil
		}
	}
	return model.SubscriptionProfile{}, notify.ErrNoData
}

// Save implements notify.ProfileRepository.
func (r *Profiles) Save(_ context.Context, m model.SubscriptionProfile) (model.SubscriptionProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		r.nextID++
		m.ID = r.nextID
	}
	r.rows[m.ID] = m
	return m, nil
}
