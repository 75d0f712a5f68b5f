package relica

import (
	"context"
	"database/sql"
	"strings"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
	"github.com/coregx/relica"
)

// UserRepository implements notify.UserRepository using Relica.
type UserRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewUserRepository creates a new UserRepository with default table prefix.
func NewUserRepository(sqlDB *sql.DB, driverName string) *UserRepository {
	return NewUserRepositoryWithPrefix(sqlDB, driverName, defaultPrefix)
}

// NewUserRepositoryWithPrefix creates a new UserRepository with custom table prefix.
func NewUserRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *UserRepository {
	return &UserRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *UserRepository) tableName() string {
	return r.tablePrefix + "user"
}

// Load retrieves a user by ID.
func (r *UserRepository) Load(ctx context.Context, id int64) (model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&user)
	if err != nil {
		return user, loadErr(err, "failed to load user")
	}
	return user, nil
}

// FindByUsername retrieves a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("username = ?", username).One(&user)
	if err != nil {
		return user, loadErr(err, "failed to find user by username")
	}
	return user, nil
}

// FindByEmail retrieves a user by email address, ignoring case.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		One(&user)
	if err != nil {
		return user, loadErr(err, "failed to find user by email")
	}
	return user, nil
}

// Save creates or updates a user.
func (r *UserRepository) Save(ctx context.Context, m model.User) (model.User, error) {
	if m.ID == 0 {
		if err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert(); err != nil {
			return m, insertErr(err, "failed to insert user")
		}
		return m, nil
	}
	if err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Update(); err != nil {
		return m, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to update user", err)
	}
	return m, nil
}

// ProfileRepository implements notify.ProfileRepository using Relica.
type ProfileRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewProfileRepository creates a new ProfileRepository with default table prefix.
func NewProfileRepository(sqlDB *sql.DB, driverName string) *ProfileRepository {
	return NewProfileRepositoryWithPrefix(sqlDB, driverName, defaultPrefix)
}

// NewProfileRepositoryWithPrefix creates a new ProfileRepository with custom table prefix.
func NewProfileRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *ProfileRepository {
	return &ProfileRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *ProfileRepository) tableName() string {
	return r.tablePrefix + "subscription_profile"
}

// FindByUserID retrieves the profile of a user.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID int64) (model.SubscriptionProfile, error) {
	var profile model.SubscriptionProfile
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("user_id = ?", userID).One(&profile)
	if err != nil {
		return profile, loadErr(err, "failed to find profile")
	}
	return profile, nil
}

// FindByActivationKey retrieves a profile by activation key.
func (r *ProfileRepository) FindByActivationKey(ctx context.Context, key string) (model.SubscriptionProfile, error) {
	var profile model.SubscriptionProfile
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("activation_key = ?", key).One(&profile)
	if err != nil {
		return profile, loadErr(err, "failed to find profile by key")
	}
	return profile, nil
}

// Save creates or updates a profile.
func (r *ProfileRepository) Save(ctx context.Context, m model.SubscriptionProfile) (model.SubscriptionProfile, error) {
	if m.ID == 0 {
		if err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert(); err != nil {
			return m, insertErr(err, "failed to insert profile")
		}
		return m, nil
	}
	if err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Update(); err != nil {
		return m, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to update profile", err)
	}
	return m, nil
}
