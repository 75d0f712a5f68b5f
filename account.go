package notify

import (
	"context"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"golang.org/x/crypto/bcrypt"

	"github.com/coregx/notify/model"
)

// ActivationMailer sends the account activation email.
// Implemented by mail.Mailer.
type ActivationMailer interface {
	SendActivation(ctx context.Context, user model.User, key string) error
}

// ActivationOutcome is the result of following an activation link.
type ActivationOutcome string

const (
	// ActivationOK means the account was activated.
	ActivationOK ActivationOutcome = "activated"

	// ActivationAlreadyActive means the account had been activated before.
	ActivationAlreadyActive ActivationOutcome = "already_active"

	// ActivationExpired means the key had expired; a new one was emailed.
	ActivationExpired ActivationOutcome = "expired"
)

// Message returns the text shown to the user.
func (o ActivationOutcome) Message() string {
	switch o {
	case ActivationOK:
		return "Your account has been activated! Login to continue."
	case ActivationAlreadyActive:
		return "Your account has already been activated."
	case ActivationExpired:
		return "Your activation link has expired. A new link has been sent to your email."
	default:
		return ""
	}
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// SignupRequest carries a new account.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the request fields.
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 150), validation.Match(usernamePattern)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
	)
}

// AccountService handles signup and activation of site accounts.
type AccountService struct {
	users    UserRepository
	profiles ProfileRepository
	mailer   ActivationMailer
	clock    clock.Clock
	logger   Logger
	newKey   func() string
}

// AccountOption configures an AccountService.
type AccountOption func(*AccountService) error

// NewAccountService creates an AccountService.
//
// Required options:
//   - WithAccountRepositories: user and profile repositories
//   - WithActivationMailer: activation email sender
func NewAccountService(opts ...AccountOption) (*AccountService, error) {
	s := &AccountService{
		clock:  clock.WallClock,
		logger: &NoopLogger{},
		newKey: uuid.NewString,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply account option", err)
		}
	}

	if s.users == nil {
		return nil, NewError(ErrCodeConfiguration, "UserRepository is required (use WithAccountRepositories)")
	}
	if s.profiles == nil {
		return nil, NewError(ErrCodeConfiguration, "ProfileRepository is required (use WithAccountRepositories)")
	}
	if s.mailer == nil {
		return nil, NewError(ErrCodeConfiguration, "ActivationMailer is required (use WithActivationMailer)")
	}

	return s, nil
}

// WithAccountRepositories sets the required repositories.
func WithAccountRepositories(users UserRepository, profiles ProfileRepository) AccountOption {
	return func(s *AccountService) error {
		if users == nil {
			return fmt.Errorf("users cannot be nil")
		}
		if profiles == nil {
			return fmt.Errorf("profiles cannot be nil")
		}
		s.users = users
		s.profiles = profiles
		return nil
	}
}

// WithActivationMailer sets the activation email sender.
func WithActivationMailer(m ActivationMailer) AccountOption {
	return func(s *AccountService) error {
		if m == nil {
			return fmt.Errorf("mailer cannot be nil")
		}
		s.mailer = m
		return nil
	}
}

// WithAccountLogger sets the logger instance.
func WithAccountLogger(logger Logger) AccountOption {
	return func(s *AccountService) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithAccountClock sets the clock used for key expiry.
func WithAccountClock(clk clock.Clock) AccountOption {
	return func(s *AccountService) error {
		if clk == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		s.clock = clk
		return nil
	}
}

// Signup creates an inactive account and emails its activation link.
func (s *AccountService) Signup(ctx context.Context, req SignupRequest) (model.User, error) {
	if err := req.Validate(); err != nil {
		return model.User{}, NewErrorWithCause(ErrCodeValidation, "invalid signup request", err)
	}

	if _, err := s.users.FindByUsername(ctx, req.Username); err == nil {
		return model.User{}, NewError(ErrCodeValidation, "username is already taken")
	} else if !IsNoData(err) {
		return model.User{}, NewErrorWithCause(ErrCodeDatabase, "failed to check username", err)
	}
	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return model.User{}, NewError(ErrCodeValidation, "email is already registered")
	} else if !IsNoData(err) {
		return model.User{}, NewErrorWithCause(ErrCodeDatabase, "failed to check email", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, NewErrorWithCause(ErrCodeValidation, "failed to hash password", err)
	}

	now := s.clock.Now()
	user, err := s.users.Save(ctx, model.NewUser(req.Username, req.Email, string(hash), now))
	if err != nil {
		return model.User{}, NewErrorWithCause(ErrCodeDatabase, "failed to save user", err)
	}

	profile, err := s.profiles.Save(ctx, model.NewSubscriptionProfile(user.ID, s.newKey(), now))
	if err != nil {
		return model.User{}, NewErrorWithCause(ErrCodeDatabase, "failed to save activation profile", err)
	}

	if err := s.mailer.SendActivation(ctx, user, profile.ActivationKey); err != nil {
		return user, NewErrorWithCause(ErrCodeDelivery, "failed to send activation email", err)
	}

	s.logger.Infof("Account created: user=%d, username=%s", user.ID, user.Username)
	return user, nil
}

// Activate follows an activation link.
//
// Unknown keys return ErrCodeNotFound. An expired key is replaced, the new
// link is emailed and ActivationExpired is returned.
func (s *AccountService) Activate(ctx context.Context, key string) (ActivationOutcome, error) {
	profile, err := s.profiles.FindByActivationKey(ctx, key)
	if err != nil {
		if IsNoData(err) {
			return "", NewError(ErrCodeNotFound, "unknown activation key")
		}
		return "", NewErrorWithCause(ErrCodeDatabase, "failed to load activation profile", err)
	}

	user, err := s.users.Load(ctx, profile.UserID)
	if err != nil {
		return "", NewErrorWithCause(ErrCodeDatabase, "failed to load user", err)
	}

	if user.IsActive {
		return ActivationAlreadyActive, nil
	}

	now := s.clock.Now()
	if profile.IsExpired(now) {
		profile.Reissue(s.newKey(), now)
		if _, err := s.profiles.Save(ctx, profile); err != nil {
			return "", NewErrorWithCause(ErrCodeDatabase, "failed to reissue activation key", err)
		}
		if err := s.mailer.SendActivation(ctx, user, profile.ActivationKey); err != nil {
			return "", NewErrorWithCause(ErrCodeDelivery, "failed to resend activation email", err)
		}
		s.logger.Infof("Activation key reissued: user=%d", user.ID)
		return ActivationExpired, nil
	}

	user.Activate()
	if _, err := s.users.Save(ctx, user); err != nil {
		return "", NewErrorWithCause(ErrCodeDatabase, "failed to activate user", err)
	}

	s.logger.Infof("Account activated: user=%d", user.ID)
	return ActivationOK, nil
}
