package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/coregx/notify/model"
)

// Skip reasons recorded in the notification log.
const (
	SkipReasonNoUpdates = "no updates"
	SkipReasonNoEmail   = "no email address"
)

// RunRequest selects who a digest run covers.
type RunRequest struct {
	// Usernames restricts the run to the named users. Empty means every
	// user holding at least one subscription.
	Usernames []string

	// Window is the look-back used for timestamp subscriptions without a
	// watermark. Zero means DefaultWindow.
	Window time.Duration
}

// RunReport summarizes one digest run.
type RunReport struct {
	UsersScanned int       `json:"usersScanned"`
	Dispatched   int       `json:"dispatched"`
	Failures     int       `json:"failures"`
	Conflicts    int       `json:"conflicts"`
	StartedAt    time.Time `json:"startedAt"`
	Duration     string    `json:"duration"`
}

// Runner performs digest runs: for every selected user it loads the
// subscriptions and lets the Assembler build and dispatch the digest.
//
// A failure for one user is logged and counted; it never stops the run.
type Runner struct {
	subscriptions SubscriptionRepository
	users         UserRepository
	assembler     *Assembler
	logs          NotificationLogRepository
	clock         clock.Clock
	logger        Logger
	concurrency   int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner) error

// NewRunner creates a Runner.
//
// Required options:
//   - WithRunnerRepositories: subscription and user repositories
//   - WithAssembler: the per-user assembler
//
// Optional options:
//   - WithRunnerLogger, WithRunnerClock
//   - WithConcurrency: users processed in parallel (default: 1)
//   - WithRunnerNotificationLog: record skipped users
func NewRunner(opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		clock:       clock.WallClock,
		logger:      &NoopLogger{},
		concurrency: 1,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply runner option", err)
		}
	}

	if r.subscriptions == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionRepository is required (use WithRunnerRepositories)")
	}
	if r.users == nil {
		return nil, NewError(ErrCodeConfiguration, "UserRepository is required (use WithRunnerRepositories)")
	}
	if r.assembler == nil {
		return nil, NewError(ErrCodeConfiguration, "Assembler is required (use WithAssembler)")
	}

	return r, nil
}

// WithRunnerRepositories sets the required repositories.
func WithRunnerRepositories(subscriptions SubscriptionRepository, users UserRepository) RunnerOption {
	return func(r *Runner) error {
		if subscriptions == nil {
			return fmt.Errorf("subscriptions cannot be nil")
		}
		if users == nil {
			return fmt.Errorf("users cannot be nil")
		}
		r.subscriptions = subscriptions
		r.users = users
		return nil
	}
}

// WithAssembler sets the assembler.
func WithAssembler(a *Assembler) RunnerOption {
	return func(r *Runner) error {
		if a == nil {
			return fmt.Errorf("assembler cannot be nil")
		}
		r.assembler = a
		return nil
	}
}

// WithRunnerLogger sets the logger instance.
func WithRunnerLogger(logger Logger) RunnerOption {
	return func(r *Runner) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		return nil
	}
}

// WithRunnerClock sets the clock thresholds are taken from.
func WithRunnerClock(clk clock.Clock) RunnerOption {
	return func(r *Runner) error {
		if clk == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		r.clock = clk
		return nil
	}
}

// WithConcurrency sets how many users are processed in parallel.
// Must be > 0.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) error {
		if n <= 0 {
			return fmt.Errorf("concurrency must be > 0, got %d", n)
		}
		r.concurrency = n
		return nil
	}
}

// WithRunnerNotificationLog records users that were skipped.
func WithRunnerNotificationLog(repo NotificationLogRepository) RunnerOption {
	return func(r *Runner) error {
		if repo == nil {
			return fmt.Errorf("notification log repository cannot be nil")
		}
		r.logs = repo
		return nil
	}
}

// Run performs one digest run.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunReport, error) {
	started := r.clock.Now()
	report := RunReport{StartedAt: started}
	digestRuns.Inc()

	userIDs, err := r.selectUsers(ctx, req.Usernames)
	if err != nil {
		return report, err
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.concurrency)

	for _, id := range userIDs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := r.RunForUser(ctx, id, req.Window)

			mu.Lock()
			defer mu.Unlock()
			report.UsersScanned++
			report.Conflicts += result.Conflicts
			if err != nil {
				report.Failures++
				usersProcessed.WithLabelValues("failed").Inc()
				r.logger.Errorf("Digest failed for user %d: %v", id, err)
				return nil
			}
			if result.Sent() {
				report.Dispatched++
				usersProcessed.WithLabelValues("dispatched").Inc()
			} else {
				usersProcessed.WithLabelValues("skipped").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := r.clock.Now().Sub(started)
	runDuration.Observe(elapsed.Seconds())
	report.Duration = elapsed.String()

	r.logger.Infof("Digest run finished: users=%d, dispatched=%d, failures=%d, conflicts=%d",
		report.UsersScanned, report.Dispatched, report.Failures, report.Conflicts)

	return report, ctx.Err()
}

// RunForUser builds and dispatches the digest of one user.
func (r *Runner) RunForUser(ctx context.Context, userID int64, window time.Duration) (AssembleResult, error) {
	user, err := r.users.Load(ctx, userID)
	if err != nil {
		return AssembleResult{}, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	subs, err := r.subscriptions.ListForUser(ctx, userID)
	if err != nil {
		return AssembleResult{}, fmt.Errorf("failed to list subscriptions of user %d: %w", userID, err)
	}
	if subs.Empty() {
		return AssembleResult{}, nil
	}
	if user.Email == "" {
		r.logger.Warnf("User %s has subscriptions but no email address", user.Username)
		r.recordSkip(ctx, user, SkipReasonNoEmail)
		return AssembleResult{}, nil
	}

	recipient := model.Recipient{UserID: user.ID, Username: user.Username, Email: user.Email}
	result, err := r.assembler.Assemble(ctx, recipient, subs, NewThreshold(r.clock, window))
	if err != nil {
		return result, err
	}
	if !result.Sent() {
		r.recordSkip(ctx, user, SkipReasonNoUpdates)
	}
	return result, nil
}

// Schedule runs a digest pass every interval until ctx is canceled.
func (r *Runner) Schedule(ctx context.Context, interval time.Duration, req RunRequest) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Digest scheduler started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Digest scheduler stopped")
			return
		case <-ticker.C:
			if _, err := r.Run(ctx, req); err != nil && ctx.Err() == nil {
				r.logger.Errorf("Digest run failed: %v", err)
			}
		}
	}
}

func (r *Runner) selectUsers(ctx context.Context, usernames []string) ([]int64, error) {
	if len(usernames) == 0 {
		ids, err := r.subscriptions.ListUserIDs(ctx)
		if err = noData(err); err != nil {
			return nil, NewErrorWithCause(ErrCodeDatabase, "failed to list subscribed users", err)
		}
		return ids, nil
	}

	ids := make([]int64, 0, len(usernames))
	for _, name := range usernames {
		user, err := r.users.FindByUsername(ctx, name)
		if err != nil {
			if IsNoData(err) {
				r.logger.Warnf("Unknown user %q, skipping", name)
				continue
			}
			return nil, NewErrorWithCause(ErrCodeDatabase, "failed to find user "+name, err)
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}

func (r *Runner) recordSkip(ctx context.Context, user model.User, reason string) {
	if r.logs == nil {
		return
	}
	if _, err := r.logs.Save(ctx, model.NewSkippedLog(user.ID, user.Email, reason)); err != nil {
		r.logger.Warnf("Failed to record skipped digest for user %d: %v", user.ID, err)
	}
}
