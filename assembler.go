package notify

import (
	"context"
	"fmt"

	"github.com/coregx/notify/model"
)

// Assembler runs every finder for one user, builds the digest and hands it
// to the dispatcher.
//
// Watermark writes collected by the finders are applied only after the
// digest was dispatched. A run interrupted before that point reports the
// same updates again next time; it never loses them.
type Assembler struct {
	finders    []Finder
	dispatcher Dispatcher
	logger     Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler) error

// AssembleResult describes what happened for one user.
type AssembleResult struct {
	// Digest is the assembled digest, nil when nothing was new.
	Digest *model.Digest

	// Dispatch identifies the queued digest, nil when nothing was sent.
	Dispatch *DispatchResult

	// FailedKinds lists the kinds whose finder returned an error.
	FailedKinds []model.Kind

	// Conflicts counts watermark writes lost to a concurrent run.
	Conflicts int
}

// Sent reports whether a digest was queued.
func (r AssembleResult) Sent() bool {
	return r.Dispatch != nil
}

// NewAssembler creates an Assembler.
//
// Required options:
//   - WithFinders: at least one finder
//   - WithDispatcher: where finished digests go
//
// Example:
//
//	assembler, err := notify.NewAssembler(
//	    notify.WithFinders(notify.DefaultFinders(legislation, watermarks, searcher, logger)...),
//	    notify.WithDispatcher(dispatcher),
//	    notify.WithAssemblerLogger(logger),
//	)
func NewAssembler(opts ...AssemblerOption) (*Assembler, error) {
	a := &Assembler{logger: &NoopLogger{}}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply assembler option", err)
		}
	}

	if len(a.finders) == 0 {
		return nil, NewError(ErrCodeConfiguration, "at least one Finder is required (use WithFinders)")
	}
	if a.dispatcher == nil {
		return nil, NewError(ErrCodeConfiguration, "Dispatcher is required (use WithDispatcher)")
	}

	return a, nil
}

// WithFinders sets the finders, run in the given order.
func WithFinders(finders ...Finder) AssemblerOption {
	return func(a *Assembler) error {
		for i, f := range finders {
			if f == nil {
				return fmt.Errorf("finder %d is nil", i)
			}
		}
		a.finders = append(a.finders, finders...)
		return nil
	}
}

// WithDispatcher sets the dispatcher.
func WithDispatcher(d Dispatcher) AssemblerOption {
	return func(a *Assembler) error {
		if d == nil {
			return fmt.Errorf("dispatcher cannot be nil")
		}
		a.dispatcher = d
		return nil
	}
}

// WithAssemblerLogger sets the logger instance.
func WithAssemblerLogger(logger Logger) AssemblerOption {
	return func(a *Assembler) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		a.logger = logger
		return nil
	}
}

// Assemble builds and dispatches the digest of one user.
//
// A finder error is logged and only that kind is skipped. An empty digest
// dispatches nothing but still commits the watermark writes. A dispatch
// error is returned and no watermark moves.
func (a *Assembler) Assemble(ctx context.Context, recipient model.Recipient, subs model.UserSubscriptions, th Threshold) (AssembleResult, error) {
	var result AssembleResult

	digest := model.NewDigest(recipient, th.Now())
	found := make([]Findings, 0, len(a.finders))

	for _, f := range a.finders {
		if subs.Count(f.Kind()) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		findings, err := f.FindUpdates(ctx, subs, th)
		if err != nil {
			finderErrors.WithLabelValues(string(f.Kind())).Inc()
			a.logger.Errorf("Finder %s failed for user %d: %v", f.Kind(), recipient.UserID, err)
			result.FailedKinds = append(result.FailedKinds, f.Kind())
			continue
		}

		for _, u := range findings.Updates {
			added, err := digest.Add(u)
			if err != nil {
				return result, fmt.Errorf("failed to add %s update: %w", f.Kind(), err)
			}
			if added {
				updatesFound.WithLabelValues(string(f.Kind())).Inc()
			}
		}
		found = append(found, findings)
	}

	if !digest.Empty() {
		dispatched, err := a.dispatcher.Dispatch(ctx, digest)
		if err != nil {
			return result, fmt.Errorf("failed to dispatch digest for user %d: %w", recipient.UserID, err)
		}
		result.Digest = digest
		result.Dispatch = dispatched
	}

	for _, findings := range found {
		_, conflicts, err := findings.Commit(ctx, a.logger)
		result.Conflicts += conflicts
		if err != nil {
			a.logger.Errorf("Failed to commit %s watermarks for user %d: %v", findings.Kind, recipient.UserID, err)
		}
	}

	return result, nil
}
