package filter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/lineage/internal/genealogy"
)

// ProgressFunc observes an evaluation after each candidate.
type ProgressFunc func(done, total int)

type applyOptions struct {
	progress ProgressFunc
}

// ApplyOption configures Apply.
type ApplyOption func(*applyOptions)

// WithProgress reports progress once per candidate.
func WithProgress(fn ProgressFunc) ApplyOption {
	return func(o *applyOptions) { o.progress = fn }
}

// Apply evaluates the filter over handles, or over every record of the
// filter's namespace when handles is nil, and returns the matching handles in
// input order. Cancellation of ctx is checked before each candidate and
// yields ErrAborted with no partial result. Rules are reset whatever the
// outcome.
func (f *GenericFilter) Apply(ctx context.Context, env *Env, handles []string, opts ...ApplyOption) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}
	return f.apply(ctx, env, handles, o)
}

// MatchAll evaluates the filter over its whole namespace without taking the
// evaluation lock. Rules use it at prepare time to collect the matches of a
// referenced filter while the referencing filter is being applied.
func (f *GenericFilter) MatchAll(ctx context.Context, env *Env) ([]string, error) {
	return f.apply(ctx, env, nil, applyOptions{})
}

func (f *GenericFilter) apply(ctx context.Context, env *Env, handles []string, o applyOptions) ([]string, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	if handles == nil {
		all, err := env.DB.Handles(ctx, f.namespace)
		if err != nil {
			return nil, fmt.Errorf("list %s candidates: %w", f.namespace, err)
		}
		handles = all
	}

	if err := f.Prepare(ctx, env); err != nil {
		return nil, err
	}
	defer f.Reset()

	matched := make([]string, 0)
	for i, handle := range handles {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)
		}

		obj, err := env.DB.Get(ctx, f.namespace, handle)
		switch {
		case errors.Is(err, genealogy.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("load %s %s: %w", f.namespace, handle, err)
		case f.Check(ctx, env.DB, obj):
			matched = append(matched, handle)
		}

		if o.progress != nil {
			o.progress(i+1, len(handles))
		}
	}

	env.Log().Debug("filter applied",
		"filter", f.Label(),
		"candidates", len(handles),
		"matches", len(matched),
		"elapsed", time.Since(start),
	)
	return matched, nil
}
