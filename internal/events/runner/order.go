package runner

import (
	"context"
	"fmt"
	"iter"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

// AppliedOrder yields the events of ref by occurred_at, then insertion
// sequence. Each range over the result re-reads the store, and breaking out
// early releases it. Callers must not write to the store while iterating.
func (r *Runner) AppliedOrder(ctx context.Context, ref id.Ref) iter.Seq2[*models.Event, error] {
	return func(yield func(*models.Event, error) bool) {
		stopped := false
		err := r.store.Scan(ctx, ref, func(ev *models.Event) bool {
			if !yield(ev, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err == nil && !stopped {
			err = ctx.Err()
		}
		if err != nil && !stopped {
			yield(nil, storeError(err, ref))
		}
	}
}

// Events collects the applied order into a slice.
func (r *Runner) Events(ctx context.Context, ref id.Ref) ([]*models.Event, error) {
	return r.collect(ctx, ref)
}

// Replay recomputes the state of ref from its initial snapshot. It never
// writes.
func (r *Runner) Replay(ctx context.Context, ref id.Ref) (entities.Eventable, error) {
	initial, err := r.store.LoadInitial(ctx, ref)
	if err != nil {
		return nil, storeError(err, ref)
	}
	state := initial.Clone()
	for ev, err := range r.AppliedOrder(ctx, ref) {
		if err != nil {
			return nil, err
		}
		if err := r.reapply(state, ev); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeOf(err),
				fmt.Sprintf("replay failed at event %s (%s)", ev.ID, models.Unqualify(ev.Variant)))
		}
	}
	return state, nil
}

// Verification compares replayed and persisted state.
type Verification struct {
	Ref       id.Ref             `json:"eventable"`
	Persisted entities.Eventable `json:"persisted"`
	Replayed  entities.Eventable `json:"replayed"`
	Matches   bool               `json:"matches"`
}

// Verify replays ref and reports whether the result equals persisted state.
func (r *Runner) Verify(ctx context.Context, ref id.Ref) (*Verification, error) {
	persisted, err := r.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	replayed, err := r.Replay(ctx, ref)
	if err != nil {
		return nil, err
	}
	v := &Verification{
		Ref:       ref,
		Persisted: persisted,
		Replayed:  replayed,
		Matches:   entities.Equal(persisted, replayed),
	}
	if !v.Matches {
		r.logger.WarnContext(ctx, "replayed state differs from persisted state",
			"eventable_type", ref.Kind,
			"eventable_id", ref.ID,
		)
	}
	return v, nil
}
