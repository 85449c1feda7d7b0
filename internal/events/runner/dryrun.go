package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

// EventVerdict is the dry-run outcome of one event.
type EventVerdict struct {
	ID         id.EventID        `json:"id"`
	Variant    string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Valid      bool              `json:"valid"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// DryRunReport is the verdict of a dry run. Err is set when the run could not
// complete (unknown eventable, cancelled context); the other fields then
// describe whatever was checked before it stopped.
type DryRunReport struct {
	Ref              id.Ref            `json:"eventable"`
	Events           []EventVerdict    `json:"events"`
	Valid            bool              `json:"valid"`
	Errors           map[string]string `json:"errors,omitempty"`
	MatchesPersisted bool              `json:"matches_persisted"`
	Err              error             `json:"-"`
}

// DryRun re-applies every event of ref, in applied order, to an in-memory
// copy of its initial state and records whether each event leaves that copy
// valid. It then validates the persisted state. Nothing is written and no
// side effect runs, whatever the outcome.
func (r *Runner) DryRun(ctx context.Context, ref id.Ref) DryRunReport {
	ctx, span := r.tracer.Start(ctx, "runner.DryRun", trace.WithAttributes(
		attribute.String("eventable.type", string(ref.Kind)),
		attribute.String("eventable.id", ref.ID.String()),
	))
	defer span.End()

	report := DryRunReport{Ref: ref, Events: []EventVerdict{}}
	fail := func(err error) DryRunReport {
		report.Err = err
		report.Valid = false
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return report
	}

	persisted, _, err := r.store.Load(ctx, ref)
	if err != nil {
		return fail(storeError(err, ref))
	}
	initial, err := r.store.LoadInitial(ctx, ref)
	if err != nil {
		return fail(storeError(err, ref))
	}
	events, err := r.collect(ctx, ref)
	if err != nil {
		return fail(err)
	}

	running := initial.Clone()
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return fail(dErrors.Wrap(err, dErrors.CodeTimeout, "dry run cancelled"))
		}
		verdict := EventVerdict{ID: ev.ID, Variant: models.Unqualify(ev.Variant), OccurredAt: ev.OccurredAt}

		next := running.Clone()
		if err := r.reapply(next, ev); err != nil {
			verdict.Errors = errorFields(err)
		} else {
			verdict.Errors = next.Validate()
			running = next
		}
		verdict.Valid = len(verdict.Errors) == 0
		report.Events = append(report.Events, verdict)
	}

	report.Errors = persisted.Validate()
	report.Valid = len(report.Errors) == 0
	report.MatchesPersisted = entities.Equal(running, persisted)
	span.SetAttributes(
		attribute.Int("events", len(events)),
		attribute.Bool("valid", report.Valid),
	)
	return report
}

// errorFields flattens an error into the field map reported for an event.
func errorFields(err error) map[string]string {
	if fields := dErrors.FieldsOf(err); len(fields) > 0 {
		return fields
	}
	msg := err.Error()
	if de, ok := dErrors.As(err); ok {
		msg = de.Message
	}
	return map[string]string{"base": msg}
}
