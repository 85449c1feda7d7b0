// Package runner applies events to eventables. Every apply validates the
// intent against the registry, projects it onto a clone of the entity and
// commits event, entity and notification task together.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	"movetrack/internal/events/registry"
	"movetrack/internal/events/store"
	nmodels "movetrack/internal/notifications/models"
	"movetrack/internal/platform/metrics"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
	"movetrack/pkg/platform/sentinel"
)

// Store is the persistence the runner needs. Implementations live in
// internal/events/store.
type Store interface {
	Create(ctx context.Context, e entities.Eventable, task *nmodels.Task, now time.Time) error
	Load(ctx context.Context, ref id.Ref) (entities.Eventable, int64, error)
	LoadInitial(ctx context.Context, ref id.Ref) (entities.Eventable, error)
	// Scan yields events in applied order until fn returns false.
	Scan(ctx context.Context, ref id.Ref, fn func(*models.Event) bool) error
	LastEvent(ctx context.Context, ref id.Ref) (*models.Event, error)
	Commit(ctx context.Context, c store.Commit) error
}

// RelationshipResolver checks that a relationship id refers to an existing
// entity of the given kind.
type RelationshipResolver interface {
	Exists(ctx context.Context, kind, ref string) (bool, error)
}

// EffectHandler executes one post-commit side effect.
type EffectHandler func(ctx context.Context, ref id.Ref, effect models.Effect) error

const (
	maxCommitAttempts = 3
	effectTimeout     = 10 * time.Second
	tracerName        = "movetrack/internal/events/runner"
)

// Runner is safe for concurrent use.
type Runner struct {
	registry *registry.Registry
	store    Store
	resolver RelationshipResolver
	locker   Locker
	effects  map[string]EffectHandler
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	pending sync.WaitGroup
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithLocker(l Locker) Option {
	return func(r *Runner) {
		r.locker = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithEffectHandler registers the handler for effects named name.
func WithEffectHandler(name string, h EffectHandler) Option {
	return func(r *Runner) {
		r.effects[name] = h
	}
}

func New(reg *registry.Registry, st Store, resolver RelationshipResolver, opts ...Option) *Runner {
	r := &Runner{
		registry: reg,
		store:    st,
		resolver: resolver,
		locker:   NewShardedLocker(),
		effects:  map[string]EffectHandler{},
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Registry returns the variant registry the runner validates against.
func (r *Runner) Registry() *registry.Registry { return r.registry }

// Create persists a new eventable. Its state becomes the replay origin.
func (r *Runner) Create(ctx context.Context, e entities.Eventable) error {
	if problems := e.Validate(); len(problems) > 0 {
		return dErrors.WithFields(dErrors.CodeValidation, fmt.Sprintf("%s is invalid", e.Ref().Kind), problems)
	}
	now := models.NormalizeTime(r.now())
	task := nmodels.NewTask(e.Ref(), nmodels.ActionCreate, now)
	if err := r.store.Create(ctx, e, task, now); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("%s already exists", e.Ref()))
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create eventable")
	}
	r.logger.InfoContext(ctx, "eventable created",
		"eventable_type", e.Ref().Kind,
		"eventable_id", e.Ref().ID,
	)
	return nil
}

// Load returns the persisted state of an eventable.
func (r *Runner) Load(ctx context.Context, ref id.Ref) (entities.Eventable, error) {
	e, _, err := r.store.Load(ctx, ref)
	if err != nil {
		return nil, storeError(err, ref)
	}
	return e, nil
}

// Apply records one event against ref. On success it returns the updated
// entity and the persisted event; on failure nothing is persisted.
func (r *Runner) Apply(ctx context.Context, ref id.Ref, intent models.Intent) (entities.Eventable, *models.Event, error) {
	ctx, span := r.tracer.Start(ctx, "runner.Apply", trace.WithAttributes(
		attribute.String("eventable.type", string(ref.Kind)),
		attribute.String("eventable.id", ref.ID.String()),
		attribute.String("event.variant", models.Unqualify(intent.Variant)),
	))
	defer span.End()

	start := time.Now()
	updated, ev, effects, err := r.apply(ctx, ref, intent)
	r.metrics.ObserveApply(time.Since(start))
	if err != nil {
		code := dErrors.CodeOf(err)
		r.metrics.IncrementRejected(string(code))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		level := slog.LevelInfo
		if code == dErrors.CodeInternal {
			level = slog.LevelError
		}
		r.logger.Log(ctx, level, "event rejected",
			"eventable_type", ref.Kind,
			"eventable_id", ref.ID,
			"variant", intent.Variant,
			"code", code,
			"error", err,
		)
		return nil, nil, err
	}

	r.metrics.IncrementApplied(models.Unqualify(ev.Variant))
	r.logger.InfoContext(ctx, "event applied",
		"eventable_type", ref.Kind,
		"eventable_id", ref.ID,
		"variant", ev.Variant,
		"event_id", ev.ID,
		"seq", ev.Seq,
	)
	r.runEffects(ctx, ref, effects)
	return updated, ev, nil
}

func (r *Runner) apply(ctx context.Context, ref id.Ref, intent models.Intent) (entities.Eventable, *models.Event, []models.Effect, error) {
	variant, err := r.registry.Resolve(ref.Kind, intent.Variant)
	if err != nil {
		return nil, nil, nil, err
	}
	details, err := variant.Validate(intent.Details)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := r.resolveRelationships(ctx, variant, details); err != nil {
		return nil, nil, nil, err
	}

	ev := r.newEvent(ref, variant, intent, details)

	for attempt := 1; ; attempt++ {
		updated, effects, err := r.commit(ctx, ref, variant, ev)
		if !errors.Is(err, sentinel.ErrConflict) {
			return updated, ev, effects, err
		}
		r.metrics.IncrementCommitConflicts()
		if attempt == maxCommitAttempts {
			return nil, nil, nil, dErrors.Wrap(err, dErrors.CodeConflict,
				"eventable was modified concurrently, retry the request")
		}
		r.logger.DebugContext(ctx, "lock version conflict, retrying apply",
			"eventable_id", ref.ID, "attempt", attempt)
	}
}

func (r *Runner) newEvent(ref id.Ref, variant *registry.Variant, intent models.Intent, details map[string]any) *models.Event {
	now := models.NormalizeTime(r.now())
	occurred := now
	if !intent.OccurredAt.IsZero() {
		occurred = models.NormalizeTime(intent.OccurredAt)
	}
	recorded := occurred
	if !intent.RecordedAt.IsZero() {
		recorded = models.NormalizeTime(intent.RecordedAt)
	}
	return &models.Event{
		ID:         id.NewEventID(),
		Eventable:  ref,
		Variant:    variant.Name(),
		OccurredAt: occurred,
		RecordedAt: recorded,
		CreatedBy:  intent.CreatedBy,
		Notes:      intent.Notes,
		Details:    details,
		SupplierID: intent.SupplierID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (r *Runner) resolveRelationships(ctx context.Context, variant *registry.Variant, details map[string]any) error {
	problems := map[string]string{}
	for _, rel := range variant.Relationships(details) {
		ok, err := r.resolver.Exists(ctx, rel.Kind, rel.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve relationships")
		}
		if !ok {
			problems[rel.Field] = fmt.Sprintf("does not reference an existing %s", rel.Kind)
		}
	}
	if len(problems) > 0 {
		return dErrors.WithFields(dErrors.CodeUnresolvedRelationship,
			fmt.Sprintf("%s references unknown entities", variant.ShortName()), problems)
	}
	return nil
}

// commit projects ev under the eventable lock and persists the result.
func (r *Runner) commit(ctx context.Context, ref id.Ref, variant *registry.Variant, ev *models.Event) (entities.Eventable, []models.Effect, error) {
	unlock, err := r.locker.Lock(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	current, version, err := r.store.Load(ctx, ref)
	if err != nil {
		return nil, nil, storeError(err, ref)
	}

	next, effects, err := r.project(ctx, current, variant, ev)
	if err != nil {
		return nil, nil, err
	}
	if problems := next.Validate(); len(problems) > 0 {
		return nil, nil, dErrors.WithFields(dErrors.CodePostTriggerValidation,
			fmt.Sprintf("%s would leave the %s invalid", variant.ShortName(), ref.Kind), problems)
	}

	action := nmodels.ActionUpdate
	if next.Status() != current.Status() {
		action = nmodels.ActionUpdateStatus
	}

	ev.Seq = 0
	err = r.store.Commit(ctx, store.Commit{
		Event:           ev,
		Entity:          next,
		ExpectedVersion: version,
		Task:            nmodels.NewTask(ref, action, ev.CreatedAt),
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, nil, err
		}
		return nil, nil, storeError(err, ref)
	}
	return next, effects, nil
}

// project computes the state after ev. An event that sorts after every
// persisted event is applied to the current state. A backdated event forces a
// rebuild from the initial snapshot so persisted state always equals replay.
func (r *Runner) project(ctx context.Context, current entities.Eventable, variant *registry.Variant, ev *models.Event) (entities.Eventable, []models.Effect, error) {
	ref := current.Ref()
	last, err := r.store.LastEvent(ctx, ref)
	if err != nil {
		return nil, nil, storeError(err, ref)
	}
	if last == nil || !ev.OccurredAt.Before(last.OccurredAt) {
		next := current.Clone()
		effects, err := variant.Trigger()(next, ev)
		if err != nil {
			return nil, nil, triggerError(err, variant)
		}
		return next, effects, nil
	}

	r.logger.InfoContext(ctx, "backdated event, rebuilding from initial snapshot",
		"eventable_id", ref.ID,
		"variant", ev.Variant,
		"occurred_at", ev.OccurredAt,
		"latest_occurred_at", last.OccurredAt,
	)
	initial, err := r.store.LoadInitial(ctx, ref)
	if err != nil {
		return nil, nil, storeError(err, ref)
	}
	events, err := r.collect(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	provisional := *ev
	for _, existing := range events {
		provisional.Seq = max(provisional.Seq, existing.Seq+1)
	}
	events = append(events, &provisional)
	models.SortApplied(events)

	var effects []models.Effect
	state := initial.Clone()
	for _, e := range events {
		if e == &provisional {
			effects, err = variant.Trigger()(state, ev)
			if err != nil {
				return nil, nil, triggerError(err, variant)
			}
			continue
		}
		if err := r.reapply(state, e); err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeOf(err), fmt.Sprintf(
				"backdated %s conflicts with later %s", variant.ShortName(), models.Unqualify(e.Variant)))
		}
	}
	return state, effects, nil
}

// reapply runs the trigger of a persisted event against state.
func (r *Runner) reapply(state entities.Eventable, ev *models.Event) error {
	v, ok := r.registry.Lookup(ev.Variant)
	if !ok {
		return dErrors.New(dErrors.CodeUnknownVariant,
			fmt.Sprintf("persisted event %s has unknown variant %q", ev.ID, ev.Variant))
	}
	if _, err := v.Trigger()(state, ev); err != nil {
		return triggerError(err, v)
	}
	return nil
}

func (r *Runner) collect(ctx context.Context, ref id.Ref) ([]*models.Event, error) {
	var events []*models.Event
	for ev, err := range r.AppliedOrder(ctx, ref) {
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (r *Runner) runEffects(ctx context.Context, ref id.Ref, effects []models.Effect) {
	for _, effect := range effects {
		h, ok := r.effects[effect.Name]
		if !ok {
			r.logger.WarnContext(ctx, "no handler for side effect",
				"effect", effect.Name, "eventable_id", ref.ID)
			continue
		}
		r.pending.Add(1)
		go func() {
			defer r.pending.Done()
			ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), effectTimeout)
			defer cancel()
			if err := h(ectx, ref, effect); err != nil {
				r.logger.ErrorContext(ectx, "side effect failed",
					"effect", effect.Name,
					"eventable_id", ref.ID,
					"error", err,
				)
			}
		}()
	}
}

// Wait blocks until every in-flight side effect has finished.
func (r *Runner) Wait() {
	r.pending.Wait()
}

// LogEffects is an EffectHandler that only records the effect.
func LogEffects(logger *slog.Logger) EffectHandler {
	return func(ctx context.Context, ref id.Ref, effect models.Effect) error {
		logger.InfoContext(ctx, "side effect requested",
			"effect", effect.Name,
			"eventable_type", ref.Kind,
			"eventable_id", ref.ID,
			"payload", effect.Payload,
		)
		return nil
	}
}

func triggerError(err error, v *registry.Variant) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("%s trigger failed", v.ShortName()))
}

func storeError(err error, ref id.Ref) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("%s not found", ref))
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "eventable was modified concurrently")
	default:
		if _, ok := dErrors.As(err); ok {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "event store failure")
	}
}
