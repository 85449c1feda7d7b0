package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	nmodels "movetrack/internal/notifications/models"
	"movetrack/internal/platform/database"
	id "movetrack/pkg/domain"
	"movetrack/pkg/platform/sentinel"
	txcontext "movetrack/pkg/platform/tx"
)

// SQL is the relational event store for Postgres and SQLite.
type SQL struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSQL(db *sql.DB, dialect database.Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQL) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *SQL) Create(ctx context.Context, e entities.Eventable, task *nmodels.Task, now time.Time) error {
	raw, err := entities.Encode(e)
	if err != nil {
		return err
	}
	ref := e.Ref()
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO eventables (kind, id, snapshot, initial_snapshot, lock_version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, $5, $6)
		`, string(ref.Kind), ref.ID.String(), string(raw), string(raw), s.dialect.Time(now), s.dialect.Time(now))
		if err != nil {
			if database.IsUniqueViolation(err) {
				return sentinel.ErrDuplicate
			}
			return fmt.Errorf("insert eventable: %w", err)
		}
		return s.insertTask(ctx, task)
	})
}

func (s *SQL) Load(ctx context.Context, ref id.Ref) (entities.Eventable, int64, error) {
	var raw string
	var version int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT snapshot, lock_version FROM eventables WHERE kind = $1 AND id = $2`,
		string(ref.Kind), ref.ID.String(),
	).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load eventable: %w", err)
	}
	e, err := entities.Decode(ref.Kind, []byte(raw))
	return e, version, err
}

func (s *SQL) LoadInitial(ctx context.Context, ref id.Ref) (entities.Eventable, error) {
	var raw string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT initial_snapshot FROM eventables WHERE kind = $1 AND id = $2`,
		string(ref.Kind), ref.ID.String(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load initial snapshot: %w", err)
	}
	return entities.Decode(ref.Kind, []byte(raw))
}

const eventColumns = `id, variant, occurred_at, recorded_at, created_by, notes, details, supplier_id, seq, created_at, updated_at`

// Scan streams events in applied order. Returning false from fn stops the
// scan and releases the cursor.
func (s *SQL) Scan(ctx context.Context, ref id.Ref, fn func(*models.Event) bool) error {
	if _, _, err := s.Load(ctx, ref); err != nil {
		return err
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE eventable_type = $1 AND eventable_id = $2
		ORDER BY occurred_at ASC, seq ASC
	`, string(ref.Kind), ref.ID.String())
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ev, err := scanEvent(rows, ref)
		if err != nil {
			return err
		}
		if !fn(ev) {
			return nil
		}
	}
	return rows.Err()
}

func (s *SQL) LastEvent(ctx context.Context, ref id.Ref) (*models.Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE eventable_type = $1 AND eventable_id = $2
		ORDER BY occurred_at DESC, seq DESC
		LIMIT 1
	`, string(ref.Kind), ref.ID.String())
	if err != nil {
		return nil, fmt.Errorf("query last event: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanEvent(rows, ref)
}

func (s *SQL) Commit(ctx context.Context, c Commit) error {
	raw, err := entities.Encode(c.Entity)
	if err != nil {
		return err
	}
	ref := c.Entity.Ref()
	now := time.Now()

	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		var version int64
		err := s.execer(ctx).QueryRowContext(ctx,
			`SELECT lock_version FROM eventables WHERE kind = $1 AND id = $2`+s.dialect.ForUpdate,
			string(ref.Kind), ref.ID.String(),
		).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock eventable: %w", err)
		}
		if version != c.ExpectedVersion {
			return sentinel.ErrConflict
		}

		if c.Event != nil {
			if err := s.insertEvent(ctx, c.Event, now); err != nil {
				return err
			}
		}

		_, err = s.execer(ctx).ExecContext(ctx, `
			UPDATE eventables SET snapshot = $1, lock_version = $2, updated_at = $3
			WHERE kind = $4 AND id = $5 AND lock_version = $6
		`, string(raw), version+1, s.dialect.Time(now), string(ref.Kind), ref.ID.String(), version)
		if err != nil {
			return fmt.Errorf("update eventable: %w", err)
		}
		return s.insertTask(ctx, c.Task)
	})
}

func (s *SQL) insertEvent(ctx context.Context, ev *models.Event, now time.Time) error {
	var seq int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE eventable_type = $1 AND eventable_id = $2`,
		string(ev.Eventable.Kind), ev.Eventable.ID.String(),
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("next event seq: %w", err)
	}

	details, err := encodeDetails(ev.Details)
	if err != nil {
		return err
	}
	var supplier any
	if !ev.SupplierID.IsNil() {
		supplier = ev.SupplierID.String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = models.NormalizeTime(now)
		ev.UpdatedAt = ev.CreatedAt
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO events (id, eventable_type, eventable_id, variant, occurred_at, recorded_at,
			created_by, notes, details, supplier_id, seq, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		ev.ID.String(), string(ev.Eventable.Kind), ev.Eventable.ID.String(), ev.Variant,
		s.dialect.Time(ev.OccurredAt), s.dialect.Time(ev.RecordedAt),
		ev.CreatedBy, ev.Notes, details, supplier, seq,
		s.dialect.Time(ev.CreatedAt), s.dialect.Time(ev.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}
	ev.Seq = seq
	return nil
}

func (s *SQL) insertTask(ctx context.Context, task *nmodels.Task) error {
	if task == nil {
		return nil
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO notification_tasks (id, topic_kind, topic_id, action, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, task.ID.String(), string(task.Topic.Kind), task.Topic.ID.String(), string(task.Action), s.dialect.Time(task.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert notification task: %w", err)
	}
	return nil
}

// PendingTasks returns unpublished outbox tasks, oldest first.
func (s *SQL) PendingTasks(ctx context.Context, limit int) ([]*nmodels.Task, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, topic_kind, topic_id, action, created_at
		FROM notification_tasks
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	defer rows.Close()

	var out []*nmodels.Task
	for rows.Next() {
		var (
			taskID, kind, topicID, action string
			createdAt                     database.Time
		)
		if err := rows.Scan(&taskID, &kind, &topicID, &action, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t := &nmodels.Task{Action: nmodels.Action(action), CreatedAt: createdAt.T}
		if t.ID, err = uuid.Parse(taskID); err != nil {
			return nil, fmt.Errorf("task id: %w", err)
		}
		t.Topic.Kind = id.EventableKind(kind)
		if t.Topic.ID, err = id.ParseEntityID(topicID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQL) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		for _, taskID := range ids {
			_, err := s.execer(ctx).ExecContext(ctx,
				`UPDATE notification_tasks SET published_at = $1 WHERE id = $2`,
				s.dialect.Time(at), taskID.String())
			if err != nil {
				return fmt.Errorf("mark task published: %w", err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner, ref id.Ref) (*models.Event, error) {
	var (
		eventID, variant, createdBy, notes, details string
		supplier                                    sql.NullString
		occurredAt, recordedAt, createdAt, updated  database.Time
		seq                                         int64
	)
	if err := row.Scan(&eventID, &variant, &occurredAt, &recordedAt, &createdBy, &notes,
		&details, &supplier, &seq, &createdAt, &updated); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	evID, err := id.ParseEventID(eventID)
	if err != nil {
		return nil, err
	}
	ev := &models.Event{
		ID:         evID,
		Eventable:  ref,
		Variant:    variant,
		OccurredAt: occurredAt.T,
		RecordedAt: recordedAt.T,
		CreatedBy:  createdBy,
		Notes:      notes,
		Seq:        seq,
		CreatedAt:  createdAt.T,
		UpdatedAt:  updated.T,
	}
	if supplier.Valid && supplier.String != "" {
		if ev.SupplierID, err = id.ParseSupplierID(supplier.String); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return ev, nil
}

func encodeDetails(details map[string]any) (string, error) {
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("encode details: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize details: %w", err)
	}
	return string(canonical), nil
}
