package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	nmodels "movetrack/internal/notifications/models"
	id "movetrack/pkg/domain"
	"movetrack/pkg/platform/sentinel"
)

type memoryRecord struct {
	snapshot []byte
	initial  []byte
	version  int64
	events   []*models.Event
}

type memoryTask struct {
	task      nmodels.Task
	published bool
}

// InMemory keeps everything in process. Snapshots are stored encoded so
// callers can never alias persisted state.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.Ref]*memoryRecord
	tasks   []*memoryTask
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.Ref]*memoryRecord)}
}

func (s *InMemory) Create(_ context.Context, e entities.Eventable, task *nmodels.Task, _ time.Time) error {
	raw, err := entities.Encode(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[e.Ref()]; exists {
		return sentinel.ErrDuplicate
	}
	s.records[e.Ref()] = &memoryRecord{snapshot: raw, initial: raw}
	if task != nil {
		s.tasks = append(s.tasks, &memoryTask{task: *task})
	}
	return nil
}

func (s *InMemory) Load(_ context.Context, ref id.Ref) (entities.Eventable, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ref]
	if !ok {
		return nil, 0, sentinel.ErrNotFound
	}
	e, err := entities.Decode(ref.Kind, rec.snapshot)
	return e, rec.version, err
}

func (s *InMemory) LoadInitial(_ context.Context, ref id.Ref) (entities.Eventable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return entities.Decode(ref.Kind, rec.initial)
}

func (s *InMemory) Scan(ctx context.Context, ref id.Ref, fn func(*models.Event) bool) error {
	s.mu.RLock()
	rec, ok := s.records[ref]
	var events []*models.Event
	if ok {
		events = make([]*models.Event, len(rec.events))
		for i, ev := range rec.events {
			events[i] = copyEvent(ev)
		}
	}
	s.mu.RUnlock()
	if !ok {
		return sentinel.ErrNotFound
	}
	models.SortApplied(events)
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(ev) {
			return nil
		}
	}
	return nil
}

func (s *InMemory) LastEvent(ctx context.Context, ref id.Ref) (*models.Event, error) {
	var last *models.Event
	err := s.Scan(ctx, ref, func(ev *models.Event) bool {
		last = ev
		return true
	})
	return last, err
}

func (s *InMemory) Commit(_ context.Context, c Commit) error {
	raw, err := entities.Encode(c.Entity)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[c.Entity.Ref()]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.version != c.ExpectedVersion {
		return sentinel.ErrConflict
	}
	if c.Event != nil {
		var maxSeq int64
		for _, ev := range rec.events {
			maxSeq = max(maxSeq, ev.Seq)
		}
		c.Event.Seq = maxSeq + 1
		rec.events = append(rec.events, copyEvent(c.Event))
	}
	rec.snapshot = raw
	rec.version++
	if c.Task != nil {
		s.tasks = append(s.tasks, &memoryTask{task: *c.Task})
	}
	return nil
}

func (s *InMemory) PendingTasks(_ context.Context, limit int) ([]*nmodels.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*nmodels.Task
	for _, t := range s.tasks {
		if t.published {
			continue
		}
		task := t.task
		out = append(out, &task)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if slices.Contains(ids, t.task.ID) {
			t.published = true
		}
	}
	return nil
}
