package locations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	id "movetrack/pkg/domain"
	"movetrack/pkg/platform/sentinel"
)

// Store looks locations up by id.
type Store interface {
	Get(ctx context.Context, locationID id.LocationID) (*Location, error)
	Save(ctx context.Context, loc *Location) error
}

type InMemory struct {
	mu        sync.RWMutex
	locations map[id.LocationID]*Location
}

func NewInMemory() *InMemory {
	return &InMemory{locations: make(map[id.LocationID]*Location)}
}

func (s *InMemory) Get(_ context.Context, locationID id.LocationID) (*Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[locationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *loc
	return &c, nil
}

func (s *InMemory) Save(_ context.Context, loc *Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *loc
	s.locations[loc.ID] = &c
	return nil
}

// SQLStore reads locations from the shared relational store.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, locationID id.LocationID) (*Location, error) {
	var loc Location
	err := s.db.QueryRowContext(ctx,
		`SELECT key, title, location_type FROM locations WHERE id = $1`, locationID.String(),
	).Scan(&loc.Key, &loc.Title, &loc.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	loc.ID = locationID
	return &loc, nil
}

func (s *SQLStore) Save(ctx context.Context, loc *Location) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, key, title, location_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET key = excluded.key, title = excluded.title, location_type = excluded.location_type
	`, loc.ID.String(), loc.Key, loc.Title, loc.Type)
	if err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}
