// Package subscriptions is the directory of supplier delivery preferences.
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"movetrack/internal/notifications/models"
	"movetrack/internal/platform/database"
	id "movetrack/pkg/domain"
	"movetrack/pkg/platform/sentinel"
)

// InMemory keeps subscriptions in process, indexed by supplier.
type InMemory struct {
	mu   sync.RWMutex
	subs map[id.SubscriptionID]*models.Subscription
}

func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[id.SubscriptionID]*models.Subscription)}
}

func (s *InMemory) Save(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *sub
	s.subs[sub.ID] = &c
	return nil
}

func (s *InMemory) Get(_ context.Context, subID id.SubscriptionID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *sub
	return &c, nil
}

// ForSupplier returns every subscription of a supplier, discarded ones
// included, ordered by id.
func (s *InMemory) ForSupplier(_ context.Context, supplierID id.SupplierID) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Subscription
	for _, sub := range s.subs {
		if sub.SupplierID == supplierID {
			c := *sub
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *models.Subscription) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// SQLStore keeps subscriptions in the relational store.
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSQLStore(db *sql.DB, dialect database.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Save(ctx context.Context, sub *models.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, supplier_id, callback_url, email_address, username, secret, enabled, discarded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			supplier_id = excluded.supplier_id,
			callback_url = excluded.callback_url,
			email_address = excluded.email_address,
			username = excluded.username,
			secret = excluded.secret,
			enabled = excluded.enabled,
			discarded = excluded.discarded
	`, sub.ID.String(), sub.SupplierID.String(), sub.CallbackURL, sub.EmailAddress, sub.Username, sub.Secret,
		sub.Enabled, sub.Discarded)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

const subscriptionColumns = `id, supplier_id, callback_url, email_address, username, secret, enabled, discarded`

func (s *SQLStore) Get(ctx context.Context, subID id.SubscriptionID) (*models.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, subID.String())
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return sub, err
}

func (s *SQLStore) ForSupplier(ctx context.Context, supplierID id.SupplierID) ([]*models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE supplier_id = $1 ORDER BY id`, supplierID.String())
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub                models.Subscription
		subID, supplierID  string
		enabled, discarded bool
	)
	err := row.Scan(&subID, &supplierID, &sub.CallbackURL, &sub.EmailAddress, &sub.Username, &sub.Secret,
		&enabled, &discarded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	if sub.ID, err = id.ParseSubscriptionID(subID); err != nil {
		return nil, err
	}
	if sub.SupplierID, err = id.ParseSupplierID(supplierID); err != nil {
		return nil, err
	}
	sub.Enabled, sub.Discarded = enabled, discarded
	return &sub, nil
}
