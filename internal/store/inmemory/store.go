// Package inmemory is the in-memory implementation of the transaction store.
// It is safe for concurrent use; data is lost on restart. For persistence,
// use the postgres implementation.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sms-ledger/internal/domain"
	"github.com/dvloznov/sms-ledger/internal/store"
)

// Store holds the transaction collection in process memory. A single
// RWMutex serializes mutations, so every write is atomic with respect to
// reads and to other writes.
type Store struct {
	log zerolog.Logger

	mu     sync.RWMutex
	txs    map[int64]*domain.Transaction
	order  []int64 // insertion order, the final ordering tie-break
	nextID int64

	hub *store.Hub
}

// New creates an empty in-memory store.
func New(log zerolog.Logger) *Store {
	return &Store{
		log:    log,
		txs:    make(map[int64]*domain.Transaction),
		nextID: 1,
		hub:    store.NewHub(),
	}
}

// Insert implements store.TransactionStore.
func (s *Store) Insert(ctx context.Context, tx *domain.Transaction) (int64, error) {
	s.mu.Lock()
	id := s.insertLocked(tx)
	s.mu.Unlock()

	s.hub.Publish(s)
	return id, nil
}

// InsertBatch implements store.TransactionStore. The whole batch commits as
// one write; subscribers never observe part of it.
func (s *Store) InsertBatch(ctx context.Context, txs []*domain.Transaction) ([]int64, error) {
	s.mu.Lock()
	ids := make([]int64, len(txs))
	for i, tx := range txs {
		ids[i] = s.insertLocked(tx)
	}
	s.mu.Unlock()

	s.hub.Publish(s)
	return ids, nil
}

// insertLocked assigns the next id and stores a normalized copy.
func (s *Store) insertLocked(tx *domain.Transaction) int64 {
	cp := *tx
	cp.ID = s.nextID
	s.nextID++
	cp.UserTag, cp.IsTagged = store.NormalizeTag(cp.UserTag)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.txs[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	s.log.Debug().Int64("id", cp.ID).Str("counterparty", cp.CounterpartyName).Msg("Transaction inserted")
	return cp.ID
}

// Update implements store.TransactionStore. CreatedAt and ID are kept from
// the stored record; the tag pair is renormalized so no full update can
// break the tagging invariant.
func (s *Store) Update(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	old, ok := s.txs[tx.ID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	cp := *tx
	cp.CreatedAt = old.CreatedAt
	cp.UserTag, cp.IsTagged = store.NormalizeTag(cp.UserTag)
	s.txs[cp.ID] = &cp
	s.mu.Unlock()

	s.hub.Publish(s)
	return nil
}

// UpdateTag implements store.TransactionStore. Tag and tagged state are
// written together under the store lock; concurrent tag updates to the same
// id serialize here and can never leave the pair inconsistent.
func (s *Store) UpdateTag(ctx context.Context, id int64, tag string) error {
	s.mu.Lock()
	tx, ok := s.txs[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	tx.UserTag, tx.IsTagged = store.NormalizeTag(tag)
	s.mu.Unlock()

	s.hub.Publish(s)
	return nil
}

// Delete implements store.TransactionStore.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	if _, ok := s.txs[id]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.txs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.hub.Publish(s)
	return nil
}

// DeleteAll implements store.TransactionStore. Assigned ids are never reused.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	s.txs = make(map[int64]*domain.Transaction)
	s.order = nil
	s.mu.Unlock()

	s.hub.Publish(s)
	return nil
}

// GetByID implements store.TransactionStore. A miss is (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

// List implements store.TransactionStore.
func (s *Store) List(ctx context.Context, q store.Query) ([]*domain.Transaction, error) {
	return s.Snapshot(q), nil
}

// UntaggedCount implements store.TransactionStore.
func (s *Store) UntaggedCount(ctx context.Context) (int64, error) {
	return s.CountUntagged(), nil
}

// Watch implements store.TransactionStore.
func (s *Store) Watch(ctx context.Context, q store.Query) (*store.Subscription, error) {
	return s.hub.Subscribe(ctx, q, s), nil
}

// WatchUntaggedCount implements store.TransactionStore.
func (s *Store) WatchUntaggedCount(ctx context.Context) (*store.CountSubscription, error) {
	return s.hub.SubscribeCount(ctx, s), nil
}

// Close implements store.TransactionStore.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

// Snapshot implements store.Snapshotter: a consistent, ordered result for q
// built from copies of the stored records.
func (s *Store) Snapshot(q store.Query) []*domain.Transaction {
	s.mu.RLock()
	matched := make([]*domain.Transaction, 0, len(s.order))
	for _, id := range s.order {
		tx := s.txs[id]
		if q.Matches(tx) {
			cp := *tx
			matched = append(matched, &cp)
		}
	}
	s.mu.RUnlock()

	store.SortLedger(matched)
	return q.Window(matched)
}

// CountUntagged implements store.Snapshotter.
func (s *Store) CountUntagged() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, tx := range s.txs {
		if tx.NeedsTag() {
			n++
		}
	}
	return n
}

// Ensure Store implements the store contract.
var _ store.TransactionStore = (*Store)(nil)
var _ store.Snapshotter = (*Store)(nil)
