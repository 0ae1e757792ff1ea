// Package store defines the transaction store contract: the single owner of
// the durable transaction collection. Implementations live in the inmemory
// and postgres subpackages; consumers depend only on the interfaces here.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/sms-ledger/internal/domain"
)

// ErrNotFound is returned by mutations that target a non-existent id.
// Lookups do not use it: GetByID reports a miss as (nil, nil).
var ErrNotFound = errors.New("transaction not found")

// Query describes a filtered, ordered read. The zero value selects every
// transaction. All queries share one ordering contract: date descending,
// time descending, insertion order on ties.
type Query struct {
	// TodayOnly restricts results to the current local calendar date.
	TodayOnly bool

	// UntaggedOnly restricts results to transactions without a user tag.
	UntaggedOnly bool

	// Search matches transactions whose counterparty name or user tag
	// contains the string, case-insensitively. Empty means no restriction.
	Search string

	// Direction restricts results to one direction when non-nil.
	Direction *domain.Direction

	// EntryMethod restricts results to one provenance when non-nil.
	EntryMethod *domain.EntryMethod

	// From and To bound the transaction date, inclusive on both ends.
	From *civil.Date
	To   *civil.Date

	// Limit and Offset window the ordered result. Limit 0 means no limit.
	Limit  int
	Offset int
}

// Matches reports whether tx satisfies every filter in the query.
// Limit and Offset are windowing, not filtering, and are ignored here.
func (q Query) Matches(tx *domain.Transaction) bool {
	if q.TodayOnly && !tx.IsFromToday() {
		return false
	}
	if q.UntaggedOnly && !tx.NeedsTag() {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(tx.CounterpartyName), needle) &&
			!strings.Contains(strings.ToLower(tx.UserTag), needle) {
			return false
		}
	}
	if q.Direction != nil && tx.Direction != *q.Direction {
		return false
	}
	if q.EntryMethod != nil && tx.EntryMethod != *q.EntryMethod {
		return false
	}
	if q.From != nil && tx.Date.Before(*q.From) {
		return false
	}
	if q.To != nil && tx.Date.After(*q.To) {
		return false
	}
	return true
}

// SortLedger orders transactions date-descending then time-descending.
// The sort is stable, so callers that pass records in insertion order get
// the tie-break the ordering contract requires.
func SortLedger(txs []*domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return domain.MoreRecent(txs[i], txs[j])
	})
}

// Window applies the query's offset/limit to an already ordered result.
func (q Query) Window(txs []*domain.Transaction) []*domain.Transaction {
	if q.Offset > 0 {
		if q.Offset >= len(txs) {
			return []*domain.Transaction{}
		}
		txs = txs[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(txs) {
		txs = txs[:q.Limit]
	}
	return txs
}

// NormalizeTag trims a user tag and derives the tagged flag from it.
// This is the single place the tagging invariant is computed: a blank or
// whitespace-only tag always normalizes to untagged.
func NormalizeTag(tag string) (string, bool) {
	t := strings.TrimSpace(tag)
	return t, t != ""
}

// TransactionStore is the contract every store implementation satisfies.
// Mutations are serialized per store; reads observe either the pre- or
// post-state of a write, never a partial write.
type TransactionStore interface {
	// Insert persists a copy of tx and returns the assigned id. The input's
	// own ID field is ignored.
	Insert(ctx context.Context, tx *domain.Transaction) (int64, error)

	// InsertBatch persists all transactions and returns their ids in order.
	InsertBatch(ctx context.Context, txs []*domain.Transaction) ([]int64, error)

	// Update replaces the mutable fields of the record with tx.ID.
	// Returns ErrNotFound when no such record exists.
	Update(ctx context.Context, tx *domain.Transaction) error

	// UpdateTag sets the user tag of one record and recomputes its tagged
	// state atomically. This is the only sanctioned tag mutation.
	UpdateTag(ctx context.Context, id int64, tag string) error

	// Delete removes one record. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id int64) error

	// DeleteAll clears the collection.
	DeleteAll(ctx context.Context) error

	// GetByID fetches one record; a miss returns (nil, nil).
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)

	// List runs a one-shot query under the ordering contract.
	List(ctx context.Context, q Query) ([]*domain.Transaction, error)

	// UntaggedCount returns the number of untagged records.
	UntaggedCount(ctx context.Context) (int64, error)

	// Watch subscribes to q: the current snapshot is delivered immediately
	// and a fresh one after every write that changes the result. The
	// subscription ends when ctx is cancelled or Cancel is called.
	Watch(ctx context.Context, q Query) (*Subscription, error)

	// WatchUntaggedCount subscribes to the live untagged count.
	WatchUntaggedCount(ctx context.Context) (*CountSubscription, error)

	// Close releases the store's resources and ends all subscriptions.
	Close() error
}
