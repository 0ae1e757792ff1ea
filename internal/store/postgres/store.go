// Package postgres is the database-backed implementation of the transaction
// store. It mirrors the in-memory implementation's semantics exactly: the
// same ordering contract, the same tagging invariant, the same live-query
// behavior through the shared hub. All mutations from this process funnel
// through one Store, which is the single-writer boundary the ledger needs.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/sms-ledger/internal/domain"
	"github.com/dvloznov/sms-ledger/internal/store"
)

const snapshotTimeout = 10 * time.Second

// selectColumns casts amount and time to text so scanning stays independent
// of driver-specific numeric and time representations.
const selectColumns = `id, amount::text, direction, account_number,
	transaction_date, transaction_time::text, counterparty_name, reference,
	institution, user_tag, is_tagged, entry_method, raw_message, created_at`

// Store persists transactions in PostgreSQL via pgx.
type Store struct {
	log  zerolog.Logger
	pool *pgxpool.Pool

	// writeMu serializes mutations so tag updates to the same record can
	// never interleave, matching the in-memory store's write boundary.
	writeMu sync.Mutex

	hub *store.Hub
}

// New connects to databaseURL, runs pending migrations and returns the store.
func New(ctx context.Context, databaseURL string, log zerolog.Logger) (*Store, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("postgres store: migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	return &Store{log: log, pool: pool, hub: store.NewHub()}, nil
}

// Insert implements store.TransactionStore.
func (s *Store) Insert(ctx context.Context, tx *domain.Transaction) (int64, error) {
	s.writeMu.Lock()
	id, err := s.insert(ctx, s.pool, tx)
	s.writeMu.Unlock()
	if err != nil {
		return 0, err
	}

	s.hub.Publish(s)
	return id, nil
}

// InsertBatch implements store.TransactionStore. The batch commits in one
// database transaction so readers observe all of it or none of it.
func (s *Store) InsertBatch(ctx context.Context, txs []*domain.Transaction) ([]int64, error) {
	s.writeMu.Lock()
	defer func() {
		s.writeMu.Unlock()
		s.hub.Publish(s)
	}()

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert batch: begin: %w", err)
	}
	defer dbTx.Rollback(ctx)

	ids := make([]int64, 0, len(txs))
	for _, tx := range txs {
		id, err := s.insert(ctx, dbTx, tx)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("insert batch: commit: %w", err)
	}
	return ids, nil
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) insert(ctx context.Context, q execQuerier, tx *domain.Transaction) (int64, error) {
	tag, tagged := store.NormalizeTag(tx.UserTag)
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO transactions (
			amount, direction, account_number, transaction_date,
			transaction_time, counterparty_name, reference, institution,
			user_tag, is_tagged, entry_method, raw_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		tx.Amount.StringFixed(2), string(tx.Direction), tx.AccountNumber,
		tx.Date.String(), tx.Time.String(), tx.CounterpartyName, tx.Reference,
		tx.Institution, tag, tagged, string(tx.EntryMethod), tx.RawMessage,
		createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

// Update implements store.TransactionStore. CreatedAt is deliberately not
// part of the statement; the tag pair is renormalized before writing.
func (s *Store) Update(ctx context.Context, tx *domain.Transaction) error {
	tag, tagged := store.NormalizeTag(tx.UserTag)

	s.writeMu.Lock()
	ct, err := s.pool.Exec(ctx, `
		UPDATE transactions SET
			amount = $1, direction = $2, account_number = $3,
			transaction_date = $4, transaction_time = $5,
			counterparty_name = $6, reference = $7, institution = $8,
			user_tag = $9, is_tagged = $10, entry_method = $11,
			raw_message = $12
		WHERE id = $13
	`,
		tx.Amount.StringFixed(2), string(tx.Direction), tx.AccountNumber,
		tx.Date.String(), tx.Time.String(), tx.CounterpartyName, tx.Reference,
		tx.Institution, tag, tagged, string(tx.EntryMethod), tx.RawMessage,
		tx.ID,
	)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	s.hub.Publish(s)
	return nil
}

// UpdateTag implements store.TransactionStore. Both fields are written in
// one statement; the schema's check constraint backs up the invariant.
func (s *Store) UpdateTag(ctx context.Context, id int64, tag string) error {
	normalized, tagged := store.NormalizeTag(tag)

	s.writeMu.Lock()
	ct, err := s.pool.Exec(ctx,
		`UPDATE transactions SET user_tag = $1, is_tagged = $2 WHERE id = $3`,
		normalized, tagged, id,
	)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("update tag for transaction %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	s.hub.Publish(s)
	return nil
}

// Delete implements store.TransactionStore.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	ct, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	s.hub.Publish(s)
	return nil
}

// DeleteAll implements store.TransactionStore. The id sequence is left
// untouched so ids are never reused.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.writeMu.Lock()
	_, err := s.pool.Exec(ctx, `DELETE FROM transactions`)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("delete all transactions: %w", err)
	}

	s.hub.Publish(s)
	return nil
}

// GetByID implements store.TransactionStore. A miss is (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

// List implements store.TransactionStore.
func (s *Store) List(ctx context.Context, q store.Query) ([]*domain.Transaction, error) {
	where, args := buildWhere(q)

	sql := `SELECT ` + selectColumns + ` FROM transactions` + where +
		` ORDER BY transaction_date DESC, transaction_time DESC, id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list transactions: scan: %w", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: rows: %w", err)
	}
	return result, nil
}

// buildWhere translates a store.Query into a WHERE clause. Limit/Offset are
// appended separately by List.
func buildWhere(q store.Query) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.TodayOnly {
		conds = append(conds, "transaction_date = CURRENT_DATE")
	}
	if q.UntaggedOnly {
		conds = append(conds, "NOT is_tagged")
	}
	if q.Search != "" {
		args = append(args, q.Search)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(counterparty_name ILIKE '%%' || $%d || '%%' OR user_tag ILIKE '%%' || $%d || '%%')",
			n, n))
	}
	if q.Direction != nil {
		add("direction = $%d", string(*q.Direction))
	}
	if q.EntryMethod != nil {
		add("entry_method = $%d", string(*q.EntryMethod))
	}
	if q.From != nil {
		add("transaction_date >= $%d", q.From.String())
	}
	if q.To != nil {
		add("transaction_date <= $%d", q.To.String())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// UntaggedCount implements store.TransactionStore.
func (s *Store) UntaggedCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE NOT is_tagged`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("untagged count: %w", err)
	}
	return n, nil
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
	s.pool.Close()
	return nil
}

// Snapshot implements store.Snapshotter for the live-query hub. The hub
// only asks after a write from this process, so re-running the query gives
// a consistent post-write result.
func (s *Store) Snapshot(q store.Query) []*domain.Transaction {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	txs, err := s.List(ctx, q)
	if err != nil {
		s.log.Error().Err(err).Msg("Live query snapshot failed")
		return nil
	}
	return txs
}

// CountUntagged implements store.Snapshotter.
func (s *Store) CountUntagged() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	n, err := s.UntaggedCount(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Live untagged count failed")
		return 0
	}
	return n
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx          domain.Transaction
		amountText  string
		direction   string
		dateVal     time.Time
		timeText    string
		entryMethod string
	)

	err := row.Scan(
		&tx.ID, &amountText, &direction, &tx.AccountNumber,
		&dateVal, &timeText, &tx.CounterpartyName, &tx.Reference,
		&tx.Institution, &tx.UserTag, &tx.IsTagged, &entryMethod,
		&tx.RawMessage, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Amount, err = decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amountText, err)
	}
	tx.Direction, err = domain.ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	tx.EntryMethod, err = domain.ParseEntryMethod(entryMethod)
	if err != nil {
		return nil, err
	}
	tx.Date = civil.DateOf(dateVal)
	tx.Time, err = civil.ParseTime(timeText)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", timeText, err)
	}
	return &tx, nil
}

// Ensure Store implements the store contract.
var _ store.TransactionStore = (*Store)(nil)
var _ store.Snapshotter = (*Store)(nil)
