// Package ingest drives inbound SMS messages through gating, parsing and
// persistence. The coordinator is the only component that writes
// automatically-captured transactions to the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sms-ledger/internal/domain"
	"github.com/dvloznov/sms-ledger/internal/notify"
	"github.com/dvloznov/sms-ledger/internal/settings"
	"github.com/dvloznov/sms-ledger/internal/sms"
	"github.com/dvloznov/sms-ledger/internal/store"
)

// DefaultMessageTimeout bounds the handling of a single message, persistence
// included.
const DefaultMessageTimeout = 5 * time.Second

// Message is one inbound SMS as delivered by the transport.
type Message struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// Outcome classifies what happened to one message.
type Outcome string

const (
	// OutcomePersisted means a transaction was stored.
	OutcomePersisted Outcome = "PERSISTED"
	// OutcomeDroppedSender means the sender pattern did not match.
	OutcomeDroppedSender Outcome = "DROPPED_SENDER"
	// OutcomeDroppedContent means the body had no transaction keywords.
	OutcomeDroppedContent Outcome = "DROPPED_CONTENT"
	// OutcomeDroppedParse means a mandatory field could not be extracted.
	OutcomeDroppedParse Outcome = "DROPPED_PARSE"
	// OutcomeDroppedTimeout means the per-message deadline expired.
	OutcomeDroppedTimeout Outcome = "DROPPED_TIMEOUT"
	// OutcomeFailed means persistence failed for a parseable message.
	OutcomeFailed Outcome = "FAILED"
)

// Result reports the fate of one message. TransactionID is set only for
// OutcomePersisted; Err only for OutcomeFailed.
type Result struct {
	Outcome       Outcome `json:"outcome"`
	TransactionID int64   `json:"transaction_id,omitempty"`
	Err           error   `json:"-"`
}

// Coordinator wires the gates, the parser and the store together.
type Coordinator struct {
	log      zerolog.Logger
	parser   *sms.Parser
	store    store.TransactionStore
	notifier notify.Notifier
	settings settings.Settings
	timeout  time.Duration
}

// New builds a coordinator. notifier may be nil when no surface listens.
func New(log zerolog.Logger, parser *sms.Parser, st store.TransactionStore, notifier notify.Notifier, cfg settings.Settings) *Coordinator {
	return &Coordinator{
		log:      log,
		parser:   parser,
		store:    st,
		notifier: notifier,
		settings: cfg,
		timeout:  DefaultMessageTimeout,
	}
}

// WithTimeout overrides the per-message deadline. Zero or negative keeps
// the default.
func (c *Coordinator) WithTimeout(d time.Duration) *Coordinator {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// ProcessMessage runs one message through the full chain. Every message
// gets a Result; it never returns an error to the caller.
func (c *Coordinator) ProcessMessage(ctx context.Context, msg Message) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if !sms.ValidSender(msg.Sender) {
		c.log.Debug().Str("sender", msg.Sender).Msg("Message dropped: sender not recognized")
		return Result{Outcome: OutcomeDroppedSender}
	}

	if !sms.ContainsTransactionKeywords(msg.Body) {
		c.log.Debug().Str("sender", msg.Sender).Msg("Message dropped: no transaction keywords")
		return Result{Outcome: OutcomeDroppedContent}
	}

	tx, ok := c.parser.Parse(msg.Body)
	if !ok {
		return Result{Outcome: OutcomeDroppedParse}
	}

	if ctx.Err() != nil {
		c.log.Warn().Str("sender", msg.Sender).Msg("Message dropped: deadline expired before persist")
		return Result{Outcome: OutcomeDroppedTimeout}
	}

	id, err := c.store.Insert(ctx, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.log.Warn().Str("sender", msg.Sender).Msg("Message dropped: persist timed out")
			return Result{Outcome: OutcomeDroppedTimeout}
		}
		c.log.Error().Err(err).Str("sender", msg.Sender).Msg("Failed to persist transaction")
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	tx.ID = id
	c.log.Info().
		Int64("transaction_id", id).
		Str("direction", string(tx.Direction)).
		Str("amount", tx.Amount.StringFixed(2)).
		Msg("Transaction captured from SMS")

	if c.notifier != nil && c.settings.NotificationsEnabled {
		c.notifier.TransactionRecorded(ctx, tx)
	}

	return Result{Outcome: OutcomePersisted, TransactionID: id}
}

// ProcessBatch handles messages in order. One bad message never stops the
// rest; results line up index-for-index with the input.
func (c *Coordinator) ProcessBatch(ctx context.Context, msgs []Message) []Result {
	results := make([]Result, len(msgs))
	for i, msg := range msgs {
		results[i] = c.ProcessMessage(ctx, msg)
	}
	return results
}

// RecordManualEntry validates a user-entered transaction and persists it.
// Manual entries skip the notifier; the user just typed them in.
func (c *Coordinator) RecordManualEntry(ctx context.Context, entry domain.ManualEntry) (*domain.Transaction, error) {
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("manual entry: %w", err)
	}

	tx := entry.Transaction()
	id, err := c.store.Insert(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("manual entry: persist: %w", err)
	}

	tx.ID = id
	c.log.Info().Int64("transaction_id", id).Msg("Manual transaction recorded")
	return tx, nil
}
