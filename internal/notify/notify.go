// Package notify is the boundary between the ledger core and whatever
// surface alerts the user about new transactions. The core only ever hands
// over a persisted transaction; how it gets shown is the caller's business.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sms-ledger/internal/domain"
)

// Notifier receives transactions after they have been persisted, so the
// transaction always carries its final id.
type Notifier interface {
	TransactionRecorded(ctx context.Context, tx *domain.Transaction)
}

// LogNotifier writes notifications to the structured log. It stands in for
// a push channel in deployments that have none.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) TransactionRecorded(ctx context.Context, tx *domain.Transaction) {
	n.log.Info().
		Int64("transaction_id", tx.ID).
		Str("direction", domain.DirectionDisplay(tx.Direction)).
		Str("amount", tx.Amount.StringFixed(2)).
		Str("counterparty", tx.CounterpartyName).
		Str("source", domain.EntryMethodDisplay(tx.EntryMethod)).
		Msg("Transaction recorded")
}

var _ Notifier = (*LogNotifier)(nil)
