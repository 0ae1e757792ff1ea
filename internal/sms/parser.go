// Package sms turns raw bank SMS notifications into structured transactions.
// Parsing is deterministic: the parser targets one fixed vendor template and
// rejects anything it cannot fully extract. A rejection is an expected,
// recoverable outcome, not an error.
package sms

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sms-ledger/internal/domain"
	"github.com/dvloznov/sms-ledger/internal/extract"
)

// Parser extracts transactions from message bodies.
type Parser struct {
	log zerolog.Logger
}

// NewParser creates a parser that logs rejections through log.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse extracts a transaction from an SMS body. The second return value is
// false when the message is rejected: missing keywords, or an unextractable
// amount, date or time. All other fields degrade to defaults instead of
// rejecting. Any panic inside extraction is recovered and treated as a
// rejection so one malformed message can never take down the caller.
func (p *Parser) Parse(body string) (tx *domain.Transaction, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn().Interface("panic", r).Msg("Recovered while parsing SMS; message dropped")
			tx, ok = nil, false
		}
	}()

	if !ContainsTransactionKeywords(body) {
		return nil, false
	}

	amount, ok := extract.Amount(body)
	if !ok {
		p.log.Debug().Msg("SMS rejected: no amount")
		return nil, false
	}
	date, ok := extract.Date(body)
	if !ok {
		p.log.Debug().Msg("SMS rejected: no date")
		return nil, false
	}
	tod, ok := extract.Time(body)
	if !ok {
		p.log.Debug().Msg("SMS rejected: no time")
		return nil, false
	}

	// Absence of the debit keyword deliberately falls through to credit;
	// TestParseDirectionDefaultsToCredit pins this down.
	direction, _ := extract.Direction(body)
	if direction != domain.Debit {
		direction = domain.Credit
	}

	account, ok := extract.Account(body)
	if !ok {
		account = domain.DefaultAccountNumber
	}

	return &domain.Transaction{
		Amount:           amount,
		Direction:        direction,
		AccountNumber:    account,
		Date:             date,
		Time:             tod,
		CounterpartyName: extract.Counterparty(body),
		Reference:        extract.Reference(body),
		Institution:      domain.DefaultInstitution,
		EntryMethod:      domain.Automatic,
		RawMessage:       body,
		CreatedAt:        time.Now(),
	}, true
}
