package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ManualEntry is the caller-supplied input for a user-entered transaction.
type ManualEntry struct {
	Amount           decimal.Decimal `json:"amount"`
	Direction        Direction       `json:"direction"`
	CounterpartyName string          `json:"counterparty_name"`
	Date             civil.Date      `json:"date"`
	Time             civil.Time      `json:"time"`
	UserTag          string          `json:"user_tag,omitempty"`
}

// Validate checks the manual-entry fields against the domain limits.
func (e *ManualEntry) Validate() error {
	min := decimal.RequireFromString(MinAmount)
	max := decimal.RequireFromString(MaxAmount)
	if e.Amount.LessThan(min) {
		return fmt.Errorf("amount must be at least %s", MinAmount)
	}
	if e.Amount.GreaterThan(max) {
		return fmt.Errorf("amount must not exceed %s", MaxAmount)
	}
	if e.Direction != Debit && e.Direction != Credit {
		return fmt.Errorf("unknown direction %q", string(e.Direction))
	}
	name := strings.TrimSpace(e.CounterpartyName)
	if name == "" {
		return fmt.Errorf("receiver/sender name is required")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("receiver/sender name exceeds %d characters", MaxNameLength)
	}
	if len(e.UserTag) > MaxTagLength {
		return fmt.Errorf("tag exceeds %d characters", MaxTagLength)
	}
	if !e.Date.IsValid() {
		return fmt.Errorf("date is required")
	}
	// No presence check for Time: the zero civil.Time is a valid midnight,
	// which is what an entry without a time of day means.
	return nil
}

// Transaction builds an unpersisted transaction from the entry. Account,
// institution and provenance take the fixed manual-entry defaults; the tag
// is normalized so IsTagged can never disagree with UserTag.
func (e *ManualEntry) Transaction() *Transaction {
	tag := strings.TrimSpace(e.UserTag)
	return &Transaction{
		Amount:           e.Amount.Round(2),
		Direction:        e.Direction,
		AccountNumber:    DefaultAccountNumber,
		Date:             e.Date,
		Time:             e.Time,
		CounterpartyName: strings.TrimSpace(e.CounterpartyName),
		Institution:      ManualInstitution,
		UserTag:          tag,
		IsTagged:         tag != "",
		EntryMethod:      Manual,
		CreatedAt:        time.Now(),
	}
}
