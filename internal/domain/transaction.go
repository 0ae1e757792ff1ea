package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction represents one financial transaction extracted from a bank SMS
// or entered manually. This is the domain struct shared by the parser, the
// store and the export layer; the store assigns ID on insert and owns every
// mutation after that.
type Transaction struct {
	ID int64 `json:"id"`

	Amount    decimal.Decimal `json:"amount"`
	Direction Direction       `json:"direction"`

	AccountNumber string     `json:"account_number"`
	Date          civil.Date `json:"date"`
	Time          civil.Time `json:"time"`

	CounterpartyName string `json:"counterparty_name"`
	Reference        string `json:"reference,omitempty"` // UPI reference line; empty for manual entries
	Institution      string `json:"institution"`

	UserTag  string `json:"user_tag,omitempty"`
	IsTagged bool   `json:"is_tagged"`

	EntryMethod EntryMethod `json:"entry_method"`
	RawMessage  string      `json:"raw_message,omitempty"` // original SMS body; empty for manual entries
	CreatedAt   time.Time   `json:"created_at"`
}

// NeedsTag reports whether the transaction still requires a user tag.
func (t *Transaction) NeedsTag() bool {
	return !t.IsTagged || t.UserTag == ""
}

// IsFromToday reports whether the transaction's date is today's local date.
func (t *Transaction) IsFromToday() bool {
	return t.Date == civil.DateOf(time.Now())
}

// MoreRecent reports whether a sorts before b in ledger order: date
// descending, then time-of-day descending. Equal date and time is not
// "more recent", which lets stable sorts keep insertion order for ties.
func MoreRecent(a, b *Transaction) bool {
	if a.Date != b.Date {
		return a.Date.After(b.Date)
	}
	return secondOfDay(a.Time) > secondOfDay(b.Time)
}

func secondOfDay(t civil.Time) int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}
