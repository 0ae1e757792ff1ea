// Package export renders the ledger as CSV and ships backups to cloud
// storage. The CSV layout is fixed; consumers import it into spreadsheets
// and expect the exact header and quoting below.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/sms-ledger/internal/domain"
)

// Header is the first row of every export.
const Header = "Date,Time,Type,Amount,Receiver/Sender,Bank,Account,UPI Reference,Tag,Entry Method"

// WriteCSV renders transactions to w in their given order. The caller is
// expected to pass a ledger-ordered slice from the store.
//
// Free-text fields (counterparty, institution, reference, tag) are always
// double-quoted, empty ones included, so the column count survives commas
// and stray quotes in names. encoding/csv cannot force quotes on selected
// columns, hence the hand-rendered rows.
func WriteCSV(w io.Writer, txs []*domain.Transaction) error {
	if _, err := io.WriteString(w, Header+"\n"); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		if _, err := io.WriteString(w, renderRow(tx)+"\n"); err != nil {
			return fmt.Errorf("write csv row for transaction %d: %w", tx.ID, err)
		}
	}
	return nil
}

func renderRow(tx *domain.Transaction) string {
	fields := []string{
		tx.Date.String(),
		tx.Time.String(),
		string(tx.Direction),
		tx.Amount.StringFixed(2),
		quote(tx.CounterpartyName),
		quote(tx.Institution),
		tx.AccountNumber,
		quote(tx.Reference),
		quote(tx.UserTag),
		string(tx.EntryMethod),
	}
	return strings.Join(fields, ",")
}

// quote wraps a free-text value in double quotes, doubling any embedded
// quote per RFC 4180.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
