// Package extract pulls individual transaction fields out of raw SMS text.
// Every extractor is a pure function: it either succeeds with a typed value
// or reports absence. Extraction never fails hard; malformed content is the
// same as missing content.
package extract

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/sms-ledger/internal/domain"
)

// Patterns for the fixed vendor SMS template.
var (
	amountRe    = regexp.MustCompile(`INR\s+([\d,]+\.?\d{0,2})`)
	directionRe = regexp.MustCompile(`(debited|credited)`)
	accountRe   = regexp.MustCompile(`A/c no\.\s+(\w+)`)
	dateRe      = regexp.MustCompile(`(\d{2}-\d{2}-\d{2})`)
	timeRe      = regexp.MustCompile(`(\d{2}:\d{2}:\d{2})`)
)

// upiPrefix marks the payment-network line carrying counterparty and reference.
const upiPrefix = "UPI/"

// Amount extracts the currency-prefixed amount, stripping grouping commas.
func Amount(body string) (decimal.Decimal, bool) {
	m := amountRe.FindStringSubmatch(body)
	if m == nil {
		return decimal.Decimal{}, false
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	amt, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return amt.Round(2), true
}

// Direction extracts the first debit/credit keyword in the body.
func Direction(body string) (domain.Direction, bool) {
	m := directionRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	if m[1] == "debited" {
		return domain.Debit, true
	}
	return domain.Credit, true
}

// Account extracts the labeled account token.
// The caller falls back to domain.DefaultAccountNumber on absence; this is
// the only field with a non-empty default.
func Account(body string) (string, bool) {
	m := accountRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Date extracts a dd-MM-yy token and parses it under the vendor's
// two-digit-year convention (20yy).
func Date(body string) (civil.Date, bool) {
	m := dateRe.FindStringSubmatch(body)
	if m == nil {
		return civil.Date{}, false
	}
	parts := strings.Split(m[1], "-")
	day := atoi2(parts[0])
	month := atoi2(parts[1])
	year := 2000 + atoi2(parts[2])
	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	if !d.IsValid() {
		return civil.Date{}, false
	}
	return d, true
}

// Time extracts an HH:MM:SS token as a 24-hour time of day.
func Time(body string) (civil.Time, bool) {
	m := timeRe.FindStringSubmatch(body)
	if m == nil {
		return civil.Time{}, false
	}
	parts := strings.Split(m[1], ":")
	t := civil.Time{Hour: atoi2(parts[0]), Minute: atoi2(parts[1]), Second: atoi2(parts[2])}
	if !t.IsValid() {
		return civil.Time{}, false
	}
	return t, true
}

// Counterparty extracts the other party's name from the UPI line: the 4th
// slash-delimited segment with any trailing "-suffix" stripped. Returns
// domain.UnknownCounterparty when the line or segment is absent.
func Counterparty(body string) string {
	line := upiLine(body)
	parts := strings.Split(line, "/")
	if len(parts) <= 3 {
		return domain.UnknownCounterparty
	}
	name := strings.TrimSpace(strings.SplitN(parts[3], "-", 2)[0])
	if name == "" {
		return domain.UnknownCounterparty
	}
	return name
}

// Reference extracts the settlement reference: the UPI line up to the first
// " - " separator (the whole line when no separator exists), trimmed. An
// empty result means no reference was present.
func Reference(body string) string {
	line := upiLine(body)
	return strings.TrimSpace(strings.SplitN(line, " - ", 2)[0])
}

// upiLine returns the first line starting with the payment-network marker,
// or "" when no such line exists.
func upiLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, upiPrefix) {
			return line
		}
	}
	return ""
}

// atoi2 parses a two-digit numeric field already vetted by the regexps.
func atoi2(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
