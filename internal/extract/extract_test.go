package extract

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/sms-ledger/internal/domain"
)

const debitSMS = "INR 150.00 debited\nA/c no. XX3248\n02-10-25, 20:05:59\nUPI/P2M/527537387973/MANGARAM CHOWDARY\nAxis Bank"

const creditSMS = "INR 5000.00 credited\nA/c no. XX3248\n28-09-25, 20:05:06 IST\nUPI/P2A/512654122901/MADDU REV/AXIS BANK - Axis Bank"

func TestAmount(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"plain amount", "INR 150.00 debited", "150", true},
		{"grouped thousands", "INR 1,50,000.75 credited", "150000.75", true},
		{"no decimals", "INR 500 debited", "500", true},
		{"single decimal digit", "INR 99.5 debited", "99.5", true},
		{"missing currency marker", "150.00 debited from account", "", false},
		{"no numeric token", "INR debited", "", false},
		{"empty body", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Amount(tt.body)
			if ok != tt.ok {
				t.Fatalf("Amount(%q) ok = %v, want %v", tt.body, ok, tt.ok)
			}
			if ok && got.String() != tt.want {
				t.Errorf("Amount(%q) = %s, want %s", tt.body, got, tt.want)
			}
		})
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		name string
		body string
		want domain.Direction
		ok   bool
	}{
		{"debited", debitSMS, domain.Debit, true},
		{"credited", creditSMS, domain.Credit, true},
		{"debit keyword wins when first", "debited then credited", domain.Debit, true},
		{"credit keyword wins when first", "credited then debited", domain.Credit, true},
		{"neither keyword", "INR 100.00 transferred", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Direction(tt.body)
			if ok != tt.ok {
				t.Fatalf("Direction(%q) ok = %v, want %v", tt.body, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Direction(%q) = %s, want %s", tt.body, got, tt.want)
			}
		})
	}
}

func TestAccount(t *testing.T) {
	if got, ok := Account(debitSMS); !ok || got != "XX3248" {
		t.Errorf("Account = %q, %v; want XX3248, true", got, ok)
	}
	if _, ok := Account("INR 150.00 debited"); ok {
		t.Errorf("Account on body without label should be absent")
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want civil.Date
		ok   bool
	}{
		{"debit scenario", debitSMS, civil.Date{Year: 2025, Month: time.October, Day: 2}, true},
		{"credit scenario", creditSMS, civil.Date{Year: 2025, Month: time.September, Day: 28}, true},
		{"no date token", "INR 150.00 debited at noon", civil.Date{}, false},
		{"impossible date", "on 99-99-25 something", civil.Date{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Date(tt.body)
			if ok != tt.ok {
				t.Fatalf("Date(%q) ok = %v, want %v", tt.body, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Date(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestTime(t *testing.T) {
	tests := []struct {
		name string
		body string
		want civil.Time
		ok   bool
	}{
		{"debit scenario", debitSMS, civil.Time{Hour: 20, Minute: 5, Second: 59}, true},
		{"no time token", "02-10-25 during the day", civil.Time{}, false},
		{"out of range", "at 29:99:99 sharp", civil.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Time(tt.body)
			if ok != tt.ok {
				t.Fatalf("Time(%q) ok = %v, want %v", tt.body, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Time(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestCounterparty(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"fourth segment", debitSMS, "MANGARAM CHOWDARY"},
		{"fourth segment of longer line", creditSMS, "MADDU REV"},
		{"trailing suffix stripped", "UPI/P2A/512654122901/RAVI KUMAR-OKAXIS", "RAVI KUMAR"},
		{"no upi line", "INR 150.00 debited", "Unknown"},
		{"too few segments", "UPI/P2M/527537387973", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Counterparty(tt.body); got != tt.want {
				t.Errorf("Counterparty = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReference(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"whole line without separator", debitSMS, "UPI/P2M/527537387973/MANGARAM CHOWDARY"},
		{"trimmed before separator", creditSMS, "UPI/P2A/512654122901/MADDU REV/AXIS BANK"},
		{"no upi line", "INR 150.00 debited", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reference(tt.body); got != tt.want {
				t.Errorf("Reference = %q, want %q", got, tt.want)
			}
		})
	}
}
