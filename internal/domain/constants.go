package domain

// Defaults and validation limits for transactions.
// These mirror the fixed vendor template the SMS parser targets.
const (
	// DefaultAccountNumber is used when the SMS carries no account token.
	DefaultAccountNumber = "XX3248"

	// DefaultInstitution is the bank behind the supported SMS template.
	DefaultInstitution = "Axis Bank"

	// ManualInstitution labels user-entered transactions.
	ManualInstitution = "Manual Entry"

	// UnknownCounterparty is used when no counterparty can be extracted.
	UnknownCounterparty = "Unknown"

	// MinAmount and MaxAmount bound manual-entry amounts.
	MinAmount = "0.01"
	MaxAmount = "999999999.99"

	MaxNameLength = 100
	MaxTagLength  = 50

	// DefaultPageSize is the page size for paged queries.
	DefaultPageSize = 20
)

// QuickTags are the suggested category labels offered when tagging.
var QuickTags = []string{
	"Groceries",
	"Transport",
	"Food",
	"Fuel",
	"Shopping",
	"Bills",
	"Entertainment",
	"Healthcare",
	"Education",
	"Salary",
}
