package sms

import (
	"regexp"
	"strings"
)

// senderRe matches the institutional short code the app accepts: two
// uppercase route letters, the fixed bank code and the service suffix.
// Full match and case-sensitive; substrings never pass.
var senderRe = regexp.MustCompile(`^[A-Z]{2}-AXISBK-S$`)

// ValidSender reports whether the originating address is an eligible
// bank short code.
func ValidSender(sender string) bool {
	return senderRe.MatchString(sender)
}

// ContainsTransactionKeywords reports whether the body looks like a
// transaction notification: it must carry the currency marker and at least
// one direction keyword. Exposed standalone so callers can pre-check content
// without running the full parser.
func ContainsTransactionKeywords(body string) bool {
	return strings.Contains(body, "INR") &&
		(strings.Contains(body, "debited") || strings.Contains(body, "credited"))
}
