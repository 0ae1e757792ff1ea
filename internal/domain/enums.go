package domain

import "fmt"

// Direction indicates whether money left or entered the tracked account.
type Direction string

const (
	// Debit is money leaving the account.
	Debit Direction = "DEBIT"
	// Credit is money entering the account.
	Credit Direction = "CREDIT"
)

// ParseDirection converts a stored enum name back to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Debit, Credit:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// EntryMethod records the provenance of a transaction.
type EntryMethod string

const (
	// Automatic marks a transaction derived from an inbound SMS.
	Automatic EntryMethod = "AUTOMATIC"
	// Manual marks a transaction entered directly by the user.
	Manual EntryMethod = "MANUAL"
)

// ParseEntryMethod converts a stored enum name back to an EntryMethod.
func ParseEntryMethod(s string) (EntryMethod, error) {
	switch EntryMethod(s) {
	case Automatic, Manual:
		return EntryMethod(s), nil
	}
	return "", fmt.Errorf("unknown entry method %q", s)
}

// TimeFormat is the user's time-display preference. It affects presentation
// only, never stored data.
type TimeFormat string

const (
	TwelveHour     TimeFormat = "12h"
	TwentyFourHour TimeFormat = "24h"
)

// ParseTimeFormat converts a configured value to a TimeFormat.
func ParseTimeFormat(s string) (TimeFormat, error) {
	switch TimeFormat(s) {
	case TwelveHour, TwentyFourHour:
		return TimeFormat(s), nil
	}
	return "", fmt.Errorf("unknown time format %q", s)
}

// Display strings are kept out of the enum types themselves; presentation
// code looks them up here.

var directionDisplay = map[Direction]string{
	Debit:  "DEBITED",
	Credit: "CREDITED",
}

// DirectionDisplay returns the past-tense label shown for a direction.
func DirectionDisplay(d Direction) string {
	if s, ok := directionDisplay[d]; ok {
		return s
	}
	return string(d)
}

var entryMethodDisplay = map[EntryMethod]string{
	Automatic: "From SMS",
	Manual:    "Manual entry",
}

// EntryMethodDisplay returns the label shown for an entry method.
func EntryMethodDisplay(m EntryMethod) string {
	if s, ok := entryMethodDisplay[m]; ok {
		return s
	}
	return string(m)
}
