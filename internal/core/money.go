// Package core provides money parsing and handling utilities.
//
// Amounts are whole currency units (the tracker is used with VND, which has no
// minor unit). Parsing accepts the grouped form the input fields produce,
// e.g. "1.000.000".
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is a signed amount in whole currency units.
type Money int64

// ParseAmount converts a user-entered amount to Money.
//
// Dots, spaces and underscores are treated as thousands separators and dropped.
// Signs and decimal commas are rejected, as are zero amounts.
//
// Examples:
//
//	ParseAmount("16000")     -> 16000, nil
//	ParseAmount("1.000.000") -> 1000000, nil
//	ParseAmount("-5")        -> 0, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '.' || r == ' ' || r == '_':
			continue
		case unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			return 0, ErrInvalidAmount
		}
	}
	if b.Len() == 0 {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return Money(v), nil
}

// Validate reports whether m is usable as a transaction amount.
func (m Money) Validate() error {
	if m <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Abs returns the magnitude of m.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// String formats m with dot thousands separators ("1.250.000", "-30.000").
func (m Money) String() string {
	digits := strconv.FormatInt(int64(m.Abs()), 10)
	var b strings.Builder
	if m < 0 {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
