// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ─── Money ──────────────────────────────────────────────────────────────────

// Money is a fixed-point currency amount with scale 2, held in minor units
// (cents). All ledger arithmetic happens on this integer representation;
// binary floating point never touches a balance.
type Money int64

// MoneyFromCents wraps a raw minor-unit amount.
func MoneyFromCents(cents int64) Money { return Money(cents) }

// Cents returns the raw minor-unit amount.
func (m Money) Cents() int64 { return int64(m) }

// Positive reports whether the amount is strictly greater than zero.
func (m Money) Positive() bool { return m > 0 }

// String formats the amount with exactly two decimals, e.g. "20.00".
func (m Money) String() string {
	cents := int64(m)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParseMoney parses a decimal literal ("20", "20.5", "20.50") into Money.
// At most two fractional digits are accepted; anything finer would force a
// rounding decision on user input, so it is rejected instead. Negative
// amounts parse fine — callers decide whether they are acceptable.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse money: empty amount")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("parse money: %q is not a number", s)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("parse money: %q has more than two decimal places", s)
	}
	// Pad "20.5" to cents precision.
	for len(frac) < 2 {
		frac += "0"
	}

	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse money: %q is not a number", s)
	}
	if neg {
		cents = -cents
	}
	return Money(cents), nil
}

// MarshalJSON renders the amount as a two-decimal string ("20.00"), matching
// the wire format of the balance fields.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON number (20000, 20.5) or a string
// ("20.50"). The raw literal is parsed digit-for-digit, so number inputs
// never pass through a float.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" || s == "" {
		*m = 0
		return nil
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
