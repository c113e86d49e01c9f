// Package keys derives the canonical document keys used across the ledger
// collections. Every caller that needs a customer or date key must go through
// this package so that a customer's history never splits across two keys.
package keys

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HighSentinel sorts after any character a normalized key can contain.
const HighSentinel = "\uf8ff"

// ErrInvalidDate indicates a display date that is not in DD-MM-YYYY form.
var ErrInvalidDate = errors.New("invalid display date")

// ErrInvalidMonth indicates a month outside 1..12.
var ErrInvalidMonth = errors.New("invalid month")

// Customer trims, lowercases and replaces spaces with underscores.
func Customer(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Date converts a DD-MM-YYYY display date into a YYYYMMDD key whose
// lexicographic order matches chronological order.
func Date(display string) (string, error) {
	parts := strings.Split(strings.TrimSpace(display), "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, display)
	}

	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, display)
		}
		if _, err := strconv.Atoi(p); err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, display)
		}
	}

	return parts[2] + pad2(parts[1]) + pad2(parts[0]), nil
}

// Display renders a day as DD-MM-YYYY.
func Display(day, month, year int) string {
	return fmt.Sprintf("%02d-%02d-%d", day, month, year)
}

// MonthBounds returns the first and last date keys of the month, inclusive.
func MonthBounds(month, year int) (string, string, error) {
	if month < 1 || month > 12 {
		return "", "", fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}

	// day 0 of the following month is the last day of this one
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()

	first, err := Date(Display(1, month, year))
	if err != nil {
		return "", "", err
	}
	end, err := Date(Display(last, month, year))
	if err != nil {
		return "", "", err
	}
	return first, end, nil
}

// PrefixEnd returns the exclusive upper bound of the keys starting with prefix.
func PrefixEnd(prefix string) string {
	return prefix + HighSentinel
}

func pad2(s string) string {
	if len(s) >= 2 {
		return s
	}
	return strings.Repeat("0", 2-len(s)) + s
}
