package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	HAETimeLayout     = "2006-01-02 15:04:05 -0700"
	HAEDateOnlyLayout = "2006-01-02"

	// CanonicalLayout is how Airtable renders a UTC dateTime field on read,
	// so values written and values listed compare equal as strings.
	CanonicalLayout = "2006-01-02T15:04:05.000Z"

	defaultTimeOfDay = "00:00:00"
	defaultOffset    = "+0000"
)

// ErrInvalidDate is wrapped by every NormalizeHAEDate failure.
var ErrInvalidDate = errors.New("invalid HAE date")

// NormalizeHAEDate converts an HAE date string into its canonical UTC form.
// Date-only input ("2024-02-06") is completed with midnight at +0000.
func NormalizeHAEDate(raw string) (string, error) {
	t, err := ParseHAETime(raw)
	if err != nil {
		return "", err
	}
	return Canonical(t), nil
}

// ParseHAETime parses an HAE time string into a time.Time.
func ParseHAETime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if !strings.Contains(s, " ") && len(s) == len(HAEDateOnlyLayout) {
		s = s + " " + defaultTimeOfDay + " " + defaultOffset
	}
	t, err := time.Parse(HAETimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, raw, err)
	}
	return t, nil
}

// Canonical formats t in the canonical wire form.
func Canonical(t time.Time) string {
	return t.UTC().Format(CanonicalLayout)
}

// CanonicalizeStored brings a Date value read back from Airtable into the
// canonical form. Text columns holding raw HAE dates are accepted too;
// anything else is returned as is.
func CanonicalizeStored(s string) string {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Canonical(t)
	}
	if t, err := ParseHAETime(s); err == nil {
		return Canonical(t)
	}
	return s
}
