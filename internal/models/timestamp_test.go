package models

import (
	"errors"
	"testing"
	"time"
)

// TestNormalizeHAEDateFullDatetime verifies the standard HAE layout is
// converted to UTC with millisecond precision.
func TestNormalizeHAEDateFullDatetime(t *testing.T) {
	got, err := NormalizeHAEDate("2024-01-01 08:00:00 +0200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "2024-01-01T06:00:00.000Z"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestNormalizeHAEDateDateOnly verifies that a date without a time of day is
// completed with midnight at +0000 and that the result is deterministic.
func TestNormalizeHAEDateDateOnly(t *testing.T) {
	first, err := NormalizeHAEDate("2024-02-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "2024-02-06T00:00:00.000Z"; first != want {
		t.Errorf("got %q, want %q", first, want)
	}
	second, _ := NormalizeHAEDate("2024-02-06")
	if first != second {
		t.Errorf("normalization not deterministic: %q vs %q", first, second)
	}
}

// TestNormalizeHAEDateSameInstant verifies that different encodings of the
// same instant collapse to one canonical string. Duplicate detection relies
// on this.
func TestNormalizeHAEDateSameInstant(t *testing.T) {
	cases := [][2]string{
		{"2024-02-06", "2024-02-06 00:00:00 +0000"},
		{"2024-01-01 08:00:00 +0200", "2024-01-01 06:00:00 +0000"},
		{"2024-01-01 01:30:00 -0500", "2024-01-01 06:30:00 +0000"},
	}
	for _, c := range cases {
		a, err := NormalizeHAEDate(c[0])
		if err != nil {
			t.Fatalf("%q: %v", c[0], err)
		}
		b, err := NormalizeHAEDate(c[1])
		if err != nil {
			t.Fatalf("%q: %v", c[1], err)
		}
		if a != b {
			t.Errorf("%q -> %q, %q -> %q, want equal", c[0], a, c[1], b)
		}
	}
}

// TestNormalizeHAEDateInvalid verifies that unparseable input wraps
// ErrInvalidDate so callers can skip the record.
func TestNormalizeHAEDateInvalid(t *testing.T) {
	for _, raw := range []string{"", "not-a-date", "2024-13-45", "2024-01-01T08:00:00Z", "01/02/2024 08:00"} {
		if _, err := NormalizeHAEDate(raw); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("NormalizeHAEDate(%q) error = %v, want ErrInvalidDate", raw, err)
		}
	}
}

// TestParseHAETime verifies the parsed instant and offset.
func TestParseHAETime(t *testing.T) {
	got, err := ParseHAETime("2024-02-06 14:30:00 -0800")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 2, 6, 14, 30, 0, 0, time.FixedZone("", -8*3600))
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// TestCanonicalizeStored verifies values read back from Airtable match the
// form produced by NormalizeHAEDate.
func TestCanonicalizeStored(t *testing.T) {
	written, _ := NormalizeHAEDate("2024-01-01 08:00:00 +0200")

	for _, stored := range []string{
		"2024-01-01T06:00:00.000Z",
		"2024-01-01T06:00:00Z",
		"2024-01-01T08:00:00+02:00",
		"2024-01-01 08:00:00 +0200",
	} {
		if got := CanonicalizeStored(stored); got != written {
			t.Errorf("CanonicalizeStored(%q) = %q, want %q", stored, got, written)
		}
	}

	if got := CanonicalizeStored("garbage"); got != "garbage" {
		t.Errorf("CanonicalizeStored(garbage) = %q, want unchanged", got)
	}
}
