package list

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanCell trims whitespace and strips control characters from a cell.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// NormalizeText strips diacritics and uppercases free-text fields so
// station names compare stably regardless of how operators typed them.
func NormalizeText(s string) string {
	return strings.ToUpper(stripDiacritics(CleanCell(s)))
}

// NormalizeHex uppercases a hex identifier after trimming.
func NormalizeHex(s string) string {
	return strings.ToUpper(CleanCell(s))
}

// stripDiacritics removes diacritical marks (accents) from a string.
// It decomposes the string into NFD form and removes combining marks.
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var result strings.Builder
	result.Grow(len(decomposed))

	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}

// EquivalentSerials reports whether a decimal serial and a hex serial
// denote the same integer. The returned expected value is the hex form
// of the decimal serial, for error reporting on mismatch.
func EquivalentSerials(dec, hex string) (ok bool, expected string, err error) {
	d, err := strconv.ParseUint(CleanCell(dec), 10, 64)
	if err != nil {
		return false, "", fmt.Errorf("decimal serial %q is not a number", dec)
	}
	h, err := strconv.ParseUint(CleanCell(hex), 16, 64)
	if err != nil {
		return false, "", fmt.Errorf("hex serial %q is not hexadecimal", hex)
	}
	expected = strings.ToUpper(strconv.FormatUint(d, 16))
	return d == h, expected, nil
}

// ParseCalendarDate parses a strict YYYY-MM-DD date, rejecting values
// time.Parse would normalize (2023-02-30) as well as format drift.
func ParseCalendarDate(s string) (time.Time, error) {
	s = CleanCell(s)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	if t.Format("2006-01-02") != s {
		return time.Time{}, fmt.Errorf("date %q is not a real calendar date", s)
	}
	return t, nil
}

// ParseDayBitmap parses a day-of-week bitmap: an integer in [0,127]
// where each bit enables one weekday.
func ParseDayBitmap(s string) (int, error) {
	n, err := strconv.Atoi(CleanCell(s))
	if err != nil {
		return 0, fmt.Errorf("day bitmap %q is not an integer", s)
	}
	if n < 0 || n > 127 {
		return 0, fmt.Errorf("day bitmap %d out of range [0,127]", n)
	}
	return n, nil
}

// ParseTimeWindow parses an hh:mm-hh:mm window and requires the start
// to be strictly before the end.
func ParseTimeWindow(s string) (start, end string, err error) {
	parts := strings.Split(CleanCell(s), "-")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("time window %q must be hh:mm-hh:mm", s)
	}
	start, end = parts[0], parts[1]
	st, err := time.Parse("15:04", start)
	if err != nil {
		return "", "", fmt.Errorf("invalid start time %q", start)
	}
	et, err := time.Parse("15:04", end)
	if err != nil {
		return "", "", fmt.Errorf("invalid end time %q", end)
	}
	if !st.Before(et) {
		return "", "", fmt.Errorf("time window %q start must be before end", s)
	}
	return start, end, nil
}
