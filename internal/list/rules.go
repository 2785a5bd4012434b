package list

// rules.go provides the rule constructors list definitions compose.
// Rules run in declaration order and short-circuit per row, so a list
// definition reads as the ordered checklist an operator would apply.

import (
	"fmt"
	"regexp"
	"strings"
)

// SerialsMatch checks that the decimal and hex serial columns denote the
// same integer. On mismatch the error carries both values plus the hex
// form the decimal implies.
func SerialsMatch(decField, hexField string) Rule {
	return func(rec *Record) *RowError {
		dec, hex := rec.Fields[decField], rec.Fields[hexField]
		ok, expected, err := EquivalentSerials(dec, hex)
		if err != nil {
			return &RowError{Field: hexField, Message: err.Error()}
		}
		if !ok {
			return &RowError{
				Field: hexField,
				Message: fmt.Sprintf("serial mismatch: decimal %s implies hex %s, got %s",
					dec, expected, hex),
			}
		}
		return nil
	}
}

// CodeIn checks catalog membership for a column.
func CodeIn(field string, allowed []string) Rule {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	return func(rec *Record) *RowError {
		v := rec.Fields[field]
		if v == "" {
			return nil
		}
		if !set[v] {
			return &RowError{
				Field:   field,
				Message: fmt.Sprintf("value %q not in catalog [%s]", v, strings.Join(allowed, ", ")),
			}
		}
		return nil
	}
}

// MaxLen bounds the length of a column value.
func MaxLen(field string, n int) Rule {
	return func(rec *Record) *RowError {
		if v := rec.Fields[field]; len(v) > n {
			return &RowError{
				Field:   field,
				Message: fmt.Sprintf("value %q longer than %d characters", v, n),
			}
		}
		return nil
	}
}

// Matches checks a column against a pattern; desc names the expected shape.
func Matches(field string, re *regexp.Regexp, desc string) Rule {
	return func(rec *Record) *RowError {
		v := rec.Fields[field]
		if v == "" {
			return nil
		}
		if !re.MatchString(v) {
			return &RowError{
				Field:   field,
				Message: fmt.Sprintf("value %q is not a valid %s", v, desc),
			}
		}
		return nil
	}
}

// DayBitmap checks that a column holds a weekday bitmap in [0,127].
func DayBitmap(field string) Rule {
	return func(rec *Record) *RowError {
		if _, err := ParseDayBitmap(rec.Fields[field]); err != nil {
			return &RowError{Field: field, Message: err.Error()}
		}
		return nil
	}
}

// TimeWindow checks that a column holds an hh:mm-hh:mm window with the
// start strictly before the end.
func TimeWindow(field string) Rule {
	return func(rec *Record) *RowError {
		if _, _, err := ParseTimeWindow(rec.Fields[field]); err != nil {
			return &RowError{Field: field, Message: err.Error()}
		}
		return nil
	}
}

// CalendarDate checks that a column holds a strict YYYY-MM-DD date.
func CalendarDate(field string) Rule {
	return func(rec *Record) *RowError {
		if _, err := ParseCalendarDate(rec.Fields[field]); err != nil {
			return &RowError{Field: field, Message: err.Error()}
		}
		return nil
	}
}

// Derive computes a field from the already-validated record. It never
// fails; place it after the rules its inputs depend on.
func Derive(field string, fn func(rec *Record) string) Rule {
	return func(rec *Record) *RowError {
		rec.Fields[field] = fn(rec)
		return nil
	}
}
