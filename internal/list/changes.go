package list

import "strings"

// systemFields are managed by the ledger, never by submitted rows, and
// are excluded from change detection.
var systemFields = map[string]bool{
	"status":  true,
	"version": true,
}

// ChangeSet is the outcome of matching proposed modifications against
// the current active records.
type ChangeSet struct {
	Changed []Record // at least one non-system field differs
	NoOp    []Record // identical to the current record, excluded from writes
	NoMatch []Record // no active record shares the key
}

// DetectChanges compares each proposed modification with the current
// record of the same key. Fields compare as whitespace-trimmed strings
// with absent and empty treated alike, so a column added to the schema
// later does not make every old record look modified.
func DetectChanges(current map[string]Record, proposed []Record) ChangeSet {
	var cs ChangeSet
	for _, p := range proposed {
		cur, ok := current[p.Key]
		if !ok {
			cs.NoMatch = append(cs.NoMatch, p)
			continue
		}
		if recordsEqual(cur, p) {
			cs.NoOp = append(cs.NoOp, p)
		} else {
			cs.Changed = append(cs.Changed, p)
		}
	}
	return cs
}

// ChangedFields returns the names of the non-system fields that differ
// between two records, in no particular order. Used by version compare.
func ChangedFields(a, b Record) []string {
	var fields []string
	for name := range unionFields(a, b) {
		if systemFields[name] {
			continue
		}
		if normValue(a.Fields[name]) != normValue(b.Fields[name]) {
			fields = append(fields, name)
		}
	}
	return fields
}

func recordsEqual(a, b Record) bool {
	for name := range unionFields(a, b) {
		if systemFields[name] {
			continue
		}
		if normValue(a.Fields[name]) != normValue(b.Fields[name]) {
			return false
		}
	}
	return true
}

func unionFields(a, b Record) map[string]bool {
	u := make(map[string]bool, len(a.Fields)+len(b.Fields))
	for name := range a.Fields {
		u[name] = true
	}
	for name := range b.Fields {
		u[name] = true
	}
	return u
}

// normValue trims whitespace; a missing field and an empty one compare equal.
func normValue(s string) string {
	return strings.TrimSpace(s)
}
