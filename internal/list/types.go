// Package list defines the versioned access-control lists managed by the
// service: their column schemas, filename conventions, row validation,
// batch classification, conflict resolution and change detection.
// This package has no transport or storage dependencies.
package list

import "fmt"

// Row is one raw CSV row, keyed by column name.
type Row map[string]string

// Record is a validated and normalized row, keyed by the list's natural key.
type Record struct {
	Key    string            `json:"key"`
	Org    string            `json:"org,omitempty"` // issuing organization, empty for single-org lists
	Fields map[string]string `json:"fields"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{Key: r.Key, Org: r.Org, Fields: fields}
}

// Operation names a reconciliation bucket. The wire and filename values
// keep the domain terms used across the fare network.
type Operation string

const (
	OpAdditions     Operation = "altas"
	OpRemovals      Operation = "bajas"
	OpModifications Operation = "cambios"
)

// Status values a versioned row can carry.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// RowError is a row-level validation failure. Row errors are data, not
// control flow: they are collected per file and reported to the caller.
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d, %s: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// FieldSpec defines a single column of a list schema.
type FieldSpec struct {
	Name      string              // Column header name (must match CSV exactly)
	DBColumn  string              // Database column name (lowercased Name when empty)
	Optional  bool                // Empty values allowed
	Derived   bool                // Computed by a rule, never expected in the CSV
	Normalize func(string) string // Optional transformation applied before rules run
}

// Column returns the database column name for the field.
func (f FieldSpec) Column() string {
	if f.DBColumn != "" {
		return f.DBColumn
	}
	return lowerASCII(f.Name)
}

// Rule is one ordered validation step. It inspects the normalized record,
// may derive additional fields, and returns a row error on failure.
// Rules run after the required-field check and short-circuit per row.
type Rule func(rec *Record) *RowError

// Definition contains everything needed to ingest, validate and persist
// one access-control list.
type Definition struct {
	Key   string // registry key: "blacklist", "whitelist", ...
	Label string // display name
	Table string // database table

	// FilePrefix is the filename stem before the operation segment,
	// e.g. "listanegra_tarjetas". TimestampDigits is the length of the
	// trailing timestamp in submitted filenames.
	FilePrefix      string
	TimestampDigits int

	Fields     []FieldSpec
	KeyField   string      // Name of the natural-key column
	Rules      []Rule      // ordered, short-circuiting business rules
	Operations []Operation // buckets this list accepts

	// MultiOrg lists additionally bucket records per issuing organization.
	MultiOrg bool

	// StolenCheck routes removals through the stolen registry.
	StolenCheck bool
}

// Columns returns the header names in schema order.
func (d Definition) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Name
	}
	return cols
}

// InputColumns returns the header names a submitted CSV must carry,
// i.e. the schema minus derived fields.
func (d Definition) InputColumns() []string {
	cols := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		if f.Derived {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// DBColumns returns the database column names in schema order.
func (d Definition) DBColumns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Column()
	}
	return cols
}

// Supports reports whether the list accepts the given bucket.
func (d Definition) Supports(op Operation) bool {
	for _, o := range d.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Field returns the FieldSpec for a column name, if defined.
func (d Definition) Field(name string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
