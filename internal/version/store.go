// Package version implements the versioned list reconciliation engine:
// the ledger store, the reconciler that turns classified batches into
// new immutable versions, the rollback path, version compare, and the
// version history recorder.
package version

import (
	"context"
	"errors"

	"github.com/rcastellanos/fareacl/internal/list"
)

// ErrNotFound is returned when a requested version, record or history
// entry does not exist.
var ErrNotFound = errors.New("not found")

// Row is one persisted ledger row: a record stamped with the version it
// belongs to and its status under that version. Rows are never updated
// in place; supersession happens by writing new rows at a new version.
type Row struct {
	Record  list.Record `json:"record"`
	Version int         `json:"version"`
	Status  string      `json:"status"`
}

// Store is the read side of the ledger plus the transaction entry point.
// Implementations must make InTx atomic: every write performed through
// the Tx commits together or not at all.
type Store interface {
	// MaxVersion returns the highest version of the list, 0 when empty.
	MaxVersion(ctx context.Context, def list.Definition) (int, error)

	// RowsByVersion returns every row stamped with the given version.
	RowsByVersion(ctx context.Context, def list.Definition, version int) ([]Row, error)

	// InactiveKeys returns the keys that have ever been retired.
	InactiveKeys(ctx context.Context, def list.Definition) (map[string]bool, error)

	// StolenKeys returns the stolen/compromised registry for the list.
	StolenKeys(ctx context.Context, def list.Definition) (map[string]bool, error)

	// InTx runs fn inside a transaction, committing on nil return and
	// rolling back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of the ledger, only reachable through Store.InTx.
type Tx interface {
	// InsertRows appends rows in bounded chunks. Chunking bounds memory
	// per round trip, not atomicity: the surrounding transaction still
	// commits or rolls back as a whole.
	InsertRows(ctx context.Context, def list.Definition, rows []Row) error

	// DeleteVersionsAbove removes every row with version > v and
	// returns the number of rows deleted.
	DeleteVersionsAbove(ctx context.Context, def list.Definition, v int) (int64, error)
}

// ActiveRows reads the current version number and its active rows.
// Version 0 with no rows means the list is empty.
func ActiveRows(ctx context.Context, s Store, def list.Definition) (int, []Row, error) {
	v, err := s.MaxVersion(ctx, def)
	if err != nil {
		return 0, nil, err
	}
	if v == 0 {
		return 0, nil, nil
	}
	rows, err := s.RowsByVersion(ctx, def, v)
	if err != nil {
		return 0, nil, err
	}
	active := rows[:0:0]
	for _, r := range rows {
		if r.Status == list.StatusActive {
			active = append(active, r)
		}
	}
	return v, active, nil
}
