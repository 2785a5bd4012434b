package version

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcastellanos/fareacl/internal/list"
)

// PgStore is the PostgreSQL ledger. SQL is generated from the list
// definitions: one append-only table per list plus the shared
// version_history and stolen_cards tables.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wraps a connection pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) MaxVersion(ctx context.Context, def list.Definition) (int, error) {
	var v int
	query := fmt.Sprintf(`SELECT COALESCE(MAX(version), 0) FROM %s`, quoteIdentifier(def.Table))
	if err := s.pool.QueryRow(ctx, query).Scan(&v); err != nil {
		return 0, fmt.Errorf("max version of %s: %w", def.Table, err)
	}
	return v, nil
}

func (s *PgStore) RowsByVersion(ctx context.Context, def list.Definition, version int) ([]Row, error) {
	cols := def.DBColumns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdentifier(c)
	}
	query := fmt.Sprintf(`SELECT %s, org_code, version, status FROM %s WHERE version = $1`,
		strings.Join(quoted, ", "), quoteIdentifier(def.Table))

	rows, err := s.pool.Query(ctx, query, version)
	if err != nil {
		return nil, fmt.Errorf("query %s version %d: %w", def.Table, version, err)
	}
	defer rows.Close()

	names := def.Columns()
	var out []Row
	for rows.Next() {
		values := make([]*string, len(cols))
		scan := make([]any, 0, len(cols)+3)
		for i := range values {
			scan = append(scan, &values[i])
		}
		var org *string
		var r Row
		scan = append(scan, &org, &r.Version, &r.Status)
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", def.Table, err)
		}

		r.Record.Fields = make(map[string]string, len(cols))
		for i, name := range names {
			if values[i] != nil {
				r.Record.Fields[name] = *values[i]
			}
		}
		if org != nil {
			r.Record.Org = *org
		}
		r.Record.Key = r.Record.Fields[def.KeyField]
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", def.Table, err)
	}
	return out, nil
}

func (s *PgStore) InactiveKeys(ctx context.Context, def list.Definition) (map[string]bool, error) {
	keyCol, _ := def.Field(def.KeyField)
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE status = $1`,
		quoteIdentifier(keyCol.Column()), quoteIdentifier(def.Table))

	rows, err := s.pool.Query(ctx, query, list.StatusInactive)
	if err != nil {
		return nil, fmt.Errorf("inactive keys of %s: %w", def.Table, err)
	}
	defer rows.Close()

	return scanKeySet(rows)
}

func (s *PgStore) StolenKeys(ctx context.Context, def list.Definition) (map[string]bool, error) {
	if !def.StolenCheck {
		return map[string]bool{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT card_serial_number FROM stolen_cards WHERE status = $1`, list.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("stolen registry: %w", err)
	}
	defer rows.Close()

	return scanKeySet(rows)
}

// InTx runs fn inside a database transaction.
func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// pgTx adapts a pgx transaction to the ledger write interface.
type pgTx struct {
	tx pgx.Tx
}

// InsertRows bulk-loads one chunk via the COPY protocol.
func (t *pgTx) InsertRows(ctx context.Context, def list.Definition, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	names := def.Columns()
	columns := append(def.DBColumns(), "org_code", "version", "status")

	source := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		values := make([]any, 0, len(columns))
		for _, name := range names {
			if v, ok := r.Record.Fields[name]; ok && v != "" {
				values = append(values, v)
			} else {
				values = append(values, nil)
			}
		}
		var org any
		if r.Record.Org != "" {
			org = r.Record.Org
		}
		values = append(values, org, r.Version, r.Status)
		return values, nil
	})

	if _, err := t.tx.CopyFrom(ctx, pgx.Identifier{def.Table}, columns, source); err != nil {
		return fmt.Errorf("copy into %s: %w", def.Table, err)
	}
	return nil
}

func (t *pgTx) DeleteVersionsAbove(ctx context.Context, def list.Definition, v int) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE version > $1`, quoteIdentifier(def.Table)), v)
	if err != nil {
		return 0, fmt.Errorf("delete from %s above version %d: %w", def.Table, v, err)
	}
	return tag.RowsAffected(), nil
}

// History implementation over the shared version_history table.

func (s *PgStore) Append(ctx context.Context, e HistoryEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO version_history (id, list_name, version, operation_type, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.ListName, e.Version, e.OperationType, e.UserID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *PgStore) ByList(ctx context.Context, listName string) ([]HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, list_name, version, operation_type, user_id, created_at
		 FROM version_history WHERE list_name = $1 ORDER BY created_at DESC`, listName)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", listName, err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.ListName, &e.Version, &e.OperationType, &e.UserID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PgStore) Latest(ctx context.Context, listName string) (HistoryEntry, error) {
	var e HistoryEntry
	err := s.pool.QueryRow(ctx,
		`SELECT id, list_name, version, operation_type, user_id, created_at
		 FROM version_history WHERE list_name = $1 ORDER BY created_at DESC LIMIT 1`, listName).
		Scan(&e.ID, &e.ListName, &e.Version, &e.OperationType, &e.UserID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return HistoryEntry{}, ErrNotFound
	}
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("latest history of %s: %w", listName, err)
	}
	return e, nil
}

func (s *PgStore) ByID(ctx context.Context, id string) (HistoryEntry, error) {
	var e HistoryEntry
	err := s.pool.QueryRow(ctx,
		`SELECT id, list_name, version, operation_type, user_id, created_at
		 FROM version_history WHERE id = $1`, id).
		Scan(&e.ID, &e.ListName, &e.Version, &e.OperationType, &e.UserID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return HistoryEntry{}, ErrNotFound
	}
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("history entry %s: %w", id, err)
	}
	return e, nil
}

func scanKeySet(rows pgx.Rows) (map[string]bool, error) {
	keys := make(map[string]bool)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
