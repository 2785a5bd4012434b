// Package schema creates the database layout on startup. All DDL is
// idempotent and generated from the registered list definitions, so a
// new list gets its table by being registered, not by a migration.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcastellanos/fareacl/internal/list"
)

// sharedDDL creates the tables every deployment has regardless of
// which lists are registered.
var sharedDDL = []string{
	`CREATE TABLE IF NOT EXISTS version_history (
		id             UUID PRIMARY KEY,
		list_name      TEXT NOT NULL,
		version        TEXT NOT NULL,
		operation_type TEXT NOT NULL,
		user_id        TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS version_history_list_idx
		ON version_history (list_name, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS stolen_cards (
		card_serial_number TEXT PRIMARY KEY,
		status             TEXT NOT NULL DEFAULT 'ACTIVE',
		reported_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Bootstrap creates the shared tables and one ledger table per
// registered list.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range sharedDDL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("schema bootstrap: %w", err)
		}
	}

	for _, def := range list.All() {
		for _, ddl := range ListDDL(def) {
			if _, err := pool.Exec(ctx, ddl); err != nil {
				return fmt.Errorf("schema bootstrap %s: %w", def.Key, err)
			}
		}
	}

	return nil
}

// ListDDL generates the ledger table and indexes for one list: the
// schema columns, the org code, and the version/status stamps.
func ListDDL(def list.Definition) []string {
	var cols []string
	cols = append(cols, "id UUID PRIMARY KEY DEFAULT gen_random_uuid()")
	for _, c := range def.DBColumns() {
		cols = append(cols, fmt.Sprintf("%s TEXT", quote(c)))
	}
	cols = append(cols,
		"org_code TEXT",
		"version INTEGER NOT NULL",
		"status TEXT NOT NULL",
		"created_at TIMESTAMPTZ NOT NULL DEFAULT now()",
	)

	keyField, _ := def.Field(def.KeyField)
	table := quote(def.Table)

	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", table, strings.Join(cols, ",\n\t")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (version, status)",
			quote(def.Table+"_version_idx"), table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quote(def.Table+"_key_idx"), table, quote(keyField.Column())),
	}
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
