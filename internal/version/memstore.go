package version

import (
	"context"
	"sync"

	"github.com/rcastellanos/fareacl/internal/list"
)

// MemStore is an in-memory Store and HistoryStore. It backs the engine
// tests and small deployments without a database. Transactions stage
// their writes and apply them only when the function returns nil, so
// rollback semantics match the persistent store.
type MemStore struct {
	mu      sync.RWMutex
	rows    map[string][]Row            // list key -> ledger rows
	stolen  map[string]map[string]bool  // list key -> stolen registry
	history []HistoryEntry
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		rows:   make(map[string][]Row),
		stolen: make(map[string]map[string]bool),
	}
}

// AddStolen flags keys in the stolen registry of a list.
func (m *MemStore) AddStolen(listKey string, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg := m.stolen[listKey]
	if reg == nil {
		reg = make(map[string]bool)
		m.stolen[listKey] = reg
	}
	for _, k := range keys {
		reg[k] = true
	}
}

func (m *MemStore) MaxVersion(_ context.Context, def list.Definition) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, r := range m.rows[def.Key] {
		if r.Version > max {
			max = r.Version
		}
	}
	return max, nil
}

func (m *MemStore) RowsByVersion(_ context.Context, def list.Definition, v int) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Row
	for _, r := range m.rows[def.Key] {
		if r.Version == v {
			out = append(out, cloneRow(r))
		}
	}
	return out, nil
}

func (m *MemStore) InactiveKeys(_ context.Context, def list.Definition) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make(map[string]bool)
	for _, r := range m.rows[def.Key] {
		if r.Status == list.StatusInactive {
			keys[r.Record.Key] = true
		}
	}
	return keys, nil
}

func (m *MemStore) StolenKeys(_ context.Context, def list.Definition) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.stolen[def.Key]))
	for k := range m.stolen[def.Key] {
		out[k] = true
	}
	return out, nil
}

// InTx stages writes in a memTx and applies them atomically on success.
func (m *MemStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &memTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, floor := range tx.deletes {
		kept := m.rows[key][:0]
		for _, r := range m.rows[key] {
			if r.Version <= floor {
				kept = append(kept, r)
			}
		}
		m.rows[key] = kept
	}
	for key, rows := range tx.inserts {
		m.rows[key] = append(m.rows[key], rows...)
	}
	return nil
}

// memTx stages mutations until commit.
type memTx struct {
	store   *MemStore
	inserts map[string][]Row
	deletes map[string]int // list key -> keep versions <= floor
}

func (t *memTx) InsertRows(_ context.Context, def list.Definition, rows []Row) error {
	if t.inserts == nil {
		t.inserts = make(map[string][]Row)
	}
	for _, r := range rows {
		t.inserts[def.Key] = append(t.inserts[def.Key], cloneRow(r))
	}
	return nil
}

func (t *memTx) DeleteVersionsAbove(_ context.Context, def list.Definition, v int) (int64, error) {
	if t.deletes == nil {
		t.deletes = make(map[string]int)
	}
	t.deletes[def.Key] = v

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	var n int64
	for _, r := range t.store.rows[def.Key] {
		if r.Version > v {
			n++
		}
	}
	return n, nil
}

// History implementation.

func (m *MemStore) Append(_ context.Context, e HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, e)
	return nil
}

func (m *MemStore) ByList(_ context.Context, listName string) ([]HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []HistoryEntry
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ListName == listName {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *MemStore) Latest(_ context.Context, listName string) (HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ListName == listName {
			return m.history[i], nil
		}
	}
	return HistoryEntry{}, ErrNotFound
}

func (m *MemStore) ByID(_ context.Context, id string) (HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.history {
		if e.ID == id {
			return e, nil
		}
	}
	return HistoryEntry{}, ErrNotFound
}

func cloneRow(r Row) Row {
	return Row{Record: r.Record.Clone(), Version: r.Version, Status: r.Status}
}
