package version

import (
	"context"
	"fmt"
	"sort"

	"github.com/rcastellanos/fareacl/internal/list"
)

// ChangedKey names a record present in both compared versions whose
// fields differ, with the differing field names.
type ChangedKey struct {
	Key    string   `json:"key"`
	Fields []string `json:"fields"`
}

// CompareResult is the symmetric difference between two versions'
// active sets. A version that does not exist contributes an empty set.
type CompareResult struct {
	CurrentCount int           `json:"currentCount"`
	OldCount     int           `json:"oldCount"`
	Added        []list.Record `json:"added"`
	Removed      []list.Record `json:"removed"`
	Changed      []ChangedKey  `json:"changed"`
}

// Compare computes what changed between the active sets of versions old
// and current. Read-only; used for "what changed" views.
func (r *Reconciler) Compare(ctx context.Context, def list.Definition, old, current int) (*CompareResult, error) {
	oldSet, err := r.activeByKey(ctx, def, old)
	if err != nil {
		return nil, fmt.Errorf("read version %d of %s: %w", old, def.Key, err)
	}
	curSet, err := r.activeByKey(ctx, def, current)
	if err != nil {
		return nil, fmt.Errorf("read version %d of %s: %w", current, def.Key, err)
	}

	res := &CompareResult{CurrentCount: len(curSet), OldCount: len(oldSet)}

	for key, rec := range curSet {
		oldRec, ok := oldSet[key]
		if !ok {
			res.Added = append(res.Added, rec)
			continue
		}
		if fields := list.ChangedFields(oldRec, rec); len(fields) > 0 {
			sort.Strings(fields)
			res.Changed = append(res.Changed, ChangedKey{Key: key, Fields: fields})
		}
	}
	for key, rec := range oldSet {
		if _, ok := curSet[key]; !ok {
			res.Removed = append(res.Removed, rec)
		}
	}

	sortRecords(res.Added)
	sortRecords(res.Removed)
	sort.Slice(res.Changed, func(i, j int) bool { return res.Changed[i].Key < res.Changed[j].Key })

	return res, nil
}

// activeByKey returns the active records of one version keyed by
// natural key; an unknown version yields an empty map.
func (r *Reconciler) activeByKey(ctx context.Context, def list.Definition, v int) (map[string]list.Record, error) {
	if v <= 0 {
		return map[string]list.Record{}, nil
	}
	rows, err := r.store.RowsByVersion(ctx, def, v)
	if err != nil {
		return nil, err
	}
	set := make(map[string]list.Record, len(rows))
	for _, row := range rows {
		if row.Status == list.StatusActive {
			set[row.Record.Key] = row.Record
		}
	}
	return set, nil
}

// Summary describes the current state of a list.
type Summary struct {
	ListKey        string         `json:"listKey"`
	CurrentVersion int            `json:"currentVersion"`
	ActiveRecords  int            `json:"activeRecords"`
	RecordsByOrg   map[string]int `json:"recordsByOrg,omitempty"`
}

// Summarize reports the current version, its active row count and, for
// multi-org lists, the per-organization breakdown.
func (r *Reconciler) Summarize(ctx context.Context, def list.Definition) (*Summary, error) {
	v, rows, err := ActiveRows(ctx, r.store, def)
	if err != nil {
		return nil, fmt.Errorf("read current version of %s: %w", def.Key, err)
	}

	sum := &Summary{ListKey: def.Key, CurrentVersion: v, ActiveRecords: len(rows)}
	if def.MultiOrg {
		sum.RecordsByOrg = make(map[string]int)
		for _, row := range rows {
			sum.RecordsByOrg[row.Record.Org]++
		}
	}
	return sum, nil
}

// Records returns the rows stamped with the given version, sorted by
// natural key. version <= 0 selects the current version. An unknown
// version returns ErrNotFound.
func (r *Reconciler) Records(ctx context.Context, def list.Definition, version int) (int, []Row, error) {
	max, err := r.store.MaxVersion(ctx, def)
	if err != nil {
		return 0, nil, fmt.Errorf("read current version of %s: %w", def.Key, err)
	}
	if version <= 0 {
		version = max
	}
	if version == 0 {
		return 0, nil, nil
	}
	if version > max {
		return 0, nil, fmt.Errorf("version %d of %s: %w", version, def.Key, ErrNotFound)
	}
	rows, err := r.store.RowsByVersion(ctx, def, version)
	if err != nil {
		return 0, nil, fmt.Errorf("read version %d of %s: %w", version, def.Key, err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Record.Key < rows[j].Record.Key })
	return version, rows, nil
}

// Lookup finds the active record with the given natural key at the
// current version. Returns ErrNotFound when absent.
func (r *Reconciler) Lookup(ctx context.Context, def list.Definition, key string) (*Row, error) {
	_, rows, err := ActiveRows(ctx, r.store, def)
	if err != nil {
		return nil, fmt.Errorf("read current version of %s: %w", def.Key, err)
	}
	for _, row := range rows {
		if row.Record.Key == key {
			return &row, nil
		}
	}
	return nil, fmt.Errorf("key %q not active in %s: %w", key, def.Key, ErrNotFound)
}

func sortRecords(recs []list.Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
}
