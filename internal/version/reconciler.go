package version

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rcastellanos/fareacl/internal/list"
)

// DefaultChunkSize bounds how many rows one insert round trip carries.
const DefaultChunkSize = 1000

// Result is the outcome of one reconciliation. Conflicting rows are
// reported in named buckets and excluded from the write set; their
// presence does not fail the operation.
type Result struct {
	Success         bool   `json:"success"`
	NewVersion      int    `json:"newVersion"`
	CurrentVersion  int    `json:"currentVersion"`
	NewRecordsCount int    `json:"newRecordsCount"`
	DryRun          bool   `json:"dryRun,omitempty"`
	Error           string `json:"error,omitempty"`

	AddedValid      []list.Record `json:"addedValid"`
	AddedDuplicates []list.Record `json:"addedDuplicates"`
	AddedRetired    []list.Record `json:"addedRetired"`
	RemovedValid    []list.Record `json:"removedValid"`
	RemovedRejected []list.Record `json:"removedRejected"`
	RemovedStolen   []list.Record `json:"removedStolen"`
	ChangedValid    []list.Record `json:"changedValid"`
	ChangedNoOp     []list.Record `json:"changedNoOp"`
	ChangedNoMatch  []list.Record `json:"changedNoMatch"`

	Warnings []string `json:"warnings,omitempty"`
}

// RollbackResult reports a completed rollback.
type RollbackResult struct {
	ListKey       string `json:"listKey"`
	TargetVersion int    `json:"targetVersion"`
	RowsDeleted   int64  `json:"rowsDeleted"`
	Success       bool   `json:"success"`
}

// Reconciler drives version transitions for all lists over one store.
type Reconciler struct {
	store   Store
	history HistoryStore
	chunk   int
	log     *slog.Logger
}

// NewReconciler wires a reconciler. chunkSize <= 0 selects the default.
func NewReconciler(store Store, history HistoryStore, chunkSize int, log *slog.Logger) *Reconciler {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: store, history: history, chunk: chunkSize, log: log}
}

// plan is the resolved write set of one reconciliation.
type plan struct {
	newVersion int
	inserts    []Row
}

// Reconcile runs the full forward transition: resolve the batch against
// the ledger, commit the next version atomically, record history.
func (r *Reconciler) Reconcile(ctx context.Context, def list.Definition, batch *list.Batch, userID string) (*Result, error) {
	res, p, err := r.resolve(ctx, def, batch)
	if err != nil {
		return nil, err
	}

	// An empty write set must not advance the ledger: committing nothing
	// under V+1 would leave the result and the audit trail pointing at a
	// version that never materialized.
	if len(p.inserts) == 0 {
		res.Success = true
		r.log.Info("nothing to write, version not advanced",
			"list", def.Key,
			"version", res.CurrentVersion,
		)
		return res, nil
	}

	if err := r.store.InTx(ctx, func(tx Tx) error {
		return r.insertChunked(ctx, tx, def, p.inserts)
	}); err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("commit version %d of %s: %w", p.newVersion, def.Key, err)
	}

	res.Success = true
	r.log.Info("version committed",
		"list", def.Key,
		"version", p.newVersion,
		"active_rows", res.NewRecordsCount,
		"added", len(res.AddedValid),
		"removed", len(res.RemovedValid),
		"changed", len(res.ChangedValid),
	)

	entry := NewHistoryEntry(def.Key, fmt.Sprint(p.newVersion), OpCreation, userID)
	if err := r.history.Append(ctx, entry); err != nil {
		// The version is committed; a failed audit write must not undo it.
		r.log.Error("history append failed", "list", def.Key, "version", p.newVersion, "error", err)
	}

	return res, nil
}

// Validate is the dry run: it resolves the batch against the ledger and
// reports every bucket without writing anything.
func (r *Reconciler) Validate(ctx context.Context, def list.Definition, batch *list.Batch) (*Result, error) {
	res, _, err := r.resolve(ctx, def, batch)
	if err != nil {
		return nil, err
	}
	res.Success = true
	res.DryRun = true
	return res, nil
}

// resolve reads the ledger state and computes the result buckets plus
// the write set. It performs no writes.
func (r *Reconciler) resolve(ctx context.Context, def list.Definition, batch *list.Batch) (*Result, *plan, error) {
	current, activeRows, err := ActiveRows(ctx, r.store, def)
	if err != nil {
		return nil, nil, fmt.Errorf("read current version of %s: %w", def.Key, err)
	}

	res := &Result{CurrentVersion: current, NewVersion: current + 1}
	p := &plan{newVersion: current + 1}

	if current == 0 {
		r.resolveInitial(def, batch, res, p)
		finishResolve(def, res, p)
		return res, p, nil
	}

	currentByKey := make(map[string]list.Record, len(activeRows))
	currentKeys := make(map[string]bool, len(activeRows))
	for _, row := range activeRows {
		currentByKey[row.Record.Key] = row.Record
		currentKeys[row.Record.Key] = true
	}

	inactive, err := r.store.InactiveKeys(ctx, def)
	if err != nil {
		return nil, nil, fmt.Errorf("read inactive keys of %s: %w", def.Key, err)
	}

	// Additions: intra-batch duplicates first, then the active set, then
	// the retired set. A previously retired key is a conflict, not a
	// silent re-activation.
	additions, intraDups := list.DedupeWithin(batch.Additions)
	res.AddedDuplicates = append(res.AddedDuplicates, intraDups...)
	split := list.CheckDuplicates(currentKeys, additions)
	res.AddedDuplicates = append(res.AddedDuplicates, split.Duplicates...)
	retired := list.CheckDuplicates(inactive, split.Valid)
	res.AddedRetired = retired.Duplicates
	res.AddedValid = retired.Valid

	// Removals must target an active record; stolen keys are surfaced
	// separately and stay active.
	removals, removalDups := list.DedupeWithin(batch.Removals)
	res.RemovedRejected = append(res.RemovedRejected, removalDups...)
	exists := list.VerifyExists(currentKeys, removals)
	res.RemovedRejected = append(res.RemovedRejected, exists.NotFound...)
	found := exists.Found
	if def.StolenCheck {
		stolen, err := r.store.StolenKeys(ctx, def)
		if err != nil {
			return nil, nil, fmt.Errorf("read stolen registry for %s: %w", def.Key, err)
		}
		stolenSplit := list.CheckDuplicates(stolen, found)
		res.RemovedStolen = stolenSplit.Duplicates
		found = stolenSplit.Valid
	}
	res.RemovedValid = found

	// Removal wins over modification for the same key in one batch: the
	// record is leaving the active set, so a change has nothing to land
	// on and is reported as unmatched.
	removedKeys := make(map[string]bool, len(res.RemovedValid))
	for _, rec := range res.RemovedValid {
		removedKeys[rec.Key] = true
	}
	mods := batch.Modifications
	var modsOfRemoved []list.Record
	if len(removedKeys) > 0 {
		kept := make([]list.Record, 0, len(mods))
		for _, rec := range mods {
			if removedKeys[rec.Key] {
				modsOfRemoved = append(modsOfRemoved, rec)
				continue
			}
			kept = append(kept, rec)
		}
		mods = kept
	}

	changes := list.DetectChanges(currentByKey, mods)
	res.ChangedValid = changes.Changed
	res.ChangedNoOp = changes.NoOp
	res.ChangedNoMatch = append(changes.NoMatch, modsOfRemoved...)

	// carried = current \ (removals ∪ changes)
	excluded := make(map[string]bool, len(res.RemovedValid)+len(res.ChangedValid))
	for _, rec := range res.RemovedValid {
		excluded[rec.Key] = true
	}
	for _, rec := range res.ChangedValid {
		excluded[rec.Key] = true
	}

	newVersion := p.newVersion
	for _, row := range activeRows {
		if excluded[row.Record.Key] {
			continue
		}
		p.inserts = append(p.inserts, Row{Record: row.Record.Clone(), Version: newVersion, Status: list.StatusActive})
	}
	for _, rec := range res.ChangedValid {
		p.inserts = append(p.inserts, Row{Record: rec.Clone(), Version: newVersion, Status: list.StatusActive})
	}
	for _, rec := range res.AddedValid {
		p.inserts = append(p.inserts, Row{Record: rec.Clone(), Version: newVersion, Status: list.StatusActive})
	}
	res.NewRecordsCount = len(p.inserts)

	// Removed keys get a fresh INACTIVE row under the new version; the
	// old ACTIVE rows stay untouched as history.
	for _, rec := range res.RemovedValid {
		retired := currentByKey[rec.Key].Clone()
		p.inserts = append(p.inserts, Row{Record: retired, Version: newVersion, Status: list.StatusInactive})
	}

	finishResolve(def, res, p)
	return res, p, nil
}

// finishResolve pins the reported version when the write set came out
// empty, e.g. every addition conflicted. No new version will exist.
func finishResolve(def list.Definition, res *Result, p *plan) {
	if len(p.inserts) > 0 {
		return
	}
	res.NewVersion = res.CurrentVersion
	res.Warnings = append(res.Warnings,
		fmt.Sprintf("list %s: resolved write set is empty, version stays at %d", def.Key, res.CurrentVersion))
}

// resolveInitial handles the empty-list case: only additions make
// sense, and stray removals or modifications are discarded loudly.
func (r *Reconciler) resolveInitial(def list.Definition, batch *list.Batch, res *Result, p *plan) {
	if len(batch.Removals) > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("list %s has no current version: %d removal rows discarded", def.Key, len(batch.Removals)))
	}
	if len(batch.Modifications) > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("list %s has no current version: %d modification rows discarded", def.Key, len(batch.Modifications)))
	}

	additions, intraDups := list.DedupeWithin(batch.Additions)
	res.AddedDuplicates = intraDups
	res.AddedValid = additions

	for _, rec := range additions {
		p.inserts = append(p.inserts, Row{Record: rec.Clone(), Version: p.newVersion, Status: list.StatusActive})
	}
	res.NewRecordsCount = len(p.inserts)
}

// insertChunked writes the plan in bounded chunks inside the caller's
// transaction.
func (r *Reconciler) insertChunked(ctx context.Context, tx Tx, def list.Definition, rows []Row) error {
	for start := 0; start < len(rows); start += r.chunk {
		end := start + r.chunk
		if end > len(rows) {
			end = len(rows)
		}
		if err := tx.InsertRows(ctx, def, rows[start:end]); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Rollback restores target as the current version by physically
// deleting every later version. Unlike the forward path this is
// destructive and irreversible.
func (r *Reconciler) Rollback(ctx context.Context, def list.Definition, target int, userID string) (*RollbackResult, error) {
	rows, err := r.store.RowsByVersion(ctx, def, target)
	if err != nil {
		return nil, fmt.Errorf("read version %d of %s: %w", target, def.Key, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("list %s has no version %d: %w", def.Key, target, ErrNotFound)
	}

	res := &RollbackResult{ListKey: def.Key, TargetVersion: target}
	if err := r.store.InTx(ctx, func(tx Tx) error {
		n, err := tx.DeleteVersionsAbove(ctx, def, target)
		if err != nil {
			return err
		}
		res.RowsDeleted = n
		return nil
	}); err != nil {
		return nil, fmt.Errorf("rollback %s to version %d: %w", def.Key, target, err)
	}

	res.Success = true
	r.log.Warn("version rolled back",
		"list", def.Key,
		"target_version", target,
		"rows_deleted", res.RowsDeleted,
		"user", userID,
	)

	entry := NewHistoryEntry(def.Key, fmt.Sprint(target), OpRollback, userID)
	if err := r.history.Append(ctx, entry); err != nil {
		r.log.Error("history append failed", "list", def.Key, "version", target, "error", err)
	}

	return res, nil
}
