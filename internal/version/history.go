package version

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Operation types a history entry can record.
const (
	OpCreation = "CREATION"
	OpRollback = "ROLLBACK"
)

// HistoryEntry is one line of the version audit trail. It is written
// once per committed version transition and never modified.
type HistoryEntry struct {
	ID            string    `json:"id"`
	ListName      string    `json:"listName"`
	Version       string    `json:"version"`
	OperationType string    `json:"operationType"`
	UserID        string    `json:"userId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewHistoryEntry builds an entry with a fresh id and timestamp.
func NewHistoryEntry(listName, version, opType, userID string) HistoryEntry {
	return HistoryEntry{
		ID:            uuid.NewString(),
		ListName:      listName,
		Version:       version,
		OperationType: opType,
		UserID:        userID,
		CreatedAt:     time.Now().UTC(),
	}
}

// History returns a list's version history, newest first.
func (r *Reconciler) History(ctx context.Context, listName string) ([]HistoryEntry, error) {
	return r.history.ByList(ctx, listName)
}

// LatestHistory returns the newest history entry for a list.
func (r *Reconciler) LatestHistory(ctx context.Context, listName string) (HistoryEntry, error) {
	return r.history.Latest(ctx, listName)
}

// HistoryByID returns one history entry by id.
func (r *Reconciler) HistoryByID(ctx context.Context, id string) (HistoryEntry, error) {
	return r.history.ByID(ctx, id)
}

// HistoryStore persists and queries the shared version history.
type HistoryStore interface {
	Append(ctx context.Context, e HistoryEntry) error

	// ByList returns all entries for a list, newest first.
	ByList(ctx context.Context, listName string) ([]HistoryEntry, error)

	// Latest returns the newest entry for a list, ErrNotFound when none.
	Latest(ctx context.Context, listName string) (HistoryEntry, error)

	// ByID returns one entry, ErrNotFound when absent.
	ByID(ctx context.Context, id string) (HistoryEntry, error)
}
