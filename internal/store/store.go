// Package store persists the run ledger: one row per extraction or save
// attempt made from a session.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/pim-enrich/internal/model"
)

// DefaultListLimit caps ListRuns when the filter sets no limit.
const DefaultListLimit = 50

// Store defines the persistence interface for the run ledger.
type Store interface {
	// CreateRun inserts r, assigning an ID and start time when unset.
	CreateRun(ctx context.Context, r *model.Run) error
	// FinishRun records the outcome fields of r.
	FinishRun(ctx context.Context, r *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

func prepareRun(r *model.Run) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = model.RunStatusRunning
	}
}

func listLimit(f model.RunFilter) int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
