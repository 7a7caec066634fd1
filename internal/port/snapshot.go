package port

import (
	"context"

	"github.com/bnema/transq/internal/domain"
)

// SnapshotStore persists the single pipeline snapshot. Save must replace the
// previous record atomically. Load returns nil, nil when nothing was saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, s *domain.Snapshot) error
	Close() error
}
