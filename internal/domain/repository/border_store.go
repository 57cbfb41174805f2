package repository

import (
	"context"

	"github.com/mapborders/partitioner/internal/domain"
)

// BorderStore is the hierarchical borders table: CRUD with invariants,
// free-id allocation, and backup/restore snapshots (component D).
type BorderStore interface {
	Get(ctx context.Context, id int64) (*domain.Region, error)
	Children(ctx context.Context, id int64) ([]*domain.Region, error)
	Parent(ctx context.Context, id int64) (*domain.Region, error)
	// Predecessors returns the root-ward list of ancestors, nearest first.
	Predecessors(ctx context.Context, id int64) ([]*domain.Region, error)

	InBBox(ctx context.Context, bbox domain.BBox, level domain.SimplifyLevel) ([]*domain.Region, error)

	Create(ctx context.Context, region *domain.Region) error
	UpdateGeom(ctx context.Context, id int64, geom []byte) error
	UpdateMeta(ctx context.Context, id int64, meta domain.RegionMeta) error
	Delete(ctx context.Context, id int64) error

	// AllocateFreeID returns a new negative id strictly below the minimum
	// id currently <= -1_000_000_000; -1_000_000_001 if none exists.
	AllocateFreeID(ctx context.Context) (int64, error)

	Snapshot(ctx context.Context, label string) error
	Restore(ctx context.Context, label string) error
	ListSnapshots(ctx context.Context) ([]domain.BackupSnapshot, error)
	DeleteSnapshot(ctx context.Context, label string) error

	// FindPotentialParents returns ancestors by containment-area >= 50% of
	// child area, ordered by increasing area.
	FindPotentialParents(ctx context.Context, id int64) ([]*domain.Region, error)
	AssignToLowestParent(ctx context.Context, id int64) error

	// FindStaleRegion returns one region needing a count_k recompute,
	// preferring previously-stale (count_k < 0) regions over
	// never-counted (count_k IS NULL) ones, skipping any whose envelope
	// area exceeds maxEnvelopeAreaKm2. Returns (nil, nil) if none qualify.
	FindStaleRegion(ctx context.Context, maxEnvelopeAreaKm2 float64) (*domain.Region, error)
	// UpdateCountK sets count_k directly, bypassing the modified/count_k=-1
	// side effects UpdateGeom applies.
	UpdateCountK(ctx context.Context, id int64, countK int64) error

	// UpdateMwmSizeEst sets mwm_size_est directly, used by the manipulator
	// to refresh a region's predicted size after a geometry-changing edit.
	UpdateMwmSizeEst(ctx context.Context, id int64, kilobytes float64) error
}
