// Package bootstrap seeds the Border store for one country at a time: copy
// the country polygon, descend its declared admin-level ladder inserting
// OSM subregions as children, then optionally fold over-fine children back
// into size-bounded clusters or fall back to a coarse axis split. Grounded
// on original_source/web/app/borders_api_utils.py's divide_into_subregions
// family and countries_division.py's country ladder table, re-expressed
// against the Border store instead of building SQL text per call.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/domain/repository"
	"github.com/mapborders/partitioner/internal/usecase"
	"github.com/mapborders/partitioner/internal/usecase/manipulator"
	"github.com/mapborders/partitioner/internal/usecase/partition"
)

// Bootstrap runs the per-country seed procedure.
type Bootstrap struct {
	osm         repository.OsmGateway
	store       repository.BorderStore
	features    *usecase.FeatureExtractor
	predictor   repository.SizePredictor
	engine      *partition.Engine
	manipulator *manipulator.Manipulator
	logger      *zap.Logger

	// coverageRatio is the minimum fraction of a parent's land area its
	// children must collectively cover before the auto-divide pass trusts
	// the division enough to run the partitioning engine over it, per
	// spec 4.G step 3's "land-area checksum" (config: BootstrapConfig.AutoDivideCoverageRatio).
	coverageRatio float64
}

func New(
	osm repository.OsmGateway,
	store repository.BorderStore,
	features *usecase.FeatureExtractor,
	predictor repository.SizePredictor,
	engine *partition.Engine,
	manip *manipulator.Manipulator,
	logger *zap.Logger,
	coverageRatio float64,
) *Bootstrap {
	return &Bootstrap{
		osm:           osm,
		store:         store,
		features:      features,
		predictor:     predictor,
		engine:        engine,
		manipulator:   manip,
		logger:        logger,
		coverageRatio: coverageRatio,
	}
}

// Run bootstraps one country: copy its admin-level-2 polygon, descend
// plan's ladder, then run the auto-divide post-pass over every region that
// received children along the way. Every write goes through the Border
// store one statement at a time; Run opens no transaction, so rows created
// before an error stay in place.
func (b *Bootstrap) Run(ctx context.Context, countryName string, plan Plan, sizeThresholdKB float64) error {
	country, err := b.osm.CountryPolygon(ctx, countryName)
	if err != nil {
		return fmt.Errorf("country polygon %q: %w", countryName, err)
	}

	root := &domain.Region{
		ID:       country.OsmID,
		Name:     country.Name,
		Geom:     country.Way,
		ParentID: nil,
	}
	root.MwmSizeEst = b.predictSize(ctx, root.Geom)
	if err := b.store.Create(ctx, root); err != nil {
		return fmt.Errorf("create country root %d: %w", root.ID, err)
	}

	type division struct {
		parentID int64
		level    int
	}

	leaves := []*domain.Region{root}
	var divisions []division
	for _, level := range plan.Levels {
		nextLeaves := make([]*domain.Region, 0, len(leaves))
		for _, leaf := range leaves {
			children, effectiveParentID, err := b.divideRegionIntoSubregions(ctx, leaf, level)
			if err != nil {
				return fmt.Errorf("divide %d at level %d: %w", leaf.ID, level, err)
			}
			if len(children) == 0 {
				nextLeaves = append(nextLeaves, leaf)
				continue
			}
			divisions = append(divisions, division{parentID: effectiveParentID, level: level})
			nextLeaves = append(nextLeaves, children...)
		}
		leaves = nextLeaves
	}

	for _, d := range divisions {
		if err := b.autoDivide(ctx, d.parentID, d.level, sizeThresholdKB); err != nil {
			return fmt.Errorf("auto-divide %d: %w", d.parentID, err)
		}
	}
	return nil
}

// predictSize estimates mwm_size_est for geom, returning nil (not an
// error) when the predictor reports the geometry unestimable: bootstrap
// leaves the field null rather than aborting the whole country.
func (b *Bootstrap) predictSize(ctx context.Context, geom []byte) *float64 {
	fv, err := b.features.Extract(ctx, geom)
	if err != nil {
		b.logger.Warn("feature extraction failed during bootstrap", zap.Error(err))
		return nil
	}
	kb, ok := b.predictor.Predict(fv)
	if !ok {
		return nil
	}
	return &kb
}

// divideRegionIntoSubregions inserts every OSM admin border at level that
// is contained in leaf's geometry, as a child of leaf (or of leaf's own
// parent, when leaf is itself a synthesized, non-administrative row being
// replaced by its finer children). Mirrors
// borders_api_utils.py:divide_into_subregions_one. Returns the inserted
// children and the parent id they were actually attached to (nil children,
// zero id if none were found, in which case the caller keeps leaf as-is).
func (b *Bootstrap) divideRegionIntoSubregions(ctx context.Context, leaf *domain.Region, level int) ([]*domain.Region, int64, error) {
	subregions, err := b.osm.SubregionsAt(ctx, leaf.Geom, level)
	if err != nil {
		return nil, 0, fmt.Errorf("subregions at level %d: %w", level, err)
	}
	if len(subregions) == 0 {
		return nil, 0, nil
	}

	administrative := isAdministrative(leaf)
	effectiveParentID := leaf.ID
	if !administrative {
		if leaf.ParentID == nil {
			return nil, 0, fmt.Errorf("non-administrative leaf %d has no parent to reattach to", leaf.ID)
		}
		effectiveParentID = *leaf.ParentID
	}

	children := make([]*domain.Region, 0, len(subregions))
	for _, sub := range subregions {
		size := b.predictSize(ctx, sub.Way)
		child := &domain.Region{
			ID:         sub.OsmID,
			Name:       sub.Name,
			Geom:       sub.Way,
			ParentID:   &effectiveParentID,
			MwmSizeEst: size,
		}
		if err := b.store.Create(ctx, child); err != nil {
			return nil, 0, fmt.Errorf("create subregion %d: %w", sub.OsmID, err)
		}
		children = append(children, child)
	}

	if !administrative {
		if err := b.store.Delete(ctx, leaf.ID); err != nil {
			return nil, 0, fmt.Errorf("delete superseded leaf %d: %w", leaf.ID, err)
		}
	}
	return children, effectiveParentID, nil
}

// isAdministrative reports whether a region's row still represents a real
// OSM administrative border, as opposed to a locally synthesized one: the
// Border store borrows positive OSM relation ids for the former and
// allocates negative ids for the latter (see domain.Region's doc comment).
func isAdministrative(r *domain.Region) bool {
	return r.ID > 0
}

// autoDivide implements spec 4.G step 3 for one region that just received
// children: if the children's land area covers parent's within
// coverageRatio, run the partitioning engine and fold sibling children
// into size-bounded clusters; otherwise leave the division as-is and, if
// the parent's own predicted size still exceeds threshold, fall back to a
// coarse axis split.
func (b *Bootstrap) autoDivide(ctx context.Context, parentID int64, childLevel int, sizeThresholdKB float64) error {
	parent, err := b.store.Get(ctx, parentID)
	if err != nil {
		return err
	}
	children, err := b.store.Children(ctx, parentID)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}

	covered, err := b.childrenCoverParent(ctx, parent, children)
	if err != nil {
		return err
	}
	if !covered {
		b.logger.Warn("region has lost subregions",
			zap.Int64("region_id", parentID), zap.String("name", parent.Name))
		if parent.MwmSizeEst != nil && *parent.MwmSizeEst > sizeThresholdKB {
			if _, _, err := b.manipulator.SimpleAxisSplit(ctx, parentID, sizeThresholdKB); err != nil {
				return fmt.Errorf("fallback axis split %d: %w", parentID, err)
			}
		}
		return nil
	}

	clusters, err := b.engine.Split(ctx, parent, childLevel, sizeThresholdKB)
	if err != nil {
		return fmt.Errorf("golden split %d: %w", parentID, err)
	}
	return b.foldChildrenIntoClusters(ctx, parent, clusters)
}

func (b *Bootstrap) childrenCoverParent(ctx context.Context, parent *domain.Region, children []*domain.Region) (bool, error) {
	parentLand, err := b.features.LandAreaKm2(ctx, parent.Geom)
	if err != nil {
		return false, err
	}
	if parentLand <= 0 {
		return true, nil
	}
	var childLand float64
	for _, c := range children {
		land, err := b.features.LandAreaKm2(ctx, c.Geom)
		if err != nil {
			return false, err
		}
		childLand += land
	}
	return childLand >= b.coverageRatio*parentLand, nil
}

// foldChildrenIntoClusters replaces groups of sibling children that the
// partitioning engine merged into one cluster with a single synthesized
// row, leaving singleton clusters' children untouched. Grounded on
// borders_api_utils.py:divide_into_clusters's singleton-vs-merged
// distinction, adapted to operate on children already present in the
// Border store instead of raw OSM subregion ids.
func (b *Bootstrap) foldChildrenIntoClusters(ctx context.Context, parent *domain.Region, clusters []domain.SplittingCluster) error {
	counter := 0
	for _, cluster := range clusters {
		if len(cluster.SubregionIDs) <= 1 {
			continue
		}
		counter++
		freeID, err := b.store.AllocateFreeID(ctx)
		if err != nil {
			return err
		}
		predictedSize := cluster.PredictedSizeKB
		merged := &domain.Region{
			ID:         freeID,
			Name:       fmt.Sprintf("%s_%d", parent.Name, counter),
			Geom:       cluster.Geom,
			ParentID:   &parent.ID,
			MwmSizeEst: &predictedSize,
		}
		if err := b.store.Create(ctx, merged); err != nil {
			return fmt.Errorf("create merged cluster %d: %w", freeID, err)
		}
		for _, subID := range cluster.SubregionIDs {
			if err := b.store.Delete(ctx, subID); err != nil {
				return fmt.Errorf("delete folded child %d: %w", subID, err)
			}
		}
	}
	return nil
}
