// Package manipulator implements the geometric editing operations exposed
// over a single region or region pair: split by line, join, chop the
// largest ring off a multi-ring border, convex hull, and the coarse axis
// split used when no finer OSM subdivision exists. Grounded on
// borders_api.py's split/join/chop1/hull handlers and simple_splitting.py's
// bbox-bisection, re-expressed as direct repository calls instead of HTTP
// handlers building raw SQL text.
package manipulator

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/domain/repository"
	pkgerrors "github.com/mapborders/partitioner/internal/pkg/errors"
	"github.com/mapborders/partitioner/internal/usecase"
)

// Manipulator mutates regions already present in the Border store.
type Manipulator struct {
	store     repository.BorderStore
	spatial   repository.SpatialGateway
	features  *usecase.FeatureExtractor
	predictor repository.SizePredictor
}

func New(store repository.BorderStore, spatial repository.SpatialGateway, features *usecase.FeatureExtractor, predictor repository.SizePredictor) *Manipulator {
	return &Manipulator{store: store, spatial: spatial, features: features, predictor: predictor}
}

// estimateSize runs the feature extractor and predictor for geom, returning
// a warning string instead of an error when the estimate is unavailable:
// the original handlers treat an unestimable refresh as non-fatal.
func (m *Manipulator) estimateSize(ctx context.Context, geom []byte) (*float64, string) {
	fv, err := m.features.Extract(ctx, geom)
	if err != nil {
		return nil, fmt.Sprintf("feature extraction failed: %v", err)
	}
	kb, ok := m.predictor.Predict(fv)
	if !ok {
		return nil, "mwm size unestimable for this geometry"
	}
	return &kb, ""
}

// SplitByLine cuts region along line. If retain is true the original row is
// kept and becomes the parent of each piece; otherwise it is deleted and
// each piece inherits its parent. Returns the new piece ids in split order,
// and non-fatal size-estimation warnings. A piece count of 1 is a no-op
// (nil, nil, nil); pieces.count <= 1 for an otherwise-successful split
// cannot happen since SplitByLine only returns >1 pieces when it changed
// anything.
func (m *Manipulator) SplitByLine(ctx context.Context, regionID int64, line []byte, retain bool) ([]int64, []string, error) {
	region, err := m.store.Get(ctx, regionID)
	if err != nil {
		return nil, nil, err
	}
	n, err := m.spatial.NumGeometries(ctx, region.Geom)
	if err != nil {
		return nil, nil, err
	}
	if n != 1 {
		return nil, nil, pkgerrors.ErrNotSinglePolygon
	}

	pieces, err := m.spatial.SplitByLine(ctx, region.Geom, line)
	if err != nil {
		return nil, nil, err
	}
	if len(pieces) <= 1 {
		return nil, nil, nil
	}

	parentID := region.ParentID
	if retain {
		parentID = &region.ID
	} else if err := m.store.Delete(ctx, regionID); err != nil {
		return nil, nil, err
	}

	var ids []int64
	var warnings []string
	for i, piece := range pieces {
		id, err := m.store.AllocateFreeID(ctx)
		if err != nil {
			return nil, nil, err
		}
		size, warn := m.estimateSize(ctx, piece)
		if warn != "" {
			warnings = append(warnings, warn)
		}
		newRegion := &domain.Region{
			ID:         id,
			Name:       fmt.Sprintf("%s_%d", region.Name, i+1),
			Geom:       piece,
			ParentID:   parentID,
			Disabled:   region.Disabled,
			MwmSizeEst: size,
		}
		if err := m.store.Create(ctx, newRegion); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
	}
	return ids, warnings, nil
}

// Join unions two regions under a fresh id, sums their predicted sizes,
// marks the result's count_k stale, and deletes both source rows. If the
// joined region leaves its parent with exactly one child, that lone child
// is collapsed into the parent: its size is carried up and the child row
// is removed. Spec names this collapse explicitly; the original join
// handler has no equivalent, so this step has no source precedent beyond
// the requirement text.
func (m *Manipulator) Join(ctx context.Context, id1, id2 int64) (int64, error) {
	if id1 == id2 {
		return 0, fmt.Errorf("cannot join region %d with itself", id1)
	}
	region1, err := m.store.Get(ctx, id1)
	if err != nil {
		return 0, err
	}
	region2, err := m.store.Get(ctx, id2)
	if err != nil {
		return 0, err
	}

	union, err := m.spatial.Union(ctx, region1.Geom, region2.Geom)
	if err != nil {
		return 0, err
	}
	combinedSize := sumSizes(region1.MwmSizeEst, region2.MwmSizeEst)

	freeID, err := m.store.AllocateFreeID(ctx)
	if err != nil {
		return 0, err
	}
	staleCountK := int64(-1)
	joined := &domain.Region{
		ID:         freeID,
		Name:       region1.Name,
		Geom:       union,
		ParentID:   region1.ParentID,
		Disabled:   region1.Disabled,
		CountK:     &staleCountK,
		MwmSizeEst: combinedSize,
	}
	if err := m.store.Create(ctx, joined); err != nil {
		return 0, err
	}
	if err := m.store.Delete(ctx, id1); err != nil {
		return 0, err
	}
	if err := m.store.Delete(ctx, id2); err != nil {
		return 0, err
	}

	if err := m.collapseSingleChildParent(ctx, region1.ParentID); err != nil {
		return 0, err
	}
	return freeID, nil
}

func sumSizes(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	sum := *a + *b
	return &sum
}

func (m *Manipulator) collapseSingleChildParent(ctx context.Context, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	children, err := m.store.Children(ctx, *parentID)
	if err != nil {
		return err
	}
	if len(children) != 1 {
		return nil
	}
	lone := children[0]
	if lone.MwmSizeEst != nil {
		if err := m.store.UpdateMwmSizeEst(ctx, *parentID, *lone.MwmSizeEst); err != nil {
			return err
		}
	}
	return m.store.Delete(ctx, lone.ID)
}

// ChopLargest splits a multi-ring region into its largest ring ("_main")
// and the union of every other ring ("_small"), both inserted as children
// of the original.
func (m *Manipulator) ChopLargest(ctx context.Context, regionID int64) (mainID, smallID int64, warnings []string, err error) {
	region, err := m.store.Get(ctx, regionID)
	if err != nil {
		return 0, 0, nil, err
	}
	n, err := m.spatial.NumGeometries(ctx, region.Geom)
	if err != nil {
		return 0, 0, nil, err
	}
	if n < 2 {
		return 0, 0, nil, pkgerrors.ErrNotMultiPolygon
	}

	rings, err := m.spatial.DumpPolygons(ctx, region.Geom)
	if err != nil {
		return 0, 0, nil, err
	}
	largestIdx, err := m.largestByArea(ctx, rings)
	if err != nil {
		return 0, 0, nil, err
	}

	main := rings[largestIdx]
	rest := make([][]byte, 0, len(rings)-1)
	for i, r := range rings {
		if i != largestIdx {
			rest = append(rest, r)
		}
	}
	small, err := m.spatial.UnionAll(ctx, rest)
	if err != nil {
		return 0, 0, nil, err
	}

	mainID, err = m.store.AllocateFreeID(ctx)
	if err != nil {
		return 0, 0, nil, err
	}
	smallID = mainID - 1

	mainSize, warn := m.estimateSize(ctx, main)
	if warn != "" {
		warnings = append(warnings, warn)
	}
	smallSize, warn := m.estimateSize(ctx, small)
	if warn != "" {
		warnings = append(warnings, warn)
	}

	if err := m.store.Create(ctx, &domain.Region{
		ID: mainID, Name: region.Name + "_main", Geom: main,
		ParentID: &regionID, Disabled: region.Disabled, MwmSizeEst: mainSize,
	}); err != nil {
		return 0, 0, nil, err
	}
	if err := m.store.Create(ctx, &domain.Region{
		ID: smallID, Name: region.Name + "_small", Geom: small,
		ParentID: &regionID, Disabled: region.Disabled, MwmSizeEst: smallSize,
	}); err != nil {
		return 0, 0, nil, err
	}
	return mainID, smallID, warnings, nil
}

func (m *Manipulator) largestByArea(ctx context.Context, rings [][]byte) (int, error) {
	best := -1
	bestArea := 0.0
	for i, ring := range rings {
		area, err := m.spatial.AreaPlanar(ctx, ring)
		if err != nil {
			return 0, err
		}
		if best == -1 || area > bestArea {
			best, bestArea = i, area
		}
	}
	return best, nil
}

// Hull replaces region's geometry with its convex hull. Only permitted on
// multi-ring inputs, matching the original's "more than one outer ring"
// guard on /hull.
func (m *Manipulator) Hull(ctx context.Context, regionID int64) error {
	region, err := m.store.Get(ctx, regionID)
	if err != nil {
		return err
	}
	n, err := m.spatial.NumGeometries(ctx, region.Geom)
	if err != nil {
		return err
	}
	if n < 2 {
		return pkgerrors.ErrNotMultiPolygon
	}
	hull, err := m.spatial.ConvexHull(ctx, region.Geom)
	if err != nil {
		return err
	}
	return m.store.UpdateGeom(ctx, regionID, hull)
}

// axisQuadrant names one piece of a 2-way or 4-way axis split. byWest and
// bySouth are only meaningful when the corresponding split axis is active
// (quadrantName ignores the other one for a 2-way split).
type axisQuadrant struct {
	suffix  string
	byWest  bool
	bySouth bool
}

// SimpleAxisSplit bisects region along its bbox's longer axis into 2
// pieces, or into 4 quadrants when the predicted size exceeds twice
// thresholdKB or is unknown. Fails with NoSplit when the split yields one
// piece or none.
func (m *Manipulator) SimpleAxisSplit(ctx context.Context, regionID int64, thresholdKB float64) ([]int64, []string, error) {
	region, err := m.store.Get(ctx, regionID)
	if err != nil {
		return nil, nil, err
	}
	bbox, err := m.spatial.Envelope(ctx, region.Geom)
	if err != nil {
		return nil, nil, err
	}

	fourWay := region.MwmSizeEst == nil || *region.MwmSizeEst > 2*thresholdKB
	line, quadrants, vertical := axisSplitLine(bbox, fourWay)

	lineWKB, err := wkb.Marshal(line)
	if err != nil {
		return nil, nil, err
	}
	pieces, err := m.spatial.SplitByLine(ctx, region.Geom, lineWKB)
	if err != nil {
		return nil, nil, err
	}
	if len(pieces) <= 1 {
		return nil, nil, pkgerrors.ErrNoSplit
	}

	var ids []int64
	var warnings []string
	for _, piece := range pieces {
		centroid, err := m.spatial.Centroid(ctx, piece)
		if err != nil {
			return nil, nil, err
		}
		suffix := quadrantName(quadrants, fourWay, vertical, bbox, centroid)

		id, err := m.store.AllocateFreeID(ctx)
		if err != nil {
			return nil, nil, err
		}
		size, warn := m.estimateSize(ctx, piece)
		if warn != "" {
			warnings = append(warnings, warn)
		}
		if err := m.store.Create(ctx, &domain.Region{
			ID: id, Name: fmt.Sprintf("%s_%s", region.Name, suffix), Geom: piece,
			ParentID: &regionID, Disabled: region.Disabled, MwmSizeEst: size,
		}); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
	}
	if len(ids) <= 1 {
		return nil, nil, pkgerrors.ErrNoSplit
	}
	return ids, warnings, nil
}

// axisSplitLine builds the cutting line for a 2-way or 4-way bbox split,
// the Go analogue of simple_splitting.py's line_sql construction. The
// returned bool is only meaningful for a 2-way split: true if the cut runs
// along the vertical (west/east) axis, false if horizontal (south/north).
func axisSplitLine(bbox repository.BBox, fourWay bool) (orb.LineString, []axisQuadrant, bool) {
	midLon := (bbox.West + bbox.East) / 2
	midLat := (bbox.South + bbox.North) / 2

	if !fourWay {
		vertical := (bbox.East - bbox.West) > (bbox.North - bbox.South)
		if vertical {
			return orb.LineString{{midLon, bbox.South}, {midLon, bbox.North}},
				[]axisQuadrant{{suffix: "west", byWest: true}, {suffix: "east", byWest: false}}, true
		}
		return orb.LineString{{bbox.West, midLat}, {bbox.East, midLat}},
			[]axisQuadrant{{suffix: "south", bySouth: true}, {suffix: "north", bySouth: false}}, false
	}

	return orb.LineString{
			{bbox.West, midLat}, {bbox.East, midLat}, {bbox.East, bbox.South},
			{midLon, bbox.South}, {midLon, bbox.North},
		},
		[]axisQuadrant{
			{suffix: "southwest", byWest: true, bySouth: true},
			{suffix: "northwest", byWest: true, bySouth: false},
			{suffix: "southeast", byWest: false, bySouth: true},
			{suffix: "northeast", byWest: false, bySouth: false},
		}, false
}

// quadrantName picks the quadrant a split piece belongs to by comparing its
// centroid against the bbox midpoint on whichever axis or axes the split
// used.
func quadrantName(quadrants []axisQuadrant, fourWay, vertical bool, bbox repository.BBox, centroid repository.Point) string {
	midLon := (bbox.West + bbox.East) / 2
	midLat := (bbox.South + bbox.North) / 2
	west := centroid.Lon < midLon
	south := centroid.Lat < midLat

	for _, q := range quadrants {
		switch {
		case fourWay:
			if q.byWest == west && q.bySouth == south {
				return q.suffix
			}
		case vertical:
			if q.byWest == west {
				return q.suffix
			}
		default:
			if q.bySouth == south {
				return q.suffix
			}
		}
	}
	return "piece"
}
