// Package partition implements the golden-splitting algorithm: given an
// administrative region and a target admin level below it, it groups that
// level's OSM subregions into clusters under a size-threshold, biasing
// toward merging along long shared borders while keeping clusters small
// enough to keep absorbing neighbours. Grounded on auto_split.py's
// DisjointClusterUnion and find_golden_splitting, adapted from a
// population threshold to the predicted-size threshold this repository's
// size predictor produces.
package partition

import (
	"context"
	"fmt"
	"sort"

	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/domain/repository"
	pkgerrors "github.com/mapborders/partitioner/internal/pkg/errors"
	"github.com/mapborders/partitioner/internal/usecase"
)

// Engine runs golden splitting for one region at a time.
type Engine struct {
	osm        repository.OsmGateway
	spatial    repository.SpatialGateway
	features   *usecase.FeatureExtractor
	predictor  repository.SizePredictor
	splitting  repository.SplittingRepository
}

func NewEngine(
	osm repository.OsmGateway,
	spatial repository.SpatialGateway,
	features *usecase.FeatureExtractor,
	predictor repository.SizePredictor,
	splitting repository.SplittingRepository,
) *Engine {
	return &Engine{
		osm:       osm,
		spatial:   spatial,
		features:  features,
		predictor: predictor,
		splitting: splitting,
	}
}

// Split partitions region's admin-level-L subregions into size-bounded
// clusters and persists the result. Returns (nil, nil) if region has no
// subregions at nextLevel.
func (e *Engine) Split(ctx context.Context, region *domain.Region, nextLevel int, sizeThresholdKB float64) ([]domain.SplittingCluster, error) {
	subregions, err := e.osm.SubregionsAt(ctx, region.Geom, nextLevel)
	if err != nil {
		return nil, fmt.Errorf("subregions at level %d: %w", nextLevel, err)
	}
	if len(subregions) == 0 {
		return nil, nil
	}

	geomByID := make(map[int64][]byte, len(subregions))
	sizeByID := make(map[int64]float64, len(subregions))
	for _, sub := range subregions {
		fv, err := e.features.Extract(ctx, sub.Way)
		if err != nil {
			return nil, fmt.Errorf("extract features for %d: %w", sub.OsmID, err)
		}
		kb, ok := e.predictor.Predict(fv)
		if !ok {
			return nil, pkgerrors.ErrUnestimable
		}
		geomByID[sub.OsmID] = sub.Way
		sizeByID[sub.OsmID] = kb
	}

	adjacency, err := e.adjacencyMatrix(ctx, subregions)
	if err != nil {
		return nil, fmt.Errorf("adjacency matrix: %w", err)
	}

	dcu := newDisjointClusterUnion(sizeByID)
	e.runGoldenSplitting(dcu, adjacency, sizeThresholdKB)

	clusters, err := e.materialize(ctx, dcu, geomByID, region.ID, nextLevel, sizeThresholdKB)
	if err != nil {
		return nil, err
	}

	if err := e.splitting.ReplaceClusters(ctx, region.ID, nextLevel, sizeThresholdKB, clusters); err != nil {
		return nil, fmt.Errorf("persist clusters: %w", err)
	}
	return clusters, nil
}

// adjacencyMatrix computes W[i][j] for i<j: the geodesic length of the
// shared border between subregions i and j, omitting pairs with no shared
// border. Mirrors auto_split.py's calculate_common_border_matrix, one
// intersection+length call per candidate pair since OsmGateway exposes
// geometries one region at a time rather than a bulk self-join.
func (e *Engine) adjacencyMatrix(ctx context.Context, subregions []*domain.OsmBorder) (map[int64]map[int64]float64, error) {
	w := make(map[int64]map[int64]float64)
	for i := 0; i < len(subregions); i++ {
		for j := i + 1; j < len(subregions); j++ {
			a, b := subregions[i], subregions[j]
			border, err := e.spatial.Intersection(ctx, a.Way, b.Way)
			if err != nil {
				return nil, err
			}
			length, err := e.spatial.LengthGeodesic(ctx, border)
			if err != nil {
				return nil, err
			}
			if length <= 0 {
				continue
			}
			addEdge(w, a.OsmID, b.OsmID, length)
			addEdge(w, b.OsmID, a.OsmID, length)
		}
	}
	return w, nil
}

func addEdge(w map[int64]map[int64]float64, from, to int64, length float64) {
	if w[from] == nil {
		w[from] = make(map[int64]float64)
	}
	w[from][to] = length
}

// candidate is a merge-eligible neighbour cluster with its aggregated
// border length to the subject cluster.
type candidate struct {
	clusterID    int64
	borderLength float64
}

// runGoldenSplitting executes algorithm step 5 of the golden splitting
// procedure in place on dcu.
func (e *Engine) runGoldenSplitting(dcu *disjointClusterUnion, adjacency map[int64]map[int64]float64, thresholdKB float64) {
	for dcu.count() > 1 {
		smallest := dcu.smallestUnfinished()
		if smallest == 0 {
			return
		}

		candidates := e.candidates(dcu, adjacency, smallest, thresholdKB)
		if len(candidates) == 0 {
			dcu.markFinished(smallest)
			continue
		}

		best := scoreAndPick(dcu, candidates)
		dcu.union(smallest, best)
	}
}

// candidates aggregates, per neighbour cluster, the total shared border
// length with every member of the subject cluster S, keeping only
// unfinished clusters whose combined size stays within the threshold.
func (e *Engine) candidates(dcu *disjointClusterUnion, adjacency map[int64]map[int64]float64, subjectID int64, thresholdKB float64) map[int64]float64 {
	subjectSize := dcu.clusters[subjectID].sizeKB
	totals := make(map[int64]float64)
	for _, subID := range dcu.clusters[subjectID].subregionIDs {
		for otherID, length := range adjacency[subID] {
			otherCluster := dcu.find(otherID)
			if otherCluster == subjectID {
				continue
			}
			totals[otherCluster] += length
		}
	}
	for clusterID := range totals {
		c := dcu.clusters[clusterID]
		if c.finished || subjectSize+c.sizeKB > thresholdKB {
			delete(totals, clusterID)
		}
	}
	return totals
}

// scoreAndPick implements the Btotal/Mtotal scoring of spec 4.E step 5:
// score(C) = B(C)/Btotal, biased down by size(C)/Mtotal when candidates
// carry any size at all. The border-length bias favours a cohesive merge;
// the size penalty keeps the merged cluster small enough to keep absorbing
// further neighbours.
func scoreAndPick(dcu *disjointClusterUnion, borderTotals map[int64]float64) int64 {
	candidates := make([]candidate, 0, len(borderTotals))
	for clusterID, length := range borderTotals {
		candidates = append(candidates, candidate{clusterID: clusterID, borderLength: length})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].clusterID < candidates[j].clusterID })

	var bTotal, mTotal float64
	for _, c := range candidates {
		bTotal += c.borderLength
		mTotal += dcu.clusters[c.clusterID].sizeKB
	}

	var best int64
	bestScore := 0.0
	first := true
	for _, c := range candidates {
		score := c.borderLength / bTotal
		if mTotal > 0 {
			score -= dcu.clusters[c.clusterID].sizeKB / mTotal
		}
		if first || score > bestScore {
			best, bestScore, first = c.clusterID, score, false
		}
	}
	return best
}

// materialize unions each surviving cluster's subregion geometries and
// builds the rows to persist, in ascending representative-id order per the
// ordering guarantee in the concurrency section.
func (e *Engine) materialize(ctx context.Context, dcu *disjointClusterUnion, geomByID map[int64][]byte, regionID int64, nextLevel int, thresholdKB float64) ([]domain.SplittingCluster, error) {
	ids := dcu.sortedIDs()
	out := make([]domain.SplittingCluster, 0, len(ids))
	for _, repID := range ids {
		c := dcu.clusters[repID]
		sorted := append([]int64(nil), c.subregionIDs...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		geoms := make([][]byte, len(sorted))
		for i, id := range sorted {
			geoms[i] = geomByID[id]
		}
		union, err := e.spatial.UnionAll(ctx, geoms)
		if err != nil {
			return nil, fmt.Errorf("union cluster %d: %w", repID, err)
		}

		out = append(out, domain.SplittingCluster{
			RegionID:         regionID,
			RepresentativeID: repID,
			SubregionIDs:     sorted,
			Geom:             union,
			NextLevel:        nextLevel,
			SizeThresholdKB:  thresholdKB,
			PredictedSizeKB:  c.sizeKB,
		})
	}
	return out, nil
}
