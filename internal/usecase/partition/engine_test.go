package partition

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/domain/repository"
	"github.com/mapborders/partitioner/internal/repository/spatialfake"
	"github.com/mapborders/partitioner/internal/usecase"
)

func square(x0, y0, x1, y1 float64) []byte {
	ring := orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
	return wkb.MustMarshal(orb.Polygon{ring})
}

// TestRunGoldenSplittingMergesUnderThresholdByScore is S1: three subregions
// of size 30/40/50 under a threshold of 100 merge along the strongest
// shared border while staying under the cap; the third stays separate once
// joining it would exceed the threshold.
func TestRunGoldenSplittingMergesUnderThresholdByScore(t *testing.T) {
	e := &Engine{}
	dcu := newDisjointClusterUnion(map[int64]float64{1: 30, 2: 40, 3: 50})
	adjacency := map[int64]map[int64]float64{}
	addEdge(adjacency, 1, 2, 10)
	addEdge(adjacency, 2, 1, 10)
	addEdge(adjacency, 1, 3, 5)
	addEdge(adjacency, 3, 1, 5)
	addEdge(adjacency, 2, 3, 1)
	addEdge(adjacency, 3, 2, 1)

	e.runGoldenSplitting(dcu, adjacency, 100)

	require.Equal(t, 2, dcu.count())
	merged := dcu.clusterOf(1)
	assert.Equal(t, int64(2), merged.representative, "1 and 2 merge; union keeps the larger id")
	assert.ElementsMatch(t, []int64{1, 2}, merged.subregionIDs)
	assert.Equal(t, 70.0, merged.sizeKB)

	lone := dcu.clusterOf(3)
	assert.Equal(t, int64(3), lone.representative)
	assert.Equal(t, []int64{3}, lone.subregionIDs)
}

// TestRunGoldenSplittingAllFitsSingleCluster is S2: every subregion fits
// comfortably under the threshold and ends up in one cluster.
func TestRunGoldenSplittingAllFitsSingleCluster(t *testing.T) {
	e := &Engine{}
	dcu := newDisjointClusterUnion(map[int64]float64{1: 10, 2: 20, 3: 15})
	adjacency := map[int64]map[int64]float64{}
	addEdge(adjacency, 1, 2, 4)
	addEdge(adjacency, 2, 1, 4)
	addEdge(adjacency, 2, 3, 6)
	addEdge(adjacency, 3, 2, 6)
	addEdge(adjacency, 1, 3, 2)
	addEdge(adjacency, 3, 1, 2)

	e.runGoldenSplitting(dcu, adjacency, 1000)

	require.Equal(t, 1, dcu.count())
	only := dcu.clusterOf(1)
	assert.Equal(t, 45.0, only.sizeKB)
	assert.ElementsMatch(t, []int64{1, 2, 3}, only.subregionIDs)
}

// TestRunGoldenSplittingIsolatedSubregionFinishedSingleton is S3: a
// subregion with no shared border to anything else ends up its own
// finished cluster regardless of what the others do.
func TestRunGoldenSplittingIsolatedSubregionFinishedSingleton(t *testing.T) {
	e := &Engine{}
	dcu := newDisjointClusterUnion(map[int64]float64{1: 30, 2: 40, 9: 20})
	adjacency := map[int64]map[int64]float64{}
	addEdge(adjacency, 1, 2, 10)
	addEdge(adjacency, 2, 1, 10)
	// 9 has no entry in adjacency at all: an island.

	e.runGoldenSplitting(dcu, adjacency, 1000)

	island := dcu.clusterOf(9)
	assert.Equal(t, int64(9), island.representative)
	assert.Equal(t, []int64{9}, island.subregionIDs)
	assert.True(t, island.finished)
}

// TestScoreAndPickDeterministic is T4: repeated runs over an equivalent but
// freshly-built state must pick the same winner, since candidates is built
// from map iteration and scoreAndPick must not depend on that order.
func TestScoreAndPickDeterministic(t *testing.T) {
	build := func() (*disjointClusterUnion, map[int64]map[int64]float64) {
		dcu := newDisjointClusterUnion(map[int64]float64{1: 30, 2: 40, 3: 50})
		adjacency := map[int64]map[int64]float64{}
		addEdge(adjacency, 1, 2, 10)
		addEdge(adjacency, 2, 1, 10)
		addEdge(adjacency, 1, 3, 5)
		addEdge(adjacency, 3, 1, 5)
		return dcu, adjacency
	}

	e := &Engine{}
	var winners []int64
	for i := 0; i < 20; i++ {
		dcu, adjacency := build()
		totals := e.candidates(dcu, adjacency, 1, 100)
		winners = append(winners, scoreAndPick(dcu, totals))
	}
	for _, w := range winners {
		assert.Equal(t, winners[0], w, "scoreAndPick must be deterministic across repeated runs")
	}
}

// --- Engine.Split integration, exercising spatialfake for feature
// extraction while the adjacency-driving spatial calls are mocked for a
// predictable golden-splitting outcome.

type mockOsmGateway struct{ mock.Mock }

func (m *mockOsmGateway) SubregionsAt(ctx context.Context, parentGeom []byte, adminLevel int) ([]*domain.OsmBorder, error) {
	args := m.Called(ctx, parentGeom, adminLevel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OsmBorder), args.Error(1)
}
func (m *mockOsmGateway) CountryPolygon(ctx context.Context, name string) (*domain.OsmBorder, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OsmBorder), args.Error(1)
}
func (m *mockOsmGateway) LandPolygonsNear(ctx context.Context, geom []byte) ([]*domain.LandPolygon, error) {
	args := m.Called(ctx, geom)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LandPolygon), args.Error(1)
}
func (m *mockOsmGateway) PlacesIn(ctx context.Context, geom []byte) ([]*domain.OsmPlace, error) {
	args := m.Called(ctx, geom)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OsmPlace), args.Error(1)
}
func (m *mockOsmGateway) CoastlinesNear(ctx context.Context, geom []byte) ([]*domain.Coastline, error) {
	args := m.Called(ctx, geom)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Coastline), args.Error(1)
}
func (m *mockOsmGateway) TileCountSum(ctx context.Context, geom []byte) (int64, error) {
	args := m.Called(ctx, geom)
	return args.Get(0).(int64), args.Error(1)
}

type mockSpatialGateway struct{ mock.Mock }

func (m *mockSpatialGateway) AreaGeodesic(ctx context.Context, geom []byte) (float64, error) {
	args := m.Called(ctx, geom)
	return args.Get(0).(float64), args.Error(1)
}
func (m *mockSpatialGateway) AreaPlanar(ctx context.Context, geom []byte) (float64, error) {
	args := m.Called(ctx, geom)
	return args.Get(0).(float64), args.Error(1)
}
func (m *mockSpatialGateway) Contains(ctx context.Context, a, b []byte) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}
func (m *mockSpatialGateway) Intersects(ctx context.Context, a, b []byte) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}
func (m *mockSpatialGateway) Intersection(ctx context.Context, a, b []byte) ([]byte, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *mockSpatialGateway) Union(ctx context.Context, a, b []byte) ([]byte, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *mockSpatialGateway) UnionAll(ctx context.Context, geoms [][]byte) ([]byte, error) {
	args := m.Called(ctx, geoms)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *mockSpatialGateway) Difference(ctx context.Context, a, b []byte) ([]byte, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *mockSpatialGateway) Buffer(ctx context.Context, geom []byte, meters float64) ([]byte, error) {
	args := m.Called(ctx, geom, meters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *mockSpatialGateway) LengthGeodesic(ctx context.Context, lineOrMultiline []byte) (float64, error) {
	args := m.Called(ctx, lineOrMultiline)
	return args.Get(0).(float64), args.Error(1)
}
func (m *mockSpatialGateway) SimplifyPreservingTopology(ctx context.Context, geom []byte, tolerance float64) ([]byte, error) {
	args := m.Called(ctx, geom, tolerance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *mockSpatialGateway) SplitByLine(ctx context.Context, geom, line []byte) ([][]byte, error) {
	args := m.Called(ctx, geom, line)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]byte), args.Error(1)
}
func (m *mockSpatialGateway) Envelope(ctx context.Context, geom []byte) (repository.BBox, error) {
	args := m.Called(ctx, geom)
	return args.Get(0).(repository.BBox), args.Error(1)
}
func (m *mockSpatialGateway) Centroid(ctx context.Context, geom []byte) (repository.Point, error) {
	args := m.Called(ctx, geom)
	return args.Get(0).(repository.Point), args.Error(1)
}
func (m *mockSpatialGateway) ConvexHull(ctx context.Context, geom []byte) ([]byte, error) {
	args := m.Called(ctx, geom)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *mockSpatialGateway) MakeValid(ctx context.Context, geom []byte) ([]byte, error) {
	args := m.Called(ctx, geom)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *mockSpatialGateway) DumpPolygons(ctx context.Context, multi []byte) ([][]byte, error) {
	args := m.Called(ctx, multi)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]byte), args.Error(1)
}
func (m *mockSpatialGateway) DumpGeometries(ctx context.Context, geomCollection []byte) ([][]byte, error) {
	args := m.Called(ctx, geomCollection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]byte), args.Error(1)
}
func (m *mockSpatialGateway) NumGeometries(ctx context.Context, geom []byte) (int, error) {
	args := m.Called(ctx, geom)
	return args.Int(0), args.Error(1)
}
func (m *mockSpatialGateway) AsGeoJSON(ctx context.Context, geom []byte) (string, error) {
	args := m.Called(ctx, geom)
	return args.String(0), args.Error(1)
}

type mockPredictor struct{ mock.Mock }

func (m *mockPredictor) Predict(f domain.FeatureVector) (float64, bool) {
	args := m.Called(f)
	return args.Get(0).(float64), args.Bool(1)
}
func (m *mockPredictor) PredictBatch(fs []domain.FeatureVector) []repository.PredictResult {
	args := m.Called(fs)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]repository.PredictResult)
}

type mockSplittingRepository struct{ mock.Mock }

func (m *mockSplittingRepository) ReplaceClusters(ctx context.Context, regionID int64, nextLevel int, sizeThresholdKB float64, clusters []domain.SplittingCluster) error {
	return m.Called(ctx, regionID, nextLevel, sizeThresholdKB, clusters).Error(0)
}
func (m *mockSplittingRepository) Clusters(ctx context.Context, regionID int64, nextLevel int, sizeThresholdKB float64) ([]domain.SplittingCluster, error) {
	args := m.Called(ctx, regionID, nextLevel, sizeThresholdKB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SplittingCluster), args.Error(1)
}

// TestSplitMergesABCUnderThreshold drives Engine.Split end to end: the
// adjacency-affecting spatial calls are mocked to pin down the golden
// splitting outcome (same A/B/C 30/40/50 threshold-100 shape as S1 above),
// while feature extraction runs through the real spatialfake gateway so
// that path gets genuine exercise instead of sitting in the tree unused.
func TestSplitMergesABCUnderThreshold(t *testing.T) {
	a := &domain.OsmBorder{OsmID: 1, Name: "A", Way: square(0, 0, 1, 1)}
	b := &domain.OsmBorder{OsmID: 2, Name: "B", Way: square(1, 0, 2, 1)}
	c := &domain.OsmBorder{OsmID: 3, Name: "C", Way: square(2, 0, 3, 1)}
	subregions := []*domain.OsmBorder{a, b, c}
	region := &domain.Region{ID: 99, Geom: square(0, 0, 3, 1)}

	osm := &mockOsmGateway{}
	osm.On("SubregionsAt", mock.Anything, region.Geom, 4).Return(subregions, nil)
	land := []*domain.LandPolygon{{ID: 1, Geom: square(0, 0, 3, 1)}}
	osm.On("LandPolygonsNear", mock.Anything, mock.Anything).Return(land, nil)
	osm.On("PlacesIn", mock.Anything, mock.Anything).Return([]*domain.OsmPlace{}, nil)
	osm.On("CoastlinesNear", mock.Anything, mock.Anything).Return([]*domain.Coastline{}, nil)

	features := usecase.NewFeatureExtractor(spatialfake.NewGateway(), osm, domain.FeatureBounds{LandAreaKm2: 1e12})

	predictor := &mockPredictor{}
	predictor.On("Predict", mock.Anything).Return(30.0, true).Once()
	predictor.On("Predict", mock.Anything).Return(40.0, true).Once()
	predictor.On("Predict", mock.Anything).Return(50.0, true).Once()

	borderAB, borderAC, borderBC := []byte("border-ab"), []byte("border-ac"), []byte("border-bc")
	spatial := &mockSpatialGateway{}
	spatial.On("Intersection", mock.Anything, a.Way, b.Way).Return(borderAB, nil)
	spatial.On("Intersection", mock.Anything, a.Way, c.Way).Return(borderAC, nil)
	spatial.On("Intersection", mock.Anything, b.Way, c.Way).Return(borderBC, nil)
	spatial.On("LengthGeodesic", mock.Anything, borderAB).Return(10.0, nil)
	spatial.On("LengthGeodesic", mock.Anything, borderAC).Return(5.0, nil)
	spatial.On("LengthGeodesic", mock.Anything, borderBC).Return(1.0, nil)
	spatial.On("UnionAll", mock.Anything, mock.Anything).Return([]byte("cluster-union"), nil)

	splitting := &mockSplittingRepository{}
	splitting.On("ReplaceClusters", mock.Anything, region.ID, 4, 100.0, mock.Anything).Return(nil)

	engine := NewEngine(osm, spatial, features, predictor, splitting)
	clusters, err := engine.Split(context.Background(), region, 4, 100.0)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	byRep := map[int64]domain.SplittingCluster{}
	for _, c := range clusters {
		byRep[c.RepresentativeID] = c
	}
	merged, ok := byRep[2]
	require.True(t, ok, "A and B should merge under representative id 2")
	assert.ElementsMatch(t, []int64{1, 2}, merged.SubregionIDs)
	assert.Equal(t, 70.0, merged.PredictedSizeKB)

	lone, ok := byRep[3]
	require.True(t, ok, "C should remain its own cluster")
	assert.Equal(t, []int64{3}, lone.SubregionIDs)
	assert.Equal(t, 50.0, lone.PredictedSizeKB)

	splitting.AssertNumberOfCalls(t, "ReplaceClusters", 1)
}
