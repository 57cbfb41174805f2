package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/domain/repository"
	"github.com/mapborders/partitioner/internal/usecase"
)

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

type mockBorderStore struct{ mock.Mock }

func (m *mockBorderStore) Get(ctx context.Context, id int64) (*domain.Region, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Region), args.Error(1)
}
func (m *mockBorderStore) Children(ctx context.Context, id int64) ([]*domain.Region, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Region), args.Error(1)
}
func (m *mockBorderStore) Parent(ctx context.Context, id int64) (*domain.Region, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Region), args.Error(1)
}
func (m *mockBorderStore) Predecessors(ctx context.Context, id int64) ([]*domain.Region, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Region), args.Error(1)
}
func (m *mockBorderStore) InBBox(ctx context.Context, bbox domain.BBox, level domain.SimplifyLevel) ([]*domain.Region, error) {
	args := m.Called(ctx, bbox, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Region), args.Error(1)
}
func (m *mockBorderStore) Create(ctx context.Context, region *domain.Region) error {
	args := m.Called(ctx, region)
	return args.Error(0)
}
func (m *mockBorderStore) UpdateGeom(ctx context.Context, id int64, geom []byte) error {
	args := m.Called(ctx, id, geom)
	return args.Error(0)
}
func (m *mockBorderStore) UpdateMeta(ctx context.Context, id int64, meta domain.RegionMeta) error {
	args := m.Called(ctx, id, meta)
	return args.Error(0)
}
func (m *mockBorderStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *mockBorderStore) AllocateFreeID(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockBorderStore) Snapshot(ctx context.Context, label string) error {
	return m.Called(ctx, label).Error(0)
}
func (m *mockBorderStore) Restore(ctx context.Context, label string) error {
	return m.Called(ctx, label).Error(0)
}
func (m *mockBorderStore) ListSnapshots(ctx context.Context) ([]domain.BackupSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BackupSnapshot), args.Error(1)
}
func (m *mockBorderStore) DeleteSnapshot(ctx context.Context, label string) error {
	return m.Called(ctx, label).Error(0)
}
func (m *mockBorderStore) FindPotentialParents(ctx context.Context, id int64) ([]*domain.Region, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Region), args.Error(1)
}
func (m *mockBorderStore) AssignToLowestParent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockBorderStore) FindStaleRegion(ctx context.Context, maxEnvelopeAreaKm2 float64) (*domain.Region, error) {
	args := m.Called(ctx, maxEnvelopeAreaKm2)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Region), args.Error(1)
}
func (m *mockBorderStore) UpdateCountK(ctx context.Context, id int64, countK int64) error {
	return m.Called(ctx, id, countK).Error(0)
}
func (m *mockBorderStore) UpdateMwmSizeEst(ctx context.Context, id int64, kilobytes float64) error {
	return m.Called(ctx, id, kilobytes).Error(0)
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

func newTestBootstrap(t *testing.T, osm *mockOsmGateway, store *mockBorderStore, spatial *mockSpatialGateway, predictor *mockPredictor) *Bootstrap {
	t.Helper()
	features := usecase.NewFeatureExtractor(spatial, osm, domain.FeatureBounds{LandAreaKm2: 1e9})
	logger := zap.NewNop()
	return New(osm, store, features, predictor, nil, nil, logger, 0.99)
}

func TestIsAdministrative(t *testing.T) {
	assert.True(t, isAdministrative(&domain.Region{ID: 12345}))
	assert.False(t, isAdministrative(&domain.Region{ID: -1}))
	assert.False(t, isAdministrative(&domain.Region{ID: 0}))
}

func TestDivideRegionIntoSubregionsAdministrativeLeaf(t *testing.T) {
	osm := &mockOsmGateway{}
	store := &mockBorderStore{}
	spatial := &mockSpatialGateway{}
	predictor := &mockPredictor{}
	b := newTestBootstrap(t, osm, store, spatial, predictor)

	leaf := &domain.Region{ID: 51477, Name: "Country"}
	subs := []*domain.OsmBorder{
		{OsmID: 1001, Name: "Province A", Way: []byte("A")},
		{OsmID: 1002, Name: "Province B", Way: []byte("B")},
	}
	osm.On("SubregionsAt", mock.Anything, mock.Anything, 4).Return(subs, nil)
	osm.On("LandPolygonsNear", mock.Anything, mock.Anything).Return([]*domain.LandPolygon{}, nil)
	osm.On("PlacesIn", mock.Anything, mock.Anything).Return([]*domain.OsmPlace{}, nil)
	osm.On("CoastlinesNear", mock.Anything, mock.Anything).Return([]*domain.Coastline{}, nil)
	spatial.On("Buffer", mock.Anything, mock.Anything, mock.Anything).Return([]byte("buffered"), nil)
	predictor.On("Predict", mock.Anything).Return(100.0, true)
	store.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Region) bool { return r.ID == 1001 })).Return(nil)
	store.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Region) bool { return r.ID == 1002 })).Return(nil)

	children, parentID, err := b.divideRegionIntoSubregions(context.Background(), leaf, 4)
	require.NoError(t, err)
	assert.Equal(t, leaf.ID, parentID)
	require.Len(t, children, 2)
	for _, c := range children {
		require.NotNil(t, c.ParentID)
		assert.Equal(t, leaf.ID, *c.ParentID)
	}
	store.AssertNotCalled(t, "Delete", mock.Anything, leaf.ID)
}

func TestDivideRegionIntoSubregionsNonAdministrativeLeafReattaches(t *testing.T) {
	osm := &mockOsmGateway{}
	store := &mockBorderStore{}
	spatial := &mockSpatialGateway{}
	predictor := &mockPredictor{}
	b := newTestBootstrap(t, osm, store, spatial, predictor)

	grandparentID := int64(42)
	leaf := &domain.Region{ID: -7, Name: "Synthesized", ParentID: &grandparentID}
	subs := []*domain.OsmBorder{{OsmID: 2001, Name: "Fine Subregion", Way: []byte("X")}}
	osm.On("SubregionsAt", mock.Anything, mock.Anything, 6).Return(subs, nil)
	osm.On("LandPolygonsNear", mock.Anything, mock.Anything).Return([]*domain.LandPolygon{}, nil)
	osm.On("PlacesIn", mock.Anything, mock.Anything).Return([]*domain.OsmPlace{}, nil)
	osm.On("CoastlinesNear", mock.Anything, mock.Anything).Return([]*domain.Coastline{}, nil)
	spatial.On("Buffer", mock.Anything, mock.Anything, mock.Anything).Return([]byte("buffered"), nil)
	predictor.On("Predict", mock.Anything).Return(100.0, true)
	store.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Region) bool { return r.ID == 2001 })).Return(nil)
	store.On("Delete", mock.Anything, leaf.ID).Return(nil)

	children, parentID, err := b.divideRegionIntoSubregions(context.Background(), leaf, 6)
	require.NoError(t, err)
	assert.Equal(t, grandparentID, parentID)
	require.Len(t, children, 1)
	require.NotNil(t, children[0].ParentID)
	assert.Equal(t, grandparentID, *children[0].ParentID)
	store.AssertCalled(t, "Delete", mock.Anything, leaf.ID)
}

func TestDivideRegionIntoSubregionsNonAdministrativeLeafWithoutParentErrors(t *testing.T) {
	osm := &mockOsmGateway{}
	store := &mockBorderStore{}
	spatial := &mockSpatialGateway{}
	predictor := &mockPredictor{}
	b := newTestBootstrap(t, osm, store, spatial, predictor)

	leaf := &domain.Region{ID: -7, Name: "Orphaned"}
	osm.On("SubregionsAt", mock.Anything, mock.Anything, 6).Return([]*domain.OsmBorder{{OsmID: 1, Way: []byte("x")}}, nil)

	_, _, err := b.divideRegionIntoSubregions(context.Background(), leaf, 6)
	assert.Error(t, err)
}

func TestDivideRegionIntoSubregionsNoneFound(t *testing.T) {
	osm := &mockOsmGateway{}
	store := &mockBorderStore{}
	spatial := &mockSpatialGateway{}
	predictor := &mockPredictor{}
	b := newTestBootstrap(t, osm, store, spatial, predictor)

	leaf := &domain.Region{ID: 9}
	osm.On("SubregionsAt", mock.Anything, mock.Anything, 8).Return([]*domain.OsmBorder{}, nil)

	children, parentID, err := b.divideRegionIntoSubregions(context.Background(), leaf, 8)
	require.NoError(t, err)
	assert.Nil(t, children)
	assert.Equal(t, int64(0), parentID)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestChildrenCoverParentChecksumFailsBelowRatio(t *testing.T) {
	osm := &mockOsmGateway{}
	store := &mockBorderStore{}
	spatial := &mockSpatialGateway{}
	predictor := &mockPredictor{}
	b := newTestBootstrap(t, osm, store, spatial, predictor)

	parent := &domain.Region{ID: 1, Geom: []byte("parent")}
	children := []*domain.Region{{ID: 2, Geom: []byte("childA")}, {ID: 3, Geom: []byte("childB")}}

	landPolys := []*domain.LandPolygon{{Geom: []byte("land")}}
	osm.On("LandPolygonsNear", mock.Anything, mock.Anything).Return(landPolys, nil)
	spatial.On("UnionAll", mock.Anything, mock.Anything).Return([]byte("union"), nil)
	spatial.On("Intersection", mock.Anything, []byte("parent"), []byte("union")).Return([]byte("i-parent"), nil)
	spatial.On("Intersection", mock.Anything, []byte("childA"), []byte("union")).Return([]byte("i-a"), nil)
	spatial.On("Intersection", mock.Anything, []byte("childB"), []byte("union")).Return([]byte("i-b"), nil)
	spatial.On("AreaGeodesic", mock.Anything, []byte("i-parent")).Return(100.0, nil)
	spatial.On("AreaGeodesic", mock.Anything, []byte("i-a")).Return(60.0, nil)
	spatial.On("AreaGeodesic", mock.Anything, []byte("i-b")).Return(38.0, nil)

	covered, err := b.childrenCoverParent(context.Background(), parent, children)
	require.NoError(t, err)
	assert.False(t, covered, "98 of 100 falls short of the 0.99 coverage ratio")
}

func TestChildrenCoverParentZeroParentLandIsAlwaysCovered(t *testing.T) {
	osm := &mockOsmGateway{}
	store := &mockBorderStore{}
	spatial := &mockSpatialGateway{}
	predictor := &mockPredictor{}
	b := newTestBootstrap(t, osm, store, spatial, predictor)

	parent := &domain.Region{ID: 1, Geom: []byte("parent")}
	osm.On("LandPolygonsNear", mock.Anything, []byte("parent")).Return([]*domain.LandPolygon{}, nil)

	covered, err := b.childrenCoverParent(context.Background(), parent, nil)
	require.NoError(t, err)
	assert.True(t, covered)
}

func TestFoldChildrenIntoClustersLeavesSingletonsAloneAndMergesRest(t *testing.T) {
	osm := &mockOsmGateway{}
	store := &mockBorderStore{}
	spatial := &mockSpatialGateway{}
	predictor := &mockPredictor{}
	b := newTestBootstrap(t, osm, store, spatial, predictor)

	parent := &domain.Region{ID: 7, Name: "Parent"}
	clusters := []domain.SplittingCluster{
		{SubregionIDs: []int64{101}},
		{SubregionIDs: []int64{201, 202}, Geom: []byte("merged"), PredictedSizeKB: 512},
	}

	store.On("AllocateFreeID", mock.Anything).Return(int64(-1000000001), nil)
	store.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Region) bool {
		return r.ID == -1000000001 && r.Name == "Parent_1"
	})).Return(nil)
	store.On("Delete", mock.Anything, int64(201)).Return(nil)
	store.On("Delete", mock.Anything, int64(202)).Return(nil)

	err := b.foldChildrenIntoClusters(context.Background(), parent, clusters)
	require.NoError(t, err)
	store.AssertNotCalled(t, "Delete", mock.Anything, int64(101))
	store.AssertNumberOfCalls(t, "Create", 1)
}

func TestRunCopiesCountryWithEmptyLadder(t *testing.T) {
	osm := &mockOsmGateway{}
	store := &mockBorderStore{}
	spatial := &mockSpatialGateway{}
	predictor := &mockPredictor{}
	b := newTestBootstrap(t, osm, store, spatial, predictor)

	country := &domain.OsmBorder{OsmID: 51477, Name: "Narnia", Way: []byte("narnia-geom")}
	osm.On("CountryPolygon", mock.Anything, "Narnia").Return(country, nil)
	osm.On("LandPolygonsNear", mock.Anything, mock.Anything).Return([]*domain.LandPolygon{}, nil)
	osm.On("PlacesIn", mock.Anything, mock.Anything).Return([]*domain.OsmPlace{}, nil)
	osm.On("CoastlinesNear", mock.Anything, mock.Anything).Return([]*domain.Coastline{}, nil)
	spatial.On("Buffer", mock.Anything, mock.Anything, mock.Anything).Return([]byte("buffered"), nil)
	predictor.On("Predict", mock.Anything).Return(100.0, true)
	store.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Region) bool {
		return r.ID == 51477 && r.ParentID == nil
	})).Return(nil)

	err := b.Run(context.Background(), "Narnia", Plan{}, 800)
	require.NoError(t, err)
	store.AssertNumberOfCalls(t, "Create", 1)
	osm.AssertNotCalled(t, "SubregionsAt", mock.Anything, mock.Anything, mock.Anything)
}
