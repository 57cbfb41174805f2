// Package usecase hosts the application-layer operations that compose the
// domain repositories: feature extraction today, with partition,
// manipulator and bootstrap living in their own subpackages since each is
// substantial enough to carry its own file set.
package usecase

import (
	"context"
	"fmt"

	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/domain/repository"
)

// bufferMeters is the coastline-intersection buffer that corrects for
// cartographic skew between coastline geometry and administrative borders.
const bufferMeters = 100

// FeatureExtractor computes the predictor's input vector for a region,
// the Go counterpart of subregions.py's per-subregion feature assembly,
// adapted to operate on one already-identified region's geometry instead
// of a parent's set of OSM child borders.
type FeatureExtractor struct {
	spatial repository.SpatialGateway
	osm     repository.OsmGateway
	bounds  domain.FeatureBounds
}

func NewFeatureExtractor(spatial repository.SpatialGateway, osm repository.OsmGateway, bounds domain.FeatureBounds) *FeatureExtractor {
	return &FeatureExtractor{spatial: spatial, osm: osm, bounds: bounds}
}

// Extract computes a region's feature vector from its geometry. If land
// area alone exceeds the predictor's bound, only that field is populated;
// the caller's predictor call will report unavailable without this
// extractor paying for the place/coastline queries.
func (e *FeatureExtractor) Extract(ctx context.Context, geom []byte) (domain.FeatureVector, error) {
	landAreaKm2, err := e.LandAreaKm2(ctx, geom)
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("land area: %w", err)
	}

	fv := domain.FeatureVector{LandAreaKm2: landAreaKm2}
	if landAreaKm2 > e.bounds.LandAreaKm2 {
		return fv, nil
	}

	cityCount, cityPop, hamletCount, err := e.places(ctx, geom)
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("places: %w", err)
	}
	fv.CityCount = cityCount
	fv.CityPopulationSum = cityPop
	fv.HamletCount = hamletCount

	coastlineKm, err := e.coastlineLength(ctx, geom)
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("coastline length: %w", err)
	}
	fv.CoastlineLengthKm = coastlineKm

	return fv, nil
}

// LandAreaKm2 computes the portion of geom covered by land polygons, in
// km2. Exposed independently of Extract so callers that only need the
// land-area checksum (the bootstrap auto-divide coverage test) don't pay
// for the place/coastline queries.
func (e *FeatureExtractor) LandAreaKm2(ctx context.Context, geom []byte) (float64, error) {
	polygons, err := e.osm.LandPolygonsNear(ctx, geom)
	if err != nil {
		return 0, err
	}
	if len(polygons) == 0 {
		return 0, nil
	}

	geoms := make([][]byte, len(polygons))
	for i, p := range polygons {
		geoms[i] = p.Geom
	}
	landUnion, err := e.spatial.UnionAll(ctx, geoms)
	if err != nil {
		return 0, err
	}

	intersection, err := e.spatial.Intersection(ctx, geom, landUnion)
	if err != nil {
		return 0, err
	}
	return e.spatial.AreaGeodesic(ctx, intersection)
}

func (e *FeatureExtractor) places(ctx context.Context, geom []byte) (cityCount, cityPop, hamletCount float64, err error) {
	places, err := e.osm.PlacesIn(ctx, geom)
	if err != nil {
		return 0, 0, 0, err
	}
	for _, p := range places {
		if p.IsCityLike() {
			cityCount++
			cityPop += float64(p.Population)
		} else {
			hamletCount++
		}
	}
	return cityCount, cityPop, hamletCount, nil
}

func (e *FeatureExtractor) coastlineLength(ctx context.Context, geom []byte) (float64, error) {
	buffered, err := e.spatial.Buffer(ctx, geom, bufferMeters)
	if err != nil {
		return 0, err
	}

	coastlines, err := e.osm.CoastlinesNear(ctx, buffered)
	if err != nil {
		return 0, err
	}
	if len(coastlines) == 0 {
		return 0, nil
	}

	total := 0.0
	for _, c := range coastlines {
		clipped, err := e.spatial.Intersection(ctx, buffered, c.Geom)
		if err != nil {
			return 0, err
		}
		length, err := e.spatial.LengthGeodesic(ctx, clipped)
		if err != nil {
			return 0, err
		}
		total += length
	}
	return total / 1000.0, nil
}
