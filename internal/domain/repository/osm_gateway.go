package repository

import (
	"context"

	"github.com/mapborders/partitioner/internal/domain"
)

// OsmGateway is the read-only OSM-sourced gateway: osm_borders, osm_places,
// land_polygons, coastlines and tiles. Never written by the core.
type OsmGateway interface {
	// SubregionsAt returns OSM administrative borders at adminLevel whose
	// geometry is contained in parentGeom.
	SubregionsAt(ctx context.Context, parentGeom []byte, adminLevel int) ([]*domain.OsmBorder, error)

	// CountryPolygon returns the admin_level=2 border for a country name.
	CountryPolygon(ctx context.Context, name string) (*domain.OsmBorder, error)

	// LandPolygonsNear returns land polygons whose bbox intersects geom's.
	LandPolygonsNear(ctx context.Context, geom []byte) ([]*domain.LandPolygon, error)

	// PlacesIn returns OSM places whose center is contained in geom.
	PlacesIn(ctx context.Context, geom []byte) ([]*domain.OsmPlace, error)

	// CoastlinesNear returns coastline segments whose bbox intersects geom's.
	CoastlinesNear(ctx context.Context, geom []byte) ([]*domain.Coastline, error)

	// TileCountSum returns the sum of tile.count for tiles intersecting geom.
	TileCountSum(ctx context.Context, geom []byte) (int64, error)
}
