package repository

import "context"

// SpatialGateway wraps the spatial store: typed queries for geometry
// predicates, area, union, intersection, simplify, length-on-geography,
// envelope, and split-by-line. Consumers never construct geometry SQL
// themselves. Geometries are passed and returned as WKB (the same
// representation used for Region.Geom).
type SpatialGateway interface {
	// AreaGeodesic returns the geodesic area in km2; always non-negative.
	// NaN is possible for antimeridian-crossing degenerate cases; callers
	// treat NaN as 0.
	AreaGeodesic(ctx context.Context, geom []byte) (float64, error)

	// AreaPlanar returns a cheap planar ordering proxy in degrees2.
	AreaPlanar(ctx context.Context, geom []byte) (float64, error)

	Contains(ctx context.Context, a, b []byte) (bool, error)
	Intersects(ctx context.Context, a, b []byte) (bool, error)

	Intersection(ctx context.Context, a, b []byte) ([]byte, error)
	Union(ctx context.Context, a, b []byte) ([]byte, error)
	UnionAll(ctx context.Context, geoms [][]byte) ([]byte, error)
	Difference(ctx context.Context, a, b []byte) ([]byte, error)

	// LengthGeodesic returns the geodesic length in meters of a
	// line/multiline; 0 for non-linear inputs.
	LengthGeodesic(ctx context.Context, lineOrMultiline []byte) (float64, error)

	// SimplifyPreservingTopology never returns NULL; tolerance 0 is
	// identity.
	SimplifyPreservingTopology(ctx context.Context, geom []byte, tolerance float64) ([]byte, error)

	// SplitByLine returns one or more pieces whose union equals the input
	// up to topology tolerance. Callers must verify the piece count grew.
	SplitByLine(ctx context.Context, geom []byte, line []byte) ([][]byte, error)

	Envelope(ctx context.Context, geom []byte) (BBox, error)
	Centroid(ctx context.Context, geom []byte) (Point, error)

	Buffer(ctx context.Context, geom []byte, distanceMeters float64) ([]byte, error)
	ConvexHull(ctx context.Context, geom []byte) ([]byte, error)
	MakeValid(ctx context.Context, geom []byte) ([]byte, error)

	DumpPolygons(ctx context.Context, multi []byte) ([][]byte, error)
	DumpGeometries(ctx context.Context, geomCollection []byte) ([][]byte, error)

	NumGeometries(ctx context.Context, geom []byte) (int, error)

	AsGeoJSON(ctx context.Context, geom []byte) (string, error)
}

type BBox struct {
	West, South, East, North float64
}

type Point struct {
	Lon, Lat float64
}
