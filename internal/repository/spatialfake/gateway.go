// Package spatialfake is an in-memory SpatialGateway used by unit tests so
// partitioning and manipulator logic can be exercised without a live
// PostGIS instance. It trades exact boolean geometry algebra (which orb
// does not provide) for bounding-box and point-in-ring approximations that
// are exact for the simple test fixtures this repository's tests build by
// hand; it is not a general-purpose geometry engine.
package spatialfake

import (
	"context"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/mapborders/partitioner/internal/domain/repository"
)

// Gateway is a deterministic, in-process SpatialGateway backed by orb
// geometry types and WKB wire encoding, matching the WKB contract the
// PostGIS-backed Gateway uses.
type Gateway struct{}

func NewGateway() *Gateway {
	return &Gateway{}
}

func decode(b []byte) (orb.Geometry, error) {
	return wkb.Unmarshal(b)
}

func encode(g orb.Geometry) []byte {
	return wkb.MustMarshal(g)
}

func toMultiPolygon(g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}
	case orb.MultiPolygon:
		return v
	default:
		return nil
	}
}

func (f *Gateway) AreaGeodesic(ctx context.Context, geomBytes []byte) (float64, error) {
	g, err := decode(geomBytes)
	if err != nil {
		return 0, err
	}
	area := 0.0
	for _, poly := range toMultiPolygon(g) {
		area += math.Abs(geo.Area(poly))
	}
	return area / 1_000_000.0, nil
}

func (f *Gateway) AreaPlanar(ctx context.Context, geomBytes []byte) (float64, error) {
	g, err := decode(geomBytes)
	if err != nil {
		return 0, err
	}
	area := 0.0
	for _, poly := range toMultiPolygon(g) {
		area += math.Abs(planar.Area(poly))
	}
	return area, nil
}

func (f *Gateway) Contains(ctx context.Context, a, b []byte) (bool, error) {
	ga, err := decode(a)
	if err != nil {
		return false, err
	}
	gb, err := decode(b)
	if err != nil {
		return false, err
	}
	bound := gb.Bound()
	corners := []orb.Point{
		bound.Min, bound.Max,
		{bound.Min[0], bound.Max[1]},
		{bound.Max[0], bound.Min[1]},
	}
	for _, poly := range toMultiPolygon(ga) {
		for _, pt := range corners {
			if !planar.PolygonContains(poly, pt) {
				return false, nil
			}
		}
	}
	return true, nil
}

func (f *Gateway) Intersects(ctx context.Context, a, b []byte) (bool, error) {
	ga, err := decode(a)
	if err != nil {
		return false, err
	}
	gb, err := decode(b)
	if err != nil {
		return false, err
	}
	return ga.Bound().Intersects(gb.Bound()), nil
}

// Intersection is not exact: it returns b when a contains b, a when b
// contains a, an empty polygon when the two bounding boxes are disjoint,
// and a unchanged (no clipping) when they merely overlap. Sufficient for
// tests built around nested or disjoint fixtures.
func (f *Gateway) Intersection(ctx context.Context, a, b []byte) ([]byte, error) {
	if ok, _ := f.Contains(ctx, a, b); ok {
		return b, nil
	}
	if ok, _ := f.Contains(ctx, b, a); ok {
		return a, nil
	}
	if ok, _ := f.Intersects(ctx, a, b); !ok {
		return encode(orb.Polygon{}), nil
	}
	return a, nil
}

func (f *Gateway) Union(ctx context.Context, a, b []byte) ([]byte, error) {
	return f.UnionAll(ctx, [][]byte{a, b})
}

func (f *Gateway) UnionAll(ctx context.Context, geoms [][]byte) ([]byte, error) {
	var multi orb.MultiPolygon
	for _, gBytes := range geoms {
		g, err := decode(gBytes)
		if err != nil {
			return nil, err
		}
		multi = append(multi, toMultiPolygon(g)...)
	}
	if len(multi) == 1 {
		return encode(multi[0]), nil
	}
	return encode(multi), nil
}

func (f *Gateway) Difference(ctx context.Context, a, b []byte) ([]byte, error) {
	if ok, _ := f.Contains(ctx, b, a); ok {
		return encode(orb.Polygon{}), nil
	}
	return a, nil
}

func (f *Gateway) LengthGeodesic(ctx context.Context, lineOrMultiline []byte) (float64, error) {
	g, err := decode(lineOrMultiline)
	if err != nil {
		return 0, err
	}
	switch v := g.(type) {
	case orb.LineString:
		return geo.LengthHaversine(v), nil
	case orb.MultiLineString:
		total := 0.0
		for _, ls := range v {
			total += geo.LengthHaversine(ls)
		}
		return total, nil
	default:
		return 0, nil
	}
}

func (f *Gateway) SimplifyPreservingTopology(ctx context.Context, geomBytes []byte, tolerance float64) ([]byte, error) {
	return geomBytes, nil
}

// SplitByLine splits the outer ring of a single polygon by a straight
// line's X coordinate (vertical) when the line is near-vertical, else by Y
// (horizontal), mirroring the axis-split shape used in tests; it does not
// implement general line-clipping.
func (f *Gateway) SplitByLine(ctx context.Context, geomBytes []byte, lineBytes []byte) ([][]byte, error) {
	g, err := decode(geomBytes)
	if err != nil {
		return nil, err
	}
	poly, ok := g.(orb.Polygon)
	if !ok {
		return [][]byte{geomBytes}, nil
	}
	line, err := decode(lineBytes)
	if err != nil {
		return nil, err
	}
	ls, ok := line.(orb.LineString)
	if !ok || len(ls) < 2 {
		return [][]byte{geomBytes}, nil
	}

	vertical := math.Abs(ls[1][0]-ls[0][0]) < math.Abs(ls[1][1]-ls[0][1])
	bound := poly.Bound()
	var a, b orb.Polygon
	if vertical {
		mid := ls[0][0]
		a = clipByX(poly, bound.Min[0], mid)
		b = clipByX(poly, mid, bound.Max[0])
	} else {
		mid := ls[0][1]
		a = clipByY(poly, bound.Min[1], mid)
		b = clipByY(poly, mid, bound.Max[1])
	}
	if len(a) == 0 || len(b) == 0 {
		return [][]byte{geomBytes}, nil
	}
	return [][]byte{encode(a), encode(b)}, nil
}

func clipByX(poly orb.Polygon, xmin, xmax float64) orb.Polygon {
	return clipBound(poly, orb.Bound{
		Min: orb.Point{xmin, -90},
		Max: orb.Point{xmax, 90},
	})
}

func clipByY(poly orb.Polygon, ymin, ymax float64) orb.Polygon {
	return clipBound(poly, orb.Bound{
		Min: orb.Point{-180, ymin},
		Max: orb.Point{180, ymax},
	})
}

// clipBound clamps every ring point into bound (no point is dropped), a
// coarse approximation of a real polygon-clip suitable only for
// axis-aligned rectangular test fixtures.
func clipBound(poly orb.Polygon, bound orb.Bound) orb.Polygon {
	var out orb.Polygon
	for _, ring := range poly {
		var newRing orb.Ring
		for _, pt := range ring {
			clipped := orb.Point{
				clampTo(pt[0], bound.Min[0], bound.Max[0]),
				clampTo(pt[1], bound.Min[1], bound.Max[1]),
			}
			newRing = append(newRing, clipped)
		}
		if len(newRing) > 0 {
			out = append(out, newRing)
		}
	}
	return out
}

func clampTo(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (f *Gateway) Envelope(ctx context.Context, geomBytes []byte) (repository.BBox, error) {
	g, err := decode(geomBytes)
	if err != nil {
		return repository.BBox{}, err
	}
	b := g.Bound()
	return repository.BBox{West: b.Min[0], South: b.Min[1], East: b.Max[0], North: b.Max[1]}, nil
}

func (f *Gateway) Centroid(ctx context.Context, geomBytes []byte) (repository.Point, error) {
	g, err := decode(geomBytes)
	if err != nil {
		return repository.Point{}, err
	}
	c, _ := planar.CentroidArea(g)
	return repository.Point{Lon: c[0], Lat: c[1]}, nil
}

func (f *Gateway) Buffer(ctx context.Context, geomBytes []byte, distanceMeters float64) ([]byte, error) {
	return geomBytes, nil
}

func (f *Gateway) ConvexHull(ctx context.Context, geomBytes []byte) ([]byte, error) {
	g, err := decode(geomBytes)
	if err != nil {
		return nil, err
	}
	var points orb.MultiPoint
	for _, poly := range toMultiPolygon(g) {
		for _, ring := range poly {
			points = append(points, ring...)
		}
	}
	hull := planar.ConvexHull(points)
	poly, ok := hull.(orb.Polygon)
	if !ok {
		return geomBytes, nil
	}
	return encode(poly), nil
}

func (f *Gateway) MakeValid(ctx context.Context, geomBytes []byte) ([]byte, error) {
	return geomBytes, nil
}

func (f *Gateway) DumpPolygons(ctx context.Context, multiBytes []byte) ([][]byte, error) {
	g, err := decode(multiBytes)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for _, poly := range toMultiPolygon(g) {
		out = append(out, encode(poly))
	}
	return out, nil
}

func (f *Gateway) DumpGeometries(ctx context.Context, geomCollectionBytes []byte) ([][]byte, error) {
	return f.DumpPolygons(ctx, geomCollectionBytes)
}

func (f *Gateway) NumGeometries(ctx context.Context, geomBytes []byte) (int, error) {
	g, err := decode(geomBytes)
	if err != nil {
		return 0, err
	}
	return len(toMultiPolygon(g)), nil
}

func (f *Gateway) AsGeoJSON(ctx context.Context, geomBytes []byte) (string, error) {
	g, err := decode(geomBytes)
	if err != nil {
		return "", err
	}
	b, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
