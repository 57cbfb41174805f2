package spatial

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/domain/repository"
	pkgerrors "github.com/mapborders/partitioner/internal/pkg/errors"
)

// Gateway is the PostGIS-backed implementation of repository.SpatialGateway.
// Every method issues at most one statement against the shared borders
// connection pool, matching the teacher's one-query-per-method idiom in
// internal/repository/postgres/boundary_repository.go.
type Gateway struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewGateway(db *sqlx.DB, logger *zap.Logger) *Gateway {
	return &Gateway{db: db, logger: logger}
}

func (g *Gateway) storeErr(op string, err error) error {
	g.logger.Error("spatial store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, pkgerrors.ErrSpatialStoreError)
}

func (g *Gateway) AreaGeodesic(ctx context.Context, geom []byte) (float64, error) {
	var area sql.NullFloat64
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_Area(ST_GeomFromWKB($1, 4326)::geography)/1000000.0`, geom,
	).Scan(&area)
	if err != nil {
		return 0, g.storeErr("area_geodesic", err)
	}
	if !area.Valid {
		return 0, nil
	}
	return area.Float64, nil
}

func (g *Gateway) AreaPlanar(ctx context.Context, geom []byte) (float64, error) {
	var area float64
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_Area(ST_GeomFromWKB($1, 4326))`, geom,
	).Scan(&area)
	if err != nil {
		return 0, g.storeErr("area_planar", err)
	}
	return area, nil
}

func (g *Gateway) Contains(ctx context.Context, a, b []byte) (bool, error) {
	var ok bool
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_Contains(ST_GeomFromWKB($1, 4326), ST_GeomFromWKB($2, 4326))`, a, b,
	).Scan(&ok)
	if err != nil {
		return false, g.storeErr("contains", err)
	}
	return ok, nil
}

func (g *Gateway) Intersects(ctx context.Context, a, b []byte) (bool, error) {
	var ok bool
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_Intersects(ST_GeomFromWKB($1, 4326), ST_GeomFromWKB($2, 4326))`, a, b,
	).Scan(&ok)
	if err != nil {
		return false, g.storeErr("intersects", err)
	}
	return ok, nil
}

func (g *Gateway) Intersection(ctx context.Context, a, b []byte) ([]byte, error) {
	var geom []byte
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_AsBinary(ST_Intersection(ST_GeomFromWKB($1, 4326), ST_GeomFromWKB($2, 4326)))`, a, b,
	).Scan(&geom)
	if err != nil {
		return nil, g.storeErr("intersection", err)
	}
	return geom, nil
}

func (g *Gateway) Union(ctx context.Context, a, b []byte) ([]byte, error) {
	var geom []byte
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_AsBinary(ST_Union(ST_GeomFromWKB($1, 4326), ST_GeomFromWKB($2, 4326)))`, a, b,
	).Scan(&geom)
	if err != nil {
		return nil, g.storeErr("union", err)
	}
	return geom, nil
}

// UnionAll unions an arbitrary-length list of geometries, the Go analogue
// of auto_split.py's get_union_sql recursive ST_UNION builder: here a
// single ST_Union(ARRAY[...]) call does the same job in one statement
// instead of a hand-built recursive SQL tree. An empty list returns nil and
// a one-element list returns that element, both without a query.
func (g *Gateway) UnionAll(ctx context.Context, geoms [][]byte) ([]byte, error) {
	if len(geoms) == 0 {
		return nil, nil
	}
	if len(geoms) == 1 {
		return geoms[0], nil
	}
	wkbs := make([]interface{}, len(geoms))
	placeholders := ""
	for i, geom := range geoms {
		wkbs[i] = geom
		if i > 0 {
			placeholders += ","
		}
		placeholders += fmt.Sprintf("ST_GeomFromWKB($%d, 4326)", i+1)
	}
	var geom []byte
	query := fmt.Sprintf(`SELECT ST_AsBinary(ST_Union(ARRAY[%s]))`, placeholders)
	err := g.db.QueryRowContext(ctx, query, wkbs...).Scan(&geom)
	if err != nil {
		return nil, g.storeErr("union_all", err)
	}
	return geom, nil
}

func (g *Gateway) Difference(ctx context.Context, a, b []byte) ([]byte, error) {
	var geom []byte
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_AsBinary(ST_Difference(ST_GeomFromWKB($1, 4326), ST_GeomFromWKB($2, 4326)))`, a, b,
	).Scan(&geom)
	if err != nil {
		return nil, g.storeErr("difference", err)
	}
	return geom, nil
}

func (g *Gateway) LengthGeodesic(ctx context.Context, lineOrMultiline []byte) (float64, error) {
	var length sql.NullFloat64
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_Length(ST_GeomFromWKB($1, 4326)::geography)`, lineOrMultiline,
	).Scan(&length)
	if err != nil {
		return 0, g.storeErr("length_geodesic", err)
	}
	if !length.Valid {
		return 0, nil
	}
	return length.Float64, nil
}

func (g *Gateway) SimplifyPreservingTopology(ctx context.Context, geom []byte, tolerance float64) ([]byte, error) {
	if tolerance == 0 {
		return geom, nil
	}
	var out []byte
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_AsBinary(ST_SimplifyPreserveTopology(ST_GeomFromWKB($1, 4326), $2))`, geom, tolerance,
	).Scan(&out)
	if err != nil {
		return nil, g.storeErr("simplify_preserving_topology", err)
	}
	return out, nil
}

func (g *Gateway) SplitByLine(ctx context.Context, geom []byte, line []byte) ([][]byte, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT ST_AsBinary((ST_Dump(ST_Split(ST_GeomFromWKB($1, 4326), ST_GeomFromWKB($2, 4326)))).geom)
	`, geom, line)
	if err != nil {
		return nil, g.storeErr("split_by_line", err)
	}
	defer rows.Close()

	var pieces [][]byte
	for rows.Next() {
		var piece []byte
		if err := rows.Scan(&piece); err != nil {
			return nil, g.storeErr("split_by_line_scan", err)
		}
		pieces = append(pieces, piece)
	}
	if err := rows.Err(); err != nil {
		return nil, g.storeErr("split_by_line_rows", err)
	}
	return pieces, nil
}

func (g *Gateway) Envelope(ctx context.Context, geom []byte) (repository.BBox, error) {
	var west, south, east, north float64
	err := g.db.QueryRowContext(ctx, `
		SELECT ST_XMin(e), ST_YMin(e), ST_XMax(e), ST_YMax(e)
		FROM (SELECT ST_Envelope(ST_GeomFromWKB($1, 4326)) AS e) s
	`, geom).Scan(&west, &south, &east, &north)
	if err != nil {
		return repository.BBox{}, g.storeErr("envelope", err)
	}
	return repository.BBox{West: west, South: south, East: east, North: north}, nil
}

func (g *Gateway) Centroid(ctx context.Context, geom []byte) (repository.Point, error) {
	var lon, lat float64
	err := g.db.QueryRowContext(ctx, `
		SELECT ST_X(c), ST_Y(c)
		FROM (SELECT ST_Centroid(ST_GeomFromWKB($1, 4326)) AS c) s
	`, geom).Scan(&lon, &lat)
	if err != nil {
		return repository.Point{}, g.storeErr("centroid", err)
	}
	return repository.Point{Lon: lon, Lat: lat}, nil
}

func (g *Gateway) Buffer(ctx context.Context, geom []byte, distanceMeters float64) ([]byte, error) {
	var out []byte
	err := g.db.QueryRowContext(ctx, `
		SELECT ST_AsBinary(ST_Buffer(ST_GeomFromWKB($1, 4326)::geography, $2)::geometry)
	`, geom, distanceMeters).Scan(&out)
	if err != nil {
		return nil, g.storeErr("buffer", err)
	}
	return out, nil
}

func (g *Gateway) ConvexHull(ctx context.Context, geom []byte) ([]byte, error) {
	var out []byte
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_AsBinary(ST_ConvexHull(ST_GeomFromWKB($1, 4326)))`, geom,
	).Scan(&out)
	if err != nil {
		return nil, g.storeErr("convex_hull", err)
	}
	return out, nil
}

func (g *Gateway) MakeValid(ctx context.Context, geom []byte) ([]byte, error) {
	var out []byte
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_AsBinary(ST_MakeValid(ST_GeomFromWKB($1, 4326)))`, geom,
	).Scan(&out)
	if err != nil {
		return nil, g.storeErr("make_valid", err)
	}
	return out, nil
}

func (g *Gateway) DumpPolygons(ctx context.Context, multi []byte) ([][]byte, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT ST_AsBinary((ST_Dump(ST_GeomFromWKB($1, 4326))).geom)
	`, multi)
	if err != nil {
		return nil, g.storeErr("dump_polygons", err)
	}
	defer rows.Close()

	var pieces [][]byte
	for rows.Next() {
		var piece []byte
		if err := rows.Scan(&piece); err != nil {
			return nil, g.storeErr("dump_polygons_scan", err)
		}
		pieces = append(pieces, piece)
	}
	return pieces, rows.Err()
}

func (g *Gateway) DumpGeometries(ctx context.Context, geomCollection []byte) ([][]byte, error) {
	return g.DumpPolygons(ctx, geomCollection)
}

func (g *Gateway) NumGeometries(ctx context.Context, geom []byte) (int, error) {
	var n int
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_NumGeometries(ST_GeomFromWKB($1, 4326))`, geom,
	).Scan(&n)
	if err != nil {
		return 0, g.storeErr("num_geometries", err)
	}
	return n, nil
}

func (g *Gateway) AsGeoJSON(ctx context.Context, geom []byte) (string, error) {
	var geojson string
	err := g.db.QueryRowContext(ctx,
		`SELECT ST_AsGeoJSON(ST_GeomFromWKB($1, 4326))`, geom,
	).Scan(&geojson)
	if err != nil {
		return "", g.storeErr("as_geojson", err)
	}
	return geojson, nil
}
