package postgresosm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/config"
	"github.com/mapborders/partitioner/internal/domain"
)

// osmRepository implements repository.OsmGateway against the tables an
// ingestion pipeline loads out of band: osm_borders, osm_places,
// land_polygons, coastlines and tiles. Every method issues one query, the
// same one-statement-per-method idiom the borders-side spatial gateway
// uses.
type osmRepository struct {
	db     *DB
	tables config.StoreConfig
	logger *zap.Logger
}

func NewOsmRepository(db *DB, tables config.StoreConfig, logger *zap.Logger) *osmRepository {
	return &osmRepository{db: db, tables: tables, logger: logger}
}

func (r *osmRepository) table(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

func (r *osmRepository) queryErr(op string, err error) error {
	r.logger.Error("osm store query failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (r *osmRepository) SubregionsAt(ctx context.Context, parentGeom []byte, adminLevel int) ([]*domain.OsmBorder, error) {
	table := r.table(r.tables.OsmTable, defaultOsmTable)
	query := fmt.Sprintf(`
		SELECT osm_id, name, admin_level, ST_AsBinary(way) AS way
		FROM %s
		WHERE admin_level = $1 AND ST_Contains(ST_GeomFromWKB($2, 4326), way)
	`, table)

	rows, err := r.db.QueryContext(ctx, query, adminLevel, parentGeom)
	if err != nil {
		return nil, r.queryErr("subregions_at", err)
	}
	defer rows.Close()

	var out []*domain.OsmBorder
	for rows.Next() {
		b := &domain.OsmBorder{}
		if err := rows.Scan(&b.OsmID, &b.Name, &b.AdminLevel, &b.Way); err != nil {
			return nil, r.queryErr("subregions_at_scan", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *osmRepository) CountryPolygon(ctx context.Context, name string) (*domain.OsmBorder, error) {
	table := r.table(r.tables.OsmTable, defaultOsmTable)
	query := fmt.Sprintf(`
		SELECT osm_id, name, admin_level, ST_AsBinary(way) AS way
		FROM %s
		WHERE admin_level = 2 AND name = $1
		LIMIT 1
	`, table)

	b := &domain.OsmBorder{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(&b.OsmID, &b.Name, &b.AdminLevel, &b.Way)
	if err != nil {
		return nil, r.queryErr("country_polygon", err)
	}
	return b, nil
}

func (r *osmRepository) LandPolygonsNear(ctx context.Context, geom []byte) ([]*domain.LandPolygon, error) {
	table := r.table(r.tables.LandPolygonsTable, defaultLandPolygonsTable)
	query := fmt.Sprintf(`
		SELECT id, ST_AsBinary(geom) AS geom
		FROM %s
		WHERE geom && ST_GeomFromWKB($1, 4326)
	`, table)

	rows, err := r.db.QueryContext(ctx, query, geom)
	if err != nil {
		return nil, r.queryErr("land_polygons_near", err)
	}
	defer rows.Close()

	var out []*domain.LandPolygon
	for rows.Next() {
		p := &domain.LandPolygon{}
		if err := rows.Scan(&p.ID, &p.Geom); err != nil {
			return nil, r.queryErr("land_polygons_near_scan", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *osmRepository) PlacesIn(ctx context.Context, geom []byte) ([]*domain.OsmPlace, error) {
	table := r.table(r.tables.OsmPlacesTable, defaultOsmPlacesTable)
	query := fmt.Sprintf(`
		SELECT name, place, population, ST_AsBinary(center) AS center
		FROM %s
		WHERE ST_Contains(ST_GeomFromWKB($1, 4326), center)
	`, table)

	rows, err := r.db.QueryContext(ctx, query, geom)
	if err != nil {
		return nil, r.queryErr("places_in", err)
	}
	defer rows.Close()

	var out []*domain.OsmPlace
	for rows.Next() {
		p := &domain.OsmPlace{}
		if err := rows.Scan(&p.Name, &p.Place, &p.Population, &p.Center); err != nil {
			return nil, r.queryErr("places_in_scan", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *osmRepository) CoastlinesNear(ctx context.Context, geom []byte) ([]*domain.Coastline, error) {
	table := r.table(r.tables.CoastlineTable, defaultCoastlineTable)
	query := fmt.Sprintf(`
		SELECT id, ST_AsBinary(geom) AS geom
		FROM %s
		WHERE geom && ST_GeomFromWKB($1, 4326)
	`, table)

	rows, err := r.db.QueryContext(ctx, query, geom)
	if err != nil {
		return nil, r.queryErr("coastlines_near", err)
	}
	defer rows.Close()

	var out []*domain.Coastline
	for rows.Next() {
		c := &domain.Coastline{}
		if err := rows.Scan(&c.ID, &c.Geom); err != nil {
			return nil, r.queryErr("coastlines_near_scan", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *osmRepository) TileCountSum(ctx context.Context, geom []byte) (int64, error) {
	table := r.table(r.tables.TilesTable, defaultTilesTable)
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(count), 0)
		FROM %s
		WHERE ST_Intersects(tile, ST_GeomFromWKB($1, 4326))
	`, table)

	var sum int64
	err := r.db.QueryRowContext(ctx, query, geom).Scan(&sum)
	if err != nil {
		return 0, r.queryErr("tile_count_sum", err)
	}
	return sum, nil
}
