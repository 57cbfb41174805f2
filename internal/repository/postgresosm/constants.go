package postgresosm

const (
	SRID4326 = 4326

	// defaultOsmTable, etc. are fallbacks; production callers pass the
	// table names from config.StoreConfig so deployments can point at
	// differently-named extract tables.
	defaultOsmTable          = "osm_borders"
	defaultOsmPlacesTable    = "osm_places"
	defaultLandPolygonsTable = "land_polygons"
	defaultCoastlineTable    = "coastlines"
	defaultTilesTable        = "tiles"
)
