package domain

// OsmBorder is a read-only administrative geometry from the OSM source;
// never written by the core.
type OsmBorder struct {
	OsmID      int64  `json:"osm_id" db:"osm_id"`
	Name       string `json:"name" db:"name"`
	AdminLevel int    `json:"admin_level" db:"admin_level"`
	Way        []byte `json:"-" db:"way"`
}

// OsmPlace classification used by the feature extractor to split
// population into city and hamlet aggregates.
const (
	PlaceCity    = "city"
	PlaceTown    = "town"
	PlaceVillage = "village"
	PlaceHamlet  = "hamlet"
)

// OsmPlace is a read-only populated-place point.
type OsmPlace struct {
	Name       string `json:"name" db:"name"`
	Place      string `json:"place" db:"place"`
	Population int    `json:"population" db:"population"`
	Center     []byte `json:"-" db:"center"`
}

// IsCityLike reports whether a place counts toward city aggregates rather
// than the hamlet count.
func (p OsmPlace) IsCityLike() bool {
	return p.Place == PlaceCity || p.Place == PlaceTown
}

// LandPolygon is a read-only piece of world land used to compute land area.
type LandPolygon struct {
	ID   int64  `db:"id"`
	Geom []byte `db:"geom"`
}

// Coastline is a read-only coastline line segment.
type Coastline struct {
	ID   int64  `db:"id"`
	Geom []byte `db:"geom"`
}

// Tile is a precomputed 0.01x0.01 degree grid cell node count, consumed
// only by the background size-counting worker.
type Tile struct {
	Tile  []byte `db:"tile"`
	Count int64  `db:"count"`
}
