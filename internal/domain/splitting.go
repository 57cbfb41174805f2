package domain

// SplittingCluster is one surviving cluster of a golden-splitting run,
// persisted as a row keyed by (region id, next admin level, size threshold).
type SplittingCluster struct {
	RegionID         int64   `json:"osm_border_id" db:"osm_border_id"`
	RepresentativeID int64   `json:"id" db:"id"`
	SubregionIDs     []int64 `json:"subregion_ids" db:"-"`
	Geom             []byte  `json:"-" db:"geom"`
	NextLevel        int     `json:"next_level" db:"next_level"`
	SizeThresholdKB  float64 `json:"size_threshold" db:"size_threshold"`
	PredictedSizeKB  float64 `json:"predicted_size" db:"predicted_size"`
}
