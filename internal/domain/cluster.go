package domain

// Cluster describes one cluster of a single region's partitioning at a
// given next_level and size_threshold. The splitting table is read and
// written through SplittingCluster, not this type, and its columns differ
// from these db tags.
type Cluster struct {
	RegionID       int64   `db:"region_id"`
	RepresentativeID int64 `db:"representative_id"`
	SubregionIDs   []int64 `db:"subregion_ids"`
	Geom           []byte  `db:"geom"`
	NextLevel      int     `db:"next_level"`
	SizeThreshold  float64 `db:"size_threshold"`
	PredictedSize  float64 `db:"predicted_size"`
}

// Subregion is the partitioning engine's unit of input: a geometric child
// of the region being split, already sized by the feature extractor and
// predictor.
type Subregion struct {
	ID         int64
	Name       string
	Geom       []byte
	MwmSizeEst float64
}

// CountryPlan is the declarative per-country bootstrap level ladder: an
// ordered list of admin levels to descend, e.g. [4, 5] means divide the
// country at level 4, then divide each level-4 child at level 5.
type CountryPlan struct {
	Country string
	Levels  []int
}
