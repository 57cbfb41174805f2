package domain

// FeatureVector is the fixed-order input to the size predictor:
// city_population_sum, land_area_km2, city_count, hamlet_count,
// coastline_length_km.
type FeatureVector struct {
	CityPopulationSum float64
	LandAreaKm2       float64
	CityCount         float64
	HamletCount       float64
	CoastlineLengthKm float64
}

// Slice returns the feature vector in the fixed order the predictor expects.
func (f FeatureVector) Slice() []float64 {
	return []float64{
		f.CityPopulationSum,
		f.LandAreaKm2,
		f.CityCount,
		f.HamletCount,
		f.CoastlineLengthKm,
	}
}

// FeatureBounds are the per-feature upper validity bounds configured for
// the predictor. A feature exceeding its bound makes the row unavailable.
type FeatureBounds struct {
	CityPopulationSum float64
	LandAreaKm2       float64
	CityCount         float64
	HamletCount       float64
	CoastlineLengthKm float64
}

// Exceeds reports whether any feature in f is over its configured bound.
func (b FeatureBounds) Exceeds(f FeatureVector) bool {
	return f.CityPopulationSum > b.CityPopulationSum ||
		f.LandAreaKm2 > b.LandAreaKm2 ||
		f.CityCount > b.CityCount ||
		f.HamletCount > b.HamletCount ||
		f.CoastlineLengthKm > b.CoastlineLengthKm
}
