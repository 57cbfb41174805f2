package repository

import "github.com/mapborders/partitioner/internal/domain"

// SizePredictor maps a feature vector to a predicted package size in
// kilobytes. A pure function of its inputs and a frozen, versioned model
// asset loaded once at process start.
type SizePredictor interface {
	// Predict returns (size, true) if the features are within bounds, or
	// (0, false) if unavailable.
	Predict(f domain.FeatureVector) (kilobytes float64, ok bool)
	PredictBatch(fs []domain.FeatureVector) []PredictResult
}

type PredictResult struct {
	Kilobytes float64
	OK        bool
}
