package predictor

import "encoding/json"

// linearModel and scaler are the frozen Go-native replacements for the
// original's pickled scikit-learn estimator and StandardScaler: loaded
// from two JSON assets (ModelPath, ScalerPath) instead of two pickle
// files, so a model trained elsewhere can be frozen and shipped without a
// Python runtime. FactorOrder fixes the training-time feature order;
// domain.FeatureVector.Slice() must agree with it.
type linearModel struct {
	FactorOrder []string  `json:"factor_order"`
	Weights     []float64 `json:"weights"`
	Intercept   float64   `json:"intercept"`
}

type scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func parseLinearModel(raw []byte) (*linearModel, error) {
	var m linearModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func parseScaler(raw []byte) (*scaler, error) {
	var s scaler
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *scaler) transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if i < len(s.Mean) && i < len(s.Scale) && s.Scale[i] != 0 {
			out[i] = (v - s.Mean[i]) / s.Scale[i]
		} else {
			out[i] = v
		}
	}
	return out
}

func (m *linearModel) predict(x []float64) float64 {
	y := m.Intercept
	for i, v := range x {
		if i >= len(m.Weights) {
			break
		}
		y += m.Weights[i] * v
	}
	return y
}
