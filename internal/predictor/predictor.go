// Package predictor estimates a region's rendered map package size from its
// feature vector, the Go counterpart to mwm_size_predictor.py's
// MwmSizePredictor: a singleton scaler+model pair loaded once and reused
// for every prediction.
package predictor

import (
	"context"
	"fmt"
	"sync"

	"github.com/mapborders/partitioner/internal/config"
	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/domain/repository"
	"github.com/mapborders/partitioner/internal/predictor/asset"
)

// Predictor implements repository.SizePredictor over a lazily-loaded
// scaler+model pair, matching the original's classmethod-backed
// _get_instance lazy singleton.
type Predictor struct {
	cfg config.PredictorConfig

	once   sync.Once
	loadErr error
	model  *linearModel
	sc     *scaler
}

func New(cfg config.PredictorConfig) *Predictor {
	return &Predictor{cfg: cfg}
}

func (p *Predictor) load(ctx context.Context) error {
	p.once.Do(func() {
		modelLoader, err := asset.Resolve(ctx, p.cfg.ModelPath)
		if err != nil {
			p.loadErr = fmt.Errorf("resolve model loader: %w", err)
			return
		}
		modelBytes, err := modelLoader.Load(ctx, p.cfg.ModelPath)
		if err != nil {
			p.loadErr = fmt.Errorf("load model asset: %w", err)
			return
		}
		m, err := parseLinearModel(modelBytes)
		if err != nil {
			p.loadErr = fmt.Errorf("parse model asset: %w", err)
			return
		}

		scalerLoader, err := asset.Resolve(ctx, p.cfg.ScalerPath)
		if err != nil {
			p.loadErr = fmt.Errorf("resolve scaler loader: %w", err)
			return
		}
		scalerBytes, err := scalerLoader.Load(ctx, p.cfg.ScalerPath)
		if err != nil {
			p.loadErr = fmt.Errorf("load scaler asset: %w", err)
			return
		}
		s, err := parseScaler(scalerBytes)
		if err != nil {
			p.loadErr = fmt.Errorf("parse scaler asset: %w", err)
			return
		}

		p.model = m
		p.sc = s
	})
	return p.loadErr
}

func (p *Predictor) bounds() domain.FeatureBounds {
	return domain.FeatureBounds{
		CityPopulationSum: p.cfg.CityPopulationBound,
		LandAreaKm2:       p.cfg.LandAreaBound,
		CityCount:         p.cfg.CityCountBound,
		HamletCount:       p.cfg.HamletCountBound,
		CoastlineLengthKm: p.cfg.CoastlineLengthBound,
	}
}

// Predict returns (0, false) when f exceeds the configured feature bounds
// or the model asset fails to load, mirroring the "UNESTIMABLE" error kind
// this method backs.
func (p *Predictor) Predict(f domain.FeatureVector) (float64, bool) {
	if p.bounds().Exceeds(f) {
		return 0, false
	}
	if err := p.load(context.Background()); err != nil {
		return 0, false
	}
	scaled := p.sc.transform(f.Slice())
	return p.model.predict(scaled), true
}

func (p *Predictor) PredictBatch(fs []domain.FeatureVector) []repository.PredictResult {
	out := make([]repository.PredictResult, len(fs))
	for i, f := range fs {
		kb, ok := p.Predict(f)
		out[i] = repository.PredictResult{Kilobytes: kb, OK: ok}
	}
	return out
}
