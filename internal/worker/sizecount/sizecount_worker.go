// Package sizecount runs the background loop that keeps count_k (a proxy
// for rendered tile weight, summed from the tiles table) current on every
// region, the same job the teacher's location-enrichment worker does for
// enrichment events but pulled by polling the store instead of a stream.
package sizecount

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/domain/repository"
	"github.com/mapborders/partitioner/internal/worker"
)

const emptyQueueSleep = 10 * time.Second

// Worker recomputes a stale region's count_k from tile coverage, one
// region per iteration, writing a best-effort status file a human operator
// can tail.
type Worker struct {
	*worker.BaseWorker
	store              repository.BorderStore
	osm                repository.OsmGateway
	maxEnvelopeAreaKm2 float64
	statusPath         string
}

func New(store repository.BorderStore, osm repository.OsmGateway, maxEnvelopeAreaKm2 float64, statusPath string, logger *zap.Logger) *Worker {
	return &Worker{
		BaseWorker:         worker.NewBaseWorker("sizecount", logger),
		store:              store,
		osm:                osm,
		maxEnvelopeAreaKm2: maxEnvelopeAreaKm2,
		statusPath:         statusPath,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	logger := w.Logger()
	logger.Info("starting sizecount worker", zap.Float64("max_envelope_area_km2", w.maxEnvelopeAreaKm2))

	for {
		select {
		case <-w.StopChan():
			logger.Info("sizecount worker stopped")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			processed, err := w.tick(ctx)
			if err != nil {
				logger.Error("sizecount tick failed", zap.Error(err))
				time.Sleep(emptyQueueSleep)
				continue
			}
			if !processed {
				time.Sleep(emptyQueueSleep)
			}
		}
	}
}

func (w *Worker) tick(ctx context.Context) (bool, error) {
	region, err := w.store.FindStaleRegion(ctx, w.maxEnvelopeAreaKm2)
	if err != nil {
		return false, fmt.Errorf("find stale region: %w", err)
	}
	if region == nil {
		w.writeStatus("")
		return false, nil
	}

	w.writeStatus(fmt.Sprintf("Processing %s (%d)", region.Name, region.ID))

	count, err := w.osm.TileCountSum(ctx, region.Geom)
	if err != nil {
		return false, fmt.Errorf("tile count sum for region %d: %w", region.ID, err)
	}
	if err := w.store.UpdateCountK(ctx, region.ID, count); err != nil {
		return false, fmt.Errorf("update count_k for region %d: %w", region.ID, err)
	}

	w.writeStatus("")
	return true, nil
}

func (w *Worker) writeStatus(msg string) {
	if w.statusPath == "" {
		return
	}
	if err := os.WriteFile(w.statusPath, []byte(msg), 0o644); err != nil {
		w.Logger().Warn("failed to write status file", zap.String("path", w.statusPath), zap.Error(err))
	}
}
