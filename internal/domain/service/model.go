package service

import (
	"context"

	"EdgePulse/internal/domain/models"
)

// ModelPort is the only boundary to the trainable-probability subsystem.
// Implementations are stateful and keyed by (symbol, windowSize, featureCount).
type ModelPort interface {
	// Train fits the model on labeled windows and returns the number of
	// samples consumed. Zero windows is a no-op returning 0.
	Train(ctx context.Context, windows []models.FeatureWindow) (int, error)

	// Predict returns the up-move probability in [0,1] for one window.
	// It must not mutate caller-visible state.
	Predict(ctx context.Context, window models.FeatureWindow) (float64, error)

	// Shape reports the (windowSize, featureCount) the model was built for.
	// The orchestrator uses it to decide reuse versus rebuild.
	Shape() (windowSize, featureCount int)
}

// ModelFactory builds a fresh model for a shape, used when no persisted
// state exists or the persisted shape no longer matches.
type ModelFactory interface {
	New(symbol string, windowSize, featureCount int) ModelPort
	Restore(symbol string, state []byte) (ModelPort, error)
	Snapshot(m ModelPort) ([]byte, error)
}
