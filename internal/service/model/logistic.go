package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"EdgePulse/internal/domain/models"
	domsvc "EdgePulse/internal/domain/service"
)

// Config holds training hyper-parameters for the logistic model.
type Config struct {
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	L2           float64 `yaml:"l2"`
	Seed         int64   `yaml:"seed"`
}

// DefaultConfig returns conservative defaults usable without tuning.
func DefaultConfig() Config {
	return Config{LearningRate: 0.05, Epochs: 3, L2: 1e-4, Seed: 42}
}

// Logistic is a logistic-regression ModelPort over flattened feature
// windows. Deterministic for a fixed seed and input order.
type Logistic struct {
	symbol       string
	windowSize   int
	featureCount int
	weights      []float64 // featureCount*windowSize weights + bias
	cfg          Config
	rng          *rand.Rand
}

// New builds an untrained model for the given shape.
func New(symbol string, windowSize, featureCount int, cfg Config) *Logistic {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultConfig().LearningRate
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = DefaultConfig().Epochs
	}
	return &Logistic{
		symbol:       symbol,
		windowSize:   windowSize,
		featureCount: featureCount,
		weights:      make([]float64, windowSize*featureCount+1),
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Shape reports the (windowSize, featureCount) the model was built for.
func (m *Logistic) Shape() (int, int) { return m.windowSize, m.featureCount }

// Train runs SGD over the labeled windows for the configured epochs and
// returns the number of samples consumed. Zero windows is a no-op.
func (m *Logistic) Train(ctx context.Context, windows []models.FeatureWindow) (int, error) {
	samples := make([]models.FeatureWindow, 0, len(windows))
	for _, w := range windows {
		if !w.Labeled {
			continue
		}
		if w.Rows() != m.windowSize || w.Cols() != m.featureCount {
			return 0, fmt.Errorf("train window shape %dx%d, model wants %dx%d",
				w.Rows(), w.Cols(), m.windowSize, m.featureCount)
		}
		samples = append(samples, w)
	}
	if len(samples) == 0 {
		return 0, nil
	}

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order {
			w := samples[idx]
			x := flatten(w.Window)
			p := m.forward(x)
			grad := p - float64(w.Label)
			bias := len(m.weights) - 1
			for i, xi := range x {
				m.weights[i] -= m.cfg.LearningRate * (grad*xi + m.cfg.L2*m.weights[i])
			}
			m.weights[bias] -= m.cfg.LearningRate * grad
		}
	}
	return len(samples), nil
}

// Predict returns the up-move probability for one window.
func (m *Logistic) Predict(ctx context.Context, w models.FeatureWindow) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if w.Rows() != m.windowSize || w.Cols() != m.featureCount {
		return 0, fmt.Errorf("predict window shape %dx%d, model wants %dx%d",
			w.Rows(), w.Cols(), m.windowSize, m.featureCount)
	}
	return m.forward(flatten(w.Window)), nil
}

func (m *Logistic) forward(x []float64) float64 {
	z := m.weights[len(m.weights)-1]
	for i, xi := range x {
		z += m.weights[i] * xi
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	// clip the pre-activation to keep exp finite
	if z > 30 {
		return 1
	}
	if z < -30 {
		return 0
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

func flatten(w [][]float64) []float64 {
	if len(w) == 0 {
		return nil
	}
	out := make([]float64, 0, len(w)*len(w[0]))
	for _, row := range w {
		out = append(out, row...)
	}
	return out
}

// state is the serialized form persisted between cycles.
type state struct {
	Symbol       string    `json:"symbol"`
	WindowSize   int       `json:"windowSize"`
	FeatureCount int       `json:"featureCount"`
	Weights      []float64 `json:"weights"`
}

// Factory creates and restores Logistic models; implements ModelFactory.
type Factory struct {
	cfg Config
}

func NewFactory(cfg Config) *Factory { return &Factory{cfg: cfg} }

func (f *Factory) New(symbol string, windowSize, featureCount int) domsvc.ModelPort {
	return New(symbol, windowSize, featureCount, f.cfg)
}

// Restore rebuilds a model from persisted state bytes.
func (f *Factory) Restore(symbol string, b []byte) (domsvc.ModelPort, error) {
	var s state
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode model state: %w", err)
	}
	if s.WindowSize <= 0 || s.FeatureCount <= 0 {
		return nil, fmt.Errorf("model state shape invalid: %dx%d", s.WindowSize, s.FeatureCount)
	}
	if len(s.Weights) != s.WindowSize*s.FeatureCount+1 {
		return nil, fmt.Errorf("model state weights length %d does not match shape %dx%d",
			len(s.Weights), s.WindowSize, s.FeatureCount)
	}
	m := New(symbol, s.WindowSize, s.FeatureCount, f.cfg)
	copy(m.weights, s.Weights)
	return m, nil
}

// Snapshot serializes a model's state for persistence.
func (f *Factory) Snapshot(mp domsvc.ModelPort) ([]byte, error) {
	m, ok := mp.(*Logistic)
	if !ok {
		return nil, fmt.Errorf("snapshot: unsupported model type %T", mp)
	}
	b, err := json.Marshal(state{
		Symbol:       m.symbol,
		WindowSize:   m.windowSize,
		FeatureCount: m.featureCount,
		Weights:      m.weights,
	})
	if err != nil {
		return nil, fmt.Errorf("encode model state: %w", err)
	}
	return b, nil
}

var _ domsvc.ModelPort = (*Logistic)(nil)
var _ domsvc.ModelFactory = (*Factory)(nil)
