package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"EdgePulse/internal/domain/models"
	drepo "EdgePulse/internal/domain/repository"
	domsvc "EdgePulse/internal/domain/service"
	"EdgePulse/internal/services/bars"
	"EdgePulse/internal/services/features"
	"EdgePulse/internal/services/risk"
	applogger "EdgePulse/pkg/logger"
)

// ErrCycleRunning is returned for triggers that arrive while a cycle is in
// flight. Overlapping triggers are dropped, never queued.
var ErrCycleRunning = errors.New("decision cycle already running")

// CycleConfig is the immutable pipeline configuration for one symbol.
type CycleConfig struct {
	Symbol             string
	WindowSize         int
	BarIntervalMs      int64
	VolatilityLookback int
	MaxBars            int
	FetchLimit         int
	Normalize          bool
	ModelTTL           time.Duration
	Risk               risk.Config
}

// CycleOrchestrator runs the full trade-history → decision pipeline once per
// trigger. One orchestrator serves exactly one symbol; concurrent symbols
// need independent instances and independent models, no state is shared.
type CycleOrchestrator struct {
	cfg     CycleConfig
	source  drepo.TradeSource
	factory domsvc.ModelFactory
	store   drepo.ModelStore
	dec     drepo.DecisionStore
	pub     drepo.DecisionPublisher
	metrics drepo.Metrics
	logger  *applogger.Logger

	running atomic.Bool
	model   domsvc.ModelPort
}

// NewCycleOrchestrator creates an orchestrator. Model store, decision store
// and publisher may be nil; those stages are then skipped.
func NewCycleOrchestrator(
	cfg CycleConfig,
	source drepo.TradeSource,
	factory domsvc.ModelFactory,
	store drepo.ModelStore,
	dec drepo.DecisionStore,
	pub drepo.DecisionPublisher,
	metrics drepo.Metrics,
	logger *applogger.Logger,
) *CycleOrchestrator {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 32
	}
	if cfg.BarIntervalMs <= 0 {
		cfg.BarIntervalMs = 60_000
	}
	if cfg.VolatilityLookback <= 0 {
		cfg.VolatilityLookback = 20
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 10_000
	}
	return &CycleOrchestrator{
		cfg:     cfg,
		source:  source,
		factory: factory,
		store:   store,
		dec:     dec,
		pub:     pub,
		metrics: metrics,
		logger:  logger,
	}
}

// Running reports whether a cycle is currently in flight.
func (o *CycleOrchestrator) Running() bool { return o.running.Load() }

// Symbol returns the market symbol this orchestrator trades on.
func (o *CycleOrchestrator) Symbol() string { return o.cfg.Symbol }

// RunCycle executes one decision cycle. A trigger arriving while another
// cycle runs returns ErrCycleRunning immediately.
func (o *CycleOrchestrator) RunCycle(ctx context.Context) (*models.TradingDecision, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.RecordCycle(o.cfg.Symbol, "skipped_overlap")
		o.logger.Warn("cycle trigger dropped, previous cycle still running",
			applogger.String("symbol", o.cfg.Symbol))
		return nil, ErrCycleRunning
	}
	defer o.running.Store(false)

	start := time.Now()
	d, err := o.runLocked(ctx)
	o.metrics.RecordLatency("cycle", time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordCycle(o.cfg.Symbol, "failed")
		return nil, err
	}
	o.metrics.RecordCycle(o.cfg.Symbol, "completed")
	o.metrics.RecordDecision(d.Symbol, d.Probability, d.Exposure)
	return d, nil
}

func (o *CycleOrchestrator) runLocked(ctx context.Context) (*models.TradingDecision, error) {
	trades, err := o.source.Trades(ctx, o.cfg.Symbol, o.cfg.FetchLimit)
	if err != nil {
		o.metrics.RecordError("cycle_fetch")
		return nil, fmt.Errorf("fetch trades: %w", err)
	}

	barSeries := bars.Aggregate(trades, o.cfg.BarIntervalMs, o.cfg.MaxBars)
	if len(barSeries) <= o.cfg.WindowSize {
		o.logger.Info("insufficient bars, neutral decision",
			applogger.String("symbol", o.cfg.Symbol),
			applogger.Int("bars", len(barSeries)),
			applogger.Int("window_size", o.cfg.WindowSize))
		return o.finish(ctx, models.NeutralDecision(o.cfg.Symbol, len(barSeries)), false)
	}

	training := features.BuildWindows(barSeries, o.cfg.WindowSize, o.cfg.Normalize, o.cfg.VolatilityLookback)
	inference, ok := features.InferenceWindow(barSeries, o.cfg.WindowSize, o.cfg.Normalize, o.cfg.VolatilityLookback)
	if len(training) == 0 || !ok {
		o.logger.Info("no feature windows, neutral decision",
			applogger.String("symbol", o.cfg.Symbol),
			applogger.Int("bars", len(barSeries)))
		return o.finish(ctx, models.NeutralDecision(o.cfg.Symbol, len(barSeries)), false)
	}

	mdl, rebuilt := o.resolveModel(ctx)
	trained, err := mdl.Train(ctx, training)
	if err != nil {
		o.metrics.RecordError("cycle_train")
		return nil, fmt.Errorf("train model: %w", err)
	}
	probability, err := mdl.Predict(ctx, inference)
	if err != nil {
		o.metrics.RecordError("cycle_predict")
		return nil, fmt.Errorf("predict: %w", err)
	}

	returns := features.LogReturns(barSeries)
	forecastVol := risk.ForecastVolatility(returns, o.cfg.VolatilityLookback, o.cfg.Risk)
	exposure := risk.Map(probability, forecastVol, o.cfg.Risk)

	d := models.TradingDecision{
		Symbol:             o.cfg.Symbol,
		Probability:        probability,
		Exposure:           exposure,
		ForecastVolatility: forecastVol,
		BarsCount:          len(barSeries),
		TrainedSamples:     trained,
		WindowShape:        &models.WindowShape{Rows: inference.Rows(), Cols: inference.Cols()},
		CreatedAt:          time.Now().UTC(),
	}
	return o.finish(ctx, d, trained > 0 || rebuilt)
}

// resolveModel reuses the in-memory model when its shape still matches,
// otherwise restores persisted state, and falls back to a fresh model on any
// mismatch or restore failure. Shape mismatch is recovered, never fatal.
func (o *CycleOrchestrator) resolveModel(ctx context.Context) (domsvc.ModelPort, bool) {
	if o.model != nil && o.shapeMatches(o.model) {
		return o.model, false
	}

	if o.store != nil {
		if b, found, err := o.store.Load(ctx, o.modelKey()); err != nil {
			o.metrics.RecordError("model_load")
			o.logger.Warn("model state load failed, building fresh",
				applogger.String("symbol", o.cfg.Symbol), applogger.Error(err))
		} else if found {
			restored, err := o.factory.Restore(o.cfg.Symbol, b)
			switch {
			case err != nil:
				o.metrics.RecordError("model_restore")
				o.logger.Warn("model state corrupt, building fresh",
					applogger.String("symbol", o.cfg.Symbol), applogger.Error(err))
			case !o.shapeMatches(restored):
				ws, fc := restored.Shape()
				o.logger.Warn("model shape mismatch, rebuilding",
					applogger.String("symbol", o.cfg.Symbol),
					applogger.Int("have_rows", ws), applogger.Int("have_cols", fc),
					applogger.Int("want_rows", o.cfg.WindowSize),
					applogger.Int("want_cols", features.FeatureCount))
			default:
				o.model = restored
				return restored, false
			}
		}
	}

	o.model = o.factory.New(o.cfg.Symbol, o.cfg.WindowSize, features.FeatureCount)
	return o.model, true
}

func (o *CycleOrchestrator) shapeMatches(m domsvc.ModelPort) bool {
	ws, fc := m.Shape()
	return ws == o.cfg.WindowSize && fc == features.FeatureCount
}

func (o *CycleOrchestrator) modelKey() string {
	return fmt.Sprintf("edgepulse:model:%s", o.cfg.Symbol)
}

// finish persists and publishes the decision. Downstream failures are
// reported but never abort a cycle that already produced a valid decision.
func (o *CycleOrchestrator) finish(ctx context.Context, d models.TradingDecision, saveModel bool) (*models.TradingDecision, error) {
	if saveModel && o.store != nil && o.model != nil {
		if b, err := o.factory.Snapshot(o.model); err != nil {
			o.metrics.RecordError("model_snapshot")
			o.logger.Warn("model snapshot failed", applogger.Error(err))
		} else if err := o.store.Save(ctx, o.modelKey(), b, o.cfg.ModelTTL); err != nil {
			o.metrics.RecordError("model_save")
			o.logger.Warn("model save failed", applogger.Error(err))
		}
	}

	if o.dec != nil {
		if err := o.dec.Store(ctx, &d); err != nil {
			o.metrics.RecordError("decision_store")
			o.logger.Warn("decision persist failed", applogger.Error(err))
		}
	}
	if o.pub != nil {
		if err := o.pub.Publish(ctx, &d); err != nil {
			o.metrics.RecordError("decision_publish")
			o.logger.Warn("decision publish failed", applogger.Error(err))
		}
	}
	return &d, nil
}
