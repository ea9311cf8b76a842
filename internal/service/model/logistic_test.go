package model

import (
	"context"
	"testing"

	"EdgePulse/internal/domain/models"
)

func window(fill float64, label int) models.FeatureWindow {
	w := make([][]float64, 4)
	for r := range w {
		row := make([]float64, 3)
		for c := range row {
			row[c] = fill
		}
		w[r] = row
	}
	return models.FeatureWindow{Window: w, Label: label, Labeled: true}
}

func TestTrainZeroWindowsNoOp(t *testing.T) {
	m := New("BTCUSDT", 4, 3, DefaultConfig())
	n, err := m.Train(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("empty train = (%d, %v)", n, err)
	}
}

func TestTrainSeparableData(t *testing.T) {
	m := New("BTCUSDT", 4, 3, Config{LearningRate: 0.5, Epochs: 50, Seed: 7})
	train := make([]models.FeatureWindow, 0, 40)
	for i := 0; i < 20; i++ {
		train = append(train, window(1, 1), window(-1, 0))
	}
	n, err := m.Train(context.Background(), train)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if n != 40 {
		t.Fatalf("trained samples = %d want 40", n)
	}
	up, err := m.Predict(context.Background(), window(1, 0))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	down, err := m.Predict(context.Background(), window(-1, 0))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if up <= 0.5 || down >= 0.5 {
		t.Fatalf("separable data not learned: up=%v down=%v", up, down)
	}
}

func TestTrainShapeMismatch(t *testing.T) {
	m := New("BTCUSDT", 8, 3, DefaultConfig())
	if _, err := m.Train(context.Background(), []models.FeatureWindow{window(1, 1)}); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
}

func TestPredictDeterministic(t *testing.T) {
	m := New("BTCUSDT", 4, 3, DefaultConfig())
	w := window(0.3, 0)
	a, _ := m.Predict(context.Background(), w)
	b, _ := m.Predict(context.Background(), w)
	if a != b {
		t.Fatalf("predict not deterministic: %v vs %v", a, b)
	}
	if a < 0 || a > 1 {
		t.Fatalf("probability out of range: %v", a)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	f := NewFactory(DefaultConfig())
	m := New("BTCUSDT", 4, 3, DefaultConfig())
	if _, err := m.Train(context.Background(), []models.FeatureWindow{window(1, 1), window(-1, 0)}); err != nil {
		t.Fatalf("train: %v", err)
	}
	b, err := f.Snapshot(m)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	restored, err := f.Restore("BTCUSDT", b)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	ws, fc := restored.Shape()
	if ws != 4 || fc != 3 {
		t.Fatalf("restored shape %dx%d", ws, fc)
	}
	orig, _ := m.Predict(context.Background(), window(0.2, 0))
	got, _ := restored.Predict(context.Background(), window(0.2, 0))
	if orig != got {
		t.Fatalf("restored prediction differs: %v vs %v", got, orig)
	}
}

func TestRestoreRejectsCorruptState(t *testing.T) {
	f := NewFactory(DefaultConfig())
	if _, err := f.Restore("BTCUSDT", []byte(`{"windowSize":4,"featureCount":3,"weights":[1,2]}`)); err == nil {
		t.Fatalf("expected weights length error")
	}
	if _, err := f.Restore("BTCUSDT", []byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
