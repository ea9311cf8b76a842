package models

// FeatureWindow is an ordered slice of per-bar feature vectors covering
// WindowSize consecutive bars, plus the label derived from the bar that
// immediately follows the window. The chronologically last possible window
// has no following bar, carries no label and is only used for inference.
// SourceBars references the bars the window was cut from, oldest first.
type FeatureWindow struct {
	Window     [][]float64
	SourceBars []Bar
	Label      int
	Labeled    bool
	LastClose  float64
	NextClose  float64
}

// Rows returns the number of feature vectors in the window.
func (w *FeatureWindow) Rows() int { return len(w.Window) }

// Cols returns the feature count, 0 for an empty window.
func (w *FeatureWindow) Cols() int {
	if len(w.Window) == 0 {
		return 0
	}
	return len(w.Window[0])
}
