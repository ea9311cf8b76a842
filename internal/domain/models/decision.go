package models

import "time"

// WindowShape describes the rows/cols shape of the inference window a
// decision was produced from. Nil when the cycle short-circuited before a
// window was built.
type WindowShape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// TradingDecision is the bounded position-exposure output of one cycle.
// Immutable once returned.
type TradingDecision struct {
	Symbol             string       `json:"symbol"`
	Probability        float64      `json:"probability"`
	Exposure           float64      `json:"exposure"`
	ForecastVolatility float64      `json:"forecastVolatility"`
	BarsCount          int          `json:"barsCount"`
	TrainedSamples     int          `json:"trainedSamples"`
	WindowShape        *WindowShape `json:"windowShape"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// NeutralDecision is the defined output for cycles with insufficient data.
func NeutralDecision(symbol string, barsCount int) TradingDecision {
	return TradingDecision{
		Symbol:      symbol,
		Probability: 0.5,
		BarsCount:   barsCount,
		CreatedAt:   time.Now().UTC(),
	}
}
