package models

// Bar is an aggregated OHLCV summary of all trades inside one fixed-duration
// bucket. StartTimeMs is aligned to floor(t/interval)*interval; EndTimeMs is
// StartTimeMs + interval. Bars exist only for buckets that contained at least
// one trade.
type Bar struct {
	Symbol      string
	StartTimeMs int64
	EndTimeMs   int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	BuyVolume   float64
	SellVolume  float64
	Notional    float64
	TradeCount  int
	VWAP        float64
}
