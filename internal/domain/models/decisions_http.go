package models

// Requests for decision HTTP endpoints. Defined in domain for consistency and reuse.

// DecisionRequest optionally narrows GET /api/decision to one symbol. The
// service trades a single symbol, so a mismatching value is a not-found.
type DecisionRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,alphanum"`
}

// CycleRequest carries the same optional symbol filter for POST /api/cycle.
type CycleRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,alphanum"`
}

type RecentRequest struct {
	Limit int `query:"limit" json:"limit" default:"10" validate:"gte=1,lte=100"`
}
