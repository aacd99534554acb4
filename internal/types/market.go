package types

import "time"

// Side of the market a quote lives on. Sell-side quotes are venues the
// system can buy cards from; buy-side quotes are venues it can sell into.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// HealthState describes the operational status of a marketplace connector.
type HealthState string

const (
	HealthInitializing HealthState = "initializing"
	HealthHealthy      HealthState = "healthy"
	HealthDegraded     HealthState = "degraded"
	HealthDisabled     HealthState = "disabled"
)

// Quote is one venue's point-in-time price for a brand/denomination/side.
// Quotes are never mutated: each poll produces a fresh batch that supersedes
// the previous quote for the same (venue, side, brand, denomination).
type Quote struct {
	ID             string    `json:"id"`
	MarketID       string    `json:"market_id"`
	MarketName     string    `json:"market_name"`
	Side           Side      `json:"side"`
	Brand          string    `json:"brand"`
	Denomination   int       `json:"denomination"`
	Currency       string    `json:"currency"`
	Price          float64   `json:"price"`
	AvailableUnits int       `json:"available_units"`
	MinPurchaseQty int       `json:"min_purchase_qty"`
	MaxPurchaseQty *int      `json:"max_purchase_qty,omitempty"`
	FeeBps         float64   `json:"fee_bps"`
	SlippageBps    float64   `json:"slippage_bps"`
	ReceivedAt     time.Time `json:"received_at"`
	VenueTimestamp time.Time `json:"venue_timestamp"`
}

// BookSnapshot is a read-only view of the consolidated order book for one
// (brand, denomination). Sell is sorted ascending by price so index 0 is the
// cheapest acquisition; buy is sorted descending so index 0 is the richest
// disposal.
type BookSnapshot struct {
	Brand        string  `json:"brand"`
	Denomination int     `json:"denomination"`
	Sell         []Quote `json:"sell"`
	Buy          []Quote `json:"buy"`
}

// MarketHealth is the per-connector heartbeat state.
type MarketHealth struct {
	MarketID      string      `json:"id"`
	Market        string      `json:"market"`
	State         HealthState `json:"state"`
	LastError     string      `json:"last_error,omitempty"`
	LastSuccessAt *time.Time  `json:"last_success_at,omitempty"`
	LastLatencyMs *int64      `json:"last_latency_ms,omitempty"`
}
