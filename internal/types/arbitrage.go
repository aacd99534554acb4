package types

import "time"

// OpportunityStatus tracks the lifecycle of a tracked opportunity.
type OpportunityStatus string

const (
	OpportunityOpen     OpportunityStatus = "open"
	OpportunityExecuted OpportunityStatus = "executed"
)

// OpportunityMetrics holds the rounded profitability figures for an
// opportunity. All spreads are in basis points.
type OpportunityMetrics struct {
	NetProfitPerUnit float64 `json:"net_profit_per_unit"`
	NetSpreadBps     float64 `json:"net_spread_bps"`
	GrossSpreadBps   float64 `json:"gross_spread_bps"`
	Notional         float64 `json:"notional"`
}

// Opportunity is a risk-approved pairing of one buy leg and one sell leg.
// The ID is deterministic from brand, denomination and the two venues so the
// same pairing keeps its identity across evaluation cycles.
type Opportunity struct {
	ID            string             `json:"id"`
	Brand         string             `json:"brand"`
	Denomination  int                `json:"denomination"`
	BuyLeg        Quote              `json:"buy_leg"`
	SellLeg       Quote              `json:"sell_leg"`
	Quantity      int                `json:"quantity"`
	Metrics       OpportunityMetrics `json:"metrics"`
	CreatedAt     time.Time          `json:"created_at"`
	AgeMs         int64              `json:"age_ms"`
	Status        OpportunityStatus  `json:"status"`
	Issues        []string           `json:"issues,omitempty"`
	LastExecution *time.Time         `json:"last_execution,omitempty"`
}

// Execution is an immutable fill record against an opportunity.
type Execution struct {
	ExecutionID      string    `json:"execution_id"`
	OpportunityID    string    `json:"opportunity_id"`
	Quantity         int       `json:"quantity"`
	Brand            string    `json:"brand"`
	Denomination     int       `json:"denomination"`
	BuyMarket        string    `json:"buy_market"`
	SellMarket       string    `json:"sell_market"`
	NetProfitPerUnit float64   `json:"net_profit_per_unit"`
	NetProfitTotal   float64   `json:"net_profit_total"`
	ExecutedAt       time.Time `json:"executed_at"`
	Status           string    `json:"status"`
}

// Metrics is the aggregate engine state exposed to the transport layer.
type Metrics struct {
	TotalOpportunities int       `json:"total_opportunities"`
	MarketsTracked     int       `json:"markets_tracked"`
	MarketsHealthy     int       `json:"markets_healthy"`
	LastRefresh        time.Time `json:"last_refresh"`
}
