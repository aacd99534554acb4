package database

import (
	"time"

	"gorm.io/gorm"
)

// OpportunityRecord is the durable row for a tracked opportunity, upserted by
// id on every evaluation cycle the pairing survives.
type OpportunityRecord struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Brand            string    `gorm:"not null" json:"brand"`
	Denomination     int       `gorm:"not null" json:"denomination"`
	BuyMarket        string    `gorm:"not null" json:"buy_market"`
	SellMarket       string    `gorm:"not null" json:"sell_market"`
	GrossSpreadBps   float64   `json:"gross_spread_bps"`
	NetSpreadBps     float64   `json:"net_spread_bps"`
	NetProfitPerUnit float64   `json:"net_profit_per_unit"`
	Quantity         int       `json:"quantity"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName keeps the historical table name.
func (OpportunityRecord) TableName() string { return "opportunities" }

// ExecutionRecord is an append-only fill row.
type ExecutionRecord struct {
	gorm.Model       `json:"-"`
	ExecutionID      string    `gorm:"uniqueIndex" json:"execution_id"`
	OpportunityID    string    `gorm:"index" json:"opportunity_id"`
	Quantity         int       `json:"quantity"`
	Brand            string    `json:"brand"`
	Denomination     int       `json:"denomination"`
	BuyMarket        string    `json:"buy_market"`
	SellMarket       string    `json:"sell_market"`
	NetProfitPerUnit float64   `json:"net_profit_per_unit"`
	NetProfitTotal   float64   `json:"net_profit_total"`
	ExecutedAt       time.Time `gorm:"index" json:"executed_at"`
	Status           string    `json:"status"`
}

// TableName keeps the historical table name.
func (ExecutionRecord) TableName() string { return "executions" }
