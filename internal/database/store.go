package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardarb/internal/types"
)

// Store is the durable log of opportunities and executions.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore wraps a GORM connection.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// InitSchema creates or migrates the tables. Failure here is the only fatal
// startup condition.
func (s *Store) InitSchema() error {
	return s.db.AutoMigrate(&OpportunityRecord{}, &ExecutionRecord{})
}

// RecordOpportunity upserts the opportunity by id.
func (s *Store) RecordOpportunity(ctx context.Context, opp types.Opportunity) error {
	record := OpportunityRecord{
		ID:               opp.ID,
		Brand:            opp.Brand,
		Denomination:     opp.Denomination,
		BuyMarket:        opp.BuyLeg.MarketName,
		SellMarket:       opp.SellLeg.MarketName,
		GrossSpreadBps:   opp.Metrics.GrossSpreadBps,
		NetSpreadBps:     opp.Metrics.NetSpreadBps,
		NetProfitPerUnit: opp.Metrics.NetProfitPerUnit,
		Quantity:         opp.Quantity,
		CreatedAt:        opp.CreatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
}

// RecordExecution appends a fill row.
func (s *Store) RecordExecution(ctx context.Context, execution types.Execution) error {
	record := ExecutionRecord{
		ExecutionID:      execution.ExecutionID,
		OpportunityID:    execution.OpportunityID,
		Quantity:         execution.Quantity,
		Brand:            execution.Brand,
		Denomination:     execution.Denomination,
		BuyMarket:        execution.BuyMarket,
		SellMarket:       execution.SellMarket,
		NetProfitPerUnit: execution.NetProfitPerUnit,
		NetProfitTotal:   execution.NetProfitTotal,
		ExecutedAt:       execution.ExecutedAt,
		Status:           execution.Status,
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

// RecentExecutions returns the most recent fills, newest first.
func (s *Store) RecentExecutions(ctx context.Context, limit int) ([]types.Execution, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []ExecutionRecord
	if err := s.db.WithContext(ctx).
		Order("executed_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}

	executions := make([]types.Execution, 0, len(records))
	for _, record := range records {
		executions = append(executions, types.Execution{
			ExecutionID:      record.ExecutionID,
			OpportunityID:    record.OpportunityID,
			Quantity:         record.Quantity,
			Brand:            record.Brand,
			Denomination:     record.Denomination,
			BuyMarket:        record.BuyMarket,
			SellMarket:       record.SellMarket,
			NetProfitPerUnit: record.NetProfitPerUnit,
			NetProfitTotal:   record.NetProfitTotal,
			ExecutedAt:       record.ExecutedAt,
			Status:           record.Status,
		})
	}
	return executions, nil
}
