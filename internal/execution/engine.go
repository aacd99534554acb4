// Package execution records simulated fills against tracked opportunities.
// Risk is re-validated on every execute call: an opportunity may have been
// published against quotes that went stale before the client acted on it.
package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cardarb/internal/config"
	"cardarb/internal/risk"
	"cardarb/internal/types"
)

var (
	// ErrNotExecutable is returned when the clamped quantity is zero or less.
	ErrNotExecutable = errors.New("requested quantity is not executable")
	// ErrRiskRejected is returned when execution-time re-validation fails.
	ErrRiskRejected = errors.New("opportunity failed risk validation")
)

// Store persists execution records.
type Store interface {
	RecordExecution(ctx context.Context, execution types.Execution) error
}

// Engine validates and records executions.
type Engine struct {
	riskEngine *risk.Engine
	store      Store
	cfg        config.Settings
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEngine creates an execution engine.
func NewEngine(riskEngine *risk.Engine, store Store, cfg config.Settings, logger zerolog.Logger) *Engine {
	return &Engine{
		riskEngine: riskEngine,
		store:      store,
		cfg:        cfg,
		logger:     logger.With().Str("component", "execution_engine").Logger(),
		now:        time.Now,
	}
}

// Execute clamps the requested quantity, re-runs the risk evaluation against
// the opportunity's legs, persists the fill, and returns it. A zero
// requestedQuantity means the configured default; a negative one enters the
// clamp as-is and is rejected as not executable.
func (e *Engine) Execute(ctx context.Context, opp types.Opportunity, requestedQuantity int) (types.Execution, error) {
	if requestedQuantity == 0 {
		requestedQuantity = e.cfg.DefaultCardQuantity
	}
	quantity := requestedQuantity
	if opp.Quantity < quantity {
		quantity = opp.Quantity
	}
	if e.cfg.MaxCardsPerTrade < quantity {
		quantity = e.cfg.MaxCardsPerTrade
	}
	if quantity <= 0 {
		return types.Execution{}, ErrNotExecutable
	}

	assessment := e.riskEngine.EvaluatePair(opp.BuyLeg, opp.SellLeg)
	if !assessment.Approved {
		return types.Execution{}, fmt.Errorf("%w: %s", ErrRiskRejected, strings.Join(assessment.Issues, ", "))
	}

	execution := types.Execution{
		ExecutionID:      uuid.New().String(),
		OpportunityID:    opp.ID,
		Quantity:         quantity,
		Brand:            opp.Brand,
		Denomination:     opp.Denomination,
		BuyMarket:        opp.BuyLeg.MarketName,
		SellMarket:       opp.SellLeg.MarketName,
		NetProfitPerUnit: round2(assessment.NetProfitPerUnit),
		NetProfitTotal:   round2(assessment.NetProfitPerUnit * float64(quantity)),
		ExecutedAt:       e.now(),
		Status:           "filled",
	}

	if err := e.store.RecordExecution(ctx, execution); err != nil {
		return types.Execution{}, fmt.Errorf("record execution: %w", err)
	}

	e.logger.Info().
		Str("execution_id", execution.ExecutionID).
		Str("opportunity_id", execution.OpportunityID).
		Int("quantity", execution.Quantity).
		Float64("net_profit_total", execution.NetProfitTotal).
		Msg("execution recorded")

	return execution, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
