// Package arbitrage turns order-book snapshots into ranked, risk-approved
// opportunities. Only the single best bid/ask per book is considered; deeper
// book levels are out of scope for now.
package arbitrage

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cardarb/internal/config"
	"cardarb/internal/risk"
	"cardarb/internal/types"
)

// Engine generates candidate opportunities from consolidated books.
type Engine struct {
	riskEngine *risk.Engine
	cfg        config.Settings
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEngine creates an arbitrage engine.
func NewEngine(riskEngine *risk.Engine, cfg config.Settings, logger zerolog.Logger) *Engine {
	return &Engine{
		riskEngine: riskEngine,
		cfg:        cfg,
		logger:     logger.With().Str("component", "arbitrage_engine").Logger(),
		now:        time.Now,
	}
}

// Evaluate pairs the cheapest sell-side quote with the richest buy-side quote
// of every book, filters through the risk engine, and returns the approved
// opportunities sorted by net spread descending, truncated to the tracking
// bound.
func (e *Engine) Evaluate(books []types.BookSnapshot) []types.Opportunity {
	var opportunities []types.Opportunity

	for _, book := range books {
		if len(book.Sell) == 0 || len(book.Buy) == 0 {
			continue
		}
		bestSource := book.Sell[0]      // cheapest venue to buy from
		bestDestination := book.Buy[0]  // richest venue to sell into
		if bestSource.MarketID == bestDestination.MarketID {
			continue
		}

		assessment := e.riskEngine.EvaluatePair(bestSource, bestDestination)
		if !assessment.Approved {
			continue
		}

		opportunities = append(opportunities, types.Opportunity{
			ID:           OpportunityID(book.Brand, book.Denomination, bestSource.MarketID, bestDestination.MarketID),
			Brand:        book.Brand,
			Denomination: book.Denomination,
			BuyLeg:       bestSource,
			SellLeg:      bestDestination,
			Quantity:     assessment.Quantity,
			Metrics: types.OpportunityMetrics{
				NetProfitPerUnit: round2(assessment.NetProfitPerUnit),
				NetSpreadBps:     round2(assessment.NetSpreadBps),
				GrossSpreadBps:   round2(assessment.GrossSpreadBps),
				Notional:         round2(assessment.Notional),
			},
			CreatedAt: e.now(),
			Status:    types.OpportunityOpen,
			Issues:    assessment.Issues,
		})
	}

	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].Metrics.NetSpreadBps > opportunities[j].Metrics.NetSpreadBps
	})
	if len(opportunities) > e.cfg.MaxOpportunitiesTracked {
		opportunities = opportunities[:e.cfg.MaxOpportunitiesTracked]
	}
	return opportunities
}

// OpportunityID derives the deterministic id for a pairing.
func OpportunityID(brand string, denomination int, buyMarketID, sellMarketID string) string {
	return fmt.Sprintf("%s-%d-%s-%s", strings.ToLower(brand), denomination, buyMarketID, sellMarketID)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
