package arbitrage

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardarb/internal/config"
	"cardarb/internal/risk"
	"cardarb/internal/types"
)

func testSettings() config.Settings {
	return config.Settings{
		ProfitThresholdBps:      75,
		MaxQuoteAgeMs:           4500,
		FxSpreadBps:             15,
		NetworkFeeBps:           10,
		DefaultCardQuantity:     1,
		MaxCardsPerTrade:        25,
		MaxOpportunitiesTracked: 50,
	}
}

func newTestEngine(cfg config.Settings, now time.Time) *Engine {
	riskEngine := risk.NewEngineWithClock(cfg, func() time.Time { return now })
	engine := NewEngine(riskEngine, cfg, zerolog.Nop())
	engine.now = func() time.Time { return now }
	return engine
}

func leg(marketID string, side types.Side, price float64, units int, now time.Time) types.Quote {
	return types.Quote{
		MarketID:       marketID,
		MarketName:     marketID,
		Side:           side,
		Brand:          "Amazon",
		Denomination:   50,
		Currency:       "USD",
		Price:          price,
		AvailableUnits: units,
		ReceivedAt:     now,
	}
}

func book(brand string, denom int, sell, buy []types.Quote) types.BookSnapshot {
	return types.BookSnapshot{Brand: brand, Denomination: denom, Sell: sell, Buy: buy}
}

func TestEvaluate_EmitsApprovedOpportunity(t *testing.T) {
	now := time.Now()
	engine := newTestEngine(testSettings(), now)

	books := []types.BookSnapshot{
		book("Amazon", 50, []types.Quote{leg("venue-a", types.SideSell, 44.00, 10, now)},
			[]types.Quote{leg("venue-b", types.SideBuy, 48.00, 8, now)}),
	}

	opportunities := engine.Evaluate(books)
	require.Len(t, opportunities, 1)

	opp := opportunities[0]
	assert.Equal(t, "amazon-50-venue-a-venue-b", opp.ID)
	assert.Equal(t, "venue-a", opp.BuyLeg.MarketID)
	assert.Equal(t, "venue-b", opp.SellLeg.MarketID)
	assert.Equal(t, 8, opp.Quantity)
	assert.Equal(t, types.OpportunityOpen, opp.Status)
	assert.Greater(t, opp.Metrics.NetProfitPerUnit, 0.0)
	assert.GreaterOrEqual(t, opp.Metrics.NetSpreadBps, 75.0)
}

func TestEvaluate_SkipsIncompleteAndSameVenueBooks(t *testing.T) {
	now := time.Now()
	engine := newTestEngine(testSettings(), now)

	books := []types.BookSnapshot{
		book("Amazon", 50, []types.Quote{leg("venue-a", types.SideSell, 44.00, 10, now)}, nil),
		book("Apple", 25, nil, []types.Quote{leg("venue-b", types.SideBuy, 24.00, 10, now)}),
		book("PlayStation", 100, []types.Quote{leg("venue-c", types.SideSell, 88.00, 10, now)},
			[]types.Quote{leg("venue-c", types.SideBuy, 96.00, 10, now)}),
	}

	assert.Empty(t, engine.Evaluate(books))
}

func TestEvaluate_SkipsRejectedPairs(t *testing.T) {
	now := time.Now()
	engine := newTestEngine(testSettings(), now)

	// Spread too thin to clear the profit threshold.
	books := []types.BookSnapshot{
		book("Amazon", 50, []types.Quote{leg("venue-a", types.SideSell, 47.90, 10, now)},
			[]types.Quote{leg("venue-b", types.SideBuy, 48.00, 8, now)}),
	}

	assert.Empty(t, engine.Evaluate(books))
}

func TestEvaluate_RanksByNetSpreadAndTruncates(t *testing.T) {
	now := time.Now()
	cfg := testSettings()
	cfg.MaxOpportunitiesTracked = 3
	engine := newTestEngine(cfg, now)

	var books []types.BookSnapshot
	// Wider sell discount per book means a fatter spread.
	for i := 0; i < 5; i++ {
		sellPrice := 46.00 - float64(i)
		books = append(books, types.BookSnapshot{
			Brand:        fmt.Sprintf("Brand%d", i),
			Denomination: 50,
			Sell:         []types.Quote{leg(fmt.Sprintf("src-%d", i), types.SideSell, sellPrice, 10, now)},
			Buy:          []types.Quote{leg(fmt.Sprintf("dst-%d", i), types.SideBuy, 48.00, 10, now)},
		})
	}

	opportunities := engine.Evaluate(books)
	require.Len(t, opportunities, 3)
	for i := 1; i < len(opportunities); i++ {
		assert.GreaterOrEqual(t,
			opportunities[i-1].Metrics.NetSpreadBps,
			opportunities[i].Metrics.NetSpreadBps)
	}
	// The widest spreads survive truncation.
	assert.Equal(t, "Brand4", opportunities[0].Brand)
}

func TestEvaluate_OnlyBestLegsConsidered(t *testing.T) {
	now := time.Now()
	engine := newTestEngine(testSettings(), now)

	// venue-a is cheapest but has no stock; deeper levels are ignored so the
	// whole book produces no opportunity.
	books := []types.BookSnapshot{
		book("Amazon", 50,
			[]types.Quote{
				leg("venue-a", types.SideSell, 44.00, 0, now),
				leg("venue-c", types.SideSell, 44.50, 10, now),
			},
			[]types.Quote{leg("venue-b", types.SideBuy, 48.00, 8, now)}),
	}

	assert.Empty(t, engine.Evaluate(books))
}
