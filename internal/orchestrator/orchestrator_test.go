package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardarb/internal/config"
	"cardarb/internal/database"
	"cardarb/internal/types"
)

func testSettings() config.Settings {
	return config.Settings{
		Port:                    "8080",
		SQLitePath:              "unused",
		JWTSecret:               "secret",
		ProfitThresholdBps:      75,
		MaxQuoteAgeMs:           4500,
		FxSpreadBps:             15,
		NetworkFeeBps:           10,
		DefaultCardQuantity:     1,
		MaxCardsPerTrade:        25,
		MaxOpportunitiesTracked: 50,
		SSEHeartbeatMs:          15000,
	}
}

func newTestOrchestrator(t *testing.T, markets []config.Marketplace) *Orchestrator {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store := database.NewStore(db, zerolog.Nop())

	orch := New(testSettings(), markets, store, zerolog.Nop())
	require.NoError(t, orch.Start(context.Background()))
	t.Cleanup(orch.Stop)
	return orch
}

func quote(marketID string, side types.Side, price float64, units int) types.Quote {
	return types.Quote{
		ID:             marketID + "-amazon",
		MarketID:       marketID,
		MarketName:     marketID,
		Side:           side,
		Brand:          "Amazon",
		Denomination:   50,
		Currency:       "USD",
		Price:          price,
		AvailableUnits: units,
		ReceivedAt:     time.Now(),
	}
}

func spreadBatch() []types.Quote {
	return []types.Quote{
		quote("venue-a", types.SideSell, 44.00, 10),
		quote("venue-b", types.SideBuy, 48.00, 8),
	}
}

func TestOrchestrator_TracksOpportunitiesFromIngest(t *testing.T) {
	orch := newTestOrchestrator(t, nil)

	var published [][]types.Opportunity
	orch.Opportunities.Subscribe(func(opps []types.Opportunity) {
		published = append(published, opps)
	})

	orch.IngestQuotes(spreadBatch())

	opps := orch.GetOpportunities()
	require.Len(t, opps, 1)
	assert.Equal(t, "amazon-50-venue-a-venue-b", opps[0].ID)
	assert.Equal(t, types.OpportunityOpen, opps[0].Status)
	assert.GreaterOrEqual(t, opps[0].AgeMs, int64(0))
	require.Len(t, published, 1)
}

func TestOrchestrator_PreservesCreatedAtAcrossCycles(t *testing.T) {
	orch := newTestOrchestrator(t, nil)

	orch.IngestQuotes(spreadBatch())
	first := orch.GetOpportunities()
	require.Len(t, first, 1)

	time.Sleep(20 * time.Millisecond)
	orch.IngestQuotes(spreadBatch())
	second := orch.GetOpportunities()
	require.Len(t, second, 1)

	assert.Equal(t, first[0].CreatedAt, second[0].CreatedAt)
	assert.GreaterOrEqual(t, second[0].AgeMs, int64(20))
}

func TestOrchestrator_DropsEvictedOpportunities(t *testing.T) {
	orch := newTestOrchestrator(t, nil)

	orch.IngestQuotes(spreadBatch())
	require.Len(t, orch.GetOpportunities(), 1)

	// venue-b undercuts on the sell side too: best source and destination
	// collapse to the same venue and the pairing disappears.
	orch.IngestQuotes([]types.Quote{quote("venue-b", types.SideSell, 43.00, 10)})
	assert.Empty(t, orch.GetOpportunities())
}

func TestOrchestrator_ExecuteOpportunity(t *testing.T) {
	orch := newTestOrchestrator(t, nil)
	orch.IngestQuotes(spreadBatch())

	var executions []types.Execution
	orch.Executions.Subscribe(func(exec types.Execution) {
		executions = append(executions, exec)
	})

	opps := orch.GetOpportunities()
	require.Len(t, opps, 1)

	exec, err := orch.ExecuteOpportunity(context.Background(), opps[0].ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 8, exec.Quantity) // clamped by sell-leg inventory
	assert.Equal(t, "filled", exec.Status)
	require.Len(t, executions, 1)

	// Registry reflects the execution.
	opps = orch.GetOpportunities()
	require.Len(t, opps, 1)
	assert.Equal(t, types.OpportunityExecuted, opps[0].Status)
	require.NotNil(t, opps[0].LastExecution)

	// And the fill is durable.
	recent, err := orch.GetRecentExecutions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, exec.ExecutionID, recent[0].ExecutionID)
	assert.Equal(t, exec.NetProfitTotal, recent[0].NetProfitTotal)
}

func TestOrchestrator_ExecuteUnknownOpportunity(t *testing.T) {
	orch := newTestOrchestrator(t, nil)

	_, err := orch.ExecuteOpportunity(context.Background(), "amazon-50-x-y", 1)
	assert.ErrorIs(t, err, ErrOpportunityNotFound)
}

func TestOrchestrator_MetricsAndHealth(t *testing.T) {
	markets := []config.Marketplace{
		{
			ID:                "mock-sell-001",
			Name:              "Mock Seller Desk",
			Side:              types.SideSell,
			Adapter:           config.AdapterMock,
			Enabled:           true,
			PollingIntervalMs: 500,
			TimeoutMs:         500,
			Currency:          "USD",
			Region:            "US",
			SupportedBrands:   []string{"Amazon"},
		},
		{
			ID:                "dark-pool",
			Name:              "Dark Pool",
			Side:              types.SideBuy,
			Adapter:           config.AdapterMock,
			Enabled:           false,
			PollingIntervalMs: 500,
			TimeoutMs:         500,
			Currency:          "USD",
			Region:            "US",
			SupportedBrands:   []string{"Amazon"},
		},
	}
	orch := newTestOrchestrator(t, markets)

	require.Eventually(t, func() bool {
		metrics := orch.GetMetrics()
		return metrics.MarketsHealthy == 1
	}, 2*time.Second, 20*time.Millisecond)

	health := orch.GetMarketHealth()
	require.Len(t, health, 2)
	assert.Equal(t, "dark-pool", health[0].MarketID)
	assert.Equal(t, types.HealthDisabled, health[0].State)
	assert.Equal(t, types.HealthHealthy, health[1].State)

	metrics := orch.GetMetrics()
	assert.Equal(t, 2, metrics.MarketsTracked)
	assert.False(t, metrics.LastRefresh.IsZero())
}

func TestOrchestrator_OrderBooksSnapshotExposed(t *testing.T) {
	orch := newTestOrchestrator(t, nil)
	assert.Empty(t, orch.GetOrderBooks())

	orch.IngestQuotes(spreadBatch())
	books := orch.GetOrderBooks()
	require.Len(t, books, 1)
	assert.Equal(t, "Amazon", books[0].Brand)
	assert.Len(t, books[0].Sell, 1)
	assert.Len(t, books[0].Buy, 1)
}
