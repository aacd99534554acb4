package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardarb/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	store := NewStore(db, zerolog.Nop())
	require.NoError(t, store.InitSchema())
	return store
}

func testOpportunity(id string, netSpread float64, createdAt time.Time) types.Opportunity {
	return types.Opportunity{
		ID:           id,
		Brand:        "Amazon",
		Denomination: 50,
		BuyLeg:       types.Quote{MarketName: "Venue A"},
		SellLeg:      types.Quote{MarketName: "Venue B"},
		Quantity:     8,
		Metrics: types.OpportunityMetrics{
			NetProfitPerUnit: 1.90,
			NetSpreadBps:     netSpread,
			GrossSpreadBps:   1111.11,
			Notional:         144,
		},
		CreatedAt: createdAt,
	}
}

func TestRecordOpportunity_UpsertsByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createdAt := time.Now().Truncate(time.Millisecond)

	opp := testOpportunity("amazon-50-a-b", 1050, createdAt)
	require.NoError(t, store.RecordOpportunity(ctx, opp))

	// Same id, fresher metrics: must replace, not duplicate.
	opp.Metrics.NetSpreadBps = 900
	require.NoError(t, store.RecordOpportunity(ctx, opp))

	var count int64
	require.NoError(t, store.db.Model(&OpportunityRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var record OpportunityRecord
	require.NoError(t, store.db.First(&record, "id = ?", "amazon-50-a-b").Error)
	assert.Equal(t, 900.0, record.NetSpreadBps)
}

func TestRecordExecution_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	executedAt := time.Now().Truncate(time.Millisecond)

	opp := testOpportunity("amazon-50-a-b", 1050, executedAt)
	require.NoError(t, store.RecordOpportunity(ctx, opp))

	execution := types.Execution{
		ExecutionID:      "exec-1",
		OpportunityID:    opp.ID,
		Quantity:         8,
		Brand:            opp.Brand,
		Denomination:     opp.Denomination,
		BuyMarket:        "Venue A",
		SellMarket:       "Venue B",
		NetProfitPerUnit: 1.90,
		NetProfitTotal:   15.18,
		ExecutedAt:       executedAt,
		Status:           "filled",
	}
	require.NoError(t, store.RecordExecution(ctx, execution))

	got, err := store.RecentExecutions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, execution.ExecutionID, got[0].ExecutionID)
	assert.Equal(t, execution.NetProfitTotal, got[0].NetProfitTotal)
	assert.Equal(t, "filled", got[0].Status)
}

func TestRecentExecutions_NewestFirstAndLimited(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		execution := types.Execution{
			ExecutionID:   "exec-" + string(rune('a'+i)),
			OpportunityID: "opp",
			Quantity:      1,
			ExecutedAt:    base.Add(time.Duration(i) * time.Second),
			Status:        "filled",
		}
		require.NoError(t, store.RecordExecution(ctx, execution))
	}

	got, err := store.RecentExecutions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "exec-e", got[0].ExecutionID)
	assert.True(t, got[0].ExecutedAt.After(got[1].ExecutedAt))

	// Non-positive limit falls back to the default page size.
	all, err := store.RecentExecutions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
