package connector

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"cardarb/internal/config"
	"cardarb/internal/types"
)

var mockDenominations = []int{25, 50, 100, 200}

// MockConnector generates synthetic quotes for each supported brand on every
// tick. It is used for demos and local development without any network
// dependency and produces the same normalized shape as the HTTP connector.
type MockConnector struct {
	mkt config.Marketplace
	rng *rand.Rand
	now func() time.Time
}

// NewMockConnector creates a simulated venue.
func NewMockConnector(mkt config.Marketplace) *MockConnector {
	return &MockConnector{
		mkt: mkt,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// Marketplace returns the connector's configuration.
func (c *MockConnector) Marketplace() config.Marketplace {
	return c.mkt
}

// FetchQuotes returns one randomized quote per supported brand. Sell-side
// venues price below face value (we buy at a discount); buy-side venues price
// closer to face (we sell near par).
func (c *MockConnector) FetchQuotes(_ context.Context) ([]types.Quote, error) {
	quotes := make([]types.Quote, 0, len(c.mkt.SupportedBrands))
	for _, brand := range c.mkt.SupportedBrands {
		denom := mockDenominations[c.rng.Intn(len(mockDenominations))]

		bias := 0.98
		if c.mkt.Side == types.SideSell {
			bias = 0.92
		}
		basePrice := float64(denom) * bias
		jitter := (c.rng.Float64() - 0.5) * 2
		price := math.Round((basePrice+jitter)*100) / 100

		receivedAt := c.now()
		quotes = append(quotes, types.Quote{
			ID:             fmt.Sprintf("%s-%s-%d-%d", c.mkt.ID, brand, denom, receivedAt.UnixMilli()),
			MarketID:       c.mkt.ID,
			MarketName:     c.mkt.Name,
			Side:           c.mkt.Side,
			Brand:          brand,
			Denomination:   denom,
			Currency:       c.mkt.Currency,
			Price:          price,
			AvailableUnits: c.rng.Intn(25) + 1,
			MinPurchaseQty: 1,
			FeeBps:         c.mkt.FeeBps,
			SlippageBps:    c.mkt.SlippageBps,
			ReceivedAt:     receivedAt,
			VenueTimestamp: receivedAt,
		})
	}
	return quotes, nil
}
