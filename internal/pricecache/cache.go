// Package pricecache consolidates venue quotes into per-(brand, denomination)
// order books and publishes full snapshots after every ingest.
package pricecache

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cardarb/internal/events"
	"cardarb/internal/types"
)

type book struct {
	brand        string
	denomination int
	sell         map[string]types.Quote
	buy          map[string]types.Quote
}

// Cache owns the consolidated order books. It is safe for concurrent use by
// multiple connector goroutines.
type Cache struct {
	mu          sync.Mutex
	maxQuoteAge time.Duration
	books       map[string]*book
	now         func() time.Time

	// Updated carries a full snapshot after every ingest batch.
	Updated *events.Stream[[]types.BookSnapshot]
}

// NewCache creates a cache that purges quotes older than maxQuoteAge on every
// ingest. There is no background sweep: a book with no traffic keeps stale
// entries until the next ingest touches the cache, and the risk engine's
// per-leg freshness check remains the authoritative safety net.
func NewCache(maxQuoteAge time.Duration) *Cache {
	return &Cache{
		maxQuoteAge: maxQuoteAge,
		books:       make(map[string]*book),
		now:         time.Now,
		Updated:     events.NewStream[[]types.BookSnapshot](),
	}
}

func bookKey(brand string, denomination int) string {
	return strings.ToLower(brand) + "::" + strconv.Itoa(denomination)
}

// Ingest applies a batch of quotes (last write wins per venue per side),
// purges stale entries from every book, and publishes a snapshot.
func (c *Cache) Ingest(quotes []types.Quote) {
	c.mu.Lock()
	for _, quote := range quotes {
		key := bookKey(quote.Brand, quote.Denomination)
		b, ok := c.books[key]
		if !ok {
			b = &book{
				brand:        quote.Brand,
				denomination: quote.Denomination,
				sell:         make(map[string]types.Quote),
				buy:          make(map[string]types.Quote),
			}
			c.books[key] = b
		}
		switch quote.Side {
		case types.SideSell:
			b.sell[quote.MarketID] = quote
		case types.SideBuy:
			b.buy[quote.MarketID] = quote
		}
	}
	c.purgeStaleLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.Updated.Publish(snapshot)
}

// Snapshot returns the current consolidated books.
func (c *Cache) Snapshot() []types.BookSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) purgeStaleLocked() {
	now := c.now()
	for _, b := range c.books {
		for marketID, quote := range b.sell {
			if now.Sub(quote.ReceivedAt) > c.maxQuoteAge {
				delete(b.sell, marketID)
			}
		}
		for marketID, quote := range b.buy {
			if now.Sub(quote.ReceivedAt) > c.maxQuoteAge {
				delete(b.buy, marketID)
			}
		}
	}
}

func (c *Cache) snapshotLocked() []types.BookSnapshot {
	result := make([]types.BookSnapshot, 0, len(c.books))
	for _, b := range c.books {
		snap := types.BookSnapshot{
			Brand:        b.brand,
			Denomination: b.denomination,
			Sell:         sortedQuotes(b.sell, func(a, z types.Quote) bool { return a.Price < z.Price }),
			Buy:          sortedQuotes(b.buy, func(a, z types.Quote) bool { return a.Price > z.Price }),
		}
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Brand != result[j].Brand {
			return result[i].Brand < result[j].Brand
		}
		return result[i].Denomination < result[j].Denomination
	})
	return result
}

func sortedQuotes(m map[string]types.Quote, less func(a, z types.Quote) bool) []types.Quote {
	out := make([]types.Quote, 0, len(m))
	for _, q := range m {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
