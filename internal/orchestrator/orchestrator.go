// Package orchestrator wires connectors, the price cache, the arbitrage and
// execution engines, and the store into one engine instance. It is the only
// component the transport layer talks to.
package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cardarb/internal/arbitrage"
	"cardarb/internal/config"
	"cardarb/internal/connector"
	"cardarb/internal/database"
	"cardarb/internal/events"
	"cardarb/internal/execution"
	"cardarb/internal/pricecache"
	"cardarb/internal/risk"
	"cardarb/internal/types"
)

// ErrOpportunityNotFound is returned when an execute call names an id that is
// no longer tracked; it may have been evicted by a later evaluation cycle.
var ErrOpportunityNotFound = errors.New("opportunity no longer available")

// Orchestrator owns the opportunity registry and the connector fleet.
type Orchestrator struct {
	cfg     config.Settings
	markets []config.Marketplace
	logger  zerolog.Logger

	cache      *pricecache.Cache
	riskEngine *risk.Engine
	arbEngine  *arbitrage.Engine
	execEngine *execution.Engine
	store      *database.Store

	runners []*connector.Runner

	mu            sync.RWMutex
	opportunities map[string]types.Opportunity
	ranked        []string
	health        map[string]types.MarketHealth
	books         []types.BookSnapshot

	// Published to the transport layer. Delivery is synchronous and in-order.
	Opportunities *events.Stream[[]types.Opportunity]
	MarketHealth  *events.Stream[[]types.MarketHealth]
	Executions    *events.Stream[types.Execution]
}

// New creates an orchestrator over the given store and marketplace fleet.
func New(cfg config.Settings, markets []config.Marketplace, store *database.Store, logger zerolog.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:           cfg,
		markets:       markets,
		logger:        logger.With().Str("component", "orchestrator").Logger(),
		cache:         pricecache.NewCache(time.Duration(cfg.MaxQuoteAgeMs) * time.Millisecond),
		store:         store,
		opportunities: make(map[string]types.Opportunity),
		health:        make(map[string]types.MarketHealth),
		Opportunities: events.NewStream[[]types.Opportunity](),
		MarketHealth:  events.NewStream[[]types.MarketHealth](),
		Executions:    events.NewStream[types.Execution](),
	}
	o.riskEngine = risk.NewEngine(cfg)
	o.arbEngine = arbitrage.NewEngine(o.riskEngine, cfg, logger)
	o.execEngine = execution.NewEngine(o.riskEngine, store, cfg, logger)

	o.cache.Updated.Subscribe(o.onBooksUpdated)
	return o
}

// Start initializes the store schema, builds one connector per configured
// marketplace, and begins polling the enabled ones. A schema failure is
// fatal; a bad marketplace definition only skips that venue.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.store.InitSchema(); err != nil {
		return err
	}

	if len(o.markets) == 0 {
		o.logger.Warn().Msg("no marketplace connectors configured; system will idle until configuration is provided")
	}

	for _, mkt := range o.markets {
		conn, err := connector.NewConnector(mkt, o.logger)
		if err != nil {
			o.logger.Warn().Str("adapter", mkt.Adapter).Str("marketplace", mkt.ID).Err(err).Msg("no connector for adapter")
			continue
		}
		runner := connector.NewRunner(conn, o.logger)

		runner.Quotes.Subscribe(func(quotes []types.Quote) {
			o.cache.Ingest(quotes)
		})
		runner.Heartbeat.Subscribe(func(health types.MarketHealth) {
			o.mu.Lock()
			o.health[health.MarketID] = health
			o.mu.Unlock()
			o.MarketHealth.Publish(o.GetMarketHealth())
		})

		o.mu.Lock()
		o.health[mkt.ID] = runner.Health()
		o.mu.Unlock()

		o.runners = append(o.runners, runner)
		runner.Start(ctx)
	}

	o.logger.Info().Int("total_connectors", len(o.runners)).Msg("orchestrator online")
	return nil
}

// Stop halts all connector polling. In-flight store writes are not drained;
// per-tick error isolation covers them.
func (o *Orchestrator) Stop() {
	for _, runner := range o.runners {
		runner.Stop()
	}
}

// onBooksUpdated runs one evaluation cycle against the fresh snapshot and
// merges the results into the registry, preserving CreatedAt for pairings
// that persist across cycles so clients can show opportunity age.
func (o *Orchestrator) onBooksUpdated(snapshot []types.BookSnapshot) {
	opportunities := o.arbEngine.Evaluate(snapshot)

	o.mu.Lock()
	o.books = snapshot
	next := make(map[string]types.Opportunity, len(opportunities))
	ranked := make([]string, 0, len(opportunities))
	for i, opp := range opportunities {
		if existing, ok := o.opportunities[opp.ID]; ok {
			opp.CreatedAt = existing.CreatedAt
			opportunities[i].CreatedAt = existing.CreatedAt
		}
		next[opp.ID] = opp
		ranked = append(ranked, opp.ID)
	}
	o.opportunities = next
	o.ranked = ranked
	o.mu.Unlock()

	// Best effort: a persistence failure never rolls back in-memory state.
	for _, opp := range opportunities {
		if err := o.store.RecordOpportunity(context.Background(), opp); err != nil {
			o.logger.Error().Err(err).Str("opportunity_id", opp.ID).Msg("failed to persist opportunity")
		}
	}

	o.Opportunities.Publish(o.GetOpportunities())
}

// ExecuteOpportunity executes a tracked opportunity by id. The execution
// engine re-validates risk against the stored legs before recording the fill.
func (o *Orchestrator) ExecuteOpportunity(ctx context.Context, id string, quantity int) (types.Execution, error) {
	o.mu.RLock()
	opp, ok := o.opportunities[id]
	o.mu.RUnlock()
	if !ok {
		return types.Execution{}, ErrOpportunityNotFound
	}

	exec, err := o.execEngine.Execute(ctx, opp, quantity)
	if err != nil {
		return types.Execution{}, err
	}

	o.mu.Lock()
	if tracked, ok := o.opportunities[id]; ok {
		tracked.Status = types.OpportunityExecuted
		executedAt := exec.ExecutedAt
		tracked.LastExecution = &executedAt
		o.opportunities[id] = tracked
	}
	o.mu.Unlock()

	o.Executions.Publish(exec)
	return exec, nil
}

// GetOpportunities returns the tracked opportunities in rank order with their
// current age populated.
func (o *Orchestrator) GetOpportunities() []types.Opportunity {
	o.mu.RLock()
	defer o.mu.RUnlock()
	now := time.Now()
	out := make([]types.Opportunity, 0, len(o.ranked))
	for _, id := range o.ranked {
		opp, ok := o.opportunities[id]
		if !ok {
			continue
		}
		opp.AgeMs = now.Sub(opp.CreatedAt).Milliseconds()
		out = append(out, opp)
	}
	return out
}

// GetMarketHealth returns per-connector health sorted by market id.
func (o *Orchestrator) GetMarketHealth() []types.MarketHealth {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]types.MarketHealth, 0, len(o.health))
	for _, health := range o.health {
		out = append(out, health)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// GetOrderBooks returns the latest consolidated book snapshot.
func (o *Orchestrator) GetOrderBooks() []types.BookSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.books
}

// GetMetrics returns aggregate engine counters.
func (o *Orchestrator) GetMetrics() types.Metrics {
	health := o.GetMarketHealth()
	healthy := 0
	for _, entry := range health {
		if entry.State == types.HealthHealthy {
			healthy++
		}
	}
	o.mu.RLock()
	total := len(o.opportunities)
	o.mu.RUnlock()
	return types.Metrics{
		TotalOpportunities: total,
		MarketsTracked:     len(o.runners),
		MarketsHealthy:     healthy,
		LastRefresh:        time.Now(),
	}
}

// GetRecentExecutions reads back the most recent fills from the store.
func (o *Orchestrator) GetRecentExecutions(ctx context.Context, limit int) ([]types.Execution, error) {
	return o.store.RecentExecutions(ctx, limit)
}

// IngestQuotes feeds a quote batch straight into the price cache. Exposed for
// tests and embedded setups that bypass connector polling.
func (o *Orchestrator) IngestQuotes(quotes []types.Quote) {
	o.cache.Ingest(quotes)
}
