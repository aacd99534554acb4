// Package connector polls external marketplaces for gift-card quotes. Each
// configured venue gets its own Runner goroutine; venue failures degrade that
// connector's health but never stop polling or affect other connectors.
package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cardarb/internal/config"
	"cardarb/internal/events"
	"cardarb/internal/types"
)

// Connector fetches a batch of normalized quotes from one venue.
type Connector interface {
	Marketplace() config.Marketplace
	FetchQuotes(ctx context.Context) ([]types.Quote, error)
}

// NewConnector builds a concrete connector for the marketplace's adapter.
func NewConnector(mkt config.Marketplace, logger zerolog.Logger) (Connector, error) {
	switch mkt.Adapter {
	case config.AdapterHTTP:
		return NewHTTPConnector(mkt, logger), nil
	case config.AdapterMock:
		return NewMockConnector(mkt), nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", mkt.Adapter)
	}
}

// Runner drives one connector on its polling interval and tracks its health.
type Runner struct {
	conn   Connector
	logger zerolog.Logger

	mu     sync.RWMutex
	health types.MarketHealth

	cancel context.CancelFunc
	done   chan struct{}

	// Quotes carries each non-empty poll batch; Heartbeat carries the health
	// state after every tick, success or failure.
	Quotes    *events.Stream[[]types.Quote]
	Heartbeat *events.Stream[types.MarketHealth]
}

// NewRunner wraps a connector in a polling loop. The runner starts in the
// initializing state, or disabled when the marketplace is disabled.
func NewRunner(conn Connector, logger zerolog.Logger) *Runner {
	mkt := conn.Marketplace()
	state := types.HealthInitializing
	if !mkt.Enabled {
		state = types.HealthDisabled
	}
	return &Runner{
		conn:   conn,
		logger: logger.With().Str("connector", mkt.ID).Logger(),
		health: types.MarketHealth{
			MarketID: mkt.ID,
			Market:   mkt.Name,
			State:    state,
		},
		Quotes:    events.NewStream[[]types.Quote](),
		Heartbeat: events.NewStream[types.MarketHealth](),
	}
}

// Start begins polling: one immediate tick, then one tick per interval.
// Ticks never overlap; each completes before the next is scheduled.
// Disabled connectors never start.
func (r *Runner) Start(ctx context.Context) {
	mkt := r.conn.Marketplace()
	if !mkt.Enabled {
		r.logger.Warn().Msg("connector disabled via configuration")
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		r.tick(ctx)

		interval := time.Duration(mkt.PollingIntervalMs) * time.Millisecond
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.tick(ctx)
			}
		}
	}()
}

// Stop cancels polling and waits for the in-flight tick to finish.
func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// Health returns the current connector health.
func (r *Runner) Health() types.MarketHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.health
}

func (r *Runner) tick(ctx context.Context) {
	started := time.Now()
	quotes, err := r.conn.FetchQuotes(ctx)
	if err != nil {
		r.mu.Lock()
		r.health.State = types.HealthDegraded
		r.health.LastError = err.Error()
		// A failed tick has no meaningful latency.
		r.health.LastLatencyMs = nil
		health := r.health
		r.mu.Unlock()

		r.logger.Error().Err(err).Msg("failed to fetch quotes")
		r.Heartbeat.Publish(health)
		return
	}

	if len(quotes) > 0 {
		r.Quotes.Publish(quotes)
	}

	now := time.Now()
	latency := now.Sub(started).Milliseconds()
	r.mu.Lock()
	r.health.State = types.HealthHealthy
	r.health.LastError = ""
	r.health.LastSuccessAt = &now
	r.health.LastLatencyMs = &latency
	health := r.health
	r.mu.Unlock()

	r.Heartbeat.Publish(health)
}
