// Package risk implements the admission-control layer. EvaluatePair is pure:
// the same legs and clock value always yield the same decision, which is what
// makes the execute-time re-validation a reliable guard.
package risk

import (
	"strings"
	"time"

	"cardarb/internal/config"
	"cardarb/internal/types"
)

// Issue codes appended by EvaluatePair. Rejections are data, not errors.
const (
	IssueBuyLegStale          = "buy_leg_stale"
	IssueSellLegStale         = "sell_leg_stale"
	IssueCurrencyMismatch     = "currency_mismatch"
	IssueCurrencyNotAllowed   = "currency_not_allowed"
	IssueNoInventoryOverlap   = "no_inventory_overlap"
	IssueBelowProfitThreshold = "below_profit_threshold"
)

// Assessment is the result of evaluating one buy/sell pairing.
type Assessment struct {
	Approved         bool
	Issues           []string
	Quantity         int
	BuyCost          float64
	SellProceeds     float64
	NetProfitPerUnit float64
	NetSpreadBps     float64
	GrossSpreadBps   float64
	Notional         float64
}

// Engine evaluates buy/sell pairings against the configured risk policy.
type Engine struct {
	cfg config.Settings
	now func() time.Time
}

// NewEngine creates a risk engine using the wall clock.
func NewEngine(cfg config.Settings) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// NewEngineWithClock creates a risk engine with an injected clock. Used by
// tests to make freshness checks deterministic.
func NewEngineWithClock(cfg config.Settings, now func() time.Time) *Engine {
	return &Engine{cfg: cfg, now: now}
}

// EvaluatePair computes the fee/slippage/spread-adjusted profitability of
// buying from buyLeg and selling into sellLeg. It is called speculatively
// during opportunity evaluation and again, mandatorily, at execution time.
func (e *Engine) EvaluatePair(buyLeg, sellLeg types.Quote) Assessment {
	var issues []string
	now := e.now()
	maxAge := time.Duration(e.cfg.MaxQuoteAgeMs) * time.Millisecond

	if now.Sub(buyLeg.ReceivedAt) > maxAge {
		issues = append(issues, IssueBuyLegStale)
	}
	if now.Sub(sellLeg.ReceivedAt) > maxAge {
		issues = append(issues, IssueSellLegStale)
	}
	if buyLeg.Currency != sellLeg.Currency {
		issues = append(issues, IssueCurrencyMismatch)
	}
	if !e.currencyAllowed(buyLeg.Currency) || !e.currencyAllowed(sellLeg.Currency) {
		issues = append(issues, IssueCurrencyNotAllowed)
	}

	quantity := minInt(buyLeg.AvailableUnits, sellLeg.AvailableUnits, e.cfg.MaxCardsPerTrade)
	if quantity <= 0 {
		issues = append(issues, IssueNoInventoryOverlap)
	}

	buyMultiplier := 1 + bpsToMultiplier(buyLeg.FeeBps+buyLeg.SlippageBps+e.cfg.NetworkFeeBps)
	sellMultiplier := 1 - bpsToMultiplier(sellLeg.FeeBps+sellLeg.SlippageBps+e.cfg.FxSpreadBps)

	buyCost := buyLeg.Price * buyMultiplier
	sellProceeds := sellLeg.Price * sellMultiplier
	netProfitPerUnit := sellProceeds - buyCost

	var netSpreadBps, grossSpreadBps float64
	if buyCost > 0 {
		netSpreadBps = netProfitPerUnit / buyCost * 10_000
		grossSpreadBps = (sellLeg.Price - buyLeg.Price) / buyLeg.Price * 10_000
	}

	if netSpreadBps < e.cfg.ProfitThresholdBps {
		issues = append(issues, IssueBelowProfitThreshold)
	}

	return Assessment{
		Approved:         len(issues) == 0 && netProfitPerUnit > 0,
		Issues:           issues,
		Quantity:         quantity,
		BuyCost:          buyCost,
		SellProceeds:     sellProceeds,
		NetProfitPerUnit: netProfitPerUnit,
		NetSpreadBps:     netSpreadBps,
		GrossSpreadBps:   grossSpreadBps,
		Notional:         float64(quantity) * buyLeg.Price,
	}
}

func (e *Engine) currencyAllowed(currency string) bool {
	if currency == "" {
		return false
	}
	if len(e.cfg.AllowedCurrencies) == 0 {
		return true
	}
	for _, allowed := range e.cfg.AllowedCurrencies {
		if strings.EqualFold(allowed, currency) {
			return true
		}
	}
	return false
}

func bpsToMultiplier(bps float64) float64 {
	return bps / 10_000
}

func minInt(values ...int) int {
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
