package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"cardarb/internal/config"
	"cardarb/internal/types"
)

// rawQuote is the venue payload shape. Fields are validated before a quote is
// accepted; individual malformed items are dropped, the batch proceeds.
type rawQuote struct {
	Brand          string          `json:"brand" validate:"required"`
	Denomination   float64         `json:"denomination" validate:"gte=0"`
	Currency       string          `json:"currency" validate:"omitempty,len=3"`
	Price          float64         `json:"price" validate:"gt=0"`
	Available      int             `json:"available" validate:"gte=0"`
	Side           string          `json:"side" validate:"omitempty,oneof=buy sell"`
	Timestamp      json.RawMessage `json:"timestamp"`
	MinPurchaseQty int             `json:"minPurchaseQty" validate:"gte=0"`
	MaxPurchaseQty int             `json:"maxPurchaseQty" validate:"gte=0"`
}

// HTTPConnector polls a venue's quote endpoint with a bearer token.
type HTTPConnector struct {
	mkt      config.Marketplace
	client   *http.Client
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

// NewHTTPConnector creates a connector for an HTTP venue. The request timeout
// comes from the marketplace configuration.
func NewHTTPConnector(mkt config.Marketplace, logger zerolog.Logger) *HTTPConnector {
	return &HTTPConnector{
		mkt: mkt,
		client: &http.Client{
			Timeout: time.Duration(mkt.TimeoutMs) * time.Millisecond,
		},
		validate: validator.New(),
		logger:   logger.With().Str("connector", mkt.ID).Logger(),
		now:      time.Now,
	}
}

// Marketplace returns the connector's configuration.
func (c *HTTPConnector) Marketplace() config.Marketplace {
	return c.mkt
}

// FetchQuotes issues a GET against the configured base URL and normalizes the
// response. The payload may be a bare array or an object with a "quotes"
// array. Items failing schema validation or outside the supported-brand list
// are dropped, not fatal.
func (c *HTTPConnector) FetchQuotes(ctx context.Context) ([]types.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.mkt.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.mkt.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.mkt.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, c.mkt.BaseURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	items, err := decodePayload(body)
	if err != nil {
		return nil, err
	}

	quotes := make([]types.Quote, 0, len(items))
	for _, item := range items {
		quote, ok := c.normalize(item)
		if ok {
			quotes = append(quotes, quote)
		}
	}
	return quotes, nil
}

func decodePayload(body []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Quotes []json.RawMessage `json:"quotes"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("malformed quote payload: %w", err)
	}
	return wrapped.Quotes, nil
}

func (c *HTTPConnector) normalize(item json.RawMessage) (types.Quote, bool) {
	var raw rawQuote
	if err := json.Unmarshal(item, &raw); err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed quote")
		return types.Quote{}, false
	}
	if err := c.validate.Struct(raw); err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed quote")
		return types.Quote{}, false
	}
	if !brandSupported(c.mkt.SupportedBrands, raw.Brand) {
		return types.Quote{}, false
	}
	// Books are keyed on whole-number face values; never round a venue's
	// fractional denomination into a different product.
	if raw.Denomination != math.Trunc(raw.Denomination) {
		c.logger.Warn().Float64("denomination", raw.Denomination).Str("brand", raw.Brand).Msg("dropping quote with fractional denomination")
		return types.Quote{}, false
	}

	side := types.Side(raw.Side)
	if side == "" {
		side = c.mkt.Side
	}
	currency := strings.ToUpper(raw.Currency)
	if currency == "" {
		currency = "USD"
	}
	minQty := raw.MinPurchaseQty
	if minQty <= 0 {
		minQty = 1
	}
	var maxQty *int
	if raw.MaxPurchaseQty > 0 {
		maxQty = &raw.MaxPurchaseQty
	}

	receivedAt := c.now()
	denomination := int(raw.Denomination)

	return types.Quote{
		ID:             fmt.Sprintf("%s-%s-%d-%d", c.mkt.ID, raw.Brand, denomination, receivedAt.UnixMilli()),
		MarketID:       c.mkt.ID,
		MarketName:     c.mkt.Name,
		Side:           side,
		Brand:          raw.Brand,
		Denomination:   denomination,
		Currency:       currency,
		Price:          raw.Price,
		AvailableUnits: raw.Available,
		MinPurchaseQty: minQty,
		MaxPurchaseQty: maxQty,
		FeeBps:         c.mkt.FeeBps,
		SlippageBps:    c.mkt.SlippageBps,
		ReceivedAt:     receivedAt,
		VenueTimestamp: parseVenueTimestamp(raw.Timestamp, receivedAt),
	}, true
}

func brandSupported(brands []string, brand string) bool {
	for _, b := range brands {
		if b == brand {
			return true
		}
	}
	return false
}

// parseVenueTimestamp accepts either a unix-milliseconds number or an RFC3339
// string, falling back to receivedAt when absent or unparseable.
func parseVenueTimestamp(raw json.RawMessage, fallback time.Time) time.Time {
	if len(raw) == 0 {
		return fallback
	}
	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil {
		return time.UnixMilli(millis)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if ts, err := time.Parse(time.RFC3339, text); err == nil {
			return ts
		}
		if millis, err := strconv.ParseInt(text, 10, 64); err == nil {
			return time.UnixMilli(millis)
		}
	}
	return fallback
}
