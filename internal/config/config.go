// Package config loads engine settings and marketplace definitions from the
// environment. Marketplaces are discovered from MKT_<ID>_* variable prefixes,
// so operators can add venues without code changes.
package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"cardarb/internal/types"
)

// Adapter names recognised by the connector factory.
const (
	AdapterHTTP = "http"
	AdapterMock = "mock"
)

// Settings holds the global engine configuration.
type Settings struct {
	Port       string `validate:"required"`
	SQLitePath string `validate:"required"`
	JWTSecret  string `validate:"required"`

	ProfitThresholdBps      float64 `validate:"gte=0"`
	MaxQuoteAgeMs           int     `validate:"gt=0"`
	FxSpreadBps             float64 `validate:"gte=0"`
	NetworkFeeBps           float64 `validate:"gte=0"`
	DefaultCardQuantity     int     `validate:"gt=0"`
	MaxCardsPerTrade        int     `validate:"gt=0"`
	MaxOpportunitiesTracked int     `validate:"gt=0"`

	AllowedCurrencies []string
	AllowedRegions    []string

	EnableMockMarkets bool
	SSEHeartbeatMs    int `validate:"gt=0"`
}

// Marketplace describes one external venue to poll.
type Marketplace struct {
	ID                string     `validate:"required"`
	Name              string     `validate:"required"`
	Side              types.Side `validate:"required,oneof=buy sell"`
	Adapter           string     `validate:"required,oneof=http mock"`
	Enabled           bool
	BaseURL           string `validate:"omitempty,url"`
	Token             string
	PollingIntervalMs int     `validate:"gte=500"`
	TimeoutMs         int     `validate:"gte=500"`
	FeeBps            float64 `validate:"gte=0"`
	SlippageBps       float64 `validate:"gte=0"`
	Currency          string  `validate:"len=3"`
	Region            string  `validate:"len=2"`
	SupportedBrands   []string `validate:"min=1"`
}

var validate = validator.New()

var mktPrefix = regexp.MustCompile(`^MKT_[A-Z0-9]+`)

// Load reads .env (if present), builds the global settings and the list of
// configured marketplaces, and validates both. Invalid marketplace entries
// are skipped with a warning; invalid global settings are an error.
func Load() (Settings, []Marketplace, error) {
	// Missing .env is fine, real environments set variables directly.
	_ = godotenv.Load()

	settings := Settings{
		Port:                    envString("PORT", "8080"),
		SQLitePath:              envString("SQLITE_PATH", "cardarb.db"),
		JWTSecret:               envString("JWT_SECRET", "cardarb-secret-key"),
		ProfitThresholdBps:      envFloat("PROFIT_THRESHOLD_BPS", 75),
		MaxQuoteAgeMs:           envInt("MAX_QUOTE_AGE_MS", 4500),
		FxSpreadBps:             envFloat("FX_SPREAD_BPS", 15),
		NetworkFeeBps:           envFloat("NETWORK_FEE_BPS", 10),
		DefaultCardQuantity:     envInt("DEFAULT_CARD_QUANTITY", 1),
		MaxCardsPerTrade:        envInt("MAX_CARDS_PER_TRADE", 25),
		MaxOpportunitiesTracked: envInt("MAX_OPPORTUNITIES_TRACKED", 50),
		AllowedCurrencies:       envList("ALLOWED_CURRENCIES"),
		AllowedRegions:          envList("ALLOWED_REGIONS"),
		EnableMockMarkets:       envBool("ENABLE_MOCK_MARKETS", true),
		SSEHeartbeatMs:          envInt("SSE_HEARTBEAT_MS", 15000),
	}
	if err := validate.Struct(settings); err != nil {
		return Settings{}, nil, fmt.Errorf("invalid settings: %w", err)
	}

	markets := discoverMarketplaces(settings)
	if settings.EnableMockMarkets {
		markets = append(markets, mockMarketplaces()...)
	}

	return settings, markets, nil
}

// discoverMarketplaces scans the environment for MKT_<ID>_* prefixes and
// builds one Marketplace per prefix.
func discoverMarketplaces(settings Settings) []Marketplace {
	prefixes := make(map[string]struct{})
	for _, entry := range os.Environ() {
		key := strings.SplitN(entry, "=", 2)[0]
		if m := mktPrefix.FindString(key); m != "" {
			prefixes[m] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(prefixes))
	for p := range prefixes {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	var markets []Marketplace
	for _, prefix := range ordered {
		mkt, ok := buildMarketplace(prefix, settings)
		if ok {
			markets = append(markets, mkt)
		}
	}
	return markets
}

func buildMarketplace(prefix string, settings Settings) (Marketplace, bool) {
	get := func(suffix string) string { return os.Getenv(prefix + "_" + suffix) }

	mkt := Marketplace{
		ID:                strings.ToLower(strings.TrimPrefix(prefix, "MKT_")),
		Name:              defaultString(get("NAME"), prefix),
		Side:              types.Side(strings.ToLower(defaultString(get("SIDE"), "sell"))),
		Adapter:           strings.ToLower(defaultString(get("ADAPTER"), AdapterHTTP)),
		Enabled:           parseBool(get("ENABLED"), true),
		BaseURL:           get("URL"),
		Token:             get("TOKEN"),
		PollingIntervalMs: parseInt(get("POLL_MS"), 2000),
		TimeoutMs:         parseInt(get("TIMEOUT_MS"), 3500),
		FeeBps:            parseFloat(get("FEE_BPS"), 0),
		SlippageBps:       parseFloat(get("SLIPPAGE_BPS"), 0),
		Currency:          strings.ToUpper(defaultString(get("CURRENCY"), "USD")),
		Region:            strings.ToUpper(defaultString(get("REGION"), "US")),
		SupportedBrands:   parseList(get("BRANDS")),
	}

	if mkt.Adapter == AdapterHTTP && mkt.BaseURL == "" {
		return Marketplace{}, false
	}
	if len(mkt.SupportedBrands) == 0 {
		return Marketplace{}, false
	}
	if err := validate.Struct(mkt); err != nil {
		log.Warn().Str("marketplace", prefix).Err(err).Msg("skipping invalid marketplace configuration")
		return Marketplace{}, false
	}
	if len(settings.AllowedRegions) > 0 && !containsFold(settings.AllowedRegions, mkt.Region) {
		log.Warn().Str("marketplace", prefix).Str("region", mkt.Region).Msg("skipping marketplace: region not allowed")
		return Marketplace{}, false
	}
	if len(settings.AllowedCurrencies) > 0 && !containsFold(settings.AllowedCurrencies, mkt.Currency) {
		log.Warn().Str("marketplace", prefix).Str("currency", mkt.Currency).Msg("skipping marketplace: currency not allowed")
		return Marketplace{}, false
	}
	return mkt, true
}

// mockMarketplaces returns the built-in simulated venue pair used for demos
// and local development without network dependencies.
func mockMarketplaces() []Marketplace {
	brands := []string{"Amazon", "Apple", "PlayStation"}
	return []Marketplace{
		{
			ID:                "mock-sell-001",
			Name:              "Mock Seller Desk",
			Side:              types.SideSell,
			Adapter:           AdapterMock,
			Enabled:           true,
			PollingIntervalMs: 1000,
			TimeoutMs:         500,
			FeeBps:            20,
			SlippageBps:       5,
			Currency:          "USD",
			Region:            "US",
			SupportedBrands:   brands,
		},
		{
			ID:                "mock-buy-001",
			Name:              "Mock Buyback Pool",
			Side:              types.SideBuy,
			Adapter:           AdapterMock,
			Enabled:           true,
			PollingIntervalMs: 1000,
			TimeoutMs:         500,
			FeeBps:            15,
			SlippageBps:       5,
			Currency:          "USD",
			Region:            "US",
			SupportedBrands:   brands,
		},
	}
}

func envString(key, fallback string) string {
	return defaultString(os.Getenv(key), fallback)
}

func envInt(key string, fallback int) int {
	return parseInt(os.Getenv(key), fallback)
}

func envFloat(key string, fallback float64) float64 {
	return parseFloat(os.Getenv(key), fallback)
}

func envBool(key string, fallback bool) bool {
	return parseBool(os.Getenv(key), fallback)
}

func envList(key string) []string {
	return parseList(os.Getenv(key))
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	if value == "" {
		return fallback
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

func containsFold(list []string, value string) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, value) {
			return true
		}
	}
	return false
}
