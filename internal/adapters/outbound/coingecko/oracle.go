// Package coingecko implements the PriceOracle port using CoinGecko's API.
// It is an off-chain fallback for environments without an Ethereum RPC
// endpoint, with:
//   - Automatic retry logic with exponential backoff for transient failures
//   - Configurable timeouts and backoff parameters
//   - Rate limiting to stay within API limits
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/archon-research/synth-engine/internal/domain/entity"
	"github.com/archon-research/synth-engine/internal/pkg/retry"
	"github.com/archon-research/synth-engine/internal/ports/outbound"
)

// Compile-time check that Oracle implements outbound.PriceOracle.
var _ outbound.PriceOracle = (*Oracle)(nil)

// QuoteDecimals is the fixed-point precision of quotes produced by this
// oracle. CoinGecko serves float USD prices; 8 decimals matches Chainlink
// USD feeds so downstream scaling is uniform.
const QuoteDecimals uint8 = 8

// Config holds configuration for the CoinGecko oracle.
type Config struct {
	// APIKey is the CoinGecko Pro API key.
	APIKey string

	// BaseURL is the CoinGecko API base URL.
	// Defaults to https://pro-api.coingecko.com/api/v3
	BaseURL string

	// AssetIDs maps collateral asset addresses to CoinGecko coin IDs
	// (e.g. WETH -> "ethereum").
	AssetIDs map[common.Address]string

	// Timeout is the maximum time to wait for a single HTTP request.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int

	// InitialBackoff is the initial delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each retry.
	BackoffFactor float64

	// RateLimitPerMin is the rate limit in requests per minute.
	// Defaults to 450 to stay safely under CoinGecko Pro's 500/min limit.
	RateLimitPerMin int

	// Logger is the structured logger for the oracle.
	Logger *slog.Logger

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// ConfigDefaults returns a config with default values.
func ConfigDefaults() Config {
	return Config{
		BaseURL:         "https://pro-api.coingecko.com/api/v3",
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		InitialBackoff:  500 * time.Millisecond,
		MaxBackoff:      10 * time.Second,
		BackoffFactor:   2.0,
		RateLimitPerMin: 450,
		Logger:          slog.Default(),
	}
}

// Oracle implements PriceOracle using CoinGecko's /simple/price endpoint.
type Oracle struct {
	config      Config
	httpClient  *http.Client
	logger      *slog.Logger
	limiter     *rate.Limiter
	retryConfig retry.Config
}

// NewOracle creates a new CoinGecko price oracle.
func NewOracle(config Config) (*Oracle, error) {
	if config.APIKey == "" {
		return nil, errors.New("APIKey is required")
	}
	if len(config.AssetIDs) == 0 {
		return nil, errors.New("at least one asset ID mapping is required")
	}

	defaults := ConfigDefaults()
	applyDefaults(&config, defaults)

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	// Convert requests per minute to requests per second
	rps := float64(config.RateLimitPerMin) / 60.0
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	return &Oracle{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger.With("component", "coingecko-oracle"),
		limiter:    limiter,
		retryConfig: retry.Config{
			MaxRetries:     config.MaxRetries,
			InitialBackoff: config.InitialBackoff,
			MaxBackoff:     config.MaxBackoff,
			BackoffFactor:  config.BackoffFactor,
			Jitter:         false, // Keep deterministic for API rate limiting
		},
	}, nil
}

func applyDefaults(config *Config, defaults Config) {
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = defaults.BackoffFactor
	}
	if config.RateLimitPerMin == 0 {
		config.RateLimitPerMin = defaults.RateLimitPerMin
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
}

// LatestPrice fetches the current USD price for the asset from the
// /simple/price endpoint and converts it to a fixed-point quote with
// QuoteDecimals decimals.
func (o *Oracle) LatestPrice(ctx context.Context, asset common.Address) (*entity.Quote, error) {
	assetID, ok := o.config.AssetIDs[asset]
	if !ok {
		return nil, fmt.Errorf("no CoinGecko ID configured for asset %s", asset)
	}

	endpoint := fmt.Sprintf("%s/simple/price", o.config.BaseURL)
	params := url.Values{
		"ids":                     {assetID},
		"vs_currencies":           {"usd"},
		"include_last_updated_at": {"true"},
	}

	var response simplePriceResponse
	if err := o.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, fmt.Errorf("fetching price for %s: %w", assetID, err)
	}

	data, ok := response[assetID]
	if !ok {
		return nil, fmt.Errorf("no price returned for %s", assetID)
	}
	if data.USD <= 0 {
		return nil, fmt.Errorf("non-positive price %f returned for %s", data.USD, assetID)
	}

	return entity.NewQuote(
		fixedPointFromFloat(data.USD),
		QuoteDecimals,
		time.Unix(data.LastUpdated, 0).UTC(),
	)
}

// fixedPointFromFloat converts a float USD price to an integer with
// QuoteDecimals decimals, rounding to the nearest unit.
func fixedPointFromFloat(price float64) *big.Int {
	scaled := math.Round(price * math.Pow10(int(QuoteDecimals)))
	result, _ := new(big.Float).SetFloat64(scaled).Int(nil)
	return result
}

func (o *Oracle) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	fullURL := endpoint
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	isRetryable := func(err error) bool {
		var nonRetryable *nonRetryableError
		return !errors.As(err, &nonRetryable)
	}

	onRetry := func(attempt int, err error, backoff time.Duration) {
		o.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"maxRetries", o.retryConfig.MaxRetries,
			"backoff", backoff,
			"error", err,
		)
	}

	return retry.DoVoid(ctx, o.retryConfig, isRetryable, onRetry, func() error {
		if err := o.limiter.Wait(ctx); err != nil {
			return &nonRetryableError{err: fmt.Errorf("rate limiter: %w", err)}
		}
		return o.doSingleRequest(ctx, fullURL, result)
	})
}

func (o *Oracle) doSingleRequest(ctx context.Context, fullURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &nonRetryableError{err: fmt.Errorf("creating request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-cg-pro-api-key", o.config.APIKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			o.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (HTTP 429)")
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error (HTTP %d)", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr coinGeckoError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Error != "" {
			return &nonRetryableError{err: fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, apiErr.Error)}
		}
		return &nonRetryableError{err: fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode, string(body))}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &nonRetryableError{err: fmt.Errorf("parsing response: %w", err)}
	}

	return nil
}

// nonRetryableError wraps errors that should not be retried.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string {
	return e.err.Error()
}

func (e *nonRetryableError) Unwrap() error {
	return e.err
}
