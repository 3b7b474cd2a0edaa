// Package redis provides a Redis-backed price cache that decorates another
// PriceOracle implementation. Quotes are stored with a short TTL so repeated
// solvency checks within the same window do not hammer the upstream feed.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/archon-research/synth-engine/internal/domain/entity"
	"github.com/archon-research/synth-engine/internal/ports/outbound"
)

// Compile-time check that PriceCache implements outbound.PriceOracle
var _ outbound.PriceOracle = (*PriceCache)(nil)

// Config holds Redis cache configuration.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string
	// Password for Redis authentication (empty for no auth)
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// TTL is how long cached quotes live before expiring
	TTL time.Duration
	// KeyPrefix is prepended to all cache keys
	KeyPrefix string
}

// ConfigDefaults returns sensible defaults for Redis cache configuration.
func ConfigDefaults() Config {
	return Config{
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		TTL:       30 * time.Second,
		KeyPrefix: "synth",
	}
}

// cachedQuote is the wire form of a quote. Prices are serialized as decimal
// strings so values beyond uint64 survive the round-trip.
type cachedQuote struct {
	Price     string    `json:"price"`
	Decimals  uint8     `json:"decimals"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PriceCache is a read-through cache in front of another PriceOracle.
// Cache failures degrade to the upstream oracle rather than failing the
// price lookup.
type PriceCache struct {
	client    *redis.Client
	upstream  outbound.PriceOracle
	ttl       time.Duration
	keyPrefix string
	logger    *slog.Logger
}

// NewPriceCache creates a new Redis price cache in front of upstream.
func NewPriceCache(cfg Config, upstream outbound.PriceOracle, logger *slog.Logger) (*PriceCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if upstream == nil {
		return nil, fmt.Errorf("upstream oracle is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "redis-price-cache")

	return &PriceCache{
		client:    client,
		upstream:  upstream,
		ttl:       cfg.TTL,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
	}, nil
}

// Ping checks the Redis connection.
func (c *PriceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *PriceCache) Close() error {
	return c.client.Close()
}

// key generates a cache key in the format prefix:price:assetAddress
func (c *PriceCache) key(asset common.Address) string {
	return fmt.Sprintf("%s:price:%s", c.keyPrefix, asset.Hex())
}

// LatestPrice returns the cached quote for the asset when present, falling
// back to the upstream oracle and caching its answer on a miss.
func (c *PriceCache) LatestPrice(ctx context.Context, asset common.Address) (*entity.Quote, error) {
	key := c.key(asset)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if quote, decodeErr := decodeQuote(data); decodeErr == nil {
			return quote, nil
		} else {
			c.logger.Warn("discarding undecodable cached quote",
				"asset", asset.Hex(), "error", decodeErr)
		}
	} else if err != redis.Nil {
		c.logger.Warn("price cache read failed, falling back to upstream",
			"asset", asset.Hex(), "error", err)
	}

	quote, err := c.upstream.LatestPrice(ctx, asset)
	if err != nil {
		return nil, err
	}

	if encoded, encodeErr := json.Marshal(cachedQuote{
		Price:     quote.Price.String(),
		Decimals:  quote.Decimals,
		UpdatedAt: quote.UpdatedAt,
	}); encodeErr != nil {
		c.logger.Warn("encoding quote for cache", "asset", asset.Hex(), "error", encodeErr)
	} else if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
		c.logger.Warn("price cache write failed", "asset", asset.Hex(), "error", setErr)
	}

	return quote, nil
}

// Invalidate removes the cached quote for an asset.
func (c *PriceCache) Invalidate(ctx context.Context, asset common.Address) error {
	if err := c.client.Del(ctx, c.key(asset)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached price: %w", err)
	}
	return nil
}

func decodeQuote(data []byte) (*entity.Quote, error) {
	var cached cachedQuote
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	price, ok := new(big.Int).SetString(cached.Price, 10)
	if !ok {
		return nil, fmt.Errorf("invalid cached price %q", cached.Price)
	}
	return entity.NewQuote(price, cached.Decimals, cached.UpdatedAt)
}
