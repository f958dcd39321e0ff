package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"BtcInsight/internal/metrics"
	"BtcInsight/internal/model"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	HistoryTTL = 30 * time.Minute
	SpotTTL    = 5 * time.Minute
)

// Store is a byte-oriented TTL cache. Values are copied on the way in
// and out so cached series are never shared between callers.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// MemoryStore keeps entries in process.
type MemoryStore struct {
	c *cache.Cache
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: cache.New(HistoryTTL, 10*time.Minute)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.c.Set(key, append([]byte(nil), val...), ttl)
	return nil
}

// RedisStore shares entries between processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps a redis client. Keys are namespaced with prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "btcinsight:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Ping checks the connection to the Redis server.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, val, ttl).Err()
}

// CachedFetcher wraps a Fetcher and an optional IndicatorProvider with
// a TTL cache keyed by request parameters.
type CachedFetcher struct {
	Inner    Fetcher
	Provider IndicatorProvider
	Store    Store
	Metrics  *metrics.Metrics
}

// NewCachedFetcher creates a caching wrapper around inner.
func NewCachedFetcher(inner Fetcher, store Store, m *metrics.Metrics) *CachedFetcher {
	return &CachedFetcher{Inner: inner, Store: store, Metrics: m}
}

func (c *CachedFetcher) Name() string { return c.Inner.Name() + "+cache" }

type spotEntry struct {
	Price     float64   `json:"price"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (c *CachedFetcher) FetchPrices(ctx context.Context, asset string, days int) (*model.Table, error) {
	key := fmt.Sprintf("%s:prices:%s:%d", c.Inner.Name(), asset, days)
	return c.table(ctx, key, func() (*model.Table, error) { return c.Inner.FetchPrices(ctx, asset, days) })
}

func (c *CachedFetcher) FetchOHLC(ctx context.Context, asset string, days int) (*model.Table, error) {
	key := fmt.Sprintf("%s:ohlc:%s:%d", c.Inner.Name(), asset, days)
	return c.table(ctx, key, func() (*model.Table, error) { return c.Inner.FetchOHLC(ctx, asset, days) })
}

func (c *CachedFetcher) FetchSpotPrice(ctx context.Context, asset string) (float64, error) {
	key := fmt.Sprintf("%s:spot:%s", c.Inner.Name(), asset)
	var e spotEntry
	if c.load(ctx, key, &e) {
		return e.Price, nil
	}
	price, err := c.Inner.FetchSpotPrice(ctx, asset)
	if err != nil {
		return 0, err
	}
	c.save(ctx, key, spotEntry{Price: price, FetchedAt: time.Now()}, SpotTTL)
	return price, nil
}

// FetchIndicator caches provider responses with the history TTL.
func (c *CachedFetcher) FetchIndicator(ctx context.Context, symbol string, kpi model.KPI) (map[string]model.DatedValue, error) {
	if c.Provider == nil {
		return nil, errors.New("no indicator provider configured")
	}
	key := fmt.Sprintf("%s:indicator:%s:%s", c.Provider.Name(), symbol, kpi)
	var values map[string]model.DatedValue
	if c.load(ctx, key, &values) {
		return values, nil
	}
	values, err := c.Provider.FetchIndicator(ctx, symbol, kpi)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, values, HistoryTTL)
	return values, nil
}

func (c *CachedFetcher) table(ctx context.Context, key string, fetch func() (*model.Table, error)) (*model.Table, error) {
	var tbl model.Table
	if c.load(ctx, key, &tbl) {
		return &tbl, nil
	}
	fresh, err := fetch()
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, fresh, HistoryTTL)
	return fresh, nil
}

// load reports a hit only when the entry decodes cleanly; store
// failures degrade to a miss.
func (c *CachedFetcher) load(ctx context.Context, key string, v any) bool {
	b, ok, err := c.Store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed, fetching fresh data")
	}
	if !ok || err != nil {
		c.Metrics.ObserveCache(false)
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt, fetching fresh data")
		c.Metrics.ObserveCache(false)
		return false
	}
	c.Metrics.ObserveCache(true)
	return true
}

func (c *CachedFetcher) save(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.Store.Set(ctx, key, b, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
