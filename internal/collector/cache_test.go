package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"BtcInsight/internal/metrics"
	"BtcInsight/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "k", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, _ := s.Get(ctx, "k")
	if !ok || string(b) != "v" {
		t.Fatalf("expected hit, got ok=%v val=%q", ok, b)
	}
	b[0] = 'x'
	again, _, _ := s.Get(ctx, "k")
	if string(again) != "v" {
		t.Error("store returned an aliased buffer")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestCachedFetcher_HitsAndCopies(t *testing.T) {
	ctx := context.Background()
	inner := &MockFetcher{Price: 40000, End: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	m := metrics.New()
	cf := NewCachedFetcher(inner, NewMemoryStore(), m)

	a, err := cf.FetchPrices(ctx, "bitcoin", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.Rows[0].Close = -1

	b, err := cf.FetchPrices(ctx, "bitcoin", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.Calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.Calls)
	}
	if b.Rows[0].Close == -1 {
		t.Error("cached table aliases a previously returned table")
	}
	if b.Len() != 20 {
		t.Errorf("expected 20 rows, got %d", b.Len())
	}

	if _, err := cf.FetchPrices(ctx, "bitcoin", 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.Calls != 2 {
		t.Errorf("different day range must miss the cache, calls=%d", inner.Calls)
	}

	if got := testutil.ToFloat64(m.CacheTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("expected 1 cache hit, got %.0f", got)
	}

	p1, _ := cf.FetchSpotPrice(ctx, "bitcoin")
	p2, _ := cf.FetchSpotPrice(ctx, "bitcoin")
	if p1 != 40000 || p2 != 40000 || inner.Calls != 3 {
		t.Errorf("expected cached spot price, p1=%.0f p2=%.0f calls=%d", p1, p2, inner.Calls)
	}
}

func TestCachedFetcher_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &MockFetcher{Err: &model.FetchError{Source: "mock", Status: 500}}
	cf := NewCachedFetcher(inner, NewMemoryStore(), nil)

	for i := 0; i < 2; i++ {
		if _, err := cf.FetchPrices(ctx, "bitcoin", 10); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.Calls != 2 {
		t.Errorf("errors must not be cached, calls=%d", inner.Calls)
	}
}

func TestCachedFetcher_StoreFailureFallsThrough(t *testing.T) {
	inner := &MockFetcher{Price: 100}
	cf := NewCachedFetcher(inner, failingStore{}, nil)
	tbl, err := cf.FetchPrices(context.Background(), "bitcoin", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Len() != 5 {
		t.Errorf("expected 5 rows, got %d", tbl.Len())
	}
}

func TestCachedFetcher_Indicators(t *testing.T) {
	ctx := context.Background()
	provider := &MockProvider{Values: map[model.KPI]map[string]model.DatedValue{
		model.KPIRSI: {"2024-01-01": {Value: 45, Valid: true}, "2024-01-02": {}},
	}}
	cf := NewCachedFetcher(&MockFetcher{}, NewMemoryStore(), nil)
	cf.Provider = provider

	if _, err := cf.FetchIndicator(ctx, "BTCUSD", model.KPIRSI); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	provider.Values = nil
	got, err := cf.FetchIndicator(ctx, "BTCUSD", model.KPIRSI)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := got["2024-01-01"]; !v.Valid || v.Value != 45 {
		t.Errorf("expected cached value, got %+v", v)
	}
	if v := got["2024-01-02"]; v.Valid {
		t.Errorf("invalid value must stay invalid through the cache, got %+v", v)
	}
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 0})
	defer rdb.Close()
	store := NewRedisStore(rdb, "btcinsight-test:")
	if err := store.Ping(ctx); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("expected hit, got ok=%v val=%q err=%v", ok, b, err)
	}
	if _, ok, err := store.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	// Cleanup
	if err := rdb.Del(ctx, "btcinsight-test:k").Err(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
