package collector

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"BtcInsight/internal/model"

	"github.com/andybalholm/brotli"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestCoinGecko_FetchPrices(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("days"); got != "180" {
			t.Errorf("expected days=180, got %q", got)
		}
		if got := r.Header.Get("x-cg-demo-api-key"); got != "demo" {
			t.Errorf("expected api key header, got %q", got)
		}
		// out of order, with a duplicate "now" point
		w.Write([]byte(`{"prices":[[1704153600000,42500.5],[1704067200000,42000.25],[1704153600000,42600.75]],"market_caps":[]}`))
	})

	f := NewCoinGeckoFetcher(srv.URL, "demo", "usd", ClientOptions{})
	tbl, err := f.FetchPrices(context.Background(), "bitcoin", 180)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	closes := tbl.Closes()
	if closes[0] != 42000.25 || closes[1] != 42600.75 {
		t.Errorf("unexpected closes: %v", closes)
	}
	if !tbl.Rows[0].Time.Equal(time.UnixMilli(1704067200000)) {
		t.Errorf("unexpected first timestamp: %s", tbl.Rows[0].Time)
	}
}

func TestCoinGecko_FetchOHLC(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/ohlc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[[1704067200000,42000,42500,41800,42300],[1704153600000,42300,43000,42100,42900]]`))
	})

	f := NewCoinGeckoFetcher(srv.URL, "", "usd", ClientOptions{})
	tbl, err := f.FetchOHLC(context.Background(), "bitcoin", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last, _ := tbl.Last()
	if last.Open != 42300 || last.High != 43000 || last.Low != 42100 || last.Close != 42900 {
		t.Errorf("unexpected last bar: %+v", last)
	}
}

func TestCoinGecko_FetchSpotPrice(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin":{"usd":67123.45}}`))
	})
	f := NewCoinGeckoFetcher(srv.URL, "", "usd", ClientOptions{})
	price, err := f.FetchSpotPrice(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 67123.45 {
		t.Errorf("unexpected price %.2f", price)
	}
	if _, err := f.FetchSpotPrice(context.Background(), "ethereum"); err == nil {
		t.Error("expected error for missing asset")
	}
}

func TestCoinGecko_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusTooManyRequests, `{"status":{"error_code":429}}`},
		{"malformed json", http.StatusOK, `{"prices":[[1,`},
		{"empty prices", http.StatusOK, `{"prices":[]}`},
		{"missing prices", http.StatusOK, `{}`},
		{"non-numeric price", http.StatusOK, `{"prices":[[1704067200000,"abc"]]}`},
		{"null price", http.StatusOK, `{"prices":[[1704067200000,null]]}`},
		{"short row", http.StatusOK, `{"prices":[[1704067200000]]}`},
		{"wrong shape", http.StatusOK, `[1,2,3]`},
		{"out of range price", http.StatusOK, `{"prices":[[1700000000000,100],[1700086400000,1e400]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			f := NewCoinGeckoFetcher(srv.URL, "", "usd", ClientOptions{})
			_, err := f.FetchPrices(context.Background(), "bitcoin", 30)
			var fe *model.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if tt.status != http.StatusOK && fe.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, fe.Status)
			}
		})
	}
}

func TestCoinGecko_Timeout(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})
	f := NewCoinGeckoFetcher(srv.URL, "", "usd", ClientOptions{Timeout: 50 * time.Millisecond})
	_, err := f.FetchPrices(context.Background(), "bitcoin", 30)
	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError on timeout, got %v", err)
	}
}

func TestCoinGecko_CompressedBodies(t *testing.T) {
	body := []byte(`{"prices":[[1704067200000,42000]]}`)

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write(body)
	bw.Close()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(body)
	gw.Close()

	for enc, payload := range map[string][]byte{"br": br.Bytes(), "gzip": gz.Bytes()} {
		t.Run(enc, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", enc)
				w.Write(payload)
			})
			f := NewCoinGeckoFetcher(srv.URL, "", "usd", ClientOptions{})
			tbl, err := f.FetchPrices(context.Background(), "bitcoin", 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tbl.Len() != 1 || tbl.Closes()[0] != 42000 {
				t.Errorf("unexpected table: %+v", tbl.Rows)
			}
		})
	}
}
