package main

import (
	"context"
	"fmt"
	"time"

	"BtcInsight/internal/collector"
	"BtcInsight/internal/config"
	"BtcInsight/internal/inference"
	"BtcInsight/internal/insight"
	"BtcInsight/internal/metrics"
	"BtcInsight/internal/pipeline"
	"BtcInsight/internal/recorder"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// app holds the wired collaborators for one process.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline
	recorder recorder.Recorder
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, withAI bool) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	opts := collector.ClientOptions{Timeout: cfg.Market.Timeout, Proxy: cfg.Proxy}
	var fetcher collector.Fetcher = collector.NewCoinGeckoFetcher(cfg.Market.BaseURL, cfg.Market.APIKey, cfg.Asset.VsCurrency, opts)
	log.Info().Str("source", fetcher.Name()).Msg("market data source")

	var provider collector.IndicatorProvider
	if cfg.Indicators.Provider == "alphavantage" {
		provider = collector.NewAlphaVantageFetcher(cfg.Indicators.BaseURL, cfg.Indicators.APIKey, opts)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	col := collector.NewCollector(fetcher, cfg.Asset.ID, cfg.Market.Days, collector.SeriesKind(cfg.Market.Series))
	if store != nil {
		cached := collector.NewCachedFetcher(fetcher, store, a.metrics)
		cached.Provider = provider
		col.Fetcher = cached
		if provider != nil {
			col.Provider = cached
		}
	} else {
		col.Provider = provider
	}
	col.Symbol = cfg.Asset.Symbol
	col.UseSpot = cfg.Market.UseSpot
	col.Metrics = a.metrics

	var gen inference.Generator
	if withAI && !cfg.Inference.Disabled {
		hf := inference.NewHuggingFaceClient(inference.Options{
			BaseURL:      cfg.Inference.BaseURL,
			Model:        cfg.Inference.Model,
			Token:        cfg.Inference.Token,
			MaxNewTokens: cfg.Inference.MaxNewTokens,
			Temperature:  cfg.Inference.Temperature,
			Timeout:      cfg.Inference.Timeout,
			Proxy:        cfg.Proxy,
		})
		hf.Metrics = a.metrics
		gen = hf
	}

	a.pipeline = pipeline.New(col, gen, insight.PromptOptions{AssetName: cfg.Asset.Name}, a.metrics)
	a.recorder = a.openRecorder()
	return a, nil
}

func (a *app) openStore(ctx context.Context) (collector.Store, error) {
	switch a.cfg.Cache.Backend {
	case "none":
		return nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: a.cfg.Cache.RedisAddr})
		rs := collector.NewRedisStore(client, a.cfg.Cache.Prefix)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			client.Close()
			log.Warn().Err(err).Str("addr", a.cfg.Cache.RedisAddr).Msg("redis unavailable, using in-memory cache")
			return collector.NewMemoryStore(), nil
		}
		a.closers = append(a.closers, client.Close)
		log.Info().Str("addr", a.cfg.Cache.RedisAddr).Msg("redis cache connected")
		return rs, nil
	default:
		return collector.NewMemoryStore(), nil
	}
}

func (a *app) openRecorder() recorder.Recorder {
	if a.cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(a.cfg.Database.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		return recorder.NewNoopRecorder()
	}
	a.closers = append(a.closers, sr.Close)
	return sr
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

// request builds the pipeline request from flags, falling back to config.
func (a *app) request(indicators []string, question string) pipeline.Request {
	names := indicators
	if len(names) == 0 {
		names = a.cfg.Indicators.Default
	}
	sel, unknown := parseSelection(names)
	if len(unknown) > 0 {
		log.Warn().Strs("unknown", unknown).Msg("ignoring unknown indicators")
	}
	if question == "" {
		question = a.cfg.Question
	}
	return pipeline.Request{Selection: sel, Unknown: unknown, Question: question}
}

// runError reports a run that produced no numbers.
func runError(out *pipeline.Outcome) error {
	if out.Snapshot == nil {
		return fmt.Errorf("refresh failed: %w", out.Err)
	}
	return nil
}
