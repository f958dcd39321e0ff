package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Asset.ID != "bitcoin" || cfg.Asset.VsCurrency != "usd" {
		t.Errorf("asset defaults = %+v", cfg.Asset)
	}
	if cfg.Market.Days != 365 || cfg.Market.Series != "prices" || cfg.Market.Timeout != 10*time.Second {
		t.Errorf("market defaults = %+v", cfg.Market)
	}
	if cfg.Question != "What are the latest Bitcoin trends?" {
		t.Errorf("question = %q", cfg.Question)
	}
	if sel, _ := cfg.Selection(); sel.Len() != 5 {
		t.Errorf("default selection has %d members", sel.Len())
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("cache backend = %q", cfg.Cache.Backend)
	}
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
asset:
  name: Bitcoin
market:
  days: 90
  series: ohlc
  timeout: 3s
indicators:
  default: [rsi, ema30]
inference:
  token: from-file
  model: file/model
telegram:
  chat_id: "100"
`)
	t.Setenv("HF_API_TOKEN", "from-env")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Market.Days != 90 || cfg.Market.Series != "ohlc" || cfg.Market.Timeout != 3*time.Second {
		t.Errorf("market = %+v", cfg.Market)
	}
	if cfg.Inference.Token != "from-env" || cfg.Inference.Model != "file/model" {
		t.Errorf("inference = %+v", cfg.Inference)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if !cfg.TelegramEnabled() {
		t.Error("telegram should be enabled")
	}
	sel, _ := cfg.Selection()
	if got := strings.Join(sel.Strings(), ","); got != "RSI,EMA_30" {
		t.Errorf("selection = %s", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "market: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing file should be ignored: %v", err)
	}
	path := writeFile(t, ".env", "BTCINSIGHT_TEST_VAR=hello\n")
	t.Setenv("BTCINSIGHT_TEST_VAR", "")
	os.Unsetenv("BTCINSIGHT_TEST_VAR")
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("BTCINSIGHT_TEST_VAR"); got != "hello" {
		t.Errorf("BTCINSIGHT_TEST_VAR = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(c *Config) {}, ""},
		{"days", func(c *Config) { c.Market.Days = -1 }, "market.days"},
		{"series", func(c *Config) { c.Market.Series = "ticks" }, "market.series"},
		{"provider key", func(c *Config) { c.Indicators.Provider = "alphavantage" }, "indicators.api_key"},
		{"provider", func(c *Config) { c.Indicators.Provider = "other" }, "indicators.provider"},
		{"selection", func(c *Config) { c.Indicators.Default = []string{"MACD"} }, "MACD"},
		{"token", func(c *Config) { c.Inference.Token = "" }, "inference.token"},
		{"token disabled", func(c *Config) {
			c.Inference.Token = ""
			c.Inference.Disabled = true
		}, ""},
		{"redis", func(c *Config) { c.Cache.Backend = "redis" }, "cache.redis_addr"},
		{"backend", func(c *Config) { c.Cache.Backend = "disk" }, "cache.backend"},
		{"telegram", func(c *Config) { c.Telegram.BotToken = "x" }, "telegram"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			cfg.Inference.Token = "tok"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
