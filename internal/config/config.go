package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"BtcInsight/internal/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Asset struct {
		ID         string `yaml:"id"`   // CoinGecko coin id
		Name       string `yaml:"name"` // display name in prompts
		Symbol     string `yaml:"symbol"`
		VsCurrency string `yaml:"vs_currency"`
	} `yaml:"asset"`
	Market struct {
		BaseURL string        `yaml:"base_url"`
		APIKey  string        `yaml:"api_key"`
		Days    int           `yaml:"days"`
		Series  string        `yaml:"series"` // prices or ohlc
		UseSpot bool          `yaml:"use_spot"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"market"`
	Indicators struct {
		Provider string   `yaml:"provider"` // empty or alphavantage
		BaseURL  string   `yaml:"base_url"`
		APIKey   string   `yaml:"api_key"`
		Default  []string `yaml:"default"`
	} `yaml:"indicators"`
	Inference struct {
		Disabled     bool          `yaml:"disabled"`
		BaseURL      string        `yaml:"base_url"`
		Token        string        `yaml:"token"`
		Model        string        `yaml:"model"`
		MaxNewTokens int           `yaml:"max_new_tokens"`
		Temperature  float64       `yaml:"temperature"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"inference"`
	Question string `yaml:"question"`
	Cache    struct {
		Backend   string `yaml:"backend"` // memory, redis or none
		RedisAddr string `yaml:"redis_addr"`
		Prefix    string `yaml:"prefix"`
	} `yaml:"cache"`
	Telegram struct {
		BaseURL  string `yaml:"base_url"`
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		RunOnStart  bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment without overriding variables already set. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Market.APIKey, "COINGECKO_API_KEY")
	setString(&c.Inference.Token, "HF_API_TOKEN")
	setString(&c.Inference.Model, "HF_MODEL")
	setString(&c.Indicators.APIKey, "ALPHAVANTAGE_API_KEY")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Database.SQLitePath, "SQLITE_PATH")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Proxy, "HTTPS_PROXY")
	setString(&c.Schedule.RefreshCron, "CRON_REFRESH")
	setString(&c.Metrics.Addr, "METRICS_ADDR")

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
		c.Cache.Backend = "redis"
	}
	if v := os.Getenv("MARKET_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Market.Days = n
		}
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = v == "true" || v == "1"
	}
}

func (c *Config) applyDefaults() {
	if c.Asset.ID == "" {
		c.Asset.ID = "bitcoin"
	}
	if c.Asset.Name == "" {
		c.Asset.Name = "Bitcoin"
	}
	if c.Asset.Symbol == "" {
		c.Asset.Symbol = "BTCUSD"
	}
	if c.Asset.VsCurrency == "" {
		c.Asset.VsCurrency = "usd"
	}
	if c.Market.Days == 0 {
		c.Market.Days = 365
	}
	if c.Market.Series == "" {
		c.Market.Series = "prices"
	}
	if c.Market.Timeout == 0 {
		c.Market.Timeout = 10 * time.Second
	}
	if len(c.Indicators.Default) == 0 {
		for _, k := range model.AllKPIs {
			c.Indicators.Default = append(c.Indicators.Default, string(k))
		}
	}
	if c.Inference.MaxNewTokens == 0 {
		c.Inference.MaxNewTokens = 200
	}
	if c.Inference.Temperature == 0 {
		c.Inference.Temperature = 0.7
	}
	if c.Inference.Timeout == 0 {
		c.Inference.Timeout = 10 * time.Second
	}
	if c.Question == "" {
		c.Question = "What are the latest " + c.Asset.Name + " trends?"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 0 * * * *"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/btcinsight.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Selection parses the default indicator list.
func (c *Config) Selection() (model.Selection, []string) {
	return model.ParseSelection(c.Indicators.Default)
}

// TelegramEnabled reports whether both Telegram credentials are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Market.Days <= 0 {
		return fmt.Errorf("market.days must be positive")
	}
	switch c.Market.Series {
	case "prices", "ohlc":
	default:
		return fmt.Errorf("market.series must be prices or ohlc, got %q", c.Market.Series)
	}
	switch c.Indicators.Provider {
	case "":
	case "alphavantage":
		if c.Indicators.APIKey == "" {
			return fmt.Errorf("indicators.api_key is required for provider alphavantage")
		}
	default:
		return fmt.Errorf("unknown indicators.provider %q", c.Indicators.Provider)
	}
	if sel, unknown := c.Selection(); sel.Empty() {
		return fmt.Errorf("indicators.default has no valid indicators (unknown: %s)", strings.Join(unknown, ", "))
	}
	if !c.Inference.Disabled && c.Inference.Token == "" {
		return fmt.Errorf("inference.token is required (or set inference.disabled)")
	}
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for backend redis")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}
