package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              string `json:"port" yaml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
}

type AlphaVantage struct {
	APIKey               string `json:"api_key" yaml:"api_key"`
	BaseURL              string `json:"base_url" yaml:"base_url"`
	SymbolSuffix         string `json:"symbol_suffix" yaml:"symbol_suffix"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                int    `json:"burst" yaml:"burst"`
	MaxConcurrency       int    `json:"max_concurrency" yaml:"max_concurrency"`
}

type Cache struct {
	Dir string `json:"dir" yaml:"dir"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type Config struct {
	Server       Server       `json:"server" yaml:"server"`
	AlphaVantage AlphaVantage `json:"alphavantage" yaml:"alphavantage"`
	Cache        Cache        `json:"cache" yaml:"cache"`
	Log          Log          `json:"log" yaml:"log"`
}

// defaultConfigFiles are tried in order when Load is called without a path.
var defaultConfigFiles = []string{"config.json", "config.yaml", "config.yml"}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 30},
		AlphaVantage: AlphaVantage{
			BaseURL:              "https://www.alphavantage.co",
			SymbolSuffix:         ".SAO",
			MaxRequestsPerMinute: 5,
			Burst:                1,
			MaxConcurrency:       2,
		},
		Cache: Cache{Dir: "./stock_data"},
		Log:   Log{Level: "info", Format: "text"},
	}
}

// Load reads JSON or YAML config from path, chosen by extension. If path is empty the
// default file names are tried; a missing file yields defaults. Environment variables
// override select fields so the API key need not live on disk.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, name := range defaultConfigFiles {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := unmarshal(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func unmarshal(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

// Validate reports settings the process cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AlphaVantage.APIKey) == "" {
		return errors.New("alphavantage api key is required (set ALPHAVANTAGE_API_KEY)")
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return errors.New("cache dir must not be empty")
	}
	if c.AlphaVantage.Burst <= 0 {
		return fmt.Errorf("alphavantage burst must be positive, got %d", c.AlphaVantage.Burst)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if x, ok := envInt("REQUEST_TIMEOUT_SEC"); ok && x > 0 {
		cfg.Server.RequestTimeoutSec = x
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_BASE_URL"); v != "" {
		cfg.AlphaVantage.BaseURL = v
	}
	// An explicitly empty suffix is meaningful: assets are then sent as given.
	if v, ok := os.LookupEnv("ALPHAVANTAGE_SYMBOL_SUFFIX"); ok {
		cfg.AlphaVantage.SymbolSuffix = v
	}
	if x, ok := envInt("ALPHAVANTAGE_MAX_RPM"); ok && x >= 0 {
		cfg.AlphaVantage.MaxRequestsPerMinute = x
	}
	if x, ok := envInt("ALPHAVANTAGE_BURST"); ok && x > 0 {
		cfg.AlphaVantage.Burst = x
	}
	if x, ok := envInt("ALPHAVANTAGE_MAX_CONCURRENCY"); ok && x > 0 {
		cfg.AlphaVantage.MaxConcurrency = x
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	x, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return x, true
}
