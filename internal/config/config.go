package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	WeatherAPIKey      string
	WeatherCurrentURL  string
	WeatherForecastURL string
	WeatherGeocodeURL  string
	WeatherAPITimeout  time.Duration

	RemoteStoreURL     string
	RemoteStoreToken   string
	RemoteStoreTimeout time.Duration

	CacheBackend string // "in_memory", "filesystem" or "memcached"
	CacheTTL     time.Duration
	CacheDir     string

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	BatchSize  int
	BatchPause time.Duration

	ProbeURL     string
	ProbeTimeout time.Duration

	FocusDebounce time.Duration

	RequestTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		CurrentURL  string `yaml:"current_url"`
		ForecastURL string `yaml:"forecast_url"`
		GeocodeURL  string `yaml:"geocode_url"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"weather_api"`

	RemoteStore struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"remote_store"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Dir       string `yaml:"dir"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Sync struct {
		BatchSize  int    `yaml:"batch_size"`
		BatchPause string `yaml:"batch_pause"`
	} `yaml:"sync"`

	Connectivity struct {
		ProbeURL     string `yaml:"probe_url"`
		ProbeTimeout string `yaml:"probe_timeout"`
	} `yaml:"connectivity"`

	Triggers struct {
		FocusDebounce string `yaml:"focus_debounce"`
	} `yaml:"triggers"`

	Reliability struct {
		RequestTimeout string `yaml:"request_timeout"`
		RateLimitRPS   int    `yaml:"rate_limit_rps"`
		RateLimitBurst int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	WeatherAPIKey    string `yaml:"weather_api_key"`
	RemoteStoreToken string `yaml:"remote_store_token"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// API key comes from WEATHER_API_KEY env or secrets file; the remote store token from
// REMOTE_STORE_TOKEN env or secrets file. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var sec secretsFile
	secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
	secretsData, err := os.ReadFile(secretsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read secrets file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(secretsData, &sec); err != nil {
			return nil, fmt.Errorf("parse secrets file: %w", err)
		}
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		cfg.WeatherAPIKey = sec.WeatherAPIKey
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherCurrentURL = fc.WeatherAPI.CurrentURL
	cfg.WeatherForecastURL = fc.WeatherAPI.ForecastURL
	cfg.WeatherGeocodeURL = fc.WeatherAPI.GeocodeURL
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 2*time.Second)

	cfg.RemoteStoreURL = strings.TrimSpace(os.Getenv("REMOTE_STORE_URL"))
	if cfg.RemoteStoreURL == "" {
		cfg.RemoteStoreURL = strings.TrimSpace(fc.RemoteStore.URL)
	}
	if cfg.RemoteStoreURL == "" {
		return nil, fmt.Errorf("remote_store.url required (or REMOTE_STORE_URL env)")
	}
	cfg.RemoteStoreToken = os.Getenv("REMOTE_STORE_TOKEN")
	if cfg.RemoteStoreToken == "" {
		cfg.RemoteStoreToken = sec.RemoteStoreToken
	}
	cfg.RemoteStoreTimeout = parseDuration(fc.RemoteStore.Timeout, 10*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, time.Hour)
	cfg.CacheDir = strings.TrimSpace(fc.Cache.Dir)
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cwd, "data")
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.BatchSize = fc.Sync.BatchSize
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	cfg.BatchPause = parseDuration(fc.Sync.BatchPause, time.Second)

	cfg.ProbeURL = strings.TrimSpace(fc.Connectivity.ProbeURL)
	if cfg.ProbeURL == "" {
		cfg.ProbeURL = "https://clients3.google.com/generate_204"
	}
	cfg.ProbeTimeout = parseDuration(fc.Connectivity.ProbeTimeout, 3*time.Second)

	cfg.FocusDebounce = parseDuration(fc.Triggers.FocusDebounce, 300*time.Millisecond)

	cfg.RequestTimeout = parseDuration(fc.Reliability.RequestTimeout, 15*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "filesystem", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory, filesystem or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
