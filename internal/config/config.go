package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Cache     CacheConfig     `yaml:"cache"`
	Directory DirectoryConfig `yaml:"directory"`
	Stats     StatsConfig     `yaml:"stats"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

// UpstreamConfig holds the VimeWorld and directory API endpoints
type UpstreamConfig struct {
	UserAPIBase      string        `yaml:"user_api_base"`
	DirectoryAPIBase string        `yaml:"directory_api_base"`
	CORSProxy        string        `yaml:"cors_proxy"`
	SkinBase         string        `yaml:"skin_base"`
	Timeout          time.Duration `yaml:"timeout"`
}

// CacheConfig holds player cache and recent-nick settings
type CacheConfig struct {
	PlayerTTL     time.Duration `yaml:"player_ttl"`
	MaxRecent     int           `yaml:"max_recent"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepEnabled  bool          `yaml:"sweep_enabled"`
}

// DirectoryConfig holds player directory behaviour
type DirectoryConfig struct {
	PageSize       int           `yaml:"page_size"`
	SearchDebounce time.Duration `yaml:"search_debounce"`
	PageWindow     int           `yaml:"page_window"`
}

// StatsConfig holds rank statistics refresh settings
type StatsConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Enabled         bool          `yaml:"enabled"`
}

// StorageConfig selects the visitor state backend
type StorageConfig struct {
	// Backend is "memory" or "redis"
	Backend string `yaml:"backend"`
	// MaxValueBytes caps a stored value in the memory backend; 0 means unlimited
	MaxValueBytes int `yaml:"max_value_bytes"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	// Retention bounds how long lookup history is kept; pruned by the sweeper
	Retention time.Duration `yaml:"retention"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration for cache warm-up
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	Enabled      bool          `yaml:"enabled"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables first
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = 365 * 24 * time.Hour
	}

	// Upstream defaults
	if c.Upstream.UserAPIBase == "" {
		c.Upstream.UserAPIBase = "https://api.vimeworld.com"
	}
	if c.Upstream.DirectoryAPIBase == "" {
		c.Upstream.DirectoryAPIBase = "https://vimetop.ru/api/v1"
	}
	if c.Upstream.SkinBase == "" {
		c.Upstream.SkinBase = "https://skin.vimeworld.com"
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 30 * time.Second
	}

	// Cache defaults
	if c.Cache.PlayerTTL == 0 {
		c.Cache.PlayerTTL = 5 * time.Minute
	}
	if c.Cache.MaxRecent == 0 {
		c.Cache.MaxRecent = 5
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = 10 * time.Minute
	}

	// Directory defaults
	if c.Directory.PageSize == 0 {
		c.Directory.PageSize = 100
	}
	if c.Directory.SearchDebounce == 0 {
		c.Directory.SearchDebounce = 500 * time.Millisecond
	}
	if c.Directory.PageWindow == 0 {
		c.Directory.PageWindow = 5
	}

	// Stats defaults
	if c.Stats.RefreshInterval == 0 {
		c.Stats.RefreshInterval = 15 * time.Minute
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 2
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 10
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 1
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}
	if c.Postgres.Retention == 0 {
		c.Postgres.Retention = 30 * 24 * time.Hour
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "vimestats-warmup"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "vimestats-warmup"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 50
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 2 * time.Second
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
}

// validate rejects settings that cannot work
func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream timeout must not be negative")
	}
	if c.Storage.MaxValueBytes < 0 {
		return fmt.Errorf("storage max_value_bytes must not be negative")
	}
	return nil
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Cache.SweepEnabled = true
	cfg.Stats.Enabled = true
	return cfg
}
