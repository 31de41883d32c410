package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Users    UsersConfig    `mapstructure:"users"`
	Instance InstanceConfig `mapstructure:"instance"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	RequestLimit float64       `mapstructure:"request_limit"`
}

type GatewayConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StreamConfig tunes the push channels held open for document viewers.
type StreamConfig struct {
	// OutboundQueueSize is the backlog a viewer may carry. A viewer that stays
	// further behind than this for OverflowGrace is disconnected.
	OutboundQueueSize int           `mapstructure:"outbound_queue_size"`
	OverflowGrace     time.Duration `mapstructure:"overflow_grace"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	// IdleTimeout closes a stream after this long; zero keeps it open until the client leaves.
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	HeartbeatSpec   string        `mapstructure:"heartbeat_spec"`
	InitLoadTimeout time.Duration `mapstructure:"init_load_timeout"`
}

type RelayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	DocumentTTL time.Duration `mapstructure:"document_ttl"`
}

type UsersConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8082)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.request_limit", 50.0)
	v.SetDefault("gateway.port", 8083)
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "docs_user:docs_pass@tcp(localhost:3306)/documents_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("stream.outbound_queue_size", 64)
	v.SetDefault("stream.overflow_grace", 2*time.Second)
	v.SetDefault("stream.write_timeout", 10*time.Second)
	v.SetDefault("stream.idle_timeout", time.Duration(0))
	v.SetDefault("stream.heartbeat_spec", "@every 15s")
	v.SetDefault("stream.init_load_timeout", 5*time.Second)
	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.channel", "document_events")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.document_ttl", 30*time.Second)
	v.SetDefault("users.base_url", "http://localhost:8081")
	v.SetDefault("users.timeout", 5*time.Second)
	v.SetDefault("instance.id", "document-service-1")
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) {
	// Environment variable mappings
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("gateway.port", "GATEWAY_PORT")
	_ = v.BindEnv("gateway.host", "GATEWAY_HOST")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("mysql.dsn", "MYSQL_DSN")
	_ = v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	_ = v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	_ = v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	_ = v.BindEnv("stream.outbound_queue_size", "STREAM_OUTBOUND_QUEUE_SIZE")
	_ = v.BindEnv("stream.overflow_grace", "STREAM_OVERFLOW_GRACE")
	_ = v.BindEnv("stream.write_timeout", "STREAM_WRITE_TIMEOUT")
	_ = v.BindEnv("stream.idle_timeout", "STREAM_IDLE_TIMEOUT")
	_ = v.BindEnv("stream.heartbeat_spec", "STREAM_HEARTBEAT_SPEC")
	_ = v.BindEnv("relay.enabled", "RELAY_ENABLED")
	_ = v.BindEnv("relay.channel", "RELAY_CHANNEL")
	_ = v.BindEnv("cache.enabled", "CACHE_ENABLED")
	_ = v.BindEnv("cache.document_ttl", "CACHE_DOCUMENT_TTL")
	_ = v.BindEnv("users.base_url", "USERS_BASE_URL")
	_ = v.BindEnv("users.timeout", "USERS_TIMEOUT")
	_ = v.BindEnv("instance.id", "INSTANCE_ID")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

// Load reads config.yaml from the usual locations, or the file named by
// CONFIG_FILE when it is set.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return LoadFromFile(path)
	}

	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/document-service/")

	v.AutomaticEnv()
	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return decode(v)
}

// LoadFromFile loads configuration from a specific file path, on top of the defaults.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if c.Gateway.Port <= 0 {
		return fmt.Errorf("gateway.port must be positive, got %d", c.Gateway.Port)
	}
	if c.Stream.OverflowGrace < 0 {
		return fmt.Errorf("stream.overflow_grace must not be negative, got %s", c.Stream.OverflowGrace)
	}
	if c.Stream.OutboundQueueSize <= 0 {
		return fmt.Errorf("stream.outbound_queue_size must be positive, got %d", c.Stream.OutboundQueueSize)
	}
	if c.Relay.Enabled && c.Relay.Channel == "" {
		return errors.New("relay.channel is required when relay is enabled")
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Gateway: %s:%d, Redis: %s, Relay: %t, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Gateway.Host,
		c.Gateway.Port,
		c.Redis.Address,
		c.Relay.Enabled,
		c.Instance.ID,
	)
}
