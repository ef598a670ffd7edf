package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "GATEWATCH_"

// Duration reads and writes TOML/env values such as "1s" or "500ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type GatewayConfig struct {
	Address     string   `toml:"address" env:"ADDRESS"`
	ReplayPath  string   `toml:"replay_path" env:"REPLAY_PATH"`
	Session     string   `toml:"session" env:"SESSION"`
	DialTimeout Duration `toml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

type HeartbeatConfig struct {
	Interval  Duration `toml:"interval" env:"INTERVAL"`
	Tolerance Duration `toml:"tolerance" env:"TOLERANCE"`
}

type OrdersConfig struct {
	MaxOrders         int      `toml:"max_orders" env:"MAX_ORDERS"`
	CorrelationWindow Duration `toml:"correlation_window" env:"CORRELATION_WINDOW"`
}

type HTTPConfig struct {
	Addr        string   `toml:"addr" env:"ADDR"`
	CorsOrigins []string `toml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	// CommandToken guards POST /commands. Empty leaves it open.
	CommandToken string `toml:"command_token" env:"COMMAND_TOKEN"`
}

// KafkaConfig enables the order change sink when Brokers and Topic are set.
type KafkaConfig struct {
	Brokers  []string `toml:"brokers" env:"BROKERS" envSeparator:","`
	Topic    string   `toml:"topic" env:"TOPIC"`
	ClientID string   `toml:"client_id" env:"CLIENT_ID"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && strings.TrimSpace(k.Topic) != ""
}

// RedisConfig enables liveness publication when Addr and Channel are set.
type RedisConfig struct {
	Addr     string `toml:"addr" env:"ADDR"`
	Password string `toml:"password" env:"PASSWORD"`
	DB       int    `toml:"db" env:"DB"`
	Channel  string `toml:"channel" env:"CHANNEL"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != "" && strings.TrimSpace(r.Channel) != ""
}

type Config struct {
	Gateway   GatewayConfig   `toml:"gateway" envPrefix:"GATEWAY_"`
	Heartbeat HeartbeatConfig `toml:"heartbeat" envPrefix:"HEARTBEAT_"`
	Orders    OrdersConfig    `toml:"orders" envPrefix:"ORDERS_"`
	HTTP      HTTPConfig      `toml:"http" envPrefix:"HTTP_"`
	Kafka     KafkaConfig     `toml:"kafka" envPrefix:"KAFKA_"`
	Redis     RedisConfig     `toml:"redis" envPrefix:"REDIS_"`
}

func Default() Config {
	return Config{
		Gateway: GatewayConfig{
			Address:     "127.0.0.1:7001",
			Session:     "GATEWATCH",
			DialTimeout: Duration{5 * time.Second},
		},
		Heartbeat: HeartbeatConfig{
			Interval:  Duration{time.Second},
			Tolerance: Duration{500 * time.Millisecond},
		},
		Orders: OrdersConfig{
			MaxOrders:         10000,
			CorrelationWindow: Duration{30 * time.Second},
		},
		HTTP: HTTPConfig{
			Addr:        ":9400",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		Kafka: KafkaConfig{
			ClientID: "gatewatch",
		},
	}
}

// Load reads path over the defaults, applies GATEWATCH_* environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("dotenv load failed (%s): %w", path, err)
	}
	return nil
}

func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config env parse failed: %w", err)
	}
	return nil
}

// overlayFile copies only the keys present in the file onto cfg.
func overlayFile(cfg *Config, path string) error {
	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("gateway", "address") {
		cfg.Gateway.Address = strings.TrimSpace(raw.Gateway.Address)
	}
	if meta.IsDefined("gateway", "replay_path") {
		cfg.Gateway.ReplayPath = strings.TrimSpace(raw.Gateway.ReplayPath)
	}
	if meta.IsDefined("gateway", "session") {
		cfg.Gateway.Session = strings.TrimSpace(raw.Gateway.Session)
	}
	if meta.IsDefined("gateway", "dial_timeout") {
		cfg.Gateway.DialTimeout = raw.Gateway.DialTimeout
	}
	if meta.IsDefined("heartbeat", "interval") {
		cfg.Heartbeat.Interval = raw.Heartbeat.Interval
	}
	if meta.IsDefined("heartbeat", "tolerance") {
		cfg.Heartbeat.Tolerance = raw.Heartbeat.Tolerance
	}
	if meta.IsDefined("orders", "max_orders") {
		cfg.Orders.MaxOrders = raw.Orders.MaxOrders
	}
	if meta.IsDefined("orders", "correlation_window") {
		cfg.Orders.CorrelationWindow = raw.Orders.CorrelationWindow
	}
	if meta.IsDefined("http", "addr") {
		cfg.HTTP.Addr = strings.TrimSpace(raw.HTTP.Addr)
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.HTTP.CorsOrigins = raw.HTTP.CorsOrigins
	}
	if meta.IsDefined("http", "command_token") {
		cfg.HTTP.CommandToken = strings.TrimSpace(raw.HTTP.CommandToken)
	}
	if meta.IsDefined("kafka", "brokers") {
		cfg.Kafka.Brokers = raw.Kafka.Brokers
	}
	if meta.IsDefined("kafka", "topic") {
		cfg.Kafka.Topic = strings.TrimSpace(raw.Kafka.Topic)
	}
	if meta.IsDefined("kafka", "client_id") {
		cfg.Kafka.ClientID = strings.TrimSpace(raw.Kafka.ClientID)
	}
	if meta.IsDefined("redis", "addr") {
		cfg.Redis.Addr = strings.TrimSpace(raw.Redis.Addr)
	}
	if meta.IsDefined("redis", "password") {
		cfg.Redis.Password = raw.Redis.Password
	}
	if meta.IsDefined("redis", "db") {
		cfg.Redis.DB = raw.Redis.DB
	}
	if meta.IsDefined("redis", "channel") {
		cfg.Redis.Channel = strings.TrimSpace(raw.Redis.Channel)
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Gateway.Address) == "" && strings.TrimSpace(c.Gateway.ReplayPath) == "" {
		return fmt.Errorf("gateway needs address or replay_path")
	}
	if len(c.Gateway.Session) > 10 {
		return fmt.Errorf("gateway session %q longer than 10 bytes", c.Gateway.Session)
	}
	if c.Gateway.DialTimeout.Duration <= 0 {
		return fmt.Errorf("gateway dial_timeout must be positive")
	}
	if c.Heartbeat.Interval.Duration <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.Heartbeat.Tolerance.Duration < 0 {
		return fmt.Errorf("heartbeat tolerance must not be negative")
	}
	if c.Orders.MaxOrders <= 0 {
		return fmt.Errorf("orders max_orders must be positive")
	}
	if c.Orders.CorrelationWindow.Duration <= 0 {
		return fmt.Errorf("orders correlation_window must be positive")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("http addr is required")
	}
	if strings.TrimSpace(c.Kafka.Topic) != "" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka topic set without brokers")
	}
	if strings.TrimSpace(c.Redis.Channel) != "" && strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("redis channel set without addr")
	}
	return nil
}
