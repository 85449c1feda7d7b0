package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from an optional
// YAML file named by MOVETRACK_CONFIG, then environment variables override.
type Config struct {
	Server            Server   `yaml:"server"`
	Database          Database `yaml:"database"`
	Redis             Redis    `yaml:"redis"`
	Kafka             Kafka    `yaml:"kafka"`
	Delivery          Delivery `yaml:"delivery"`
	Export            Export   `yaml:"export"`
	Auth              Auth     `yaml:"auth"`
	Notify            Notify   `yaml:"notify"`
	SubscriptionsFile string   `yaml:"subscriptions_file"`
	LocationsFile     string   `yaml:"locations_file"`
	LogLevel          string   `yaml:"log_level"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// IntakeRatePerSecond throttles event intake per supplier; 0 disables it.
	IntakeRatePerSecond float64 `yaml:"intake_rate_per_second"`
	IntakeBurst         int     `yaml:"intake_burst"`
}

type Database struct {
	// Driver is "postgres" or "sqlite". Empty selects the in-memory stores.
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// Redis enables the distributed per-eventable lock when URL is set.
type Redis struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// Kafka carries notification tasks between the outbox relay and the
// dispatcher. Without brokers tasks go through an in-process channel.
type Kafka struct {
	Brokers       []string `yaml:"brokers"`
	TasksTopic    string   `yaml:"tasks_topic"`
	ActionsTopic  string   `yaml:"actions_topic"`
	ConsumerGroup string   `yaml:"consumer_group"`
	Partitions    int32    `yaml:"partitions"`
}

type Delivery struct {
	BatchSize        int           `yaml:"batch_size"`
	MaxAttempts      int           `yaml:"max_attempts"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	RatePerSecond    float64       `yaml:"rate_per_second"`
	Burst            int           `yaml:"burst"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
	RelayInterval    time.Duration `yaml:"relay_interval"`
}

// Export configures the S3 feed export.
type Export struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type Auth struct {
	JWTSigningKey string `yaml:"jwt_signing_key"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	// OpsTokenHash is a bcrypt hash of the ops token.
	OpsTokenHash string `yaml:"ops_token_hash"`
}

// Notify configures the email API client.
type Notify struct {
	BaseURL    string `yaml:"base_url"`
	ServiceID  string `yaml:"service_id"`
	SecretKey  string `yaml:"secret_key"`
	TemplateID string `yaml:"template_id"`
}

func defaults() Config {
	return Config{
		Server: Server{
			Addr:                ":8080",
			ShutdownTimeout:     10 * time.Second,
			IntakeRatePerSecond: 20,
			IntakeBurst:         40,
		},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			LockTTL:      10 * time.Second,
		},
		Kafka: Kafka{
			TasksTopic:    "movetrack.notification-tasks",
			ActionsTopic:  "movetrack.external-actions",
			ConsumerGroup: "movetrack-dispatcher",
			Partitions:    3,
		},
		Delivery: Delivery{
			BatchSize:        50,
			MaxAttempts:      10,
			PollInterval:     2 * time.Second,
			RatePerSecond:    20,
			Burst:            5,
			Timeout:          10 * time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
			RelayInterval:    500 * time.Millisecond,
		},
		Export: Export{Prefix: "feed/", Region: "eu-west-2"},
		Auth: Auth{
			// Use a default for development - should be overridden in production
			JWTSigningKey: "dev-secret-key-change-in-production",
			Issuer:        "movetrack",
			Audience:      "movetrack-suppliers",
		},
		Notify:   Notify{BaseURL: "https://api.notifications.service.gov.uk"},
		LogLevel: "info",
	}
}

// FromEnv builds the config so main stays lean.
func FromEnv() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("MOVETRACK_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("MOVETRACK_ADDR", &cfg.Server.Addr)
	str("MOVETRACK_LOG_LEVEL", &cfg.LogLevel)
	str("DATABASE_DRIVER", &cfg.Database.Driver)
	str("DATABASE_URL", &cfg.Database.DSN)
	str("REDIS_URL", &cfg.Redis.URL)
	str("KAFKA_TASKS_TOPIC", &cfg.Kafka.TasksTopic)
	str("EXPORT_BUCKET", &cfg.Export.Bucket)
	str("EXPORT_PREFIX", &cfg.Export.Prefix)
	str("AWS_REGION", &cfg.Export.Region)
	str("EXPORT_ENDPOINT", &cfg.Export.Endpoint)
	str("JWT_SIGNING_KEY", &cfg.Auth.JWTSigningKey)
	str("JWT_ISSUER", &cfg.Auth.Issuer)
	str("JWT_AUDIENCE", &cfg.Auth.Audience)
	str("OPS_TOKEN_HASH", &cfg.Auth.OpsTokenHash)
	str("NOTIFY_BASE_URL", &cfg.Notify.BaseURL)
	str("NOTIFY_SERVICE_ID", &cfg.Notify.ServiceID)
	str("NOTIFY_SECRET_KEY", &cfg.Notify.SecretKey)
	str("NOTIFY_TEMPLATE_ID", &cfg.Notify.TemplateID)
	str("SUBSCRIPTIONS_FILE", &cfg.SubscriptionsFile)
	str("LOCATIONS_FILE", &cfg.LocationsFile)

	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v, ok := os.LookupEnv("DELIVERY_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DELIVERY_MAX_ATTEMPTS: %w", err)
		}
		cfg.Delivery.MaxAttempts = n
	}
	if v, ok := os.LookupEnv("INTAKE_RATE_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("INTAKE_RATE_PER_SECOND: %w", err)
		}
		cfg.Server.IntakeRatePerSecond = f
	}
	if v, ok := os.LookupEnv("DELIVERY_RATE_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DELIVERY_RATE_PER_SECOND: %w", err)
		}
		cfg.Delivery.RatePerSecond = f
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver != "" && c.Database.DSN == "" {
		return fmt.Errorf("database driver %s needs a DSN", c.Database.Driver)
	}
	if c.Delivery.MaxAttempts < 1 {
		return fmt.Errorf("delivery max attempts must be positive")
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}
