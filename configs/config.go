package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

type MilestoneConfig struct {
	SpendLevel  string `koanf:"spend_level"`
	RewardValue string `koanf:"reward_value"`
}

type RewardConfig struct {
	ID          string `koanf:"id"`
	PointsCost  int64  `koanf:"points_cost"`
	CodePrefix  string `koanf:"code_prefix"`
	Description string `koanf:"description"`
	Kind        string `koanf:"kind"`
	Value       string `koanf:"value"`
}

type Redis struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type Rabbit struct {
	Enabled      bool   `koanf:"enabled"`
	URL          string `koanf:"url"`
	Exchange     string `koanf:"exchange"`
	KitchenQueue string `koanf:"kitchen_queue"`
	Prefetch     int    `koanf:"prefetch"`
}

type Kafka struct {
	Enabled         bool     `koanf:"enabled"`
	Brokers         []string `koanf:"brokers"`
	TopicEvents     string   `koanf:"topic_events"`
	TopicPromotions string   `koanf:"topic_promotions"`
	GroupID         string   `koanf:"group_id"`
}

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout    time.Duration `koanf:"read_timeout"`
		WriteTimeout   time.Duration `koanf:"write_timeout"`
		IdleTimeout    time.Duration `koanf:"idle_timeout"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
		CORSOrigins    []string      `koanf:"cors_origins"`
	} `koanf:"http"`

	Storage struct {
		Driver          string        `koanf:"driver"` // mysql | postgres | memory
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"storage"`

	Redis Redis `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	Rabbit Rabbit `koanf:"rabbitmq"`

	Kafka Kafka `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	Pickup struct {
		SecretB64 string        `koanf:"secret_b64url"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"pickup"`

	Loyalty struct {
		PointsPerOrder int64             `koanf:"points_per_order"`
		Milestones     []MilestoneConfig `koanf:"milestones"`
		Rewards        []RewardConfig    `koanf:"rewards"`
	} `koanf:"loyalty"`

	Retry struct {
		Attempts  uint64        `koanf:"attempts"`
		BaseDelay time.Duration `koanf:"base_delay"`
		MaxDelay  time.Duration `koanf:"max_delay"`
	} `koanf:"retry"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix ORDERAPI_, nested with __)
	// e.g. ORDERAPI_STORAGE__DSN, ORDERAPI_PICKUP__SECRET_B64URL
	if err := k.Load(env.Provider("ORDERAPI_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ORDERAPI_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pickup.TTL <= 0 {
		c.Pickup.TTL = 24 * time.Hour
	}
	if c.Loyalty.PointsPerOrder == 0 {
		c.Loyalty.PointsPerOrder = 5
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = 50 * time.Millisecond
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = time.Second
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 3 * time.Second
	}
	if c.Security.TTL <= 0 {
		c.Security.TTL = time.Hour
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "mysql"
	}
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	switch c.Storage.Driver {
	case "mysql", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn required for driver %q", c.Storage.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver %q not supported", c.Storage.Driver)
	}
	if c.Pickup.SecretB64 == "" {
		return fmt.Errorf("pickup.secret_b64url required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if _, err := c.Milestones(); err != nil {
		return err
	}
	return nil
}

// Milestones parses loyalty.milestones and checks they are strictly ascending.
func (c Config) Milestones() ([]MilestoneSpec, error) {
	out := make([]MilestoneSpec, 0, len(c.Loyalty.Milestones))
	var prev decimal.Decimal
	for i, m := range c.Loyalty.Milestones {
		level, err := decimal.NewFromString(m.SpendLevel)
		if err != nil {
			return nil, fmt.Errorf("loyalty.milestones[%d].spend_level: %w", i, err)
		}
		reward, err := decimal.NewFromString(m.RewardValue)
		if err != nil {
			return nil, fmt.Errorf("loyalty.milestones[%d].reward_value: %w", i, err)
		}
		if !level.IsPositive() || !reward.IsPositive() {
			return nil, fmt.Errorf("loyalty.milestones[%d]: values must be positive", i)
		}
		if i > 0 && !level.GreaterThan(prev) {
			return nil, fmt.Errorf("loyalty.milestones must be strictly ascending")
		}
		prev = level
		out = append(out, MilestoneSpec{SpendLevel: level, RewardValue: reward})
	}
	return out, nil
}

type MilestoneSpec struct {
	SpendLevel  decimal.Decimal
	RewardValue decimal.Decimal
}
