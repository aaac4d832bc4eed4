package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFileEnvName = "STOREFRONT_CONFIG_FILE"

const (
	StorageMemory  = "memory"
	StorageLevelDB = "leveldb"
	StorageRedis   = "redis"
)

type pricing struct {
	DiscountRate      float64 `mapstructure:"discount_rate"`
	ShippingThreshold float64 `mapstructure:"shipping_threshold"`
	ShippingFee       float64 `mapstructure:"shipping_fee"`
	MaxQuantity       int     `mapstructure:"max_quantity"`
}

type redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type storage struct {
	Backend     string `mapstructure:"backend"`
	LevelDBPath string `mapstructure:"leveldb_path"`
	MaxSessions int    `mapstructure:"max_sessions"`
	Redis       redis  `mapstructure:"redis"`
}

type catalog struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type tlsFiles struct {
	CAFile   string `mapstructure:"ca_file"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

type security struct {
	TLS  tlsFiles `mapstructure:"tls"`
	User string   `mapstructure:"user"`
	Pass string   `mapstructure:"pass"`
}

type topics struct {
	Orders string `mapstructure:"orders"`
}

type consumers struct {
	OrderHistoryGroup string `mapstructure:"order_history_group"`
}

type broker struct {
	Enabled            bool      `mapstructure:"enabled"`
	SeedBrokers        []string  `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string  `mapstructure:"schema_registry_urls"`
	Topics             topics    `mapstructure:"topics"`
	Consumers          consumers `mapstructure:"consumers"`
	Security           security  `mapstructure:"security"`
}

type Config struct {
	LogLevel        slog.Level    `mapstructure:"log_level"`
	HTTPServerAddr  string        `mapstructure:"http_server_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SQLDB           string        `mapstructure:"sql_db"`
	Storage         storage       `mapstructure:"storage"`
	Pricing         pricing       `mapstructure:"pricing"`
	Catalog         catalog       `mapstructure:"catalog"`
	Broker          broker        `mapstructure:"broker"`
}

func Load() Config {
	cfg, err := LoadFile(getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

// LoadFile reads the YAML file at path over the defaults and validates
// the result.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http_server_addr", ":8080")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.leveldb_path", "./data/cart")
	v.SetDefault("storage.max_sessions", 10_000)
	v.SetDefault("storage.redis.addr", "localhost:6379")

	v.SetDefault("pricing.discount_rate", domain.DefaultDiscountRate.InexactFloat64())
	v.SetDefault("pricing.shipping_threshold", domain.DefaultShippingThreshold.InexactFloat64())
	v.SetDefault("pricing.shipping_fee", domain.DefaultShippingFee.InexactFloat64())
	v.SetDefault("pricing.max_quantity", domain.DefaultMaxQuantity)

	v.SetDefault("catalog.base_url", "https://dummyjson.com")
	v.SetDefault("catalog.timeout", 5*time.Second)
	v.SetDefault("catalog.cache_size", 256)
	v.SetDefault("catalog.cache_ttl", 5*time.Minute)

	v.SetDefault("broker.topics.orders", "orders")
	v.SetDefault("broker.consumers.order_history_group", "order-history")
}

func (c Config) Validate() error {
	var errs []error

	if c.HTTPServerAddr == "" {
		errs = append(errs, errors.New("http_server_addr is required"))
	}
	if c.SQLDB == "" {
		errs = append(errs, errors.New("sql_db is required"))
	}

	backends := []string{StorageMemory, StorageLevelDB, StorageRedis}
	if !slices.Contains(backends, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf(
			"storage.backend must be one of %v, got %q",
			backends, c.Storage.Backend,
		))
	}

	if c.Storage.MaxSessions <= 0 {
		errs = append(errs, errors.New("storage.max_sessions must be positive"))
	}

	if c.Pricing.DiscountRate < 0 || c.Pricing.DiscountRate >= 1 {
		errs = append(errs, errors.New("pricing.discount_rate must be in [0, 1)"))
	}
	if c.Pricing.ShippingFee < 0 || c.Pricing.ShippingThreshold < 0 {
		errs = append(errs, errors.New("pricing amounts must not be negative"))
	}
	if c.Pricing.MaxQuantity < 0 {
		errs = append(errs, errors.New("pricing.max_quantity must not be negative"))
	}

	if c.Broker.Enabled {
		if len(c.Broker.SeedBrokers) == 0 {
			errs = append(errs, errors.New("broker.seed_brokers is required"))
		}
		if len(c.Broker.SchemaRegistryURLs) == 0 {
			errs = append(errs, errors.New("broker.schema_registry_urls is required"))
		}
	}

	return errors.Join(errs...)
}

// DomainPricing converts the pricing section for the core.
func (c Config) DomainPricing() domain.Pricing {
	return domain.Pricing{
		DiscountRate:      decimal.NewFromFloat(c.Pricing.DiscountRate),
		ShippingThreshold: decimal.NewFromFloat(c.Pricing.ShippingThreshold),
		ShippingFee:       decimal.NewFromFloat(c.Pricing.ShippingFee),
		MaxQuantity:       c.Pricing.MaxQuantity,
	}
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	arg := cmdLine.String("config", "/config.yaml", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

func (c Config) Print() {
	tamplate := `
	General:
	LogLevel=%q
	HTTPServerAddr=%q
	ShutdownTimeout=%s

	Storage:
	Backend=%q
	LevelDBPath=%q
	MaxSessions=%d
	RedisAddr=%q
	RedisTTL=%s

	Pricing:
	DiscountRate=%v
	ShippingThreshold=%v
	ShippingFee=%v
	MaxQuantity=%d

	Catalog:
	BaseURL=%q
	Timeout=%s
	CacheSize=%d
	CacheTTL=%s

	BrokerConfig:
	Enabled=%t
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	Topics:
		Orders=%q
	Consumers:
		OrderHistoryGroup=%q
	TLS=%t
	SASL=%t

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(tamplate, "\n"),
		c.LogLevel,
		c.HTTPServerAddr,
		c.ShutdownTimeout,
		c.Storage.Backend,
		c.Storage.LevelDBPath,
		c.Storage.MaxSessions,
		c.Storage.Redis.Addr,
		c.Storage.Redis.TTL,
		c.Pricing.DiscountRate,
		c.Pricing.ShippingThreshold,
		c.Pricing.ShippingFee,
		c.Pricing.MaxQuantity,
		c.Catalog.BaseURL,
		c.Catalog.Timeout,
		c.Catalog.CacheSize,
		c.Catalog.CacheTTL,
		c.Broker.Enabled,
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.Topics.Orders,
		c.Broker.Consumers.OrderHistoryGroup,
		c.Broker.Security.TLS.CAFile != "",
		c.Broker.Security.User != "",
	)
}
