package config

import (
	// Go Internal Packages
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	// Local Packages
	errors "bbps-hub/errors"
)

// DefaultJWTSecret is the placeholder secret shipped in DefaultConfig.
const DefaultJWTSecret = "change-me"

var DefaultConfig = []byte(`
application: "bbps-hub"

logger:
  level: "debug"

is_prod_mode: false

http:
  address: ":8080"
  read_timeout: "7s"
  write_timeout: "45s"
  rate_limit_per_second: 5
  rate_limit_burst: 10
  allowed_origins:
    - "*"
  trusted_proxies: []

auth:
  jwt_secret: "change-me"

storage:
  driver: "mongo"

mongo:
  uri: "mongodb://localhost:27017"
  database: "bbps"

redis:
  uri: "localhost:6379"
  password: ""
  dlq_list: "failed-bbps-webhooks"

kafka:
  brokers:
    - "localhost:9092"
  consume: false
  produce: false
  topic: "bbps-webhooks"
  events_topic: "bbps-payment-events"
  records_per_poll: 500
  consumer_name: "bbps-webhook-worker"

eko:
  env: "staging"
  staging_url: "https://staging.eko.in/ekoapi/v2"
  production_url: ""
  developer_key: ""
  initiator_id: ""
  authenticator_key: ""
  timeout: "30s"

bills:
  fetch_ttl: "24h"

operator_subcategories:
  version: "2024-06"
  tags:
    mobile_postpaid: [172, 615, 41, 89, 27, 507, 2995]
    mobile_prepaid: [5, 1, 90, 91, 400]
`)

type Config struct {
	Application   string        `koanf:"application"`
	Logger        Logger        `koanf:"logger"`
	IsProdMode    bool          `koanf:"is_prod_mode"`
	HTTP          HTTP          `koanf:"http"`
	Auth          Auth          `koanf:"auth"`
	Storage       Storage       `koanf:"storage"`
	Mongo         Mongo         `koanf:"mongo"`
	Redis         Redis         `koanf:"redis"`
	Kafka         Kafka         `koanf:"kafka"`
	Eko           Eko           `koanf:"eko"`
	Bills         Bills         `koanf:"bills"`
	SubCategories SubCategories `koanf:"operator_subcategories"`
}

type Logger struct {
	Level string `koanf:"level"`
}

type HTTP struct {
	Address            string        `koanf:"address"`
	ReadTimeout        time.Duration `koanf:"read_timeout"`
	WriteTimeout       time.Duration `koanf:"write_timeout"`
	RateLimitPerSecond float64       `koanf:"rate_limit_per_second"`
	RateLimitBurst     int           `koanf:"rate_limit_burst"`
	AllowedOrigins     []string      `koanf:"allowed_origins"`
	TrustedProxies     []string      `koanf:"trusted_proxies"`
}

// TrustedProxyPrefixes parses http.trusted_proxies. Entries are either a
// CIDR block or a single address.
func (h HTTP) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(h.TrustedProxies))
	for _, entry := range h.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%q is neither an address nor a CIDR block", entry)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type Auth struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type Storage struct {
	Driver string `koanf:"driver"`
}

type Mongo struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type Redis struct {
	URI      string `koanf:"uri"`
	Password string `koanf:"password"`
	DLQList  string `koanf:"dlq_list"`
}

type Kafka struct {
	Brokers        []string `koanf:"brokers"`
	Consume        bool     `koanf:"consume"`
	Produce        bool     `koanf:"produce"`
	Topic          string   `koanf:"topic"`
	EventsTopic    string   `koanf:"events_topic"`
	RecordsPerPoll int      `koanf:"records_per_poll"`
	ConsumerName   string   `koanf:"consumer_name"`
}

type Eko struct {
	Env              string        `koanf:"env"`
	StagingURL       string        `koanf:"staging_url"`
	ProductionURL    string        `koanf:"production_url"`
	DeveloperKey     string        `koanf:"developer_key"`
	InitiatorID      string        `koanf:"initiator_id"`
	AuthenticatorKey string        `koanf:"authenticator_key"`
	Timeout          time.Duration `koanf:"timeout"`
}

type Bills struct {
	FetchTTL time.Duration `koanf:"fetch_ttl"`
}

// LoadSecrets Loads the secret variables from the environment and overrides the config
func LoadSecrets(k Config) Config {
	setString := func(dst *string, env string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	setString(&k.Mongo.URI, "MONGO_URI")
	setString(&k.Redis.URI, "REDIS_URI")
	setString(&k.Redis.Password, "REDIS_PASSWORD")
	setString(&k.Auth.JWTSecret, "JWT_SECRET")
	setString(&k.Eko.Env, "EKO_ENV")
	setString(&k.Eko.StagingURL, "EKO_STAGING_URL")
	setString(&k.Eko.ProductionURL, "EKO_PRODUCTION_URL")
	setString(&k.Eko.DeveloperKey, "DEVELOPER_KEY")
	setString(&k.Eko.InitiatorID, "INITIATOR_ID")
	setString(&k.Eko.AuthenticatorKey, "AUTHENTICATOR_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		k.Kafka.Brokers = strings.Split(brokers, ",")
	}

	if isProd := os.Getenv("IS_PROD_MODE"); isProd != "" {
		k.IsProdMode = isProd == "true"
	}
	return k
}

// Validate validates the configuration
func (c *Config) Validate() error {
	ve := errors.ValidationErrs()

	if c.Application == "" {
		ve.Add("application", "cannot be empty")
	}
	if c.Logger.Level == "" {
		ve.Add("logger.level", "cannot be empty")
	}
	if c.HTTP.Address == "" {
		ve.Add("http.address", "cannot be empty")
	}
	if c.Auth.JWTSecret == "" {
		ve.Add("auth.jwt_secret", "cannot be empty")
	}
	if c.IsProdMode && c.Auth.JWTSecret == DefaultJWTSecret {
		ve.Add("auth.jwt_secret", "must be changed from the default in prod mode")
	}
	if _, err := c.HTTP.TrustedProxyPrefixes(); err != nil {
		ve.Add("http.trusted_proxies", err.Error())
	}

	switch c.Storage.Driver {
	case "mongo":
		if c.Mongo.URI == "" {
			ve.Add("mongo.uri", "cannot be empty")
		}
		if c.Mongo.Database == "" {
			ve.Add("mongo.database", "cannot be empty")
		}
	case "memory":
	default:
		ve.Add("storage.driver", "must be one of mongo, memory")
	}

	if (c.Kafka.Consume || c.Kafka.Produce) && len(c.Kafka.Brokers) == 0 {
		ve.Add("kafka.brokers", "cannot be empty")
	}
	if c.Kafka.Consume && c.Redis.URI == "" {
		ve.Add("redis.uri", "cannot be empty when consuming webhooks")
	}

	switch strings.ToLower(c.Eko.Env) {
	case "staging":
		if c.Eko.StagingURL == "" {
			ve.Add("eko.staging_url", "cannot be empty")
		}
	case "production":
		if c.Eko.ProductionURL == "" {
			ve.Add("eko.production_url", "must be set when eko.env is production")
		}
	default:
		ve.Add("eko.env", "must be one of staging, production")
	}
	if c.Eko.Timeout <= 0 {
		ve.Add("eko.timeout", "must be positive")
	}
	if c.Bills.FetchTTL <= 0 {
		ve.Add("bills.fetch_ttl", "must be positive")
	}

	if err := c.SubCategories.Validate(); err != nil {
		ve.Add("operator_subcategories", err.Error())
	}

	if err := ve.Err(); err != nil {
		return errors.E(errors.Config, "invalid configuration", err)
	}
	return nil
}
