// Package config builds the single service configuration at startup:
// defaults, then an optional YAML file, then .env, then the process environment.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Port             string `yaml:"port"`
	LogLevel         string `yaml:"logLevel"`
	AllowOrigin      string `yaml:"allowOrigin"`
	DatabaseURL      string `yaml:"databaseUrl"`
	DBMigrate        bool   `yaml:"dbMigrate"`
	RedisURL         string `yaml:"redisUrl"`
	WebhookSecret    string `yaml:"webhookSecret"`
	WebhookSecretHex bool   `yaml:"webhookSecretHex"` // WebhookSecret is hex-encoded
	ListLimit        int    `yaml:"listLimit"`
	MemoryCapacity   int    `yaml:"memoryCapacity"`

	Source   SourceConfig   `yaml:"source"`
	Carrier  CarrierConfig  `yaml:"carrier"`
	Outbound OutboundConfig `yaml:"outbound"`
	Auth     AuthConfig     `yaml:"auth"`
	Shipping ShippingConfig `yaml:"shipping"`
}

// SourceConfig points at the storefront Admin API (catalog, fulfillment).
type SourceConfig struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	APIVersion     string `yaml:"apiVersion"`
	NotifyCustomer bool   `yaml:"notifyCustomer"`
}

type CarrierConfig struct {
	URL    string       `yaml:"url"`
	Token  string       `yaml:"token"`
	Sender SenderConfig `yaml:"sender"`

	// TrackingCompany is the carrier name sent with fulfillment tracking info.
	TrackingCompany string `yaml:"trackingCompany"`
}

// SenderConfig is the shipper's own address printed on labels.
type SenderConfig struct {
	Name        string `yaml:"name"`
	Street      string `yaml:"street"`
	Postcode    string `yaml:"postcode"`
	City        string `yaml:"city"`
	CountryCode string `yaml:"countryCode"`
	Phone       string `yaml:"phone"`
	Email       string `yaml:"email"`
}

type OutboundConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
}

type AuthConfig struct {
	Mode       string `yaml:"mode"` // none, hmac
	HMACSecret string `yaml:"hmacSecret"`
}

type ShippingConfig struct {
	// MethodTitles maps an exact shipping-line title to a shipping method.
	MethodTitles map[string]string `yaml:"methodTitles"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:           "8080",
		LogLevel:       "info",
		DBMigrate:      true,
		ListLimit:      50,
		MemoryCapacity: 500,
		Source:         SourceConfig{APIVersion: "2024-10"},
		Carrier:        CarrierConfig{TrackingCompany: "Posti"},
		Outbound:       OutboundConfig{Timeout: 10 * time.Second, RPS: 2, Burst: 4},
		Auth:           AuthConfig{Mode: "none"},
		Shipping: ShippingConfig{MethodTitles: map[string]string{
			"Standard - Pickup Point": "service_point",
			"Pickup Point":            "service_point",
		}},
	}
}

// Load reads .env (if present) into the environment and parses the result.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}
	return Parse(os.LookupEnv, os.ReadFile)
}

// Parse builds a Config from a lookup function. CONFIG_FILE, when set, names a YAML
// file applied before the environment overrides.
func Parse(lookup func(string) (string, bool), readFile func(string) ([]byte, error)) (Config, error) {
	cfg := Default()
	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		data, err := readFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.LoadYAML(data); err != nil {
			return Config{}, err
		}
	}
	e := envReader{lookup: lookup}
	e.str("PORT", &cfg.Port)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("ALLOW_ORIGIN", &cfg.AllowOrigin)
	e.str("DATABASE_URL", &cfg.DatabaseURL)
	e.boolean("DB_MIGRATE", &cfg.DBMigrate)
	e.str("REDIS_URL", &cfg.RedisURL)
	e.str("WEBHOOK_SECRET", &cfg.WebhookSecret)
	e.boolean("WEBHOOK_SECRET_HEX", &cfg.WebhookSecretHex)
	e.integer("LIST_LIMIT", &cfg.ListLimit)
	e.integer("MEMORY_CAPACITY", &cfg.MemoryCapacity)
	e.str("SOURCE_API_URL", &cfg.Source.URL)
	e.str("SOURCE_API_TOKEN", &cfg.Source.Token)
	e.str("SOURCE_API_VERSION", &cfg.Source.APIVersion)
	e.str("CARRIER_API_URL", &cfg.Carrier.URL)
	e.str("CARRIER_API_TOKEN", &cfg.Carrier.Token)
	e.str("CARRIER_TRACKING_COMPANY", &cfg.Carrier.TrackingCompany)
	e.str("SENDER_NAME", &cfg.Carrier.Sender.Name)
	e.str("SENDER_STREET", &cfg.Carrier.Sender.Street)
	e.str("SENDER_POSTCODE", &cfg.Carrier.Sender.Postcode)
	e.str("SENDER_CITY", &cfg.Carrier.Sender.City)
	e.str("SENDER_COUNTRY_CODE", &cfg.Carrier.Sender.CountryCode)
	e.boolean("SOURCE_NOTIFY_CUSTOMER", &cfg.Source.NotifyCustomer)
	e.duration("OUTBOUND_TIMEOUT", &cfg.Outbound.Timeout)
	e.float("OUTBOUND_RPS", &cfg.Outbound.RPS)
	e.integer("OUTBOUND_BURST", &cfg.Outbound.Burst)
	e.str("AUTH_MODE", &cfg.Auth.Mode)
	e.str("AUTH_HMAC_SECRET", &cfg.Auth.HMACSecret)
	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	cfg.Source.URL = strings.TrimRight(cfg.Source.URL, "/")
	cfg.Carrier.URL = strings.TrimRight(cfg.Carrier.URL, "/")
	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WebhookKey is the HMAC key for order webhooks. It is empty when no secret is
// configured, in which case every delivery is rejected.
func (c Config) WebhookKey() []byte {
	if !c.WebhookSecretHex {
		return []byte(c.WebhookSecret)
	}
	key, err := hex.DecodeString(c.WebhookSecret)
	if err != nil {
		return nil
	}
	return key
}

// LoadYAML overlays a YAML document onto c.
func (c *Config) LoadYAML(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("port must be numeric, got %q", c.Port))
	}
	if c.WebhookSecretHex {
		if _, err := hex.DecodeString(c.WebhookSecret); err != nil {
			errs = append(errs, fmt.Errorf("webhookSecret is not valid hex: %w", err))
		}
	}
	if c.ListLimit <= 0 {
		errs = append(errs, errors.New("listLimit must be > 0"))
	}
	if c.MemoryCapacity <= 0 {
		errs = append(errs, errors.New("memoryCapacity must be > 0"))
	}
	if c.Outbound.Timeout <= 0 {
		errs = append(errs, errors.New("outbound.timeout must be > 0"))
	}
	if c.Outbound.RPS < 0 || c.Outbound.Burst < 0 {
		errs = append(errs, errors.New("outbound rate limits must be >= 0"))
	}
	switch c.Auth.Mode {
	case "none":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			errs = append(errs, errors.New("auth.hmacSecret required for hmac mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported auth mode %q", c.Auth.Mode))
	}
	for title, m := range c.Shipping.MethodTitles {
		if m != "service_point" && m != "home_delivery" {
			errs = append(errs, fmt.Errorf("shipping method for %q must be service_point or home_delivery", title))
		}
	}
	return errors.Join(errs...)
}

// Redacted returns the non-secret settings for diagnostics.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"port":             c.Port,
		"logLevel":         c.LogLevel,
		"allowOrigin":      c.AllowOrigin,
		"listLimit":        c.ListLimit,
		"memoryCapacity":   c.MemoryCapacity,
		"sourceUrl":        c.Source.URL,
		"sourceApiVersion": c.Source.APIVersion,
		"carrierUrl":       c.Carrier.URL,
		"outboundTimeout":  c.Outbound.Timeout.String(),
		"outboundRps":      c.Outbound.RPS,
		"authMode":         c.Auth.Mode,
		"hasDatabaseUrl":   c.DatabaseURL != "",
		"hasRedisUrl":      c.RedisURL != "",
		"hasWebhookSecret": c.WebhookSecret != "",
		"hasSourceToken":   c.Source.Token != "",
		"hasCarrierToken":  c.Carrier.Token != "",
		"methodTitleCount": len(c.Shipping.MethodTitles),
	}
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}
