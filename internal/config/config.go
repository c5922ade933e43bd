// Package config defines the data structures related to configuration and
// includes functions for loading, normalizing and validating the config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/loans"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for microloan.
type Configuration struct {
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Output  OutputConfig  `yaml:"output,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`
	Cache   CacheConfig   `yaml:"cache,omitempty"`
	Lending LendingConfig `yaml:"lending,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds CLI output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

// ServerConfig defines runtime parameters for the HTTP API.
type ServerConfig struct {
	Address         string          `yaml:"address"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	IdleTimeout     time.Duration   `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	MaxBodySize     string          `yaml:"maxBodySize"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
	AllowedOrigins  []string        `yaml:"allowedOrigins,omitempty"`
	maxBodyBytes    int64
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	Capacity int           `yaml:"capacity"`
	Window   time.Duration `yaml:"window"`
}

// CacheConfig selects where drafts and quotes are cached.
type CacheConfig struct {
	Backend  string        `yaml:"backend"` // memory, redis
	Redis    RedisConfig   `yaml:"redis,omitempty"`
	DraftTTL time.Duration `yaml:"draftTTL"`
	QuoteTTL time.Duration `yaml:"quoteTTL"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LendingConfig holds the business rules of the loan book.
type LendingConfig struct {
	Products               []loans.Product  `yaml:"products"`
	Allocation             allocation.Rules `yaml:"allocation"`
	DefaultPolicy          string           `yaml:"defaultPolicy"`
	EarlyRepaymentDiscount float64          `yaml:"earlyRepaymentDiscount"` // percent
	DailyPenaltyRate       float64          `yaml:"dailyPenaltyRate"`       // percent per day
	PARThresholdDays       int              `yaml:"parThresholdDays"`
}

// Default returns a configuration with every default applied.
func Default() *Configuration {
	conf := &Configuration{}
	if err := conf.Normalize(); err != nil {
		panic(err)
	}
	return conf
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. A missing file yields the defaults.
func LoadConfiguration(configPath string) (*Configuration, error) {
	if configPath == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return LoadConfigurationFromReader(bytes.NewReader(data))
}

// LoadConfigurationFromReader loads YAML configuration from r. Environment
// variables prefixed with MICROLOAN_ override file values, e.g.
// MICROLOAN_SERVER_ADDRESS.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("microloan")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"logging.level", "logging.format", "logging.outputfile",
		"server.address", "cache.backend", "cache.redis.address", "cache.redis.password",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %w", err)
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := configuration.Normalize(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Normalize fills unset values with defaults and parses derived fields.
func (c *Configuration) Normalize() error {
	s := &c.Server
	if s.Address == "" {
		s.Address = constants.DefaultServerAddress
	}
	setDuration(&s.ReadTimeout, 15*time.Second)
	setDuration(&s.WriteTimeout, 15*time.Second)
	setDuration(&s.IdleTimeout, 60*time.Second)
	setDuration(&s.ShutdownTimeout, 10*time.Second)
	if s.RateLimit.Capacity == 0 {
		s.RateLimit.Capacity = constants.DefaultRateLimitCapacity
	}
	setDuration(&s.RateLimit.Window, time.Minute)

	size, err := ParseSize(s.MaxBodySize)
	if err != nil {
		return err
	}
	if size <= 0 {
		size = constants.DefaultMaxBodyBytes
	}
	s.maxBodyBytes = size
	s.MaxBodySize = fmt.Sprintf("%d", size)

	if c.Cache.Backend == "" {
		c.Cache.Backend = constants.DefaultCacheBackend
	}
	if c.Cache.Redis.Address == "" {
		c.Cache.Redis.Address = constants.DefaultRedisAddress
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "microloan:"
	}
	setDuration(&c.Cache.DraftTTL, 7*24*time.Hour)
	setDuration(&c.Cache.QuoteTTL, time.Hour)

	l := &c.Lending
	if len(l.Products) == 0 {
		l.Products = loans.DefaultCatalog()
	}
	if l.Allocation == (allocation.Rules{}) {
		l.Allocation = allocation.DefaultRules()
	}
	if l.DefaultPolicy == "" {
		l.DefaultPolicy = string(allocation.InterestFirst)
	}
	if l.EarlyRepaymentDiscount == 0 {
		l.EarlyRepaymentDiscount = constants.DefaultEarlyRepaymentDiscount
	}
	if l.DailyPenaltyRate == 0 {
		l.DailyPenaltyRate = constants.DefaultDailyPenaltyRate
	}
	if l.PARThresholdDays == 0 {
		l.PARThresholdDays = constants.DefaultPARThresholdDays
	}
	return nil
}

func setDuration(d *time.Duration, fallback time.Duration) {
	if *d <= 0 {
		*d = fallback
	}
}

// MaxBodyBytes returns the parsed request body limit.
func (s ServerConfig) MaxBodyBytes() int64 {
	if s.maxBodyBytes <= 0 {
		return constants.DefaultMaxBodyBytes
	}
	return s.maxBodyBytes
}

// Catalog returns the configured products.
func (c *Configuration) Catalog() loans.Catalog {
	return loans.Catalog(c.Lending.Products)
}

// ValidateConfiguration performs general validation of the configuration.
// Problems that make the service unusable are returned as an error; the rest
// are warnings.
func (c *Configuration) ValidateConfiguration() ([]string, error) {
	var warnings []string

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}

	if err := c.Lending.Allocation.Validate(); err != nil {
		return nil, err
	}
	if _, err := allocation.ParsePolicy(c.Lending.DefaultPolicy); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, p := range c.Lending.Products {
		key := strings.ToLower(p.Name)
		if p.Name == "" {
			return nil, errors.New("loan product without a name")
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate loan product %q", p.Name)
		}
		seen[key] = struct{}{}

		switch p.InterestType {
		case loans.Flat, loans.Reducing:
		default:
			return nil, fmt.Errorf("product %q: %w: %q", p.Name, loans.ErrUnknownInterestType, p.InterestType)
		}
		if p.AnnualRate < 0 {
			return nil, fmt.Errorf("product %q: %w", p.Name, loans.ErrInvalidRate)
		}
		if p.MaxAmount > 0 && p.MinAmount > p.MaxAmount {
			return nil, fmt.Errorf("product %q: minimum amount exceeds maximum", p.Name)
		}
		if p.MaxTerm > 0 && p.MinTerm > p.MaxTerm {
			return nil, fmt.Errorf("product %q: minimum term exceeds maximum", p.Name)
		}
		if p.AnnualRate == 0 {
			warnings = append(warnings, fmt.Sprintf("Product '%s' charges no interest", p.Name))
		}
		if p.MaxAmount == 0 {
			warnings = append(warnings, fmt.Sprintf("Product '%s' has no maximum amount", p.Name))
		}
	}

	if c.Lending.EarlyRepaymentDiscount > 100 || c.Lending.EarlyRepaymentDiscount < 0 {
		return nil, fmt.Errorf("early repayment discount %.2f%% outside [0, 100]", c.Lending.EarlyRepaymentDiscount)
	}
	if c.Lending.EarlyRepaymentDiscount > 20 {
		warnings = append(warnings, fmt.Sprintf("Early repayment discount of %.2f%% is unusually high", c.Lending.EarlyRepaymentDiscount))
	}
	if c.Cache.Backend == "memory" {
		warnings = append(warnings, "Drafts are cached in memory and are lost on restart")
	}
	return warnings, nil
}
