// Package config loads the client configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all client and server configuration.
type Config struct {
	Environment string

	APIURL     string `validate:"required,url"`
	APIVersion string `validate:"required,alphanum"`
	DateFormat string `validate:"required"`

	// StaleTime is how long a cached response is served without revalidation.
	StaleTime    time.Duration `validate:"gte=0"`
	PageSize     int           `validate:"gte=1,lte=100"`
	SiblingCount int           `validate:"gte=0,lte=10"`
	SearchDelay  time.Duration `validate:"gte=0"`

	UserAgent   string        `validate:"required"`
	HTTPTimeout time.Duration `validate:"gt=0"`

	RedisAddr     string `validate:"required,hostname_port"`
	RedisPassword string
	RedisDB       int `validate:"gte=0,lte=15"`

	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogPretty bool

	Port string `validate:"required,numeric"`
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Environment:  "development",
		APIURL:       "http://localhost:8000",
		APIVersion:   "v1",
		DateFormat:   "MMM dd, yyyy",
		StaleTime:    5 * time.Minute,
		PageSize:     20,
		SiblingCount: 1,
		SearchDelay:  300 * time.Millisecond,
		UserAgent:    "legis-client/0.1.0",
		HTTPTimeout:  30 * time.Second,
		RedisAddr:    "localhost:6379",
		LogLevel:     "info",
		Port:         "8080",
	}
}

// Load reads configuration from environment variables.
// Outside production a .env file in the working directory is loaded first.
func Load() (Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// In production the variables come from the process environment only.
	if env != "production" {
		if err := godotenv.Load(); err != nil {
			log.Debug().Err(err).Msg(".env file not loaded")
		}
	}

	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	cfg.Environment = env
	return cfg, nil
}

// FromEnv builds a Config from lookup, starting at Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.str("API_URL", &cfg.APIURL)
	p.str("API_VERSION", &cfg.APIVersion)
	p.str("DATE_FORMAT", &cfg.DateFormat)
	p.millisOrDuration("STALE_TIME", &cfg.StaleTime)
	p.int("PAGE_SIZE", &cfg.PageSize)
	p.int("SIBLING_COUNT", &cfg.SiblingCount)
	p.millisOrDuration("SEARCH_DELAY", &cfg.SearchDelay)
	p.str("USER_AGENT", &cfg.UserAgent)
	p.millisOrDuration("HTTP_TIMEOUT", &cfg.HTTPTimeout)
	p.str("REDIS_URL", &cfg.RedisAddr)
	p.str("REDIS_PASSWORD", &cfg.RedisPassword)
	p.int("REDIS_DB", &cfg.RedisDB)
	p.str("LOG_LEVEL", &cfg.LogLevel)
	p.bool("LOG_PRETTY", &cfg.LogPretty)
	p.str("PORT", &cfg.Port)

	if p.err != nil {
		return Config{}, p.err
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// BaseURL returns the versioned API root, e.g. http://localhost:8000/api/v1.
func (c Config) BaseURL() string {
	return c.APIURL + "/api/" + c.APIVersion
}

// parser collects the first conversion error.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) int(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = n
}

func (p *parser) bool(key string, dst *bool) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = b
}

// millisOrDuration accepts a Go duration ("5m") or a bare number of milliseconds.
func (p *parser) millisOrDuration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = d
}
