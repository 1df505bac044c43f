// Package config loads the application configuration: the shared core
// settings plus database, generation API and billing sections.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	coreconfig "github.com/m3rciful/musicbot/core/config"
	coredatabase "github.com/m3rciful/musicbot/core/database"
	"github.com/m3rciful/musicbot/internal/models"
)

const (
	DefaultModel          = "V4_5ALL"
	DefaultPriceStars     = 6
	DefaultTimeoutSeconds = 120
	DefaultInvoiceTitle   = "AI Music Generation"
)

// GenerationConfig addresses the generation API.
type GenerationConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"API_BASE_URL" validate:"required,url"`
	ServiceToken   string `yaml:"service_token" envconfig:"BOT_SERVICE_TOKEN"`
	Model          string `yaml:"model" envconfig:"MODEL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"API_TIMEOUT_SECONDS" validate:"gte=0,lte=600"`
	StatusRetries  int    `yaml:"status_retries" envconfig:"API_STATUS_RETRIES" validate:"gte=0,lte=5"`
}

// Timeout returns the generate call bound.
func (g GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// BillingConfig prices a generation.
type BillingConfig struct {
	PriceStars int    `yaml:"price_stars" envconfig:"PRICE_STARS" validate:"gt=0"`
	Currency   string `yaml:"currency" envconfig:"CURRENCY" validate:"eq=XTR"`
	Title      string `yaml:"title" envconfig:"INVOICE_TITLE" validate:"max=32"`
}

// AppConfig is the full configuration of the bot.
type AppConfig struct {
	coreconfig.Config `yaml:",inline"`

	Database   coredatabase.Config `yaml:"database"`
	Generation GenerationConfig    `yaml:"generation"`
	Billing    BillingConfig       `yaml:"billing"`
}

// CoreConfig exposes the embedded core section.
func (c *AppConfig) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads YAML, .env and environment layers, then normalizes.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := coreconfig.ReadLayers(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults and validates every section.
func Normalize(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	cfg.Database = cfg.Database.WithDefaults()

	g := &cfg.Generation
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	if g.Model == "" {
		g.Model = DefaultModel
	}
	if g.TimeoutSeconds == 0 {
		g.TimeoutSeconds = DefaultTimeoutSeconds
	}

	b := &cfg.Billing
	if b.PriceStars == 0 {
		b.PriceStars = DefaultPriceStars
	}
	if b.Currency == "" {
		b.Currency = models.CurrencyStars
	}
	if b.Title == "" {
		b.Title = DefaultInvoiceTitle
	}

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
