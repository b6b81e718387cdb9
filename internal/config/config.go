// Package config defines the data structures related to configuration and
// includes functions for loading, validating and converting it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/notify"
	"github.com/ghsales/discount-engine/pkg/constants"
	"github.com/ghsales/discount-engine/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for the discount engine.
type Configuration struct {
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
	Pricing  PricingConfig  `yaml:"pricing,omitempty"`
	Currency CurrencyConfig `yaml:"currency,omitempty"`
	Mail     MailConfig     `yaml:"mail,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// ServerConfig defines runtime parameters for the HTTP server.
type ServerConfig struct {
	Address       string `yaml:"address,omitempty"`
	MaxUploadSize string `yaml:"maxUploadSize,omitempty"` // e.g. 4M, 512K
}

// DatabaseConfig points at the PostgreSQL database. An empty URL keeps
// versions in memory.
type DatabaseConfig struct {
	URL      string `yaml:"url,omitempty"`
	MaxConns int    `yaml:"maxConns,omitempty"`
	Migrate  bool   `yaml:"migrate,omitempty"` // apply migrations on start
}

// PricingConfig overrides the pricing engine constants.
type PricingConfig struct {
	Deduction              float64  `yaml:"deduction,omitempty"`
	MaxMortgageBody        float64  `yaml:"maxMortgageBody,omitempty"`
	MinDownPaymentFraction float64  `yaml:"minDownPaymentFraction,omitempty"`
	AvailableStatuses      []string `yaml:"availableStatuses,omitempty"`
}

// CurrencyConfig selects the USD exchange rate source.
type CurrencyConfig struct {
	Source     string        `yaml:"source,omitempty"` // manual, cbu
	ManualRate float64       `yaml:"manualRate,omitempty"`
	CBUURL     string        `yaml:"cbuURL,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// MailConfig holds the SMTP settings for activation notifications.
type MailConfig struct {
	Enabled    bool          `yaml:"enabled,omitempty"`
	Host       string        `yaml:"host,omitempty"`
	Port       int           `yaml:"port,omitempty"`
	Username   string        `yaml:"username,omitempty"`
	Password   string        `yaml:"password,omitempty"`
	From       string        `yaml:"from,omitempty"`
	Recipients []string      `yaml:"recipients,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputFile", "")

	v.SetDefault("server.address", constants.DefaultServerAddress)
	v.SetDefault("server.maxUploadSize", "4M")

	v.SetDefault("database.url", "")
	v.SetDefault("database.maxConns", constants.DefaultDatabaseMaxConns)
	v.SetDefault("database.migrate", false)

	v.SetDefault("pricing.deduction", constants.DefaultDeduction)
	v.SetDefault("pricing.maxMortgageBody", constants.DefaultMaxMortgageBody)
	v.SetDefault("pricing.minDownPaymentFraction", constants.DefaultMinDownPaymentFraction)
	v.SetDefault("pricing.availableStatuses", constants.DefaultAvailableStatuses)

	v.SetDefault("currency.source", constants.CurrencySourceManual)
	v.SetDefault("currency.manualRate", constants.DefaultUSDRate)
	v.SetDefault("currency.cbuURL", constants.DefaultCBUURL)
	v.SetDefault("currency.timeout", constants.DefaultCBUTimeout)

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", constants.DefaultMailPort)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.recipients", []string{})
	v.SetDefault("mail.timeout", constants.DefaultMailTimeout)
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Every key can be overridden from the environment,
// e.g. DISCOUNT_DATABASE_URL or DISCOUNT_MAIL_PASSWORD. An empty path loads
// defaults and environment only.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Validate rejects configuration the service cannot run with.
func (c *Configuration) Validate() error {
	if _, err := c.Server.UploadSizeBytes(); err != nil {
		return err
	}
	switch c.Currency.Source {
	case constants.CurrencySourceManual, constants.CurrencySourceCBU:
	default:
		return fmt.Errorf("currency source must be %s or %s, got %q",
			constants.CurrencySourceManual, constants.CurrencySourceCBU, c.Currency.Source)
	}
	if c.Currency.ManualRate <= 0 {
		return fmt.Errorf("currency manual rate must be positive, got %v", c.Currency.ManualRate)
	}
	if c.Pricing.Deduction < 0 || c.Pricing.MaxMortgageBody <= 0 {
		return fmt.Errorf("pricing deduction must not be negative and the maximum mortgage body must be positive")
	}
	if c.Pricing.MinDownPaymentFraction < 0 || c.Pricing.MinDownPaymentFraction >= 1 {
		return fmt.Errorf("pricing minimum down payment fraction must be in [0, 1), got %v", c.Pricing.MinDownPaymentFraction)
	}
	if c.Mail.Enabled && c.Mail.From == "" {
		return fmt.Errorf("mail is enabled but no from address is set")
	}
	return nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	validator := validation.ConfigValidator{
		DatabaseURL: c.Database.URL,
		Pricing: validation.PricingConfig{
			Deduction:              c.Pricing.Deduction,
			MaxMortgageBody:        c.Pricing.MaxMortgageBody,
			MinDownPaymentFraction: c.Pricing.MinDownPaymentFraction,
			AvailableStatuses:      c.Pricing.AvailableStatuses,
		},
		Currency: validation.CurrencyConfig{
			Source:     c.Currency.Source,
			ManualRate: c.Currency.ManualRate,
			Timeout:    c.Currency.Timeout,
		},
		Mail: validation.MailConfig{
			Enabled:    c.Mail.Enabled,
			Host:       c.Mail.Host,
			From:       c.Mail.From,
			Recipients: c.Mail.Recipients,
		},
	}
	return validator.ValidateAll()
}

// PricingParams converts the pricing section into engine parameters.
func (c *Configuration) PricingParams() domain.PricingParams {
	return domain.PricingParams{
		Deduction:              c.Pricing.Deduction,
		MaxMortgageBody:        c.Pricing.MaxMortgageBody,
		MinDownPaymentFraction: c.Pricing.MinDownPaymentFraction,
		AvailableStatuses:      append([]string(nil), c.Pricing.AvailableStatuses...),
	}
}

// SMTPConfig converts the mail section into sender parameters.
func (c *Configuration) SMTPConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:       c.Mail.Host,
		Port:       c.Mail.Port,
		Username:   c.Mail.Username,
		Password:   c.Mail.Password,
		From:       c.Mail.From,
		Recipients: append([]string(nil), c.Mail.Recipients...),
		Timeout:    c.Mail.Timeout,
	}
}
