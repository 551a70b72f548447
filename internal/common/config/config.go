// internal/common/config/config.go
package config

import (
	"fmt"

	"home-contracts/internal/models"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Provider      ProviderConfig     `mapstructure:"provider"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Orchestrator  OrchestratorConfig `mapstructure:"orchestrator"`
	CounterSigner CounterSignerConfig `mapstructure:"counter_signer"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

// ProviderConfig holds settings for the external e-signature provider. The
// template ids are registered once by an administrator and referenced as
// static configuration on the per-order hot path.
type ProviderConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
	Templates struct {
		Agreement string `mapstructure:"agreement"`
		Delivery  string `mapstructure:"delivery"`
		Final     string `mapstructure:"final"`
	} `mapstructure:"templates"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// TemplateFor resolves the static template id for a pack.
func (p ProviderConfig) TemplateFor(pack models.PackType) string {
	switch pack {
	case models.PackAgreement:
		return p.Templates.Agreement
	case models.PackDelivery:
		return p.Templates.Delivery
	case models.PackFinal:
		return p.Templates.Final
	}
	return ""
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	// Index receives contract lifecycle audit events.
	AuditIndex string `mapstructure:"audit_index"`
}

// OrchestratorConfig bounds the per-call behavior of the pack orchestrator.
type OrchestratorConfig struct {
	CallTimeout          int  `mapstructure:"call_timeout"`    // milliseconds, per provider/store call
	RequestTimeout       int  `mapstructure:"request_timeout"` // milliseconds, whole orchestrator call
	MaxRetries           int  `mapstructure:"max_retries"`
	RetryInitialDelay    int  `mapstructure:"retry_initial_delay"` // milliseconds
	StatusCacheTTL       int  `mapstructure:"status_cache_ttl"`    // milliseconds, advisory read cache only
	AllowPartialAssembly bool `mapstructure:"allow_partial_assembly"`
}

// CounterSignerConfig identifies the dealer-side party attached to every
// envelope.
type CounterSignerConfig struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

// NotificationConfig holds settings for signing-link delivery.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
