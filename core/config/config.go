package config

import (
	"strings"
	"time"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

// Config holds all application configuration in a structured way.
// It is built once at startup and passed down explicitly; nothing reads env after LoadConfig.
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Evolution    EvolutionConfig
	Automation   AutomationConfig
	Provisioning ProvisioningConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	BaseUrl            string
	CorsAllowedOrigins []string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

// EvolutionConfig points at the WhatsApp connectivity provider.
type EvolutionConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	WebhookURL string // public URL the provider posts events to
}

type AutomationConfig struct {
	WorkflowURL string // empty disables dispatch
	Token       string // optional bearer token for the workflow endpoint
	Timeout     time.Duration
	Workers     int
	QueueSize   int
}

type ProvisioningConfig struct {
	PollInterval time.Duration
	PollAttempts int
}

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("app_port", "3000")
	v.SetDefault("app_env", "development")
	v.SetDefault("app_base_url", "http://localhost:3000")
	v.SetDefault("app_cors_allowed_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_name", "storages/crm.db")
	v.SetDefault("valkey_address", "localhost:6379")
	v.SetDefault("valkey_key_prefix", "azcrm:")
	v.SetDefault("evolution_timeout", "15s")
	v.SetDefault("automation_timeout", "10s")
	v.SetDefault("automation_workers", 4)
	v.SetDefault("automation_queue_size", 250)
	v.SetDefault("whatsapp_poll_interval", "2s")
	v.SetDefault("whatsapp_poll_attempts", 60)

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               v.GetString("app_port"),
		Debug:              v.GetBool("app_debug"),
		Environment:        v.GetString("app_env"),
		BasicAuth:          splitList(v.GetString("app_basic_auth")),
		BasePath:           v.GetString("app_base_path"),
		BaseUrl:            strings.TrimRight(v.GetString("app_base_url"), "/"),
		CorsAllowedOrigins: splitList(v.GetString("app_cors_allowed_origins")),
	}

	dbCfg := DatabaseConfig{
		Driver:          v.GetString("db_driver"),
		Host:            v.GetString("db_host"),
		Port:            v.GetInt("db_port"),
		User:            v.GetString("db_user"),
		Password:        v.GetString("db_password"),
		Name:            v.GetString("db_name"),
		ValkeyEnabled:   v.GetBool("valkey_enabled"),
		ValkeyAddress:   v.GetString("valkey_address"),
		ValkeyPassword:  v.GetString("valkey_password"),
		ValkeyDB:        v.GetInt("valkey_db"),
		ValkeyKeyPrefix: v.GetString("valkey_key_prefix"),
	}

	webhookURL := v.GetString("evolution_webhook_url")
	if webhookURL == "" {
		webhookURL = appCfg.BaseUrl + appCfg.BasePath + "/webhooks/evolution"
	}

	cfg := &Config{
		App:      appCfg,
		Database: dbCfg,
		Evolution: EvolutionConfig{
			BaseURL:    strings.TrimRight(v.GetString("evolution_api_url"), "/"),
			APIKey:     strings.TrimSpace(v.GetString("evolution_api_key")),
			Timeout:    v.GetDuration("evolution_timeout"),
			WebhookURL: webhookURL,
		},
		Automation: AutomationConfig{
			WorkflowURL: strings.TrimSpace(v.GetString("automation_workflow_url")),
			Token:       strings.TrimSpace(v.GetString("automation_token")),
			Timeout:     v.GetDuration("automation_timeout"),
			Workers:     v.GetInt("automation_workers"),
			QueueSize:   v.GetInt("automation_queue_size"),
		},
		Provisioning: ProvisioningConfig{
			PollInterval: v.GetDuration("whatsapp_poll_interval"),
			PollAttempts: v.GetInt("whatsapp_poll_attempts"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have no sensible default.
// Missing provider credentials are a ConfigurationError, surfaced before any gateway call.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(&c.Evolution,
		validation.Field(&c.Evolution.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Evolution.APIKey, validation.Required),
		validation.Field(&c.Evolution.Timeout, validation.Required),
	)
	if err != nil {
		return pkgError.ConfigurationError("evolution: " + err.Error())
	}

	err = validation.ValidateStruct(&c.Automation,
		validation.Field(&c.Automation.WorkflowURL, is.URL),
		validation.Field(&c.Automation.Workers, validation.Min(1)),
		validation.Field(&c.Automation.QueueSize, validation.Min(1)),
	)
	if err != nil {
		return pkgError.ConfigurationError("automation: " + err.Error())
	}

	err = validation.ValidateStruct(&c.Provisioning,
		validation.Field(&c.Provisioning.PollInterval, validation.Required),
		validation.Field(&c.Provisioning.PollAttempts, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return pkgError.ConfigurationError("provisioning: " + err.Error())
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return pkgError.ConfigurationError("unsupported database driver: " + c.Database.Driver)
	}
	return nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
