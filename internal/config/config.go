package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the platform's api/scheduler/worker
// processes.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	EventBus  EventBusConfig  `yaml:"event_bus"`
	Telephony TelephonyConfig `yaml:"telephony"`
	LLM       LLMConfig       `yaml:"llm"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Email     EmailConfig     `yaml:"email"`
	Server    ServerConfig    `yaml:"server"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_minutes"`
}

// ConnMaxLifetime returns the configured connection lifetime as a duration.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifeMins) * time.Minute
}

// EventBusConfig holds the FIFO event bus (SQS) connection settings.
type EventBusConfig struct {
	URL            string `yaml:"url"`
	Region         string `yaml:"region"`
	VisibilitySecs int    `yaml:"visibility_timeout_seconds"`
}

// VisibilityTimeout returns the consumer visibility timeout (§6, default 300s).
func (c EventBusConfig) VisibilityTimeout() time.Duration {
	return time.Duration(c.VisibilitySecsOrDefault()) * time.Second
}

// VisibilitySecsOrDefault returns the configured visibility timeout seconds,
// defaulting to 300 if unset.
func (c EventBusConfig) VisibilitySecsOrDefault() int {
	if c.VisibilitySecs <= 0 {
		return 300
	}
	return c.VisibilitySecs
}

// TelephonyConfig holds outbound-calling provider settings.
type TelephonyConfig struct {
	Provider           string `yaml:"provider"`
	AccountSID         string `yaml:"account_sid"`
	AuthToken          string `yaml:"auth_token"`
	FromNumber         string `yaml:"from_number"`
	WebhookBaseURL     string `yaml:"webhook_base_url"`
	MaxConcurrentCalls int    `yaml:"max_concurrent_calls"`
	CallTimeoutSeconds int    `yaml:"call_timeout_seconds"`
}

// CallTimeout returns the per-call deadline (§5, default 60s).
func (c TelephonyConfig) CallTimeout() time.Duration {
	if c.CallTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// LLMConfig holds the speech-dialogue LLM provider settings.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "bedrock"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Region   string `yaml:"region"`
}

// SchedulerConfig holds the Call Scheduler's tick cadence and lock key.
type SchedulerConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	LockKey         string `yaml:"lock_key"`
	PrefetchFactor  int    `yaml:"prefetch_factor"`
}

// Interval returns the tick interval (§4.1, default 60s, range 5-3600s).
func (c SchedulerConfig) Interval() time.Duration {
	secs := c.IntervalSeconds
	if secs <= 0 {
		secs = 60
	}
	if secs < 5 {
		secs = 5
	}
	if secs > 3600 {
		secs = 3600
	}
	return time.Duration(secs) * time.Second
}

// Prefetch returns the candidate prefetch multiplier (§4.1 step 3).
func (c SchedulerConfig) Prefetch() int {
	if c.PrefetchFactor <= 0 {
		return 3
	}
	return c.PrefetchFactor
}

// EmailConfig holds the notification email worker's provider and retry
// settings.
type EmailConfig struct {
	SMTPHost          string `yaml:"smtp_host"`
	SMTPPort          int    `yaml:"smtp_port"`
	SMTPUsername      string `yaml:"smtp_username"`
	SMTPPassword      string `yaml:"smtp_password"`
	From              string `yaml:"from"`
	MaxRetries        int    `yaml:"max_retries"`
	PollIntervalSecs  int    `yaml:"poll_interval_seconds"`
	Region            string `yaml:"region"` // SES region; SMTP_* fields above name the provider profile
}

// MaxRetriesOrDefault returns the configured retry ceiling (§4.5, default 3).
func (c EmailConfig) MaxRetriesOrDefault() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// ServerConfig holds the `api` subcommand's HTTP listen settings.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// Load reads and parses the YAML configuration file, applying defaults for
// any unset field.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifeMins == 0 {
		cfg.Database.ConnMaxLifeMins = 5
	}
	if cfg.EventBus.VisibilitySecs == 0 {
		cfg.EventBus.VisibilitySecs = 300
	}
	if cfg.Telephony.MaxConcurrentCalls == 0 {
		cfg.Telephony.MaxConcurrentCalls = 10
	}
	if cfg.Telephony.CallTimeoutSeconds == 0 {
		cfg.Telephony.CallTimeoutSeconds = 60
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if cfg.Scheduler.IntervalSeconds == 0 {
		cfg.Scheduler.IntervalSeconds = 60
	}
	if cfg.Scheduler.LockKey == "" {
		cfg.Scheduler.LockKey = "survey-call-scheduler"
	}
	if cfg.Scheduler.PrefetchFactor == 0 {
		cfg.Scheduler.PrefetchFactor = 3
	}
	if cfg.Email.MaxRetries == 0 {
		cfg.Email.MaxRetries = 3
	}
	if cfg.Email.PollIntervalSecs == 0 {
		cfg.Email.PollIntervalSecs = 20
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from an optional YAML file and overlays
// environment variables (after loading a local .env file, if present, so
// secrets can live in .env locally and in real env vars in production).
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("EVENT_BUS_URL"); v != "" {
		cfg.EventBus.URL = v
	}
	if v := os.Getenv("EVENT_BUS_REGION"); v != "" {
		cfg.EventBus.Region = v
	}

	if v := os.Getenv("TELEPHONY_PROVIDER"); v != "" {
		cfg.Telephony.Provider = v
	}
	if v := os.Getenv("TELEPHONY_ACCOUNT_SID"); v != "" {
		cfg.Telephony.AccountSID = v
	}
	if v := os.Getenv("TELEPHONY_AUTH_TOKEN"); v != "" {
		cfg.Telephony.AuthToken = v
	}
	if v := os.Getenv("TELEPHONY_FROM_NUMBER"); v != "" {
		cfg.Telephony.FromNumber = v
	}
	if v := os.Getenv("TELEPHONY_WEBHOOK_BASE_URL"); v != "" {
		cfg.Telephony.WebhookBaseURL = v
	}
	if v := envInt("TELEPHONY_MAX_CONCURRENT_CALLS"); v > 0 {
		cfg.Telephony.MaxConcurrentCalls = v
	}
	if v := envInt("TELEPHONY_CALL_TIMEOUT_SECONDS"); v > 0 {
		cfg.Telephony.CallTimeoutSeconds = v
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := envInt("SCHEDULER_INTERVAL_SECONDS"); v > 0 {
		cfg.Scheduler.IntervalSeconds = v
	}
	if v := os.Getenv("SCHEDULER_LOCK_KEY"); v != "" {
		cfg.Scheduler.LockKey = v
	}

	if v := os.Getenv("EMAIL_SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := envInt("EMAIL_SMTP_PORT"); v > 0 {
		cfg.Email.SMTPPort = v
	}
	if v := os.Getenv("EMAIL_SMTP_USERNAME"); v != "" {
		cfg.Email.SMTPUsername = v
	}
	if v := os.Getenv("EMAIL_SMTP_PASSWORD"); v != "" {
		cfg.Email.SMTPPassword = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		cfg.Email.From = v
	}
	if v := envInt("EMAIL_MAX_RETRIES"); v > 0 {
		cfg.Email.MaxRetries = v
	}
	if v := envInt("EMAIL_POLL_INTERVAL"); v > 0 {
		cfg.Email.PollIntervalSecs = v
	}

	return cfg, nil
}

// Validate checks that the fields required for the given subcommand are
// present, returning a configuration-class error (§7 class 1) otherwise.
func (c *Config) Validate(subcommand string) error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	switch subcommand {
	case "scheduler":
		if c.Telephony.AccountSID == "" || c.Telephony.AuthToken == "" {
			return fmt.Errorf("config: TELEPHONY_ACCOUNT_SID/TELEPHONY_AUTH_TOKEN are required for scheduler")
		}
		if c.EventBus.URL == "" {
			return fmt.Errorf("config: EVENT_BUS_URL is required for scheduler (resolves adapter failures through the survey event publisher)")
		}
	case "worker-email":
		if c.EventBus.URL == "" {
			return fmt.Errorf("config: EVENT_BUS_URL is required for worker email")
		}
	case "api":
		if c.Telephony.AuthToken == "" {
			return fmt.Errorf("config: TELEPHONY_AUTH_TOKEN is required to validate webhook signatures")
		}
		if c.EventBus.URL == "" {
			return fmt.Errorf("config: EVENT_BUS_URL is required for api (publishes survey lifecycle events)")
		}
	}
	return nil
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
