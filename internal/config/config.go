// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :5000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; when empty events and settings are kept in memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MigrateOnStart applies pending migrations before the server starts serving.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "json" (default) or "console" for human-readable output.
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// Timezone is the IANA zone used for "today" and for timeline day buckets.
	Timezone string `mapstructure:"TIMEZONE"`

	// UploadDir is where event attachments and capture uploads are written.
	UploadDir string `mapstructure:"UPLOAD_DIR"`
	// MaxUploadBytes is the attachment size ceiling (default 10 MiB).
	MaxUploadBytes int64 `mapstructure:"MAX_UPLOAD_BYTES"`

	// SMTPHost is the mail relay host (default smtp.gmail.com).
	SMTPHost string `mapstructure:"SMTP_HOST"`
	// SMTPPort is the mail relay port (default 465).
	SMTPPort int `mapstructure:"SMTP_PORT"`
	// SMTPUsername is the SMTP auth user; empty disables authentication.
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	// SMTPPassword is the SMTP auth password.
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	// SMTPFrom is the sender address; defaults to SMTPUsername.
	SMTPFrom string `mapstructure:"SMTP_FROM"`
	// SMTPTLS is one of ssl (implicit TLS), starttls, none.
	SMTPTLS string `mapstructure:"SMTP_TLS"`
	// SMTPTimeout bounds dial and send (e.g. "15s").
	SMTPTimeout string `mapstructure:"SMTP_TIMEOUT"`

	// AlertEmail is the initial alert recipient.
	AlertEmail string `mapstructure:"ALERT_EMAIL"`
	// AlertThreshold is the initial minimum severity that triggers an automatic alert.
	AlertThreshold string `mapstructure:"ALERT_THRESHOLD"`

	// PythonBin is the interpreter used to run the analysis engines.
	PythonBin string `mapstructure:"PYTHON_BIN"`
	// PacketAnalyzerScript is the path to the packet-capture analyzer engine.
	PacketAnalyzerScript string `mapstructure:"PACKET_ANALYZER_SCRIPT"`
	// NetworkScannerScript is the path to the network/port scanner engine.
	NetworkScannerScript string `mapstructure:"NETWORK_SCANNER_SCRIPT"`
	// AnalyzerTimeout is the hard limit for one engine run before the process group is killed.
	AnalyzerTimeout string `mapstructure:"ANALYZER_TIMEOUT"`
	// AnalyzerMaxOutputBytes caps how much of each output stream is kept in memory.
	AnalyzerMaxOutputBytes int64 `mapstructure:"ANALYZER_MAX_OUTPUT_BYTES"`

	// JWTPublicKey is the PEM-encoded public key or path to file. When set, API routes require a Bearer token.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// OTLPEndpoint is the OpenTelemetry collector (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// EventKafkaBrokers is a comma-separated list of Kafka broker addresses. When set, stored events are published.
	EventKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventKafkaTopic is the Kafka topic for stored events.
	EventKafkaTopic string `mapstructure:"EVENT_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_TLS", "ssl")
	v.SetDefault("SMTP_TIMEOUT", "15s")
	v.SetDefault("ALERT_EMAIL", "")
	v.SetDefault("ALERT_THRESHOLD", "high")
	v.SetDefault("PYTHON_BIN", "python3")
	v.SetDefault("PACKET_ANALYZER_SCRIPT", "python/packet_analyzer.py")
	v.SetDefault("NETWORK_SCANNER_SCRIPT", "python/network_scanner.py")
	v.SetDefault("ANALYZER_TIMEOUT", "2m")
	v.SetDefault("ANALYZER_MAX_OUTPUT_BYTES", 16<<20)
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "cyber-monitor-auth")
	v.SetDefault("JWT_AUDIENCE", "cyber-monitor-api")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENT_KAFKA_TOPIC", "cyber-monitor-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "cyber-monitor-event-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("config: TIMEZONE %q: %w", cfg.Timezone, err)
	}
	switch strings.ToLower(cfg.SMTPTLS) {
	case "ssl", "starttls", "none":
	default:
		return nil, fmt.Errorf("config: SMTP_TLS must be ssl, starttls or none, got %q", cfg.SMTPTLS)
	}
	switch strings.ToLower(cfg.AlertThreshold) {
	case "low", "medium", "high", "critical":
	default:
		return nil, fmt.Errorf("config: ALERT_THRESHOLD must be low, medium, high or critical, got %q", cfg.AlertThreshold)
	}
	if cfg.JWTPublicKey != "" && (cfg.JWTIssuer == "" || cfg.JWTAudience == "") {
		return nil, errors.New("config: JWT_ISSUER and JWT_AUDIENCE are required when JWT_PUBLIC_KEY is set")
	}

	return &cfg, nil
}

// Location returns the configured time zone. Returns UTC if Timezone is invalid.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SMTPTimeoutDuration parses SMTPTimeout as a time.Duration. Returns 15s if unset or invalid.
func (c *Config) SMTPTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.SMTPTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// AnalyzerTimeoutDuration parses AnalyzerTimeout as a time.Duration. Returns 2m if unset or invalid.
func (c *Config) AnalyzerTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.AnalyzerTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// SenderAddress returns SMTPFrom, falling back to SMTPUsername.
func (c *Config) SenderAddress() string {
	if c.SMTPFrom != "" {
		return c.SMTPFrom
	}
	return c.SMTPUsername
}

// EventKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event streaming is enabled (non-empty list) and to create the producer.
func (c *Config) EventKafkaBrokersList() []string {
	if c == nil || c.EventKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.EventKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
