package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":5000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":5000")
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 10<<20)
	}
	if cfg.SMTPHost != "smtp.gmail.com" {
		t.Errorf("SMTPHost = %q, want %q", cfg.SMTPHost, "smtp.gmail.com")
	}
	if cfg.SMTPPort != 465 {
		t.Errorf("SMTPPort = %d, want 465", cfg.SMTPPort)
	}
	if cfg.SMTPTLS != "ssl" {
		t.Errorf("SMTPTLS = %q, want %q", cfg.SMTPTLS, "ssl")
	}
	if cfg.AlertThreshold != "high" {
		t.Errorf("AlertThreshold = %q, want %q", cfg.AlertThreshold, "high")
	}
	if cfg.PythonBin != "python3" {
		t.Errorf("PythonBin = %q, want %q", cfg.PythonBin, "python3")
	}
	if cfg.EventKafkaTopic != "cyber-monitor-events" {
		t.Errorf("EventKafkaTopic = %q, want default", cfg.EventKafkaTopic)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("ALERT_EMAIL", "soc@example.com")
	os.Setenv("ALERT_THRESHOLD", "critical")
	os.Setenv("MAX_UPLOAD_BYTES", "2048")
	os.Setenv("SMTP_PORT", "587")
	os.Setenv("SMTP_TLS", "starttls")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.AlertEmail != "soc@example.com" {
		t.Errorf("AlertEmail = %q, want %q", cfg.AlertEmail, "soc@example.com")
	}
	if cfg.AlertThreshold != "critical" {
		t.Errorf("AlertThreshold = %q, want %q", cfg.AlertThreshold, "critical")
	}
	if cfg.MaxUploadBytes != 2048 {
		t.Errorf("MaxUploadBytes = %d, want 2048", cfg.MaxUploadBytes)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort = %d, want 587", cfg.SMTPPort)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{"smtp tls", "SMTP_TLS", "maybe"},
		{"alert threshold", "ALERT_THRESHOLD", "urgent"},
		{"timezone", "TIMEZONE", "Mars/Olympus_Mons"},
		{"upload ceiling", "MAX_UPLOAD_BYTES", "-1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv(tc.key, tc.value)

			cfg, err := Load()
			if err == nil {
				t.Fatalf("Load should return error for %s=%q", tc.key, tc.value)
			}
			if cfg != nil {
				t.Error("Load should return nil config on error")
			}
		})
	}
}

func TestLoad_JWTRequiresIssuerAndAudience(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_PUBLIC_KEY", "/etc/cyber-monitor/jwt.pub")
	os.Setenv("JWT_ISSUER", "")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when JWT_ISSUER is empty and JWT_PUBLIC_KEY is set")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
}

func TestAnalyzerTimeoutDuration(t *testing.T) {
	testCases := []struct {
		value string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"invalid", 2 * time.Minute},
		{"0", 2 * time.Minute},
		{"-5m", 2 * time.Minute},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			cfg := &Config{AnalyzerTimeout: tc.value}
			if got := cfg.AnalyzerTimeoutDuration(); got != tc.want {
				t.Errorf("AnalyzerTimeoutDuration = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSMTPTimeoutDuration_Default(t *testing.T) {
	cfg := &Config{SMTPTimeout: "soon"}
	if got := cfg.SMTPTimeoutDuration(); got != 15*time.Second {
		t.Errorf("SMTPTimeoutDuration = %v, want %v", got, 15*time.Second)
	}
}

func TestSenderAddress(t *testing.T) {
	cfg := &Config{SMTPUsername: "monitor@example.com"}
	if got := cfg.SenderAddress(); got != "monitor@example.com" {
		t.Errorf("SenderAddress = %q, want username fallback", got)
	}
	cfg.SMTPFrom = "alerts@example.com"
	if got := cfg.SenderAddress(); got != "alerts@example.com" {
		t.Errorf("SenderAddress = %q, want %q", got, "alerts@example.com")
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "Europe/Berlin"}
	if got := cfg.Location().String(); got != "Europe/Berlin" {
		t.Errorf("Location = %q, want %q", got, "Europe/Berlin")
	}
	cfg.Timezone = "nowhere"
	if cfg.Location() != time.UTC {
		t.Error("Location should fall back to UTC for an invalid zone")
	}
}

func TestEventKafkaBrokersList(t *testing.T) {
	cfg := &Config{EventKafkaBrokers: " kafka-1:9092, ,kafka-2:9092 "}
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if got := cfg.EventKafkaBrokersList(); !reflect.DeepEqual(got, want) {
		t.Errorf("EventKafkaBrokersList = %v, want %v", got, want)
	}
	var nilCfg *Config
	if got := nilCfg.EventKafkaBrokersList(); got != nil {
		t.Errorf("nil config brokers = %v, want nil", got)
	}
}
