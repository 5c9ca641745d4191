package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  driver: "sqlite3"
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
persistence:
  opener: "direct"
  retry:
    max_attempts: 7
    backoff_ms: 10
    max_backoff_ms: 200
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  enabled: true
  host: "0.0.0.0"
  port: 8090
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.Persistence.Opener != OpenerDirect {
		t.Errorf("Persistence.Opener = %q, want %q", cfg.Persistence.Opener, OpenerDirect)
	}

	if cfg.Persistence.Retry.MaxAttempts != 7 {
		t.Errorf("Retry.MaxAttempts = %d, want 7", cfg.Persistence.Retry.MaxAttempts)
	}

	if cfg.Persistence.Retry.Backoff() != 10*time.Millisecond {
		t.Errorf("Retry.Backoff() = %v, want 10ms", cfg.Persistence.Retry.Backoff())
	}

	if cfg.Persistence.Retry.MaxBackoff() != 200*time.Millisecond {
		t.Errorf("Retry.MaxBackoff() = %v, want 200ms", cfg.Persistence.Retry.MaxBackoff())
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_DefaultsSurviveSparseFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Persistence.Retry.MaxAttempts != 20 {
		t.Errorf("Retry.MaxAttempts = %d, want default 20", cfg.Persistence.Retry.MaxAttempts)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  driver: "mysql"
  dsn: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty mysql dsn, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	// validJWTSecret meets the 32-character minimum requirement
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Database.Path = "/data/graypersist.db"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing sqlite path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name: "mysql with dsn",
			mutate: func(c *Config) {
				c.Database.Driver = DriverMySQL
				c.Database.DSN = "app:secret@tcp(db:3306)/app"
			},
			wantErr: false,
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Database.Driver = DriverPostgres },
			wantErr: true,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: true,
		},
		{
			name:    "unknown opener",
			mutate:  func(c *Config) { c.Persistence.Opener = "pooled" },
			wantErr: true,
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Persistence.Retry.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "negative backoff",
			mutate:  func(c *Config) { c.Persistence.Retry.BackoffMS = -1 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name: "api enabled with secret",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.Security.JWT.Secret = validJWTSecret
			},
			wantErr: false,
		},
		{
			name: "api enabled invalid port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
				c.Security.JWT.Secret = validJWTSecret
			},
			wantErr: true,
		},
		{
			name:    "api enabled missing JWT secret",
			mutate:  func(c *Config) { c.API.Enabled = true },
			wantErr: true,
		},
		{
			name: "api enabled JWT secret too short",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.Security.JWT.Secret = "short"
			},
			wantErr: true,
		},
		{
			name:    "api disabled ignores missing secret",
			mutate:  func(c *Config) { c.API.Enabled = false },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYPERSIST_DATABASE_DRIVER", "mysql")
	t.Setenv("GRAYPERSIST_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYPERSIST_DATABASE_DSN", "app@tcp(db)/app")
	t.Setenv("GRAYPERSIST_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("GRAYPERSIST_RETRY_BACKOFF_MS", "not-a-number")
	t.Setenv("GRAYPERSIST_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYPERSIST_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYPERSIST_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYPERSIST_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYPERSIST_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "mysql")
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.Database.DSN != "app@tcp(db)/app" {
		t.Errorf("Database.DSN = %q, want %q", cfg.Database.DSN, "app@tcp(db)/app")
	}

	if cfg.Persistence.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want 5", cfg.Persistence.Retry.MaxAttempts)
	}

	if cfg.Persistence.Retry.BackoffMS != 0 {
		t.Errorf("Retry.BackoffMS = %d, want 0 (unparseable ignored)", cfg.Persistence.Retry.BackoffMS)
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.Persistence.Retry.MaxAttempts != 20 {
		t.Errorf("defaultConfig Retry.MaxAttempts = %d, want 20", cfg.Persistence.Retry.MaxAttempts)
	}

	if cfg.Persistence.Retry.BackoffMS != 0 {
		t.Errorf("defaultConfig Retry.BackoffMS = %d, want 0", cfg.Persistence.Retry.BackoffMS)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Enabled {
		t.Error("defaultConfig should leave the API disabled")
	}
}
