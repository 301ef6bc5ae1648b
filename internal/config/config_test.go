package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// WithEnv is a test helper that sets environment variables for the duration of a test
func WithEnv(t *testing.T, key, value string) {
	t.Helper()
	original := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if original == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, original)
		}
	})
}

func hasFieldError(err error, field string) bool {
	verr, ok := err.(ValidationErrors)
	if !ok {
		return false
	}
	for _, e := range verr {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestConfig_Load_Defaults(t *testing.T) {
	WithEnv(t, "APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Database.MigrationsPath != DefaultMigrationsPath {
		t.Errorf("Expected default migrations path %q, got %q", DefaultMigrationsPath, cfg.Database.MigrationsPath)
	}

	if cfg.Server.Host != DefaultServerHost {
		t.Errorf("Expected default server host %q, got %q", DefaultServerHost, cfg.Server.Host)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Expected default server port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}

	if cfg.Redis.KeyPrefix != DefaultRedisKeyPrefix {
		t.Errorf("Expected default redis key prefix %q, got %q", DefaultRedisKeyPrefix, cfg.Redis.KeyPrefix)
	}

	if cfg.Scheduler.CacheSweepSpec != DefaultCacheSweepSpec {
		t.Errorf("Expected default cache sweep spec %q, got %q", DefaultCacheSweepSpec, cfg.Scheduler.CacheSweepSpec)
	}

	if cfg.Features.EnableDatasetStore {
		t.Error("Expected dataset store to be disabled by default")
	}
}

func TestConfig_Validate_DatasetStoreRequiresDatabaseURL(t *testing.T) {
	WithEnv(t, "APP_ENV", "development")
	WithEnv(t, "ENABLE_DATASET_STORE", "true")
	WithEnv(t, "DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error when DATABASE_URL is missing with the dataset store enabled")
	}
	if !hasFieldError(err, "DATABASE_URL") {
		t.Errorf("Expected validation error for DATABASE_URL, got %v", err)
	}
}

func TestConfig_Validate_InvalidPort(t *testing.T) {
	WithEnv(t, "PORT", "99999")
	WithEnv(t, "APP_ENV", "development")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error for invalid port")
	}
	if !hasFieldError(err, "PORT") {
		t.Error("Expected validation error for PORT")
	}
}

func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	WithEnv(t, "LOG_LEVEL", "invalid")
	WithEnv(t, "APP_ENV", "development")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error for invalid log level")
	}
	if !hasFieldError(err, "LOG_LEVEL") {
		t.Error("Expected validation error for LOG_LEVEL")
	}
}

func TestConfig_Validate_ProductionRequiresAPIKey(t *testing.T) {
	WithEnv(t, "APP_ENV", "production")
	WithEnv(t, "API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error when API_KEY is missing in production")
	}
	if !hasFieldError(err, "API_KEY") {
		t.Error("Expected validation error for API_KEY")
	}
}

func TestConfig_TypeConversions(t *testing.T) {
	WithEnv(t, "APP_ENV", "development")
	WithEnv(t, "PORT", "3000")
	WithEnv(t, "CORS_ALLOW_ALL", "true")
	WithEnv(t, "ENABLE_METRICS", "false")
	WithEnv(t, "REDIS_TIMEOUT", "750ms")
	WithEnv(t, "DB_MAX_CONNS", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Expected PORT=3000 (int), got %d", cfg.Server.Port)
	}
	if !cfg.CORS.AllowAll {
		t.Error("Expected CORS_ALLOW_ALL=true (bool), got false")
	}
	if cfg.Features.EnableMetrics {
		t.Error("Expected ENABLE_METRICS=false (bool), got true")
	}
	if cfg.Redis.Timeout != 750*time.Millisecond {
		t.Errorf("Expected REDIS_TIMEOUT=750ms, got %v", cfg.Redis.Timeout)
	}
	if cfg.Database.MaxConns != 20 {
		t.Errorf("Expected DB_MAX_CONNS=20, got %d", cfg.Database.MaxConns)
	}
}

func TestConfig_InvalidDurationFallsBackToDefault(t *testing.T) {
	WithEnv(t, "APP_ENV", "development")
	WithEnv(t, "REDIS_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Redis.Timeout != DefaultRedisTimeout {
		t.Errorf("Expected default redis timeout, got %v", cfg.Redis.Timeout)
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"test", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{
				Logger: LoggerConfig{
					Environment: tt.env,
				},
			}
			if got := cfg.IsProduction(); got != tt.want {
				t.Errorf("IsProduction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_GetBindAddress(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"127.0.0.1", 8080, "127.0.0.1:8080"},
		{"0.0.0.0", 3000, "0.0.0.0:3000"},
		{"localhost", 9000, "localhost:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cfg := &Config{
				Server: ServerConfig{
					Host: tt.host,
					Port: tt.port,
				},
			}
			if got := cfg.GetBindAddress(); got != tt.want {
				t.Errorf("GetBindAddress() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_ValidationErrorFormat(t *testing.T) {
	WithEnv(t, "APP_ENV", "invalid")
	WithEnv(t, "LOG_LEVEL", "invalid")
	WithEnv(t, "PORT", "-1")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected validation errors")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "configuration validation failed:") {
		t.Error("Expected error message to start with 'configuration validation failed:'")
	}

	for _, field := range []string{"APP_ENV", "LOG_LEVEL", "PORT"} {
		if !strings.Contains(errStr, field) {
			t.Errorf("Expected error message to contain %s", field)
		}
	}
}

func TestTestConfig_IsValid(t *testing.T) {
	if err := TestConfig().Validate(); err != nil {
		t.Fatalf("TestConfig() should validate, got %v", err)
	}
}
