package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shelfkeep/shelfkeep/internal/repository"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
}

func TestLoad_WithRequiredVars(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.AuthJWTSecret != "test-secret" {
		t.Errorf("expected AuthJWTSecret to be set, got %s", cfg.AuthJWTSecret)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing AUTH_JWT_SECRET, got nil")
	}
}

func TestConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.AppEnv != "development" {
		t.Errorf("expected default AppEnv 'development', got %s", cfg.AppEnv)
	}
	if cfg.AppPort != 8080 {
		t.Errorf("expected default AppPort 8080, got %d", cfg.AppPort)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("unexpected log defaults %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.StorageDriver != repository.DriverSQLite {
		t.Errorf("expected default StorageDriver sqlite, got %s", cfg.StorageDriver)
	}
	if cfg.SQLitePath != "data/books.db" {
		t.Errorf("expected default SQLitePath data/books.db, got %s", cfg.SQLitePath)
	}
	if !cfg.StorageFallback {
		t.Error("expected StorageFallback to default to true")
	}
	if cfg.IdentityCacheTTL != 5*time.Minute {
		t.Errorf("expected default IdentityCacheTTL 5m, got %s", cfg.IdentityCacheTTL)
	}
	if cfg.AuthCookieName != "session" {
		t.Errorf("expected default AuthCookieName session, got %s", cfg.AuthCookieName)
	}
	if cfg.MaxRequestBodySize != 1<<20 {
		t.Errorf("expected default MaxRequestBodySize 1MiB, got %d", cfg.MaxRequestBodySize)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"postgres without url", map[string]string{"STORAGE_DRIVER": "postgres"}, "DATABASE_URL is required"},
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "mongo"}, `unknown STORAGE_DRIVER "mongo"`},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}, `unknown LOG_FORMAT "xml"`},
		{"port out of range", map[string]string{"APP_PORT": "70000"}, "APP_PORT 70000 out of range"},
		{"postgres with url", map[string]string{"STORAGE_DRIVER": "postgres", "DATABASE_URL": "postgres://localhost/books"}, ""},
		{"memory", map[string]string{"STORAGE_DRIVER": "memory"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_GetCORSAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: " https://a.example.com, ,*.example.org "}

	got := cfg.GetCORSAllowedOrigins()
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "*.example.org" {
		t.Errorf("unexpected origins %q", got)
	}

	if (&Config{}).GetCORSAllowedOrigins() != nil {
		t.Error("expected nil origins for an empty setting")
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{AppEnv: "development"}
	if !cfg.IsDevelopment() {
		t.Error("expected IsDevelopment to return true")
	}

	cfg.AppEnv = "production"
	if cfg.IsDevelopment() {
		t.Error("expected IsDevelopment to return false")
	}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction to return true")
	}
}
