package configs

import (
	"errors"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "JWT_SECRET", "WEBHOOK_AUTH",
		"STORE_BACKEND", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"JOIN_ANNOUNCE_DELAY", "PAIRING_ANNOUNCE_DELAY", "CLEANUP_MAX_AGE", "CLEANUP_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_DevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, StoreMemory)
	}
	if cfg.JoinAnnounceDelay != time.Second {
		t.Errorf("JoinAnnounceDelay = %s, want 1s", cfg.JoinAnnounceDelay)
	}
	if cfg.PairingAnnounceDelay != 500*time.Millisecond {
		t.Errorf("PairingAnnounceDelay = %s, want 500ms", cfg.PairingAnnounceDelay)
	}
	if cfg.CleanupMaxAge != 24*time.Hour {
		t.Errorf("CleanupMaxAge = %s, want 24h", cfg.CleanupMaxAge)
	}
	if cfg.JWTSecret == "" {
		t.Error("expected a development JWT secret")
	}
}

func TestLoadConfig_ParsesOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://a.example" || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfig_MalformedValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PORT", "eighty"},
		{"PORT", "80"},
		{"WEBHOOK_AUTH", "maybe"},
		{"JOIN_ANNOUNCE_DELAY", "soon"},
		{"CLEANUP_INTERVAL", "-1m"},
		{"REDIS_DB", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := LoadConfig()
			if err == nil {
				t.Fatal("expected error")
			}
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				t.Errorf("malformed value reported as ConfigError: %v", err)
			}
			if cfg != nil {
				t.Error("expected nil config for malformed value")
			}
		})
	}
}

func TestLoadConfig_MissingRequiredOutsideDevelopment(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantKey string
	}{
		{"jwt secret", map[string]string{"STORE_BACKEND": "postgres", "DATABASE_URL": "postgres://x"}, "JWT_SECRET"},
		{"database url", map[string]string{"JWT_SECRET": "s", "STORE_BACKEND": "postgres"}, "DATABASE_URL"},
		{"redis addr", map[string]string{"JWT_SECRET": "s", "STORE_BACKEND": "redis"}, "REDIS_ADDR"},
		{"memory store", map[string]string{"JWT_SECRET": "s"}, "STORE_BACKEND"},
		{"unknown backend", map[string]string{"JWT_SECRET": "s", "STORE_BACKEND": "tables"}, "STORE_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ENVIRONMENT", "production")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if cfgErr.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", cfgErr.Key, tt.wantKey)
			}
			if cfg == nil || cfg.Port != 8080 {
				t.Error("expected a populated config alongside the ConfigError")
			}
		})
	}
}
