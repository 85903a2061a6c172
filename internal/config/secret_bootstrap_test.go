package config

import (
	"testing"
)

func validConfig() *Config {
	return &Config{
		Security: SecurityConfig{
			JWTSecret:         "abcdefghijklmnopqrstuvwxyzABCDEF123456",
			JWTExpiresIn:      "7d",
			MinPasswordLength: 6,
		},
	}
}

func TestEnsureSecrets_GeneratesMissingJWTSecret(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if err := cfg.ensureSecrets(); err != nil {
		t.Fatalf("ensureSecrets() error = %v", err)
	}

	// 32 random bytes hex-encoded -> 64 chars.
	if len(cfg.Security.JWTSecret) != 64 {
		t.Fatalf("jwt secret length = %d, want 64", len(cfg.Security.JWTSecret))
	}
}

func TestEnsureSecrets_PreservesProvidedValues(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.ensureSecrets(); err != nil {
		t.Fatalf("ensureSecrets() error = %v", err)
	}

	if got := cfg.Security.JWTSecret; got != "abcdefghijklmnopqrstuvwxyzABCDEF123456" {
		t.Fatalf("jwt secret changed unexpectedly: %q", got)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short-secret" }, true},
		{"bad expiry", func(c *Config) { c.Security.JWTExpiresIn = "never" }, true},
		{"zero password length", func(c *Config) { c.Security.MinPasswordLength = 0 }, true},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true }, true},
		{"mqtt qos out of range", func(c *Config) { c.MQTT.QoS = 3 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
