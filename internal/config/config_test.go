package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_KEY", "secret")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DATASOURCE_URL", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("RATE_LIMIT_RPS", "")
	t.Setenv("RATE_LIMIT_BURST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerPort != 3000 {
		t.Fatalf("server port = %d, want 3000", cfg.ServerPort)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("logging defaults = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 10 {
		t.Fatalf("rate limit defaults = %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadRequiresTokenKey(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing ACCESS_TOKEN_KEY")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_KEY", "secret")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("DATASOURCE_URL", "postgres://localhost/books")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerPort != 8080 {
		t.Fatalf("server port = %d, want 8080", cfg.ServerPort)
	}
	if cfg.DatabaseURL != "postgres://localhost/books" {
		t.Fatalf("database url = %q", cfg.DatabaseURL)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("rate limit rps = %v, want 2.5", cfg.RateLimitRPS)
	}
}
