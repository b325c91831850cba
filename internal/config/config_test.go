package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, errLoad := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if errLoad != nil {
		t.Fatalf("expected no error, got %v", errLoad)
	}
	if cfg.Port != DefaultPort {
		t.Fatalf("expected default port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.RateLimit.PerMinute != DefaultRateLimitRPM {
		t.Fatalf("expected default rpm %d, got %d", DefaultRateLimitRPM, cfg.RateLimit.PerMinute)
	}
	if !cfg.RateLimit.BYOKBypassesQuota {
		t.Fatalf("expected byok bypass enabled by default")
	}
	if got := cfg.OpenAI.DefaultModelName(); got != DefaultModel {
		t.Fatalf("expected default model %q, got %q", DefaultModel, got)
	}
	if cfg.AdminEnabled() {
		t.Fatalf("expected admin API disabled without credentials")
	}
}

func TestLoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "" +
		"port: 9000\n" +
		"rate-limit:\n" +
		"  per-minute: 6\n" +
		"  daily: 15\n" +
		"  global-daily: 0\n" +
		"openai:\n" +
		"  allowed-models: [gpt-4o-mini, gpt-4o]\n" +
		"  max-raw-bytes: 4096\n"
	if errWrite := os.WriteFile(configPath, []byte(content), 0600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}

	cfg, errLoad := Load(configPath)
	if errLoad != nil {
		t.Fatalf("expected no error, got %v", errLoad)
	}
	if cfg.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.RateLimit.PerMinute != 6 || cfg.RateLimit.Daily != 15 {
		t.Fatalf("unexpected rate limits: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.GlobalDaily != 0 {
		t.Fatalf("expected global tier disabled, got %d", cfg.RateLimit.GlobalDaily)
	}
	if !cfg.OpenAI.ModelAllowed("gpt-4o") {
		t.Fatalf("expected gpt-4o on allowlist")
	}
	if cfg.OpenAI.MaxRawBytes != 4096 {
		t.Fatalf("expected max raw bytes 4096, got %d", cfg.OpenAI.MaxRawBytes)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(configPath, []byte("rate-limit:\n  per-minute: 6\n"), 0600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	t.Setenv(EnvRateLimitRPM, "3")
	t.Setenv(EnvAllowedModels, "gpt-4o-mini , gpt-4o")
	t.Setenv(EnvBYOKBypassesQuota, "off")
	t.Setenv(EnvJWTExpiry, "2h")

	cfg, errLoad := Load(configPath)
	if errLoad != nil {
		t.Fatalf("expected no error, got %v", errLoad)
	}
	if cfg.RateLimit.PerMinute != 3 {
		t.Fatalf("expected env override rpm 3, got %d", cfg.RateLimit.PerMinute)
	}
	if len(cfg.OpenAI.AllowedModels) != 2 || cfg.OpenAI.AllowedModels[1] != "gpt-4o" {
		t.Fatalf("unexpected allowlist: %v", cfg.OpenAI.AllowedModels)
	}
	if cfg.RateLimit.BYOKBypassesQuota {
		t.Fatalf("expected byok bypass disabled via env")
	}
	if cfg.JWT.Expiry != 2*time.Hour {
		t.Fatalf("expected jwt expiry 2h, got %s", cfg.JWT.Expiry)
	}
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	t.Setenv(EnvPort, "99999")
	t.Setenv(EnvMaxRawBytes, "-1")

	cfg, errLoad := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if errLoad != nil {
		t.Fatalf("expected no error, got %v", errLoad)
	}
	if cfg.Port != DefaultPort {
		t.Fatalf("expected out-of-range port to fall back, got %d", cfg.Port)
	}
	if cfg.OpenAI.MaxRawBytes != DefaultMaxRawBytes {
		t.Fatalf("expected max raw bytes fallback, got %d", cfg.OpenAI.MaxRawBytes)
	}
}
