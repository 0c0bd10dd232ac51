package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SCRIPTGEN_API_URL", "")
	t.Setenv("POLL_INTERVAL_SECONDS", "")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("APIBaseURL mismatch: got %q", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("PollInterval = %s, want 5s", cfg.PollInterval)
	}
	if cfg.GenerationTimeout != 5*time.Minute {
		t.Fatalf("GenerationTimeout = %s, want 5m", cfg.GenerationTimeout)
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("SCRIPTGEN_API_URL", "https://api.example.com")
	t.Setenv("POLL_INTERVAL_SECONDS", "2")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "120")
	t.Setenv("STUB_FAIL_MODE", "credit")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com" {
		t.Fatalf("APIBaseURL mismatch: got %q", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval = %s, want 2s", cfg.PollInterval)
	}
	if cfg.GenerationTimeout != 2*time.Minute {
		t.Fatalf("GenerationTimeout = %s, want 2m", cfg.GenerationTimeout)
	}
	if cfg.StubFailMode != "credit" {
		t.Fatalf("StubFailMode = %q, want credit", cfg.StubFailMode)
	}
}

func TestLoadConfigRejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("POLL_INTERVAL_SECONDS", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for zero poll interval")
	}
}
