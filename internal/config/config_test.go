package config

import (
	"testing"
	"time"
)

func TestLoadTokenPolicyDefaults(t *testing.T) {
	cfg := Load()

	if cfg.SignupBonusTokens != 3 {
		t.Fatalf("expected signup bonus 3, got %d", cfg.SignupBonusTokens)
	}
	if cfg.BoostCost != 2 {
		t.Fatalf("expected boost cost 2, got %d", cfg.BoostCost)
	}
	if cfg.BalanceCacheTTL != 30*time.Second {
		t.Fatalf("expected cache ttl 30s, got %s", cfg.BalanceCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOKENS_SIGNUP_BONUS", "5")
	t.Setenv("TOKENS_LOCK_TIMEOUT", "750ms")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg := Load()

	if cfg.SignupBonusTokens != 5 {
		t.Fatalf("expected signup bonus 5, got %d", cfg.SignupBonusTokens)
	}
	if cfg.LockTimeout != 750*time.Millisecond {
		t.Fatalf("expected lock timeout 750ms, got %s", cfg.LockTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %#v", cfg.AllowedOrigins)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("TOKENS_FREE_TTL", "thirty days")
	t.Setenv("TOKENS_PUBLISH_COST", "one")

	cfg := Load()

	if cfg.FreeTokensTTL != 720*time.Hour {
		t.Fatalf("expected default free ttl, got %s", cfg.FreeTokensTTL)
	}
	if cfg.PublishCost != 1 {
		t.Fatalf("expected default publish cost, got %d", cfg.PublishCost)
	}
}
