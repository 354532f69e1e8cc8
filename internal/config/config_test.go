package config

import (
	"errors"
	"testing"
	"time"

	"argus/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Config{Rules: DefaultRules(), Risk: DefaultRisk()}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Risk)
	}{
		{"empty weights", func(r *Risk) { r.Weights = nil }},
		{"duplicate factor", func(r *Risk) { r.Weights = append(r.Weights, Weight{Name: "pep_involvement", Value: 0.1}) }},
		{"negative weight", func(r *Risk) { r.Weights[0].Value = -0.22 }},
		{"sum off one", func(r *Risk) { r.Weights[0].Value = 0.5 }},
		{"thresholds out of order", func(r *Risk) { r.HighAt = 0.2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{Rules: DefaultRules(), Risk: DefaultRisk()}
			tc.mutate(&cfg.Risk)
			err := cfg.Validate()
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

func TestValidateRejectsBadRules(t *testing.T) {
	cfg := Config{Rules: DefaultRules(), Risk: DefaultRisk()}
	cfg.Rules.StructuringMinTxns = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero structuring threshold accepted")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("RATE_LIMIT_REQUESTS", "")
	t.Setenv("CASE_LOCK_WAIT_MILLIS", "not-a-number")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("addr %s", cfg.HTTPAddr)
	}
	if cfg.RateLimitRequests != 60 || cfg.RateLimitWindow() != time.Minute {
		t.Fatalf("rate limit defaults: %d per %v", cfg.RateLimitRequests, cfg.RateLimitWindow())
	}
	if cfg.CaseLockWait() != 5*time.Second {
		t.Fatalf("lock wait %v", cfg.CaseLockWait())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("env defaults invalid: %v", err)
	}
}
