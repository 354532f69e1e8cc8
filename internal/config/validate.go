package config

import (
	"fmt"
	"math"

	"argus/internal/domain"
)

// Validate checks the rule and weight configuration. A failure here is fatal:
// the engine must not serve requests with an inconsistent rule set.
func (c Config) Validate() error {
	if err := c.Rules.validate(); err != nil {
		return err
	}
	return c.Risk.validate()
}

func (r Rules) validate() error {
	if len(r.RequiredAlertFields) == 0 {
		return &domain.ConfigError{Key: "rules.required_alert_fields", Reason: "must not be empty"}
	}
	if r.StructuringMaxAmount <= 0 {
		return &domain.ConfigError{Key: "rules.structuring_max_amount", Reason: "must be positive"}
	}
	if r.StructuringMinTxns <= 0 {
		return &domain.ConfigError{Key: "rules.structuring_min_txns", Reason: "must be positive"}
	}
	if r.StructuringWindowDays <= 0 {
		return &domain.ConfigError{Key: "rules.structuring_window_days", Reason: "must be positive"}
	}
	if r.RapidMovementMaxHours <= 0 {
		return &domain.ConfigError{Key: "rules.rapid_movement_max_hours", Reason: "must be positive"}
	}
	return nil
}

func (r Risk) validate() error {
	if len(r.Weights) == 0 {
		return &domain.ConfigError{Key: "risk.weights", Reason: "must not be empty"}
	}
	seen := make(map[string]bool, len(r.Weights))
	sum := 0.0
	for _, w := range r.Weights {
		if w.Name == "" {
			return &domain.ConfigError{Key: "risk.weights", Reason: "weight with empty name"}
		}
		if seen[w.Name] {
			return &domain.ConfigError{Key: "risk.weights", Reason: fmt.Sprintf("duplicate factor %q", w.Name)}
		}
		seen[w.Name] = true
		if w.Value <= 0 {
			return &domain.ConfigError{Key: "risk.weights", Reason: fmt.Sprintf("factor %q weight must be positive", w.Name)}
		}
		sum += w.Value
	}
	if math.Abs(sum-1.0) > 0.001 {
		return &domain.ConfigError{Key: "risk.weights", Reason: fmt.Sprintf("weights sum to %.3f, want 1.0", sum)}
	}
	if !(r.MediumAt > 0 && r.MediumAt < r.HighAt && r.HighAt < r.CriticalAt && r.CriticalAt < 1) {
		return &domain.ConfigError{Key: "risk.thresholds", Reason: "thresholds must be strictly increasing within (0,1)"}
	}
	return nil
}
