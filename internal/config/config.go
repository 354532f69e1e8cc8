package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	// CapabilityBundlePath optionally overrides the embedded capability
	// policy. The engine pins the bundle hash at startup.
	CapabilityBundlePath string

	RateLimitRequests      int
	RateLimitWindowSeconds int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CaseLockWaitMillis int

	Rules Rules
	Risk  Risk
}

// Rules is the static rule configuration shared by validation v1 and v2.
// It is loaded once at startup and never mutated from request handlers.
type Rules struct {
	RequiredAlertFields []string
	SensitiveFields     []string
	ProhibitedPhrases   []string
	HighRiskCountries   []string

	StructuringMaxAmount  float64
	StructuringMinTxns    int
	StructuringWindowDays float64
	RapidMovementMaxHours float64
}

// Weight pairs a factor name with its fixed contribution weight. Declaration
// order is the tie-break order for the factor table.
type Weight struct {
	Name  string
	Value float64
}

type Risk struct {
	Weights []Weight
	// Thresholds are the lower score bounds, on [0,1], for MEDIUM, HIGH and
	// CRITICAL. Scores below MediumAt are LOW.
	MediumAt   float64
	HighAt     float64
	CriticalAt float64
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		CapabilityBundlePath:   os.Getenv("CAPABILITY_BUNDLE_PATH"),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		CaseLockWaitMillis:     envIntDefault("CASE_LOCK_WAIT_MILLIS", 5000),
		Rules:                  DefaultRules(),
		Risk:                   DefaultRisk(),
	}
}

func DefaultRules() Rules {
	return Rules{
		RequiredAlertFields: []string{"alert_id", "account_id", "customer_name", "transactions"},
		SensitiveFields: []string{
			"name", "customer_name", "account_number", "customer_id",
			"address", "email", "phone", "dob", "ssn",
		},
		ProhibitedPhrases: []string{
			"definitely", "certainly", "guaranteed", "must be", "obvious",
			"clearly", "terrorist", "criminal",
		},
		HighRiskCountries:     []string{"IR", "KP", "SY", "RU"},
		StructuringMaxAmount:  10000,
		StructuringMinTxns:    20,
		StructuringWindowDays: 10,
		RapidMovementMaxHours: 6,
	}
}

func DefaultRisk() Risk {
	return Risk{
		Weights: []Weight{
			{Name: "transaction_velocity", Value: 0.22},
			{Name: "structuring_pattern", Value: 0.20},
			{Name: "jurisdiction_risk", Value: 0.18},
			{Name: "pep_involvement", Value: 0.20},
			{Name: "historical_deviation", Value: 0.20},
		},
		MediumAt:   0.30,
		HighAt:     0.60,
		CriticalAt: 0.85,
	}
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) CaseLockWait() time.Duration {
	return time.Duration(c.CaseLockWaitMillis) * time.Millisecond
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntDefault(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
