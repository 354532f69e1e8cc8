package usecase

import (
	"math"
	"sort"

	"argus/internal/config"
	"argus/internal/domain"
)

// RiskEngine computes the level/score/confidence tuple and the ranked factor
// table. It is pure: identical (case, findings) input always yields an
// identical result, which audit reproducibility depends on.
type RiskEngine struct {
	cfg     config.Risk
	factors map[string]factorFunc
	metrics MetricsSink
}

type factorFunc func(c *domain.Case, findings []domain.Finding) factorInput

func NewRiskEngine(cfg config.Risk, metrics MetricsSink) *RiskEngine {
	return newRiskEngine(cfg, defaultFactorFuncs(), metrics)
}

func newRiskEngine(cfg config.Risk, factors map[string]factorFunc, metrics MetricsSink) *RiskEngine {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &RiskEngine{cfg: cfg, factors: factors, metrics: metrics}
}

func defaultFactorFuncs() map[string]factorFunc {
	return map[string]factorFunc{
		"transaction_velocity": velocityFactor,
		"structuring_pattern":  structuringFactor,
		"jurisdiction_risk":    jurisdictionFactor,
		"pep_involvement":      pepFactor,
		"historical_deviation": historicalFactor,
	}
}

// factorInput is one computed indicator in [0,1]. Computable=false marks a
// factor whose inputs were missing; it contributes nothing to the score and
// lowers confidence.
type factorInput struct {
	indicator   float64
	computable  bool
	evidenceRef string
}

func (e *RiskEngine) Score(c *domain.Case, findings []domain.Finding) domain.RiskResult {
	score := 0.0
	computable := 0
	factors := make([]domain.RiskFactor, 0, len(e.cfg.Weights))
	for _, w := range e.cfg.Weights {
		fn, ok := e.factors[w.Name]
		if !ok {
			// Configured factor with no computation: a trace gap surfaced by
			// the explainability builder, confidence drops here.
			factors = append(factors, domain.RiskFactor{Name: w.Name, Weight: w.Value})
			continue
		}
		in := fn(c, findings)
		f := domain.RiskFactor{
			Name:        w.Name,
			Weight:      w.Value,
			Indicator:   in.indicator,
			Computable:  in.computable,
			EvidenceRef: in.evidenceRef,
		}
		if in.computable {
			score += w.Value * in.indicator
			computable++
		}
		factors = append(factors, f)
	}
	score = clamp01(score)

	confidence := 0.0
	if len(e.cfg.Weights) > 0 {
		confidence = float64(computable) / float64(len(e.cfg.Weights))
	}

	// Descending weight; declaration order breaks ties (stable sort over the
	// declaration-ordered slice).
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Weight > factors[j].Weight
	})

	result := domain.RiskResult{
		Level:      e.level(score),
		Score:      score,
		Confidence: confidence,
		Factors:    factors,
	}
	e.metrics.IncRiskComputation(result.Level)
	return result
}

func (e *RiskEngine) level(score float64) domain.RiskLevel {
	switch {
	case score >= e.cfg.CriticalAt:
		return domain.RiskCritical
	case score >= e.cfg.HighAt:
		return domain.RiskHigh
	case score >= e.cfg.MediumAt:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func velocityFactor(c *domain.Case, _ []domain.Finding) factorInput {
	txns := c.Alert.Transactions
	if len(txns) == 0 {
		return factorInput{}
	}
	period := observationDays(txns)
	if period <= 0 {
		period = 1
	}
	perDay := float64(len(txns)) / period
	return factorInput{
		indicator:   clamp01(perDay / 10),
		computable:  true,
		evidenceRef: evidenceRefForAlert(c.Alert.AlertID),
	}
}

func structuringFactor(c *domain.Case, findings []domain.Finding) factorInput {
	txns := c.Alert.Transactions
	if len(txns) == 0 {
		return factorInput{}
	}
	ref := evidenceRefForAlert(c.Alert.AlertID)
	for _, f := range findings {
		if f.RuleID == "AML-001" && len(f.EvidenceRefs) > 0 {
			ref = f.EvidenceRefs[0]
		}
	}
	small := 0
	for _, t := range txns {
		if t.Amount < 10000 {
			small++
		}
	}
	return factorInput{
		indicator:   clamp01(float64(small) / float64(len(txns))),
		computable:  true,
		evidenceRef: ref,
	}
}

func jurisdictionFactor(c *domain.Case, findings []domain.Finding) factorInput {
	for _, f := range findings {
		if f.RuleID == "AML-021" {
			ref := ""
			if len(f.EvidenceRefs) > 0 {
				ref = f.EvidenceRefs[0]
			}
			return factorInput{indicator: 1.0, computable: true, evidenceRef: ref}
		}
	}
	return factorInput{
		indicator:   0.2,
		computable:  true,
		evidenceRef: evidenceRefForAlert(c.Alert.AlertID),
	}
}

func pepFactor(c *domain.Case, _ []domain.Finding) factorInput {
	indicator := 0.15
	if len(c.Alert.Customer.PEPFlags) > 0 {
		indicator = 1.0
	}
	return factorInput{
		indicator:   indicator,
		computable:  true,
		evidenceRef: domain.EvidenceRefCustomerProfile,
	}
}

func historicalFactor(c *domain.Case, _ []domain.Finding) factorInput {
	txns := c.Alert.Transactions
	if len(txns) == 0 {
		return factorInput{}
	}
	counterparties := make(map[string]bool, len(txns))
	total := 0.0
	for _, t := range txns {
		counterparties[t.Counterparty] = true
		total += t.Amount
	}
	raw := (float64(len(counterparties))*2 + total/1_000_000) / 30
	return factorInput{
		indicator:   clamp01(raw),
		computable:  true,
		evidenceRef: evidenceRefForAlert(c.Alert.AlertID),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
