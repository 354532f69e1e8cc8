package usecase

import (
	"fmt"

	"argus/internal/domain"
)

// BuildTrace derives the explainability trace: every risk factor and finding
// mapped back to the evidence or rule that produced it. Pure transform over
// the validation and risk outputs; a factor that cannot be traced is a
// configuration gap, recorded on the trace and reported, never fatal.
func BuildTrace(c *domain.Case, findings []domain.Finding, risk *domain.RiskResult) domain.Trace {
	trace := domain.Trace{}

	if risk != nil {
		for _, factor := range risk.Factors {
			entry := domain.TraceEntry{
				Kind:    domain.TraceRiskFactor,
				Subject: factor.Name,
				Detail:  fmt.Sprintf("weight %.2f, indicator %.4f", factor.Weight, factor.Indicator),
			}
			if factor.EvidenceRef != "" {
				entry.EvidenceRefs = []string{factor.EvidenceRef}
			} else if ruleID := ruleBackingFactor(factor.Name, findings); ruleID != "" {
				entry.RuleID = ruleID
			} else {
				trace.Gaps = append(trace.Gaps, factor.Name)
				continue
			}
			trace.Entries = append(trace.Entries, entry)
		}
	}

	for _, f := range findings {
		trace.Entries = append(trace.Entries, domain.TraceEntry{
			Kind:         domain.TraceFinding,
			Subject:      f.Message,
			RuleID:       f.RuleID,
			EvidenceRefs: append([]string(nil), f.EvidenceRefs...),
			Detail:       string(f.Severity),
		})
	}

	return trace
}

// ruleBackingFactor finds a finding whose rule is the known producer of the
// named factor.
func ruleBackingFactor(factor string, findings []domain.Finding) string {
	producers := map[string]string{
		"structuring_pattern": "AML-001",
		"jurisdiction_risk":   "AML-021",
	}
	want, ok := producers[factor]
	if !ok {
		return ""
	}
	for _, f := range findings {
		if f.RuleID == want {
			return f.RuleID
		}
	}
	return ""
}
