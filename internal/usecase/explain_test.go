package usecase

import (
	"testing"

	"argus/internal/domain"
)

func TestBuildTraceLinksFactorsAndFindings(t *testing.T) {
	c := draftCase("case-trace")
	findings := []domain.Finding{
		{RuleID: "AML-001", Severity: domain.SeverityHigh, Message: "structuring", EvidenceRefs: []string{"txn:T-1"}},
	}
	risk := &domain.RiskResult{
		Level: domain.RiskHigh,
		Score: 0.7,
		Factors: []domain.RiskFactor{
			{Name: "transaction_velocity", Weight: 0.22, Indicator: 0.5, Computable: true, EvidenceRef: "txn:T-1"},
			{Name: "structuring_pattern", Weight: 0.20, Indicator: 0.9, Computable: true},
		},
	}

	trace := BuildTrace(&c, findings, risk)

	if len(trace.Gaps) != 0 {
		t.Fatalf("unexpected gaps: %v", trace.Gaps)
	}
	if len(trace.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(trace.Entries))
	}
	if trace.Entries[0].Kind != domain.TraceRiskFactor || trace.Entries[0].EvidenceRefs[0] != "txn:T-1" {
		t.Fatalf("velocity factor entry wrong: %+v", trace.Entries[0])
	}
	if trace.Entries[1].RuleID != "AML-001" {
		t.Fatalf("structuring factor should link to its producing rule: %+v", trace.Entries[1])
	}
	if trace.Entries[2].Kind != domain.TraceFinding || trace.Entries[2].RuleID != "AML-001" {
		t.Fatalf("finding entry wrong: %+v", trace.Entries[2])
	}
}

func TestBuildTraceRecordsGapForUntraceableFactor(t *testing.T) {
	c := draftCase("case-gap")
	risk := &domain.RiskResult{
		Factors: []domain.RiskFactor{
			{Name: "historical_deviation", Weight: 0.20, Indicator: 0.3, Computable: true},
		},
	}

	trace := BuildTrace(&c, nil, risk)
	if len(trace.Entries) != 0 {
		t.Fatalf("untraceable factor produced an entry: %+v", trace.Entries)
	}
	if len(trace.Gaps) != 1 || trace.Gaps[0] != "historical_deviation" {
		t.Fatalf("expected gap for historical_deviation, got %v", trace.Gaps)
	}
}
