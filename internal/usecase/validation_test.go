package usecase

import (
	"errors"
	"strings"
	"testing"
	"time"

	"argus/internal/domain"
)

func newTestValidator(t *testing.T) *ValidationEngine {
	t.Helper()
	engine, err := NewValidationEngine(testRules(), nil)
	if err != nil {
		t.Fatalf("build validation engine: %v", err)
	}
	return engine
}

func TestValidateV1FlagsRapidMovement(t *testing.T) {
	engine := newTestValidator(t)
	c := draftCase("case-v1")

	findings := engine.Validate(&c, domain.StageV1)

	var rapid *domain.Finding
	for i := range findings {
		if findings[i].RuleID == "AML-017" {
			rapid = &findings[i]
		}
		if findings[i].Stage != domain.StageV1 {
			t.Fatalf("finding %s tagged with stage %s", findings[i].RuleID, findings[i].Stage)
		}
		if findings[i].CaseVersion != c.Version {
			t.Fatalf("finding %s tagged with version %d", findings[i].RuleID, findings[i].CaseVersion)
		}
	}
	if rapid == nil {
		t.Fatalf("expected AML-017 finding, got %v", findings)
	}
	if rapid.Severity != domain.SeverityHigh {
		t.Fatalf("unexpected severity %s", rapid.Severity)
	}
	if len(rapid.EvidenceRefs) != 2 {
		t.Fatalf("rapid movement should cite both transactions: %v", rapid.EvidenceRefs)
	}
}

func TestValidateV1FlagsStructuring(t *testing.T) {
	engine := newTestValidator(t)
	c := draftCase("case-structuring")

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c.Alert.Transactions = nil
	for i := 0; i < 25; i++ {
		c.Alert.Transactions = append(c.Alert.Transactions, domain.Transaction{
			TransactionID: "S-" + string(rune('A'+i)),
			Amount:        9000,
			Currency:      "USD",
			Direction:     domain.TxnDirectionIn,
			Country:       "US",
			Timestamp:     base.Add(time.Duration(i) * 6 * time.Hour),
		})
	}

	findings := engine.Validate(&c, domain.StageV1)
	found := false
	for _, f := range findings {
		if f.RuleID == "AML-001" {
			found = true
			if len(f.EvidenceRefs) != 25 {
				t.Fatalf("structuring should cite every small transaction, cited %d", len(f.EvidenceRefs))
			}
		}
	}
	if !found {
		t.Fatalf("expected AML-001 finding, got %v", findings)
	}
}

func TestValidateV2FlagsHallucinatedCitation(t *testing.T) {
	engine := newTestValidator(t)
	c := draftCase("case-halluc")
	c.Narrative = fullNarrative([]string{"txn:T-1", "txn:T-404"})

	findings := engine.Validate(&c, domain.StageV2)

	var halluc *domain.Finding
	for i := range findings {
		if findings[i].RuleID == "SAR-HALL-001" {
			halluc = &findings[i]
		}
	}
	if halluc == nil {
		t.Fatalf("expected SAR-HALL-001 finding, got %v", findings)
	}
	if halluc.Severity != domain.SeverityCritical {
		t.Fatalf("hallucinated citation must be critical, got %s", halluc.Severity)
	}
	if !strings.Contains(halluc.Message, "txn:T-404") {
		t.Fatalf("finding should name the offending ref: %s", halluc.Message)
	}
}

func TestValidateV2FlagsMissingSections(t *testing.T) {
	engine := newTestValidator(t)
	c := draftCase("case-sections")
	c.Narrative = &domain.Narrative{
		Sections:  []domain.NarrativeSection{{Name: "Alert Summary", Body: "text"}},
		Citations: []string{"txn:T-1"},
	}

	findings := engine.Validate(&c, domain.StageV2)
	missing := 0
	for _, f := range findings {
		if f.RuleID == "SAR-NARR-001" {
			missing++
		}
	}
	if missing != len(RequiredNarrativeSections)-1 {
		t.Fatalf("expected %d missing-section findings, got %d", len(RequiredNarrativeSections)-1, missing)
	}
}

func TestProhibitedPhraseMatchesWholeWordsOnly(t *testing.T) {
	engine := newTestValidator(t)
	c := draftCase("case-phrases")
	narrative := fullNarrative(c.EvidenceRefs)
	narrative.Sections[2].Body = "The account holder indefinitely postponed closure."

	c.Narrative = narrative
	findings := engine.Validate(&c, domain.StageV2)
	for _, f := range findings {
		if f.RuleID == "SAR-LANG-001" {
			t.Fatalf("substring match should not trigger: %s", f.Message)
		}
	}

	narrative.Sections[2].Body = "This is definitely structuring."
	findings = engine.Validate(&c, domain.StageV2)
	found := false
	for _, f := range findings {
		if f.RuleID == "SAR-LANG-001" {
			found = true
			if f.Severity != domain.SeverityLow {
				t.Fatalf("unexpected severity %s", f.Severity)
			}
		}
	}
	if !found {
		t.Fatal("expected prohibited phrase finding")
	}
}

type panickyRule struct{}

func (panickyRule) ID() string                    { return "TEST-PANIC" }
func (panickyRule) Stage() domain.ValidationStage { return domain.StageV1 }
func (panickyRule) Evaluate(RuleContext) ([]domain.Finding, error) {
	panic("boom")
}

type failingRule struct{}

func (failingRule) ID() string                    { return "TEST-FAIL" }
func (failingRule) Stage() domain.ValidationStage { return domain.StageV1 }
func (failingRule) Evaluate(RuleContext) ([]domain.Finding, error) {
	return nil, errors.New("backend off")
}

func TestBrokenRuleBecomesCriticalFinding(t *testing.T) {
	c := draftCase("case-broken-rule")
	rc := RuleContext{Case: &c, Rules: testRules(), Stage: domain.StageV1}

	out := evaluateRuleSafely(panickyRule{}, rc)
	if len(out) != 1 || out[0].Severity != domain.SeverityCritical || out[0].RuleID != "TEST-PANIC" {
		t.Fatalf("panic not converted to critical finding: %+v", out)
	}

	out = evaluateRuleSafely(failingRule{}, rc)
	if len(out) != 1 || out[0].Severity != domain.SeverityCritical || out[0].RuleID != "TEST-FAIL" {
		t.Fatalf("error not converted to critical finding: %+v", out)
	}
}

func TestValidationOrderIsDeterministic(t *testing.T) {
	engine := newTestValidator(t)
	c := draftCase("case-order")
	c.Narrative = fullNarrative([]string{"txn:T-404"})

	first := engine.Validate(&c, domain.StageV2)
	second := engine.Validate(&c, domain.StageV2)
	if len(first) != len(second) {
		t.Fatalf("finding counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].RuleID != second[i].RuleID || first[i].Message != second[i].Message {
			t.Fatalf("ordering differs at %d: %s vs %s", i, first[i].RuleID, second[i].RuleID)
		}
	}
}
