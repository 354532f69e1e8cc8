package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"argus/internal/config"
	"argus/internal/domain"
)

// Rule is one member of the closed rule set. New checks are added as new
// concrete types, not open-ended dynamic dispatch, so evaluation order stays
// auditable.
type Rule interface {
	ID() string
	Stage() domain.ValidationStage
	Evaluate(rc RuleContext) ([]domain.Finding, error)
}

// RuleContext is the read-only view a rule evaluates against.
type RuleContext struct {
	Case  *domain.Case
	Rules config.Rules
	Stage domain.ValidationStage
}

// ValidationEngine runs the declared rules in fixed order. v2 re-runs every
// v1 rule before adding its own narrative-aware checks.
type ValidationEngine struct {
	cfg     config.Rules
	rules   []Rule
	metrics MetricsSink
}

func NewValidationEngine(cfg config.Rules, metrics MetricsSink) (*ValidationEngine, error) {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	rules := []Rule{
		&RequiredFieldRule{},
		&TimestampRule{},
		&StructuringRule{},
		&RapidMovementRule{},
		&HighRiskCorridorRule{},
		&NarrativeSectionRule{},
		&HallucinationRule{},
		&ProhibitedPhraseRule{},
	}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if seen[r.ID()] {
			return nil, &domain.ConfigError{Key: "validation.rules", Reason: fmt.Sprintf("duplicate rule id %s", r.ID())}
		}
		seen[r.ID()] = true
	}
	return &ValidationEngine{cfg: cfg, rules: rules, metrics: metrics}, nil
}

// Validate evaluates every rule declared for stage against c, in declaration
// order. A rule that errors or panics becomes a CRITICAL finding naming the
// rule, so a buggy rule can never mask a compliance gap.
func (e *ValidationEngine) Validate(c *domain.Case, stage domain.ValidationStage) []domain.Finding {
	var findings []domain.Finding
	rc := RuleContext{Case: c, Rules: e.cfg, Stage: stage}
	for _, r := range e.rules {
		if !runsAtStage(r.Stage(), stage) {
			continue
		}
		out := evaluateRuleSafely(r, rc)
		for i := range out {
			out[i].Stage = stage
			out[i].CaseVersion = c.Version
		}
		findings = append(findings, out...)
	}
	outcome := "pass"
	if domain.HasCritical(findings) {
		outcome = "critical"
	} else if len(findings) > 0 {
		outcome = "findings"
	}
	e.metrics.IncValidationRun(stage, outcome)
	return findings
}

func evaluateRuleSafely(r Rule, rc RuleContext) (out []domain.Finding) {
	defer func() {
		if rec := recover(); rec != nil {
			out = []domain.Finding{{
				RuleID:   r.ID(),
				Severity: domain.SeverityCritical,
				Message:  fmt.Sprintf("rule evaluation panicked: %v", rec),
			}}
		}
	}()
	findings, err := r.Evaluate(rc)
	if err != nil {
		return []domain.Finding{{
			RuleID:   r.ID(),
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("rule evaluation failed: %v", err),
		}}
	}
	return findings
}

func runsAtStage(declared, requested domain.ValidationStage) bool {
	if requested == domain.StageV2 {
		// v2 re-runs all v1 rules before its own.
		return true
	}
	return declared == domain.StageV1
}

// RequiredFieldRule checks SAR-mandated alert fields.
type RequiredFieldRule struct{}

func (r *RequiredFieldRule) ID() string                    { return "SAR-REQ-001" }
func (r *RequiredFieldRule) Stage() domain.ValidationStage { return domain.StageV1 }

func (r *RequiredFieldRule) Evaluate(rc RuleContext) ([]domain.Finding, error) {
	var findings []domain.Finding
	alert := rc.Case.Alert
	report := func(field string) {
		findings = append(findings, domain.Finding{
			RuleID:   r.ID(),
			Severity: domain.SeverityHigh,
			Message:  fmt.Sprintf("SAR-mandated field %q is missing or empty", field),
		})
	}
	for _, field := range rc.Rules.RequiredAlertFields {
		switch strings.ToLower(field) {
		case "alert_id":
			if strings.TrimSpace(alert.AlertID) == "" {
				report(field)
			}
		case "account_id":
			if strings.TrimSpace(alert.AccountID) == "" {
				report(field)
			}
		case "customer_name":
			if strings.TrimSpace(alert.Customer.Name) == "" {
				report(field)
			}
		case "transactions":
			if len(alert.Transactions) == 0 {
				report(field)
			}
		}
	}
	return findings, nil
}

// TimestampRule flags transactions with absent or out-of-range timestamps.
type TimestampRule struct{}

func (r *TimestampRule) ID() string                    { return "SAR-REQ-002" }
func (r *TimestampRule) Stage() domain.ValidationStage { return domain.StageV1 }

func (r *TimestampRule) Evaluate(rc RuleContext) ([]domain.Finding, error) {
	var findings []domain.Finding
	for _, txn := range rc.Case.Alert.Transactions {
		if txn.Timestamp.IsZero() {
			findings = append(findings, domain.Finding{
				RuleID:       r.ID(),
				Severity:     domain.SeverityMedium,
				Message:      fmt.Sprintf("transaction %s has no usable timestamp", txn.TransactionID),
				EvidenceRefs: []string{evidenceRefForTxn(txn.TransactionID)},
			})
		}
	}
	return findings, nil
}

// StructuringRule detects sub-threshold aggregation: many small transactions
// inside a short window.
type StructuringRule struct{}

func (r *StructuringRule) ID() string                    { return "AML-001" }
func (r *StructuringRule) Stage() domain.ValidationStage { return domain.StageV1 }

func (r *StructuringRule) Evaluate(rc RuleContext) ([]domain.Finding, error) {
	txns := rc.Case.Alert.Transactions
	if len(txns) == 0 {
		return nil, nil
	}
	var small []domain.Transaction
	for _, t := range txns {
		if t.Amount < rc.Rules.StructuringMaxAmount {
			small = append(small, t)
		}
	}
	period := observationDays(txns)
	if len(small) >= rc.Rules.StructuringMinTxns && period <= rc.Rules.StructuringWindowDays {
		refs := make([]string, 0, len(small))
		for _, t := range small {
			refs = append(refs, evidenceRefForTxn(t.TransactionID))
		}
		return []domain.Finding{{
			RuleID:   r.ID(),
			Severity: domain.SeverityHigh,
			Message: fmt.Sprintf("%d sub-threshold transactions within a %.1f-day window (threshold %d)",
				len(small), period, rc.Rules.StructuringMinTxns),
			EvidenceRefs: refs,
		}}, nil
	}
	return nil, nil
}

// RapidMovementRule flags outbound transfers shortly after the last inbound
// aggregation.
type RapidMovementRule struct{}

func (r *RapidMovementRule) ID() string                    { return "AML-017" }
func (r *RapidMovementRule) Stage() domain.ValidationStage { return domain.StageV1 }

func (r *RapidMovementRule) Evaluate(rc RuleContext) ([]domain.Finding, error) {
	var lastIn, firstOut *domain.Transaction
	for i := range rc.Case.Alert.Transactions {
		t := &rc.Case.Alert.Transactions[i]
		if t.Timestamp.IsZero() {
			continue
		}
		switch t.Direction {
		case domain.TxnDirectionIn:
			if lastIn == nil || t.Timestamp.After(lastIn.Timestamp) {
				lastIn = t
			}
		case domain.TxnDirectionOut:
			if firstOut == nil || t.Timestamp.Before(firstOut.Timestamp) {
				firstOut = t
			}
		}
	}
	if lastIn == nil || firstOut == nil {
		return nil, nil
	}
	delta := firstOut.Timestamp.Sub(lastIn.Timestamp)
	if delta >= 0 && delta <= time.Duration(rc.Rules.RapidMovementMaxHours*float64(time.Hour)) {
		return []domain.Finding{{
			RuleID:   r.ID(),
			Severity: domain.SeverityHigh,
			Message:  fmt.Sprintf("outbound transfer %.2f hours after final inbound credit", delta.Hours()),
			EvidenceRefs: []string{
				evidenceRefForTxn(lastIn.TransactionID),
				evidenceRefForTxn(firstOut.TransactionID),
			},
		}}, nil
	}
	return nil, nil
}

// HighRiskCorridorRule flags transactions touching high-risk jurisdictions.
type HighRiskCorridorRule struct{}

func (r *HighRiskCorridorRule) ID() string                    { return "AML-021" }
func (r *HighRiskCorridorRule) Stage() domain.ValidationStage { return domain.StageV1 }

func (r *HighRiskCorridorRule) Evaluate(rc RuleContext) ([]domain.Finding, error) {
	risky := make(map[string]bool, len(rc.Rules.HighRiskCountries))
	for _, c := range rc.Rules.HighRiskCountries {
		risky[c] = true
	}
	var refs []string
	for _, t := range rc.Case.Alert.Transactions {
		if risky[t.Country] {
			refs = append(refs, evidenceRefForTxn(t.TransactionID))
		}
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return []domain.Finding{{
		RuleID:       r.ID(),
		Severity:     domain.SeverityMedium,
		Message:      fmt.Sprintf("%d transactions linked to high-risk jurisdictions", len(refs)),
		EvidenceRefs: refs,
	}}, nil
}

// NarrativeSectionRule checks the draft has every mandated SAR section with
// non-empty content. Structural only; the text itself stays opaque.
type NarrativeSectionRule struct{}

// RequiredNarrativeSections are the mandated SAR sections, in report order.
var RequiredNarrativeSections = []string{
	"Subject Information",
	"Account Details",
	"Alert Summary",
	"Transaction Pattern Analysis",
	"Suspicious Behaviour Indicators",
	"Supporting Evidence",
	"Regulatory Justification",
	"Investigator Assessment",
	"Conclusion & Recommendation",
}

func (r *NarrativeSectionRule) ID() string                    { return "SAR-NARR-001" }
func (r *NarrativeSectionRule) Stage() domain.ValidationStage { return domain.StageV2 }

func (r *NarrativeSectionRule) Evaluate(rc RuleContext) ([]domain.Finding, error) {
	if rc.Case.Narrative == nil {
		return []domain.Finding{{
			RuleID:   r.ID(),
			Severity: domain.SeverityHigh,
			Message:  "no draft narrative present",
		}}, nil
	}
	var findings []domain.Finding
	for _, name := range RequiredNarrativeSections {
		body, ok := rc.Case.Narrative.Section(name)
		if !ok {
			findings = append(findings, domain.Finding{
				RuleID:   r.ID(),
				Severity: domain.SeverityHigh,
				Message:  fmt.Sprintf("missing narrative section %q", name),
			})
			continue
		}
		if strings.TrimSpace(body) == "" {
			findings = append(findings, domain.Finding{
				RuleID:   r.ID(),
				Severity: domain.SeverityHigh,
				Message:  fmt.Sprintf("empty narrative section %q", name),
			})
		}
	}
	return findings, nil
}

// HallucinationRule is the evidence-boundary guard over generated text: every
// citation must resolve to a permitted evidence ref. A violation is CRITICAL,
// never a silent drop.
type HallucinationRule struct{}

func (r *HallucinationRule) ID() string                    { return "SAR-HALL-001" }
func (r *HallucinationRule) Stage() domain.ValidationStage { return domain.StageV2 }

func (r *HallucinationRule) Evaluate(rc RuleContext) ([]domain.Finding, error) {
	if rc.Case.Narrative == nil {
		return nil, nil
	}
	var outside []string
	for _, ref := range rc.Case.Narrative.Citations {
		if !rc.Case.PermitsEvidence(ref) {
			outside = append(outside, ref)
		}
	}
	if len(outside) == 0 {
		return nil, nil
	}
	sort.Strings(outside)
	return []domain.Finding{{
		RuleID:   r.ID(),
		Severity: domain.SeverityCritical,
		Message: fmt.Sprintf("narrative cites evidence outside the case boundary: %s",
			strings.Join(outside, ", ")),
		EvidenceRefs: outside,
	}}, nil
}

// ProhibitedPhraseRule scans narrative sections for speculative or
// prejudicial wording banned in regulatory filings.
type ProhibitedPhraseRule struct{}

func (r *ProhibitedPhraseRule) ID() string                    { return "SAR-LANG-001" }
func (r *ProhibitedPhraseRule) Stage() domain.ValidationStage { return domain.StageV2 }

func (r *ProhibitedPhraseRule) Evaluate(rc RuleContext) ([]domain.Finding, error) {
	if rc.Case.Narrative == nil {
		return nil, nil
	}
	var findings []domain.Finding
	for _, section := range rc.Case.Narrative.Sections {
		lower := strings.ToLower(section.Body)
		for _, phrase := range rc.Rules.ProhibitedPhrases {
			if containsWord(lower, phrase) {
				findings = append(findings, domain.Finding{
					RuleID:   r.ID(),
					Severity: domain.SeverityLow,
					Message:  fmt.Sprintf("prohibited phrase %q in section %q", phrase, section.Name),
				})
			}
		}
	}
	return findings, nil
}

func containsWord(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

func observationDays(txns []domain.Transaction) float64 {
	var first, last time.Time
	for _, t := range txns {
		if t.Timestamp.IsZero() {
			continue
		}
		if first.IsZero() || t.Timestamp.Before(first) {
			first = t.Timestamp
		}
		if last.IsZero() || t.Timestamp.After(last) {
			last = t.Timestamp
		}
	}
	if first.IsZero() || last.IsZero() {
		return 0
	}
	return last.Sub(first).Hours() / 24
}
