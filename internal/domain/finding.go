package domain

import "sort"

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Rank orders severities for reporting: CRITICAL < HIGH < MEDIUM < LOW.
// Unknown severities sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

type ValidationStage string

const (
	StageV1 ValidationStage = "v1"
	StageV2 ValidationStage = "v2"
)

type Finding struct {
	RuleID       string
	Severity     Severity
	Message      string
	EvidenceRefs []string
	Stage        ValidationStage
	CaseVersion  int64
}

// SortFindingsForReport orders findings by severity, keeping rule-declaration
// order within equal severity. The sort is stable by contract: reports must
// be reproducible for identical input.
func SortFindingsForReport(findings []Finding) []Finding {
	out := make([]Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}

// HasCritical reports whether any finding carries CRITICAL severity.
func HasCritical(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
