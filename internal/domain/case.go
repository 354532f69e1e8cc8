package domain

import "time"

type CaseStatus string

const (
	StatusDraft     CaseStatus = "DRAFT"
	StatusSubmitted CaseStatus = "SUBMITTED"
	StatusApproved  CaseStatus = "APPROVED"
	StatusRejected  CaseStatus = "REJECTED"
	StatusFinalized CaseStatus = "FINALIZED"
)

// Terminal reports whether s admits no further transitions.
func (s CaseStatus) Terminal() bool {
	return s == StatusFinalized
}

type ReviewAction string

const (
	ActionSubmit   ReviewAction = "submit"
	ActionApprove  ReviewAction = "approve"
	ActionReject   ReviewAction = "reject"
	ActionRework   ReviewAction = "rework"
	ActionFinalize ReviewAction = "finalize"
)

type Actor struct {
	ID    string
	Roles []string
}

type ReviewEntry struct {
	Actor      string
	Action     ReviewAction
	FromStatus CaseStatus
	ToStatus   CaseStatus
	Comment    string
	At         time.Time
}

// NarrativeSection keeps section order explicit; map iteration order would
// break reproducibility of traces and exports.
type NarrativeSection struct {
	Name string
	Body string
}

type Narrative struct {
	Sections []NarrativeSection
	// Citations are the evidence refs the generated text claims to rely on.
	// v2 validation checks them against the case boundary.
	Citations []string
	// GeneratedAtVersion is the case version the generator saw.
	GeneratedAtVersion int64
	GeneratorMeta      string
}

func (n *Narrative) Section(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, s := range n.Sections {
		if s.Name == name {
			return s.Body, true
		}
	}
	return "", false
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

type RiskFactor struct {
	Name        string
	Weight      float64
	Indicator   float64
	Computable  bool
	EvidenceRef string
}

type RiskResult struct {
	Level      RiskLevel
	Score      float64
	Confidence float64
	Factors    []RiskFactor
}

type TraceKind string

const (
	TraceRiskFactor TraceKind = "risk_factor"
	TraceFinding    TraceKind = "finding"
)

type TraceEntry struct {
	Kind         TraceKind
	Subject      string
	RuleID       string
	EvidenceRefs []string
	Detail       string
}

type Trace struct {
	Entries []TraceEntry
	// Gaps name factors that could not be tied to any evidence or rule.
	// A gap is a configuration problem, reported but non-fatal.
	Gaps []string
}

// Case is the central aggregate. Mutations never overwrite history: every
// committed change produces a new version snapshot in the store.
type Case struct {
	ID        string
	Status    CaseStatus
	Version   int64
	CreatedAt time.Time

	// Alert is the masked, boundary-filtered copy owned by the case. It is
	// never re-derived from raw input after ingestion.
	Alert AlertRecord
	// EvidenceRefs is fixed at creation and only shrinks via explicit
	// re-scoping, never silently grows.
	EvidenceRefs []string

	Narrative *Narrative
	Findings  []Finding
	Risk      *RiskResult
	Trace     *Trace

	ReviewHistory []ReviewEntry
	SubmittedBy   string
}

// PermitsEvidence reports whether ref is inside the case boundary.
func (c *Case) PermitsEvidence(ref string) bool {
	for _, r := range c.EvidenceRefs {
		if r == ref {
			return true
		}
	}
	return false
}

// OpenCriticalFindings returns the findings that block the case from leaving
// DRAFT.
func (c *Case) OpenCriticalFindings() []Finding {
	var out []Finding
	for _, f := range c.Findings {
		if f.Severity == SeverityCritical {
			out = append(out, f)
		}
	}
	return out
}

type CaseSummary struct {
	ID        string
	Status    CaseStatus
	Version   int64
	RiskLevel RiskLevel
	RiskScore float64
	CreatedAt time.Time
}

// CaseSnapshot is the immutable point-in-time view handed to the export
// collaborator.
type CaseSnapshot struct {
	Case       Case
	AuditTrail []AuditRecord
	TakenAt    time.Time
}
