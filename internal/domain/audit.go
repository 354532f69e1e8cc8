package domain

import "time"

type AuditAction string

const (
	AuditCaseCreated       AuditAction = "case.created"
	AuditValidationRun     AuditAction = "case.validation_run"
	AuditRiskScored        AuditAction = "case.risk_scored"
	AuditNarrativeAttached AuditAction = "case.narrative_attached"
	AuditTraceBuilt        AuditAction = "case.trace_built"
	AuditEvidenceRescoped  AuditAction = "case.evidence_rescoped"
	AuditSubmitted         AuditAction = "workflow.submitted"
	AuditApproved          AuditAction = "workflow.approved"
	AuditRejected          AuditAction = "workflow.rejected"
	AuditReworked          AuditAction = "workflow.reworked"
	AuditFinalized         AuditAction = "workflow.finalized"
)

type AuditResult string

const (
	// AuditResultCommitted marks a record backing a committed case mutation.
	// Exactly these records count toward a case's version.
	AuditResultCommitted AuditResult = "committed"
	// AuditResultRejectedAttempt marks an attempted action that was refused.
	// It never increments a case version.
	AuditResultRejectedAttempt AuditResult = "rejected_attempt"
)

const AuditChainVersion = "audit_chain_v1"

// AuditRecord is immutable once written. Seq is assigned by the ledger,
// strictly increasing and gap-free per store instance. PrevHash/RecordHash
// chain records so tampering or reordering is detectable.
type AuditRecord struct {
	Seq         int64
	CaseID      string
	CaseVersion int64
	Actor       string
	Action      AuditAction
	Result      AuditResult
	Payload     map[string]any
	PayloadHash string
	PrevHash    string
	RecordHash  string
	CreatedAt   time.Time
}
