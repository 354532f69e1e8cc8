package usecase

import (
	"context"
	"time"

	"argus/internal/domain"
)

type Clock func() time.Time

// CaseStore persists case snapshots. Commit is a compare-and-swap: the new
// version plus its audit record land atomically or not at all.
type CaseStore interface {
	// CreateCase stores the case at version 0 together with its creation
	// audit record.
	CreateCase(ctx context.Context, c domain.Case, rec domain.AuditRecord) (domain.Case, domain.AuditRecord, error)
	// Commit stores c as version expectedVersion+1 and appends rec. Fails
	// with *domain.StaleVersion if the stored head moved, and with
	// domain.ErrCaseFinalized if the head is terminal.
	Commit(ctx context.Context, c domain.Case, expectedVersion int64, rec domain.AuditRecord) (domain.Case, domain.AuditRecord, error)
	GetCase(ctx context.Context, caseID string) (domain.Case, error)
	GetCaseVersion(ctx context.Context, caseID string, version int64) (domain.Case, error)
	ListCases(ctx context.Context) ([]domain.CaseSummary, error)
}

// AuditLedger is the append-only record of every mutating action. No update
// or delete operation exists on this surface.
type AuditLedger interface {
	Append(ctx context.Context, rec domain.AuditRecord) (domain.AuditRecord, error)
	ListByCase(ctx context.Context, caseID string) ([]domain.AuditRecord, error)
	ListRange(ctx context.Context, fromSeq, toSeq int64) ([]domain.AuditRecord, error)
}

// Retriever is the external document-retrieval collaborator. Results are
// opaque text tied to evidence refs already inside the boundary.
type Retriever interface {
	Retrieve(ctx context.Context, evidenceRefs []string, query string) ([]Snippet, error)
}

type Snippet struct {
	EvidenceRef string
	Text        string
	Score       float64
}

// Generator is the external narrative-generation collaborator. Its output is
// never trusted without re-running v2 validation.
type Generator interface {
	Generate(ctx context.Context, input GenerationInput) (domain.Narrative, error)
}

type GenerationInput struct {
	CaseSummary      string
	PermittedRefs    []string
	Snippets         []Snippet
	RiskLevel        domain.RiskLevel
	SubmittedVersion int64
}

// MetricsSink receives fire-and-forget counters. Implementations must never
// block core operations on delivery failure.
type MetricsSink interface {
	IncValidationRun(stage domain.ValidationStage, outcome string)
	IncRiskComputation(level domain.RiskLevel)
	IncTransition(action domain.ReviewAction, outcome string)
	IncIngest(outcome string)
}

// NopMetrics discards all counters.
type NopMetrics struct{}

func (NopMetrics) IncValidationRun(domain.ValidationStage, string) {}
func (NopMetrics) IncRiskComputation(domain.RiskLevel)             {}
func (NopMetrics) IncTransition(domain.ReviewAction, string)       {}
func (NopMetrics) IncIngest(string)                                {}
