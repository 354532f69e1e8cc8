package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"argus/internal/domain"
)

// SystemActor names the pipeline itself in audit records for automated
// stages that no human triggered.
const SystemActor = "system:pipeline"

// CaseProcessor runs the automated half of a case's life: ingestion through
// the evidence boundary, both validation passes, risk scoring, narrative
// generation and the decision trace. The review workflow takes over from
// there.
type CaseProcessor struct {
	boundary  *BoundaryGuard
	validator *ValidationEngine
	risk      *RiskEngine
	store     CaseStore
	ledger    AuditLedger
	retriever Retriever
	generator Generator
	locker    *CaseLocker
	metrics   MetricsSink
	now       Clock
	newID     func() string
}

func NewCaseProcessor(
	boundary *BoundaryGuard,
	validator *ValidationEngine,
	risk *RiskEngine,
	store CaseStore,
	ledger AuditLedger,
	retriever Retriever,
	generator Generator,
	locker *CaseLocker,
	metrics MetricsSink,
	now Clock,
) *CaseProcessor {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if now == nil {
		now = time.Now
	}
	return &CaseProcessor{
		boundary:  boundary,
		validator: validator,
		risk:      risk,
		store:     store,
		ledger:    ledger,
		retriever: retriever,
		generator: generator,
		locker:    locker,
		metrics:   metrics,
		now:       now,
		newID:     uuid.NewString,
	}
}

// Ingest passes a raw alert through the evidence boundary and creates the
// case at version zero. Nothing downstream ever sees the unmasked alert.
func (p *CaseProcessor) Ingest(ctx context.Context, alert domain.AlertRecord) (domain.Case, error) {
	masked, refs, err := p.boundary.Apply(alert)
	if err != nil {
		p.metrics.IncIngest("rejected")
		return domain.Case{}, err
	}

	c := domain.Case{
		ID:           p.newID(),
		Status:       domain.StatusDraft,
		Version:      0,
		CreatedAt:    p.now().UTC(),
		Alert:        masked,
		EvidenceRefs: refs,
	}
	rec := domain.AuditRecord{
		CaseID: c.ID,
		Actor:  SystemActor,
		Action: domain.AuditCaseCreated,
		Result: domain.AuditResultCommitted,
		Payload: p.boundary.MaskPayload(map[string]any{
			"alert_id":     masked.AlertID,
			"account_id":   masked.AccountID,
			"transactions": len(masked.Transactions),
			"evidence":     len(refs),
		}),
	}
	created, _, err := p.store.CreateCase(ctx, c, rec)
	if err != nil {
		p.metrics.IncIngest("error")
		return domain.Case{}, err
	}
	p.metrics.IncIngest("accepted")
	return created, nil
}

// Process runs the full automated pipeline on an ingested case. The case
// lock is held for validation and scoring, released while the external
// retrieval and generation collaborators run, then re-acquired to attach
// the narrative. A case that moved versions in between fails with
// StaleVersion rather than overwrite newer work.
func (p *CaseProcessor) Process(ctx context.Context, caseID string) (domain.Case, error) {
	c, err := p.validateAndScore(ctx, caseID)
	if err != nil {
		return domain.Case{}, err
	}

	// External collaborators run without the lock; they can be slow and
	// must never serialize unrelated case work.
	narrative, genMeta, err := p.generateNarrative(ctx, &c)
	if err != nil {
		return domain.Case{}, err
	}

	return p.attachAndFinish(ctx, c.ID, c.Version, narrative, genMeta)
}

// validateAndScore holds the case lock through the v1 validation and risk
// scoring commits.
func (p *CaseProcessor) validateAndScore(ctx context.Context, caseID string) (domain.Case, error) {
	release, err := p.locker.Acquire(ctx, caseID)
	if err != nil {
		return domain.Case{}, err
	}
	defer release()

	c, err := p.store.GetCase(ctx, caseID)
	if err != nil {
		return domain.Case{}, err
	}
	if c.Status != domain.StatusDraft {
		return domain.Case{}, &domain.InvalidTransition{From: c.Status, Action: "process", Reason: "pipeline runs on draft cases only"}
	}

	findings := p.validator.Validate(&c, domain.StageV1)
	next := c
	next.Findings = findings
	c, err = p.commitStage(ctx, next, c.Version, domain.AuditValidationRun, map[string]any{
		"stage":    string(domain.StageV1),
		"findings": len(findings),
		"critical": domain.HasCritical(findings),
	})
	if err != nil {
		return domain.Case{}, err
	}

	risk := p.risk.Score(&c, c.Findings)
	next = c
	next.Risk = &risk
	c, err = p.commitStage(ctx, next, c.Version, domain.AuditRiskScored, map[string]any{
		"level":      string(risk.Level),
		"score":      risk.Score,
		"confidence": risk.Confidence,
	})
	if err != nil {
		return domain.Case{}, err
	}
	return c, nil
}

// generateNarrative calls the retrieval and generation collaborators. A
// generator failure falls back to the deterministic template generator so
// the pipeline always produces a reviewable draft.
func (p *CaseProcessor) generateNarrative(ctx context.Context, c *domain.Case) (domain.Narrative, string, error) {
	snippets, err := p.retriever.Retrieve(ctx, c.EvidenceRefs, summaryQuery(c))
	if err != nil {
		// Retrieval failure degrades to generation without snippets.
		snippets = nil
	}

	input := GenerationInput{
		CaseSummary:      summaryQuery(c),
		PermittedRefs:    append([]string(nil), c.EvidenceRefs...),
		Snippets:         snippets,
		SubmittedVersion: c.Version,
	}
	if c.Risk != nil {
		input.RiskLevel = c.Risk.Level
	}

	narrative, err := p.generator.Generate(ctx, input)
	if err != nil {
		fb := FallbackGenerator{}
		narrative, err = fb.Generate(ctx, input)
		if err != nil {
			return domain.Narrative{}, "", fmt.Errorf("fallback narrative generation: %w", err)
		}
		return narrative, "fallback", nil
	}
	return narrative, "primary", nil
}

// attachAndFinish re-acquires the lock, verifies nothing moved while the
// collaborators ran, then commits the narrative, the v2 validation pass and
// the decision trace.
func (p *CaseProcessor) attachAndFinish(ctx context.Context, caseID string, seenVersion int64, narrative domain.Narrative, genMeta string) (domain.Case, error) {
	release, err := p.locker.Acquire(ctx, caseID)
	if err != nil {
		return domain.Case{}, err
	}
	defer release()

	c, err := p.store.GetCase(ctx, caseID)
	if err != nil {
		return domain.Case{}, err
	}
	if c.Version != seenVersion {
		return domain.Case{}, &domain.StaleVersion{CaseID: caseID, Expected: seenVersion, Actual: c.Version}
	}

	narrative.GeneratedAtVersion = seenVersion
	narrative.GeneratorMeta = genMeta
	next := c
	next.Narrative = &narrative
	c, err = p.commitStage(ctx, next, c.Version, domain.AuditNarrativeAttached, map[string]any{
		"sections":  len(narrative.Sections),
		"citations": len(narrative.Citations),
		"generator": genMeta,
	})
	if err != nil {
		return domain.Case{}, err
	}

	findings := p.validator.Validate(&c, domain.StageV2)
	next = c
	next.Findings = findings
	c, err = p.commitStage(ctx, next, c.Version, domain.AuditValidationRun, map[string]any{
		"stage":    string(domain.StageV2),
		"findings": len(findings),
		"critical": domain.HasCritical(findings),
	})
	if err != nil {
		return domain.Case{}, err
	}

	trace := BuildTrace(&c, c.Findings, c.Risk)
	next = c
	next.Trace = &trace
	c, err = p.commitStage(ctx, next, c.Version, domain.AuditTraceBuilt, map[string]any{
		"entries": len(trace.Entries),
		"gaps":    len(trace.Gaps),
	})
	if err != nil {
		return domain.Case{}, err
	}
	return c, nil
}

func (p *CaseProcessor) commitStage(ctx context.Context, next domain.Case, expectedVersion int64, action domain.AuditAction, payload map[string]any) (domain.Case, error) {
	rec := domain.AuditRecord{
		CaseID:  next.ID,
		Actor:   SystemActor,
		Action:  action,
		Result:  domain.AuditResultCommitted,
		Payload: p.boundary.MaskPayload(payload),
	}
	committed, _, err := p.store.Commit(ctx, next, expectedVersion, rec)
	if err != nil {
		return domain.Case{}, fmt.Errorf("commit %s: %w", action, err)
	}
	return committed, nil
}

// BatchResult pairs an ingested case with its terminal pipeline error, if
// any. Results come back ordered by risk score, highest first, so reviewers
// see the most urgent cases at the top.
type BatchResult struct {
	Case  domain.Case
	Alert string
	Err   error
}

// IngestBatch ingests and processes each alert independently. One bad alert
// never blocks the rest of the batch.
func (p *CaseProcessor) IngestBatch(ctx context.Context, alerts []domain.AlertRecord) []BatchResult {
	results := make([]BatchResult, 0, len(alerts))
	for _, alert := range alerts {
		c, err := p.Ingest(ctx, alert)
		if err != nil {
			results = append(results, BatchResult{Alert: alert.AlertID, Err: err})
			continue
		}
		processed, err := p.Process(ctx, c.ID)
		if err != nil {
			results = append(results, BatchResult{Case: c, Alert: alert.AlertID, Err: err})
			continue
		}
		results = append(results, BatchResult{Case: processed, Alert: alert.AlertID})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return batchScore(results[i]) > batchScore(results[j])
	})
	return results
}

func batchScore(r BatchResult) float64 {
	if r.Err != nil || r.Case.Risk == nil {
		return -1
	}
	return r.Case.Risk.Score
}

// RescopeEvidence shrinks a case's evidence boundary. The narrative and
// findings are not recomputed here; the caller re-runs Process stages as
// needed.
func (p *CaseProcessor) RescopeEvidence(ctx context.Context, caseID string, keep []string, actor domain.Actor) (domain.Case, error) {
	release, err := p.locker.Acquire(ctx, caseID)
	if err != nil {
		return domain.Case{}, err
	}
	defer release()

	c, err := p.store.GetCase(ctx, caseID)
	if err != nil {
		return domain.Case{}, err
	}
	if c.Status.Terminal() {
		return domain.Case{}, domain.ErrCaseFinalized
	}
	before := len(c.EvidenceRefs)
	next := c
	next.EvidenceRefs = append([]string(nil), c.EvidenceRefs...)
	if err := Rescope(&next, keep); err != nil {
		return domain.Case{}, err
	}
	rec := domain.AuditRecord{
		CaseID: c.ID,
		Actor:  actor.ID,
		Action: domain.AuditEvidenceRescoped,
		Result: domain.AuditResultCommitted,
		Payload: map[string]any{
			"refs_before": before,
			"refs_after":  len(next.EvidenceRefs),
		},
	}
	committed, _, err := p.store.Commit(ctx, next, c.Version, rec)
	if err != nil {
		return domain.Case{}, err
	}
	return committed, nil
}

// Snapshot assembles the immutable export view of a case. With pinned set the
// named version is exported, version zero included; otherwise the current head.
func (p *CaseProcessor) Snapshot(ctx context.Context, caseID string, version int64, pinned bool) (domain.CaseSnapshot, error) {
	var (
		c   domain.Case
		err error
	)
	if pinned {
		c, err = p.store.GetCaseVersion(ctx, caseID, version)
	} else {
		c, err = p.store.GetCase(ctx, caseID)
	}
	if err != nil {
		return domain.CaseSnapshot{}, err
	}
	trail, err := p.ledger.ListByCase(ctx, caseID)
	if err != nil {
		return domain.CaseSnapshot{}, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	return domain.CaseSnapshot{
		Case:       c,
		AuditTrail: trail,
		TakenAt:    p.now().UTC(),
	}, nil
}

func summaryQuery(c *domain.Case) string {
	total := 0.0
	for _, t := range c.Alert.Transactions {
		total += t.Amount
	}
	return fmt.Sprintf("account %s, %d transactions totaling %.2f, alert rating %s",
		c.Alert.AccountID, len(c.Alert.Transactions), total, c.Alert.RiskRating)
}
