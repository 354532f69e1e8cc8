package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"argus/internal/domain"
)

// transition is one legal edge of the review state machine. The table is the
// single source of truth for which action applies in which status.
type transition struct {
	from   domain.CaseStatus
	to     domain.CaseStatus
	action domain.AuditAction
	guard  func(ctx context.Context, w *WorkflowService, c *domain.Case, actor domain.Actor, comment string) error
}

// WorkflowService drives cases through the review state machine. Every
// attempt, allowed or refused, leaves an audit record; only allowed
// transitions advance the case version.
type WorkflowService struct {
	store   CaseStore
	ledger  AuditLedger
	authz   domain.CapabilityAuthorizer
	locker  *CaseLocker
	metrics MetricsSink
	now     Clock

	transitions map[domain.ReviewAction]transition
}

func NewWorkflowService(store CaseStore, ledger AuditLedger, authz domain.CapabilityAuthorizer, locker *CaseLocker, metrics MetricsSink, now Clock) *WorkflowService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if now == nil {
		now = time.Now
	}
	w := &WorkflowService{
		store:   store,
		ledger:  ledger,
		authz:   authz,
		locker:  locker,
		metrics: metrics,
		now:     now,
	}
	w.transitions = map[domain.ReviewAction]transition{
		domain.ActionSubmit: {
			from:   domain.StatusDraft,
			to:     domain.StatusSubmitted,
			action: domain.AuditSubmitted,
			guard:  guardSubmit,
		},
		domain.ActionApprove: {
			from:   domain.StatusSubmitted,
			to:     domain.StatusApproved,
			action: domain.AuditApproved,
			guard:  guardApprove,
		},
		domain.ActionReject: {
			from:   domain.StatusSubmitted,
			to:     domain.StatusRejected,
			action: domain.AuditRejected,
			guard:  guardReject,
		},
		domain.ActionRework: {
			from:   domain.StatusRejected,
			to:     domain.StatusDraft,
			action: domain.AuditReworked,
			guard:  nil,
		},
		domain.ActionFinalize: {
			from:   domain.StatusApproved,
			to:     domain.StatusFinalized,
			action: domain.AuditFinalized,
			guard:  guardFinalize,
		},
	}
	return w
}

// Apply attempts action on the case identified by caseID. On success the
// returned case carries the new status, an appended review entry and an
// incremented version. On refusal the stored case is untouched and the
// error describes why.
func (w *WorkflowService) Apply(ctx context.Context, caseID string, action domain.ReviewAction, actor domain.Actor, comment string) (domain.Case, error) {
	release, err := w.locker.Acquire(ctx, caseID)
	if err != nil {
		w.metrics.IncTransition(action, "lock_timeout")
		return domain.Case{}, err
	}
	defer release()

	c, err := w.store.GetCase(ctx, caseID)
	if err != nil {
		return domain.Case{}, err
	}

	tr, ok := w.transitions[action]
	if !ok {
		return domain.Case{}, &domain.InvalidTransition{From: c.Status, Action: action, Reason: "unknown action"}
	}

	if err := w.checkTransition(ctx, tr, &c, actor, comment); err != nil {
		w.recordRefusal(ctx, &c, tr.action, actor, err)
		w.metrics.IncTransition(action, "rejected")
		return domain.Case{}, err
	}

	next := c
	next.Status = tr.to
	next.ReviewHistory = append(append([]domain.ReviewEntry{}, c.ReviewHistory...), domain.ReviewEntry{
		Actor:      actor.ID,
		Action:     action,
		FromStatus: c.Status,
		ToStatus:   tr.to,
		Comment:    comment,
		At:         w.now().UTC(),
	})
	if action == domain.ActionSubmit {
		next.SubmittedBy = actor.ID
	}

	rec := domain.AuditRecord{
		CaseID: c.ID,
		Actor:  actor.ID,
		Action: tr.action,
		Result: domain.AuditResultCommitted,
		Payload: map[string]any{
			"from_status": string(c.Status),
			"to_status":   string(tr.to),
			"comment":     comment,
		},
	}
	committed, _, err := w.store.Commit(ctx, next, c.Version, rec)
	if err != nil {
		w.metrics.IncTransition(action, "error")
		return domain.Case{}, err
	}
	w.metrics.IncTransition(action, "committed")
	return committed, nil
}

func (w *WorkflowService) checkTransition(ctx context.Context, tr transition, c *domain.Case, actor domain.Actor, comment string) error {
	if c.Status.Terminal() {
		return fmt.Errorf("%s refused: %w", actionForAudit(tr.action), domain.ErrCaseFinalized)
	}
	if c.Status != tr.from {
		return &domain.InvalidTransition{
			From:   c.Status,
			Action: actionForAudit(tr.action),
			Reason: fmt.Sprintf("requires status %s", tr.from),
		}
	}
	if tr.guard != nil {
		return tr.guard(ctx, w, c, actor, comment)
	}
	return nil
}

// recordRefusal appends a rejected-attempt record to the ledger. Failure to
// record the refusal never masks the refusal itself.
func (w *WorkflowService) recordRefusal(ctx context.Context, c *domain.Case, action domain.AuditAction, actor domain.Actor, cause error) {
	rec := domain.AuditRecord{
		CaseID:      c.ID,
		CaseVersion: c.Version,
		Actor:       actor.ID,
		Action:      action,
		Result:      domain.AuditResultRejectedAttempt,
		Payload: map[string]any{
			"status": string(c.Status),
			"reason": cause.Error(),
		},
	}
	_, _ = w.ledger.Append(ctx, rec)
}

func guardSubmit(_ context.Context, _ *WorkflowService, c *domain.Case, _ domain.Actor, _ string) error {
	if blocked := c.OpenCriticalFindings(); len(blocked) > 0 {
		return &domain.InvalidTransition{
			From:   c.Status,
			Action: domain.ActionSubmit,
			Reason: fmt.Sprintf("%d critical finding(s) open, first: %s", len(blocked), blocked[0].RuleID),
		}
	}
	if c.Narrative == nil || len(c.Narrative.Sections) == 0 {
		return &domain.InvalidTransition{From: c.Status, Action: domain.ActionSubmit, Reason: "narrative missing"}
	}
	return nil
}

func guardApprove(ctx context.Context, w *WorkflowService, c *domain.Case, actor domain.Actor, _ string) error {
	if actor.ID != "" && actor.ID == c.SubmittedBy {
		return &domain.InvalidTransition{From: c.Status, Action: domain.ActionApprove, Reason: "submitter cannot approve own case"}
	}
	allowed, err := w.authz.Allow(ctx, actor, domain.CapabilityReview)
	if err != nil {
		return fmt.Errorf("review capability check: %w", err)
	}
	if !allowed {
		return &domain.InvalidTransition{From: c.Status, Action: domain.ActionApprove, Reason: "actor lacks review capability"}
	}
	return nil
}

func guardReject(ctx context.Context, w *WorkflowService, c *domain.Case, actor domain.Actor, comment string) error {
	if strings.TrimSpace(comment) == "" {
		return &domain.InvalidTransition{From: c.Status, Action: domain.ActionReject, Reason: "rejection requires a comment"}
	}
	allowed, err := w.authz.Allow(ctx, actor, domain.CapabilityReview)
	if err != nil {
		return fmt.Errorf("review capability check: %w", err)
	}
	if !allowed {
		return &domain.InvalidTransition{From: c.Status, Action: domain.ActionReject, Reason: "actor lacks review capability"}
	}
	return nil
}

func guardFinalize(ctx context.Context, w *WorkflowService, c *domain.Case, actor domain.Actor, _ string) error {
	allowed, err := w.authz.Allow(ctx, actor, domain.CapabilityFinalize)
	if err != nil {
		return fmt.Errorf("finalize capability check: %w", err)
	}
	if !allowed {
		return &domain.InvalidTransition{From: c.Status, Action: domain.ActionFinalize, Reason: "actor lacks finalize capability"}
	}
	return nil
}

func actionForAudit(a domain.AuditAction) domain.ReviewAction {
	switch a {
	case domain.AuditSubmitted:
		return domain.ActionSubmit
	case domain.AuditApproved:
		return domain.ActionApprove
	case domain.AuditRejected:
		return domain.ActionReject
	case domain.AuditReworked:
		return domain.ActionRework
	case domain.AuditFinalized:
		return domain.ActionFinalize
	}
	return domain.ReviewAction(a)
}
