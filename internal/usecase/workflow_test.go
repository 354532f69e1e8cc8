package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"argus/internal/domain"
)

func newTestWorkflow(store *fakeStore) *WorkflowService {
	now := func() time.Time { return time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC) }
	return NewWorkflowService(store, store, fakeAuthz{}, NewCaseLocker(time.Second), nil, now)
}

func seedCase(t *testing.T, store *fakeStore, c domain.Case) domain.Case {
	t.Helper()
	created, _, err := store.CreateCase(context.Background(), c, domain.AuditRecord{
		Actor:  SystemActor,
		Action: domain.AuditCaseCreated,
		Result: domain.AuditResultCommitted,
	})
	if err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return created
}

func submittable(id string) domain.Case {
	c := draftCase(id)
	c.Narrative = fullNarrative([]string{"txn:T-1"})
	return c
}

func TestSubmitMovesDraftToSubmitted(t *testing.T) {
	store := newFakeStore()
	w := newTestWorkflow(store)
	seedCase(t, store, submittable("case-submit"))

	analyst := domain.Actor{ID: "analyst-1", Roles: []string{"analyst"}}
	updated, err := w.Apply(context.Background(), "case-submit", domain.ActionSubmit, analyst, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if updated.Status != domain.StatusSubmitted {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	if updated.Version != 1 {
		t.Fatalf("expected version 1, got %d", updated.Version)
	}
	if updated.SubmittedBy != "analyst-1" {
		t.Fatalf("submitted_by not recorded: %q", updated.SubmittedBy)
	}
	if len(updated.ReviewHistory) != 1 || updated.ReviewHistory[0].Action != domain.ActionSubmit {
		t.Fatalf("review history wrong: %+v", updated.ReviewHistory)
	}

	records, _ := store.ListByCase(context.Background(), "case-submit")
	last := records[len(records)-1]
	if last.Action != domain.AuditSubmitted || last.Result != domain.AuditResultCommitted {
		t.Fatalf("unexpected audit record: %+v", last)
	}
}

func TestSubmitBlockedByCriticalFinding(t *testing.T) {
	store := newFakeStore()
	w := newTestWorkflow(store)
	c := submittable("case-blocked")
	c.Findings = []domain.Finding{{RuleID: "SAR-HALL-001", Severity: domain.SeverityCritical}}
	seedCase(t, store, c)

	analyst := domain.Actor{ID: "analyst-1", Roles: []string{"analyst"}}
	_, err := w.Apply(context.Background(), "case-blocked", domain.ActionSubmit, analyst, "")
	if !domain.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	stored, _ := store.GetCase(context.Background(), "case-blocked")
	if stored.Version != 0 || stored.Status != domain.StatusDraft {
		t.Fatalf("refused action mutated the case: v%d %s", stored.Version, stored.Status)
	}
	records, _ := store.ListByCase(context.Background(), "case-blocked")
	last := records[len(records)-1]
	if last.Result != domain.AuditResultRejectedAttempt {
		t.Fatalf("refusal not recorded as rejected attempt: %+v", last)
	}
}

func TestRejectRequiresComment(t *testing.T) {
	store := newFakeStore()
	w := newTestWorkflow(store)
	c := submittable("case-reject")
	c.Status = domain.StatusSubmitted
	c.SubmittedBy = "analyst-1"
	seedCase(t, store, c)

	reviewer := domain.Actor{ID: "rev-1", Roles: []string{"reviewer"}}
	_, err := w.Apply(context.Background(), "case-reject", domain.ActionReject, reviewer, "   ")
	if !domain.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	stored, _ := store.GetCase(context.Background(), "case-reject")
	if stored.Status != domain.StatusSubmitted || stored.Version != 0 {
		t.Fatalf("refused reject mutated the case: v%d %s", stored.Version, stored.Status)
	}

	updated, err := w.Apply(context.Background(), "case-reject", domain.ActionReject, reviewer, "needs stronger evidence")
	if err != nil {
		t.Fatalf("reject with comment: %v", err)
	}
	if updated.Status != domain.StatusRejected {
		t.Fatalf("unexpected status %s", updated.Status)
	}
}

func TestApproveRefusesSubmitterAndNonReviewers(t *testing.T) {
	store := newFakeStore()
	w := newTestWorkflow(store)
	c := submittable("case-approve")
	c.Status = domain.StatusSubmitted
	c.SubmittedBy = "analyst-1"
	seedCase(t, store, c)

	submitter := domain.Actor{ID: "analyst-1", Roles: []string{"reviewer"}}
	if _, err := w.Apply(context.Background(), "case-approve", domain.ActionApprove, submitter, ""); !domain.IsInvalidTransition(err) {
		t.Fatalf("submitter approved own case: %v", err)
	}

	plain := domain.Actor{ID: "someone", Roles: []string{"analyst"}}
	if _, err := w.Apply(context.Background(), "case-approve", domain.ActionApprove, plain, ""); !domain.IsInvalidTransition(err) {
		t.Fatalf("actor without review capability approved: %v", err)
	}

	reviewer := domain.Actor{ID: "rev-1", Roles: []string{"reviewer"}}
	updated, err := w.Apply(context.Background(), "case-approve", domain.ActionApprove, reviewer, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if updated.Status != domain.StatusApproved {
		t.Fatalf("unexpected status %s", updated.Status)
	}
}

func TestFinalizedCaseAdmitsNoFurtherChanges(t *testing.T) {
	store := newFakeStore()
	w := newTestWorkflow(store)
	c := submittable("case-final")
	c.Status = domain.StatusApproved
	c.SubmittedBy = "analyst-1"
	seedCase(t, store, c)

	officer := domain.Actor{ID: "off-1", Roles: []string{"compliance_officer"}}
	updated, err := w.Apply(context.Background(), "case-final", domain.ActionFinalize, officer, "")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if updated.Status != domain.StatusFinalized || updated.Version != 1 {
		t.Fatalf("unexpected final state: v%d %s", updated.Version, updated.Status)
	}

	admin := domain.Actor{ID: "root", Roles: []string{"admin"}}
	for _, action := range []domain.ReviewAction{domain.ActionSubmit, domain.ActionApprove, domain.ActionReject, domain.ActionRework, domain.ActionFinalize} {
		if _, err := w.Apply(context.Background(), "case-final", action, admin, "x"); !errors.Is(err, domain.ErrCaseFinalized) {
			t.Fatalf("action %s on finalized case: %v", action, err)
		}
	}
	stored, _ := store.GetCase(context.Background(), "case-final")
	if stored.Version != 1 {
		t.Fatalf("finalized case version moved to %d", stored.Version)
	}
}

func TestReworkReturnsRejectedCaseToDraft(t *testing.T) {
	store := newFakeStore()
	w := newTestWorkflow(store)
	c := submittable("case-rework")
	c.Status = domain.StatusRejected
	seedCase(t, store, c)

	analyst := domain.Actor{ID: "analyst-1", Roles: []string{"analyst"}}
	updated, err := w.Apply(context.Background(), "case-rework", domain.ActionRework, analyst, "")
	if err != nil {
		t.Fatalf("rework: %v", err)
	}
	if updated.Status != domain.StatusDraft {
		t.Fatalf("unexpected status %s", updated.Status)
	}
}

func TestConcurrentTransitionsCommitExactlyOnce(t *testing.T) {
	store := newFakeStore()
	w := newTestWorkflow(store)
	c := submittable("case-race")
	c.Status = domain.StatusSubmitted
	c.SubmittedBy = "analyst-1"
	seedCase(t, store, c)

	reviewer := domain.Actor{ID: "rev-1", Roles: []string{"reviewer"}}
	const attempts = 6
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = w.Apply(context.Background(), "case-race", domain.ActionApprove, reviewer, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !domain.IsInvalidTransition(err) {
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one committed approve, got %d", succeeded)
	}
	stored, _ := store.GetCase(context.Background(), "case-race")
	if stored.Version != 1 || stored.Status != domain.StatusApproved {
		t.Fatalf("unexpected final state: v%d %s", stored.Version, stored.Status)
	}
}

func TestLifecycleVersionsAreGapFree(t *testing.T) {
	store := newFakeStore()
	w := newTestWorkflow(store)
	seedCase(t, store, submittable("case-lifecycle"))

	ctx := context.Background()
	analyst := domain.Actor{ID: "analyst-1", Roles: []string{"analyst"}}
	reviewer := domain.Actor{ID: "rev-1", Roles: []string{"reviewer"}}
	officer := domain.Actor{ID: "off-1", Roles: []string{"compliance_officer"}}

	steps := []struct {
		action domain.ReviewAction
		actor  domain.Actor
		note   string
	}{
		{domain.ActionSubmit, analyst, ""},
		{domain.ActionReject, reviewer, "tighten narrative"},
		{domain.ActionRework, analyst, ""},
		{domain.ActionSubmit, analyst, ""},
		{domain.ActionApprove, reviewer, ""},
		{domain.ActionFinalize, officer, ""},
	}
	for i, step := range steps {
		updated, err := w.Apply(ctx, "case-lifecycle", step.action, step.actor, step.note)
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, step.action, err)
		}
		if updated.Version != int64(i+1) {
			t.Fatalf("step %d: expected version %d, got %d", i, i+1, updated.Version)
		}
	}

	records, _ := store.ListByCase(ctx, "case-lifecycle")
	committed := 0
	for _, rec := range records {
		if rec.Result == domain.AuditResultCommitted && rec.Action != domain.AuditCaseCreated {
			committed++
		}
	}
	if committed != len(steps) {
		t.Fatalf("expected %d committed workflow records, got %d", len(steps), committed)
	}
}
