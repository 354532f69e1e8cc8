package usecase

import (
	"context"
	"sync"
	"time"

	"argus/internal/config"
	"argus/internal/domain"
)

// fakeStore is a minimal CaseStore plus AuditLedger for exercising the
// pipeline and workflow without the real persistence layer. Chain hashes are
// filled with placeholders; chain verification has its own tests.
type fakeStore struct {
	mu       sync.Mutex
	versions map[string][]domain.Case
	records  []domain.AuditRecord
	seq      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{versions: make(map[string][]domain.Case)}
}

func (s *fakeStore) CreateCase(_ context.Context, c domain.Case, rec domain.AuditRecord) (domain.Case, domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Version = 0
	s.versions[c.ID] = []domain.Case{c}
	rec.CaseID = c.ID
	rec.CaseVersion = 0
	return c, s.appendLocked(rec), nil
}

func (s *fakeStore) Commit(_ context.Context, c domain.Case, expectedVersion int64, rec domain.AuditRecord) (domain.Case, domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.versions[c.ID]
	if history == nil {
		return domain.Case{}, domain.AuditRecord{}, domain.ErrNotFound
	}
	head := history[len(history)-1]
	if head.Status.Terminal() {
		return domain.Case{}, domain.AuditRecord{}, domain.ErrCaseFinalized
	}
	if head.Version != expectedVersion {
		return domain.Case{}, domain.AuditRecord{}, &domain.StaleVersion{CaseID: c.ID, Expected: expectedVersion, Actual: head.Version}
	}
	c.Version = expectedVersion + 1
	s.versions[c.ID] = append(history, c)
	rec.CaseID = c.ID
	rec.CaseVersion = c.Version
	return c, s.appendLocked(rec), nil
}

func (s *fakeStore) GetCase(_ context.Context, caseID string) (domain.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.versions[caseID]
	if history == nil {
		return domain.Case{}, domain.ErrNotFound
	}
	return history[len(history)-1], nil
}

func (s *fakeStore) GetCaseVersion(_ context.Context, caseID string, version int64) (domain.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.versions[caseID]
	if history == nil {
		return domain.Case{}, domain.ErrNotFound
	}
	if version < 0 || version >= int64(len(history)) {
		return domain.Case{}, domain.ErrVersionNotFound
	}
	return history[version], nil
}

func (s *fakeStore) ListCases(_ context.Context) ([]domain.CaseSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CaseSummary
	for _, history := range s.versions {
		head := history[len(history)-1]
		out = append(out, domain.CaseSummary{ID: head.ID, Status: head.Status, Version: head.Version})
	}
	return out, nil
}

func (s *fakeStore) Append(_ context.Context, rec domain.AuditRecord) (domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(rec), nil
}

func (s *fakeStore) ListByCase(_ context.Context, caseID string) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditRecord
	for _, rec := range s.records {
		if rec.CaseID == caseID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) ListRange(_ context.Context, fromSeq, toSeq int64) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditRecord
	for _, rec := range s.records {
		if fromSeq > 0 && rec.Seq < fromSeq {
			continue
		}
		if toSeq > 0 && rec.Seq > toSeq {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeStore) appendLocked(rec domain.AuditRecord) domain.AuditRecord {
	s.seq++
	rec.Seq = s.seq
	rec.CreatedAt = time.Unix(1700000000, 0).UTC()
	s.records = append(s.records, rec)
	return rec
}

// fakeAuthz grants capabilities by role name, mirroring the default policy.
type fakeAuthz struct{}

func (fakeAuthz) Allow(_ context.Context, actor domain.Actor, capability string) (bool, error) {
	for _, role := range actor.Roles {
		if role == "admin" {
			return true, nil
		}
		if capability == domain.CapabilityReview && role == "reviewer" {
			return true, nil
		}
		if capability == domain.CapabilityFinalize && role == "compliance_officer" {
			return true, nil
		}
	}
	return false, nil
}

func testRules() config.Rules {
	return config.DefaultRules()
}

func testRisk() config.Risk {
	return config.DefaultRisk()
}

func sampleAlert() domain.AlertRecord {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return domain.AlertRecord{
		AlertID:   "ALERT-1001",
		AccountID: "ACC-42",
		Customer: domain.CustomerProfile{
			Name:          "Jordan Avery",
			CustomerID:    "CUST-7",
			AccountNumber: "111222333",
			SSN:           "123-45-6789",
			Address:       "1 Main St",
			Email:         "jordan@example.com",
			Phone:         "555-0100",
			DateOfBirth:   "1980-01-01",
		},
		Transactions: []domain.Transaction{
			{TransactionID: "T-1", Amount: 9500, Currency: "USD", Direction: domain.TxnDirectionIn, Country: "US", Timestamp: base},
			{TransactionID: "T-2", Amount: 9200, Currency: "USD", Direction: domain.TxnDirectionIn, Country: "US", Timestamp: base.Add(2 * time.Hour)},
			{TransactionID: "T-3", Amount: 18000, Currency: "USD", Direction: domain.TxnDirectionOut, Country: "KY", Timestamp: base.Add(4 * time.Hour)},
		},
		RiskRating: "high",
		ReceivedAt: base,
	}
}

func fullNarrative(citations []string) *domain.Narrative {
	sections := make([]domain.NarrativeSection, 0, len(RequiredNarrativeSections))
	for _, name := range RequiredNarrativeSections {
		sections = append(sections, domain.NarrativeSection{Name: name, Body: "Reviewed activity for " + name + "."})
	}
	return &domain.Narrative{Sections: sections, Citations: citations}
}

func draftCase(id string) domain.Case {
	alert := sampleAlert()
	return domain.Case{
		ID:        id,
		Status:    domain.StatusDraft,
		Version:   0,
		CreatedAt: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		Alert:     alert,
		EvidenceRefs: []string{
			"alert:" + alert.AlertID,
			domain.EvidenceRefCustomerProfile,
			"txn:T-1", "txn:T-2", "txn:T-3",
		},
	}
}
