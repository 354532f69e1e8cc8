package casemem

import (
	"context"
	"sort"
	"sync"
	"time"

	"argus/internal/domain"
	"argus/internal/usecase"
)

// Store keeps every case version and the audit ledger in memory behind one
// mutex, so a version commit and its audit record land atomically. It backs
// development, tests and single-node deployments without Postgres.
type Store struct {
	mu      sync.RWMutex
	cases   map[string]*caseState
	records []domain.AuditRecord
	seq     int64
	head    string
	clock   func() time.Time
}

type caseState struct {
	versions []domain.Case
}

func New() *Store {
	return NewWithClock(time.Now)
}

func NewWithClock(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		cases: make(map[string]*caseState),
		head:  usecase.ZeroHash(),
		clock: clock,
	}
}

func (s *Store) CreateCase(ctx context.Context, c domain.Case, rec domain.AuditRecord) (domain.Case, domain.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.Case{}, domain.AuditRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cases[c.ID]; ok {
		return domain.Case{}, domain.AuditRecord{}, &domain.StaleVersion{CaseID: c.ID, Expected: -1, Actual: 0}
	}
	c.Version = 0
	stored := cloneCase(c)
	s.cases[c.ID] = &caseState{versions: []domain.Case{stored}}

	rec.CaseID = c.ID
	rec.CaseVersion = 0
	chained, err := s.appendLocked(rec)
	if err != nil {
		delete(s.cases, c.ID)
		return domain.Case{}, domain.AuditRecord{}, err
	}
	return cloneCase(stored), chained, nil
}

func (s *Store) Commit(ctx context.Context, c domain.Case, expectedVersion int64, rec domain.AuditRecord) (domain.Case, domain.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.Case{}, domain.AuditRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.cases[c.ID]
	if state == nil {
		return domain.Case{}, domain.AuditRecord{}, domain.ErrNotFound
	}
	head := state.versions[len(state.versions)-1]
	if head.Status.Terminal() {
		return domain.Case{}, domain.AuditRecord{}, domain.ErrCaseFinalized
	}
	if head.Version != expectedVersion {
		return domain.Case{}, domain.AuditRecord{}, &domain.StaleVersion{CaseID: c.ID, Expected: expectedVersion, Actual: head.Version}
	}

	c.Version = expectedVersion + 1
	stored := cloneCase(c)
	state.versions = append(state.versions, stored)

	rec.CaseID = c.ID
	rec.CaseVersion = c.Version
	chained, err := s.appendLocked(rec)
	if err != nil {
		state.versions = state.versions[:len(state.versions)-1]
		return domain.Case{}, domain.AuditRecord{}, err
	}
	return cloneCase(stored), chained, nil
}

func (s *Store) GetCase(ctx context.Context, caseID string) (domain.Case, error) {
	if err := ctx.Err(); err != nil {
		return domain.Case{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.cases[caseID]
	if state == nil {
		return domain.Case{}, domain.ErrNotFound
	}
	return cloneCase(state.versions[len(state.versions)-1]), nil
}

func (s *Store) GetCaseVersion(ctx context.Context, caseID string, version int64) (domain.Case, error) {
	if err := ctx.Err(); err != nil {
		return domain.Case{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.cases[caseID]
	if state == nil {
		return domain.Case{}, domain.ErrNotFound
	}
	if version < 0 || version >= int64(len(state.versions)) {
		return domain.Case{}, domain.ErrVersionNotFound
	}
	return cloneCase(state.versions[version]), nil
}

func (s *Store) ListCases(ctx context.Context) ([]domain.CaseSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CaseSummary, 0, len(s.cases))
	for _, state := range s.cases {
		head := state.versions[len(state.versions)-1]
		summary := domain.CaseSummary{
			ID:        head.ID,
			Status:    head.Status,
			Version:   head.Version,
			CreatedAt: head.CreatedAt,
		}
		if head.Risk != nil {
			summary.RiskLevel = head.Risk.Level
			summary.RiskScore = head.Risk.Score
		}
		out = append(out, summary)
	}
	// Newest cases first, matching the review queue ordering.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Append writes a record that backs no case mutation, such as a refused
// workflow attempt. Committed records go through CreateCase/Commit instead.
func (s *Store) Append(ctx context.Context, rec domain.AuditRecord) (domain.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuditRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(rec)
}

func (s *Store) ListByCase(ctx context.Context, caseID string) ([]domain.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditRecord
	for _, rec := range s.records {
		if rec.CaseID == caseID {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

// ListRange returns records with fromSeq <= Seq <= toSeq. Zero bounds are
// open ends.
func (s *Store) ListRange(ctx context.Context, fromSeq, toSeq int64) ([]domain.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditRecord
	for _, rec := range s.records {
		if fromSeq > 0 && rec.Seq < fromSeq {
			continue
		}
		if toSeq > 0 && rec.Seq > toSeq {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

// appendLocked assigns the next sequence number and chains the record onto
// the ledger. Callers hold s.mu.
func (s *Store) appendLocked(rec domain.AuditRecord) (domain.AuditRecord, error) {
	payloadHash, err := usecase.HashPayload(rec.Payload)
	if err != nil {
		return domain.AuditRecord{}, err
	}
	rec.Seq = s.seq + 1
	rec.PayloadHash = payloadHash
	rec.PrevHash = s.head
	rec.CreatedAt = s.clock().UTC()
	recordHash, err := usecase.HashRecord(rec)
	if err != nil {
		return domain.AuditRecord{}, err
	}
	rec.RecordHash = recordHash

	s.records = append(s.records, cloneRecord(rec))
	s.seq = rec.Seq
	s.head = rec.RecordHash
	return rec, nil
}

func cloneCase(c domain.Case) domain.Case {
	out := c
	out.EvidenceRefs = append([]string(nil), c.EvidenceRefs...)
	out.Findings = cloneFindings(c.Findings)
	out.ReviewHistory = append([]domain.ReviewEntry(nil), c.ReviewHistory...)
	out.Alert.Transactions = append([]domain.Transaction(nil), c.Alert.Transactions...)
	out.Alert.Customer.PEPFlags = append([]string(nil), c.Alert.Customer.PEPFlags...)
	if c.Narrative != nil {
		n := *c.Narrative
		n.Sections = append([]domain.NarrativeSection(nil), c.Narrative.Sections...)
		n.Citations = append([]string(nil), c.Narrative.Citations...)
		out.Narrative = &n
	}
	if c.Risk != nil {
		r := *c.Risk
		r.Factors = append([]domain.RiskFactor(nil), c.Risk.Factors...)
		out.Risk = &r
	}
	if c.Trace != nil {
		t := *c.Trace
		t.Entries = make([]domain.TraceEntry, len(c.Trace.Entries))
		for i, e := range c.Trace.Entries {
			e.EvidenceRefs = append([]string(nil), e.EvidenceRefs...)
			t.Entries[i] = e
		}
		t.Gaps = append([]string(nil), c.Trace.Gaps...)
		out.Trace = &t
	}
	return out
}

func cloneFindings(findings []domain.Finding) []domain.Finding {
	if findings == nil {
		return nil
	}
	out := make([]domain.Finding, len(findings))
	for i, f := range findings {
		f.EvidenceRefs = append([]string(nil), f.EvidenceRefs...)
		out[i] = f
	}
	return out
}

func cloneRecord(rec domain.AuditRecord) domain.AuditRecord {
	out := rec
	if rec.Payload != nil {
		payload := make(map[string]any, len(rec.Payload))
		for k, v := range rec.Payload {
			payload[k] = v
		}
		out.Payload = payload
	}
	return out
}
