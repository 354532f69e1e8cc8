package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"argus/internal/domain"
	"argus/internal/usecase"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type customerRequest struct {
	Name          string   `json:"name"`
	CustomerID    string   `json:"customer_id"`
	AccountNumber string   `json:"account_number"`
	SSN           string   `json:"ssn"`
	Address       string   `json:"address"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	DateOfBirth   string   `json:"dob"`
	PEPFlags      []string `json:"pep_flags"`
}

type transactionRequest struct {
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Direction     string    `json:"direction"`
	Counterparty  string    `json:"counterparty"`
	Country       string    `json:"country"`
	Timestamp     time.Time `json:"timestamp"`
}

type alertRequest struct {
	AlertID      string               `json:"alert_id"`
	AccountID    string               `json:"account_id"`
	Customer     customerRequest      `json:"customer"`
	Transactions []transactionRequest `json:"transactions"`
	RiskRating   string               `json:"risk_rating"`
	Description  string               `json:"description"`
}

type batchRequest struct {
	Alerts []alertRequest `json:"alerts"`
}

type actionRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles"`
	Comment string   `json:"comment"`
}

type rescopeRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles"`
	Keep    []string `json:"keep"`
}

type findingResponse struct {
	RuleID       string   `json:"rule_id"`
	Severity     string   `json:"severity"`
	Message      string   `json:"message"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
	Stage        string   `json:"stage"`
	CaseVersion  int64    `json:"case_version"`
}

type riskFactorResponse struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Indicator   float64 `json:"indicator"`
	Computable  bool    `json:"computable"`
	EvidenceRef string  `json:"evidence_ref,omitempty"`
}

type riskResponse struct {
	Level      string               `json:"level"`
	Score      float64              `json:"score"`
	Confidence float64              `json:"confidence"`
	Factors    []riskFactorResponse `json:"factors"`
}

type narrativeSectionResponse struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

type narrativeResponse struct {
	Sections           []narrativeSectionResponse `json:"sections"`
	Citations          []string                   `json:"citations"`
	GeneratedAtVersion int64                      `json:"generated_at_version"`
	GeneratorMeta      string                     `json:"generator_meta,omitempty"`
}

type traceEntryResponse struct {
	Kind         string   `json:"kind"`
	Subject      string   `json:"subject"`
	RuleID       string   `json:"rule_id,omitempty"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
	Detail       string   `json:"detail,omitempty"`
}

type traceResponse struct {
	Entries []traceEntryResponse `json:"entries"`
	Gaps    []string             `json:"gaps,omitempty"`
}

type reviewEntryResponse struct {
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Comment    string    `json:"comment,omitempty"`
	At         time.Time `json:"at"`
}

type caseResponse struct {
	ID            string                `json:"id"`
	Status        string                `json:"status"`
	Version       int64                 `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	EvidenceRefs  []string              `json:"evidence_refs"`
	Findings      []findingResponse     `json:"findings,omitempty"`
	Risk          *riskResponse         `json:"risk,omitempty"`
	Narrative     *narrativeResponse    `json:"narrative,omitempty"`
	Trace         *traceResponse        `json:"trace,omitempty"`
	ReviewHistory []reviewEntryResponse `json:"review_history,omitempty"`
	SubmittedBy   string                `json:"submitted_by,omitempty"`
}

type caseSummaryResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Version   int64     `json:"version"`
	RiskLevel string    `json:"risk_level,omitempty"`
	RiskScore float64   `json:"risk_score"`
	CreatedAt time.Time `json:"created_at"`
}

type auditRecordResponse struct {
	Seq         int64          `json:"seq"`
	CaseID      string         `json:"case_id,omitempty"`
	CaseVersion int64          `json:"case_version"`
	Actor       string         `json:"actor"`
	Action      string         `json:"action"`
	Result      string         `json:"result"`
	Payload     map[string]any `json:"payload,omitempty"`
	PayloadHash string         `json:"payload_hash"`
	PrevHash    string         `json:"prev_hash"`
	RecordHash  string         `json:"record_hash"`
	CreatedAt   time.Time      `json:"created_at"`
}

type snapshotResponse struct {
	Case       caseResponse          `json:"case"`
	AuditTrail []auditRecordResponse `json:"audit_trail"`
	TakenAt    time.Time             `json:"taken_at"`
}

type batchItemResponse struct {
	AlertID string        `json:"alert_id"`
	Case    *caseResponse `json:"case,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func (s *Server) handleIngestAlert(c *gin.Context) {
	if !s.enforceRateLimit(c, "alerts:ingest") {
		return
	}
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	created, err := s.processor.Ingest(c.Request.Context(), alertFromRequest(req))
	if err != nil {
		writeError(c, err)
		return
	}
	processed, err := s.processor.Process(c.Request.Context(), created.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, caseToResponse(processed))
}

func (s *Server) handleIngestBatch(c *gin.Context) {
	if !s.enforceRateLimit(c, "alerts:batch") {
		return
	}
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if len(req.Alerts) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "EMPTY_BATCH", "batch contains no alerts")
		return
	}
	alerts := make([]domain.AlertRecord, 0, len(req.Alerts))
	for _, a := range req.Alerts {
		alerts = append(alerts, alertFromRequest(a))
	}
	results := s.processor.IngestBatch(c.Request.Context(), alerts)
	out := make([]batchItemResponse, 0, len(results))
	for _, r := range results {
		item := batchItemResponse{AlertID: r.Alert}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		if r.Case.ID != "" {
			resp := caseToResponse(r.Case)
			item.Case = &resp
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (s *Server) handleListCases(c *gin.Context) {
	summaries, err := s.store.ListCases(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]caseSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, caseSummaryResponse{
			ID:        summary.ID,
			Status:    string(summary.Status),
			Version:   summary.Version,
			RiskLevel: string(summary.RiskLevel),
			RiskScore: summary.RiskScore,
			CreatedAt: summary.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"cases": out})
}

func (s *Server) handleGetCase(c *gin.Context) {
	caseID := c.Param("case_id")
	if version := c.Query("version"); version != "" {
		v, err := strconv.ParseInt(version, 10, 64)
		if err != nil || v < 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_VERSION", "version must be a non-negative integer")
			return
		}
		stored, err := s.store.GetCaseVersion(c.Request.Context(), caseID, v)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, caseToResponse(stored))
		return
	}
	stored, err := s.store.GetCase(c.Request.Context(), caseID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, caseToResponse(stored))
}

func (s *Server) handleCaseAudit(c *gin.Context) {
	records, err := s.ledger.ListByCase(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recordsToResponse(records)})
}

func (s *Server) handleCaseSnapshot(c *gin.Context) {
	var (
		version int64
		pinned  bool
	)
	if raw := c.Query("version"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_VERSION", "version must be a non-negative integer")
			return
		}
		version, pinned = v, true
	}
	snapshot, err := s.processor.Snapshot(c.Request.Context(), c.Param("case_id"), version, pinned)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotResponse{
		Case:       caseToResponse(snapshot.Case),
		AuditTrail: recordsToResponse(snapshot.AuditTrail),
		TakenAt:    snapshot.TakenAt,
	})
}

func (s *Server) handleRescopeEvidence(c *gin.Context) {
	var req rescopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.ActorID == "" {
		writeErrorCode(c, http.StatusBadRequest, "ACTOR_REQUIRED", "actor_id is required")
		return
	}
	actor := domain.Actor{ID: req.ActorID, Roles: req.Roles}
	updated, err := s.processor.RescopeEvidence(c.Request.Context(), c.Param("case_id"), req.Keep, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, caseToResponse(updated))
}

func (s *Server) workflowHandler(action domain.ReviewAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
			return
		}
		if req.ActorID == "" {
			writeErrorCode(c, http.StatusBadRequest, "ACTOR_REQUIRED", "actor_id is required")
			return
		}
		actor := domain.Actor{ID: req.ActorID, Roles: req.Roles}
		updated, err := s.workflow.Apply(c.Request.Context(), c.Param("case_id"), action, actor, req.Comment)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, caseToResponse(updated))
	}
}

func (s *Server) handleLedgerRange(c *gin.Context) {
	parse := func(name string) (int64, bool) {
		raw := c.Query(name)
		if raw == "" {
			return 0, true
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		return v, true
	}
	from, ok := parse("from")
	if !ok {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_RANGE", "from must be a non-negative integer")
		return
	}
	to, ok := parse("to")
	if !ok {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_RANGE", "to must be a non-negative integer")
		return
	}
	records, err := s.ledger.ListRange(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recordsToResponse(records)})
}

func (s *Server) handleLedgerVerify(c *gin.Context) {
	if err := usecase.VerifyLedgerChain(c.Request.Context(), s.ledger); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func alertFromRequest(req alertRequest) domain.AlertRecord {
	txns := make([]domain.Transaction, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		txns = append(txns, domain.Transaction{
			TransactionID: t.TransactionID,
			Amount:        t.Amount,
			Currency:      t.Currency,
			Direction:     domain.TxnDirection(t.Direction),
			Counterparty:  t.Counterparty,
			Country:       t.Country,
			Timestamp:     t.Timestamp,
		})
	}
	return domain.AlertRecord{
		AlertID:   req.AlertID,
		AccountID: req.AccountID,
		Customer: domain.CustomerProfile{
			Name:          req.Customer.Name,
			CustomerID:    req.Customer.CustomerID,
			AccountNumber: req.Customer.AccountNumber,
			SSN:           req.Customer.SSN,
			Address:       req.Customer.Address,
			Email:         req.Customer.Email,
			Phone:         req.Customer.Phone,
			DateOfBirth:   req.Customer.DateOfBirth,
			PEPFlags:      req.Customer.PEPFlags,
		},
		Transactions: txns,
		RiskRating:   req.RiskRating,
		Description:  req.Description,
		ReceivedAt:   time.Now().UTC(),
	}
}

func caseToResponse(c domain.Case) caseResponse {
	out := caseResponse{
		ID:           c.ID,
		Status:       string(c.Status),
		Version:      c.Version,
		CreatedAt:    c.CreatedAt,
		EvidenceRefs: c.EvidenceRefs,
		SubmittedBy:  c.SubmittedBy,
	}
	for _, f := range domain.SortFindingsForReport(c.Findings) {
		out.Findings = append(out.Findings, findingResponse{
			RuleID:       f.RuleID,
			Severity:     string(f.Severity),
			Message:      f.Message,
			EvidenceRefs: f.EvidenceRefs,
			Stage:        string(f.Stage),
			CaseVersion:  f.CaseVersion,
		})
	}
	if c.Risk != nil {
		risk := riskResponse{
			Level:      string(c.Risk.Level),
			Score:      c.Risk.Score,
			Confidence: c.Risk.Confidence,
		}
		for _, f := range c.Risk.Factors {
			risk.Factors = append(risk.Factors, riskFactorResponse{
				Name:        f.Name,
				Weight:      f.Weight,
				Indicator:   f.Indicator,
				Computable:  f.Computable,
				EvidenceRef: f.EvidenceRef,
			})
		}
		out.Risk = &risk
	}
	if c.Narrative != nil {
		narrative := narrativeResponse{
			Citations:          c.Narrative.Citations,
			GeneratedAtVersion: c.Narrative.GeneratedAtVersion,
			GeneratorMeta:      c.Narrative.GeneratorMeta,
		}
		for _, section := range c.Narrative.Sections {
			narrative.Sections = append(narrative.Sections, narrativeSectionResponse{
				Name: section.Name,
				Body: section.Body,
			})
		}
		out.Narrative = &narrative
	}
	if c.Trace != nil {
		trace := traceResponse{Gaps: c.Trace.Gaps}
		for _, entry := range c.Trace.Entries {
			trace.Entries = append(trace.Entries, traceEntryResponse{
				Kind:         string(entry.Kind),
				Subject:      entry.Subject,
				RuleID:       entry.RuleID,
				EvidenceRefs: entry.EvidenceRefs,
				Detail:       entry.Detail,
			})
		}
		out.Trace = &trace
	}
	for _, entry := range c.ReviewHistory {
		out.ReviewHistory = append(out.ReviewHistory, reviewEntryResponse{
			Actor:      entry.Actor,
			Action:     string(entry.Action),
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			Comment:    entry.Comment,
			At:         entry.At,
		})
	}
	return out
}

func recordsToResponse(records []domain.AuditRecord) []auditRecordResponse {
	out := make([]auditRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, auditRecordResponse{
			Seq:         rec.Seq,
			CaseID:      rec.CaseID,
			CaseVersion: rec.CaseVersion,
			Actor:       rec.Actor,
			Action:      string(rec.Action),
			Result:      string(rec.Result),
			Payload:     rec.Payload,
			PayloadHash: rec.PayloadHash,
			PrevHash:    rec.PrevHash,
			RecordHash:  rec.RecordHash,
			CreatedAt:   rec.CreatedAt,
		})
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	var boundary *domain.BoundaryViolation
	var invalid *domain.InvalidTransition
	var stale *domain.StaleVersion
	switch {
	case errors.As(err, &boundary):
		status, code = http.StatusBadRequest, "BOUNDARY_VIOLATION"
	case errors.As(err, &invalid):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.As(err, &stale):
		status, code = http.StatusConflict, "STALE_VERSION"
	case errors.Is(err, domain.ErrCaseFinalized):
		status, code = http.StatusConflict, "CASE_FINALIZED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrVersionNotFound):
		status, code = http.StatusNotFound, "VERSION_NOT_FOUND"
	case errors.Is(err, domain.ErrLockTimeout):
		status, code = http.StatusServiceUnavailable, "LOCK_TIMEOUT"
	case errors.Is(err, domain.ErrLedgerUnavailable):
		status, code = http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
