package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"argus/internal/config"
	"argus/internal/domain"
	"argus/internal/infra/db"
	"argus/internal/usecase"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	processor *usecase.CaseProcessor
	workflow  *usecase.WorkflowService
	store     usecase.CaseStore
	ledger    usecase.AuditLedger

	dbStore *db.Store

	rateLimiter       domain.RateLimiter
	rateLimitRequests int

	metricsHandler http.Handler
}

type ServerDeps struct {
	Processor *usecase.CaseProcessor
	Workflow  *usecase.WorkflowService
	Store     usecase.CaseStore
	Ledger    usecase.AuditLedger

	DBStore *db.Store

	RateLimiter domain.RateLimiter

	MetricsHandler http.Handler
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:               cfg,
		r:                 r,
		processor:         deps.Processor,
		workflow:          deps.Workflow,
		store:             deps.Store,
		ledger:            deps.Ledger,
		dbStore:           deps.DBStore,
		rateLimiter:       deps.RateLimiter,
		rateLimitRequests: cfg.RateLimitRequests,
		metricsHandler:    deps.MetricsHandler,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := "memory"
		if s.dbStore != nil && s.dbStore.DB != nil {
			mode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": mode})
	})

	if s.metricsHandler != nil {
		s.r.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	v1 := s.r.Group("/v1")
	{
		v1.POST("/alerts", s.handleIngestAlert)
		v1.POST("/alerts/batch", s.handleIngestBatch)

		v1.GET("/cases", s.handleListCases)
		v1.GET("/cases/:case_id", s.handleGetCase)
		v1.GET("/cases/:case_id/audit", s.handleCaseAudit)
		v1.GET("/cases/:case_id/snapshot", s.handleCaseSnapshot)
		v1.POST("/cases/:case_id/evidence", s.handleRescopeEvidence)

		v1.POST("/cases/:case_id/submit", s.workflowHandler(domain.ActionSubmit))
		v1.POST("/cases/:case_id/approve", s.workflowHandler(domain.ActionApprove))
		v1.POST("/cases/:case_id/reject", s.workflowHandler(domain.ActionReject))
		v1.POST("/cases/:case_id/rework", s.workflowHandler(domain.ActionRework))
		v1.POST("/cases/:case_id/finalize", s.workflowHandler(domain.ActionFinalize))

		v1.GET("/audit", s.handleLedgerRange)
		v1.GET("/audit/verify", s.handleLedgerVerify)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.r
}
