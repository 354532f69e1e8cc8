package main

import (
	"context"
	"log"

	"argus/internal/config"
	"argus/internal/domain"
	"argus/internal/infra/casemem"
	"argus/internal/infra/db"
	httpinfra "argus/internal/infra/http"
	"argus/internal/infra/metrics"
	"argus/internal/infra/policycap"
	"argus/internal/infra/ratelimit"
	"argus/internal/usecase"
)

func main() {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()

	dbStore, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	var (
		caseStore usecase.CaseStore
		ledger    usecase.AuditLedger
	)
	if dbStore.DB != nil {
		if err := dbStore.Migrate(); err != nil {
			log.Fatalf("failed to migrate schema: %v", err)
		}
		caseStore = db.NewCaseRepository(dbStore.DB)
		ledger = db.NewAuditRepository(dbStore.DB)
	} else {
		mem := casemem.New()
		caseStore = mem
		ledger = mem
	}

	var authz *policycap.Engine
	if cfg.CapabilityBundlePath != "" {
		authz, err = policycap.NewEngineFromBundlePath(ctx, cfg.CapabilityBundlePath)
	} else {
		authz, err = policycap.NewDefaultEngine(ctx)
	}
	if err != nil {
		log.Fatalf("failed to load capability policy: %v", err)
	}
	log.Printf("capability policy loaded, bundle hash %s", authz.BundleHash())

	var limiter domain.RateLimiter
	if cfg.RedisAddr != "" {
		limiter, err = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
		if err != nil {
			log.Fatalf("failed to init redis rate limiter: %v", err)
		}
	} else {
		limiter = ratelimit.NewMemoryLimiter(nil, 0)
	}

	sink := metrics.NewSink()

	validator, err := usecase.NewValidationEngine(cfg.Rules, sink)
	if err != nil {
		log.Fatalf("failed to build validation engine: %v", err)
	}
	boundary := usecase.NewBoundaryGuard(cfg.Rules)
	riskEngine := usecase.NewRiskEngine(cfg.Risk, sink)
	locker := usecase.NewCaseLocker(cfg.CaseLockWait())

	processor := usecase.NewCaseProcessor(
		boundary,
		validator,
		riskEngine,
		caseStore,
		ledger,
		usecase.NopRetriever{},
		usecase.FallbackGenerator{},
		locker,
		sink,
		nil,
	)
	workflow := usecase.NewWorkflowService(caseStore, ledger, authz, locker, sink, nil)

	srv := httpinfra.NewServerWithDeps(cfg, httpinfra.ServerDeps{
		Processor:      processor,
		Workflow:       workflow,
		Store:          caseStore,
		Ledger:         ledger,
		DBStore:        dbStore,
		RateLimiter:    limiter,
		MetricsHandler: sink.Handler(),
	})
	log.Printf("argusd listening on %s", cfg.HTTPAddr)
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
