package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/santerahq/claimsgate/internal/config"
	v1 "github.com/santerahq/claimsgate/internal/handler/v1"
	"github.com/santerahq/claimsgate/internal/repository/postgres"
	"github.com/santerahq/claimsgate/internal/service"
	"github.com/santerahq/claimsgate/pkg/auth"
	"github.com/santerahq/claimsgate/pkg/database"
	"github.com/santerahq/claimsgate/pkg/logger"
	"github.com/santerahq/claimsgate/pkg/metrics"
	"github.com/santerahq/claimsgate/pkg/storage"
	"github.com/santerahq/claimsgate/pkg/tracer"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("loading config: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("initializing logger: " + err.Error())
	}
	defer log.Sync()

	log.Info("starting claimsgate",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	if cfg.Tracing.Enabled {
		tp, err := tracer.Init(cfg.Tracing)
		if err != nil {
			log.Fatal("initializing tracer", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown", zap.Error(err))
			}
		}()
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("connecting to database", zap.Error(err))
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("running migrations", zap.Error(err))
	}

	docs, err := storage.NewMinioStore(cfg.Storage)
	if err != nil {
		log.Fatal("initializing document store", zap.Error(err))
	}

	collector := metrics.NewCollector(cfg.App.Name)
	if err := database.Instrument(db, func(operation, table string, seconds float64) {
		collector.DBQueryDuration.WithLabelValues(operation, table).Observe(seconds)
	}); err != nil {
		log.Fatal("instrumenting database", zap.Error(err))
	}
	poolCtx, stopPoolStats := context.WithCancel(context.Background())
	defer stopPoolStats()
	if err := database.ReportPoolStats(poolCtx, db, 15*time.Second, func(open int) {
		collector.DBConnections.Set(float64(open))
	}); err != nil {
		log.Fatal("starting pool stats reporter", zap.Error(err))
	}

	jwtManager := auth.NewJWTManager(cfg.JWT)

	referralRepo := postgres.NewReferralRepository(db)
	paRepo := postgres.NewPACodeRepository(db)
	admissionRepo := postgres.NewAdmissionRepository(db)
	claimRepo := postgres.NewClaimRepository(db)
	userRepo := postgres.NewUserRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	registry := postgres.NewRegistry(db)

	auditSvc := service.NewAuditService(auditRepo, collector, log)
	defer auditSvc.Shutdown()

	authSvc := service.NewAuthService(userRepo, jwtManager, auditSvc, log)
	referralSvc := service.NewReferralService(referralRepo, registry.Facilities(), registry.Enrollees(), collector, auditSvc, log)
	paSvc := service.NewPAService(paRepo, referralRepo, admissionRepo, claimRepo, cfg.Policy, collector, auditSvc, log)
	admissionSvc := service.NewAdmissionService(admissionRepo, referralRepo, registry.Bundles(), collector, auditSvc, log)
	claimSvc := service.NewClaimService(claimRepo, admissionRepo, paRepo, registry.Tariffs(), collector, auditSvc, log)
	workflowSvc := service.NewWorkflowService(claimRepo, collector, auditSvc, log)

	router := v1.NewRouter(v1.RouterDeps{
		Config:       cfg,
		Log:          log,
		Metrics:      collector,
		JWTManager:   jwtManager,
		AuthSvc:      authSvc,
		ReferralSvc:  referralSvc,
		PASvc:        paSvc,
		AdmissionSvc: admissionSvc,
		ClaimSvc:     claimSvc,
		WorkflowSvc:  workflowSvc,
		Docs:         docs,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
