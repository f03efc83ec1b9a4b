package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"veripass/internal/certificate"
	"veripass/internal/holderstatus"
	"veripass/internal/jwttoken"
	"veripass/internal/platform/config"
	"veripass/internal/platform/httpserver"
	"veripass/internal/platform/logger"
	platformredis "veripass/internal/platform/redis"
	"veripass/internal/revocation"
	"veripass/internal/rules"
	httptransport "veripass/internal/transport/http"
	"veripass/internal/validation"
	audit "veripass/pkg/platform/audit"
	"veripass/pkg/platform/audit/publisher"
	auditkafka "veripass/pkg/platform/audit/store/kafka"
	auditmemory "veripass/pkg/platform/audit/store/memory"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal engine packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	// Audit sink: Kafka when brokers are configured, in-process otherwise.
	var auditStore audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := auditkafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic,
			auditkafka.WithLogger(log))
		if err != nil {
			log.Error("kafka audit store init failed", "error", err)
			os.Exit(1)
		}
		defer func() { _ = kafkaStore.Close() }()
		auditStore = kafkaStore
	} else {
		auditStore = auditmemory.NewInMemoryStore()
	}
	auditPublisher := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(256),
		publisher.WithLogger(log))
	defer func() { _ = auditPublisher.Close() }()

	// Snapshot holders. Empty until the first refresh or admin replace.
	ruleStore := rules.NewStore()
	valueSetStore := rules.NewValueSetStore()
	offlineRevocations := revocation.NewOfflineStore()

	// Durable storage is optional; without a DSN everything stays in memory.
	var (
		certRepo      certificate.Repository
		rulePersister *rules.PostgresStore
	)
	certRepo = certificate.NewInMemoryRepository()
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		pgCerts := certificate.NewPostgresRepository(db)
		if err := pgCerts.EnsureSchema(ctx); err != nil {
			log.Error("certificate schema init failed", "error", err)
			os.Exit(1)
		}
		certRepo = pgCerts

		rulePersister = rules.NewPostgres(db)
		if err := rulePersister.EnsureSchema(ctx); err != nil {
			log.Error("rules schema init failed", "error", err)
			os.Exit(1)
		}
		// Serve the last persisted rule set until the first replace.
		set, err := rulePersister.Load(ctx)
		if err != nil {
			log.Error("persisted rule set load failed", "error", err)
			os.Exit(1)
		}
		if set != nil {
			ruleStore.Replace(set)
			log.Info("persisted rule set loaded", "rules", set.Len())
		}
	}

	checkerOpts := []revocation.Option{
		revocation.WithOfflineStore(offlineRevocations, func() bool { return cfg.OfflineRevocation }),
		revocation.WithAuditPublisher(auditPublisher),
		revocation.WithLogger(log),
	}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		checkerOpts = append(checkerOpts, revocation.WithOnlineIndex(revocation.NewRedisIndex(redisClient.Client)))
	}
	revocationChecker := revocation.NewChecker(checkerOpts...)

	validator := validation.NewUseCase(ruleStore,
		validation.WithRevocationChecker(revocationChecker),
		validation.WithValueSets(valueSetStore),
		validation.WithAuditPublisher(auditPublisher),
		validation.WithHomeCountry(cfg.HomeCountry),
		validation.WithLogger(log))

	deriver := holderstatus.NewDeriver(ruleStore,
		holderstatus.WithValueSets(valueSetStore),
		holderstatus.WithRevocationChecker(revocationChecker),
		holderstatus.WithBoosterRepository(holderstatus.NewInMemoryBoosterRepository()),
		holderstatus.WithCertificateRepository(certRepo),
		holderstatus.WithAuditPublisher(auditPublisher),
		holderstatus.WithHomeCountry(cfg.HomeCountry),
		holderstatus.WithLogger(log))

	adminOpts := []rules.ServiceOption{
		rules.WithAuditPublisher(auditPublisher),
		rules.WithLogger(log),
	}
	if rulePersister != nil {
		adminOpts = append(adminOpts, rules.WithPersister(rulePersister))
	}
	adminService := rules.NewService(ruleStore, valueSetStore, adminOpts...)

	jwtService := jwttoken.NewService(cfg.JWTSigningKey, "veripass", "veripass")

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Validation:     httptransport.NewValidationHandler(validator, ruleStore, cfg.HomeCountry),
		Status:         httptransport.NewStatusHandler(deriver),
		Admin:          httptransport.NewAdminHandler(adminService, offlineRevocations),
		TokenValidator: jwtService,
		Logger:         log,
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server starting", "addr", cfg.Addr, "home_country", cfg.HomeCountry)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
