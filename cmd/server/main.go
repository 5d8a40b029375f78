package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/access"
	"github.com/clearpath/claims/internal/audit"
	"github.com/clearpath/claims/internal/claim"
	"github.com/clearpath/claims/internal/config"
	"github.com/clearpath/claims/internal/httpapi"
	"github.com/clearpath/claims/internal/leave"
	"github.com/clearpath/claims/internal/notify"
	"github.com/clearpath/claims/internal/policy"
	"github.com/clearpath/claims/internal/report"
	"github.com/clearpath/claims/internal/repository"
	"github.com/clearpath/claims/internal/sequence"
	"github.com/clearpath/claims/internal/storage"
	"github.com/clearpath/claims/pkg/database"
	"github.com/clearpath/claims/pkg/utils"
)

func main() {
	// .env is optional; real deployments inject environment directly
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting claims engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Report.OutputDir, 0755); err != nil {
		logger.Fatal("Failed to create report directory", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories
	claimRepo := repository.NewClaimRepository(db.DB, logger)
	policyRepo := repository.NewPolicyRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	leaveRepo := repository.NewLeaveRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)

	// Policy store must have an active version before any claim is accepted
	policyStore := policy.NewStore(policyRepo, logger)
	if err := policyStore.Bootstrap(ctx); err != nil {
		logger.Fatal("Failed to bootstrap policy store", zap.Error(err))
	}

	seq := sequence.NewGenerator(db, logger)
	if err := seq.Initialize(ctx, claim.CounterClaimID, 0); err != nil {
		logger.Fatal("Failed to initialize claim counter", zap.Error(err))
	}
	if err := seq.Initialize(ctx, leave.CounterLeaveID, 0); err != nil {
		logger.Fatal("Failed to initialize leave counter", zap.Error(err))
	}

	blobs, err := newBlobStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}

	auditSink := audit.NewDBSink(auditRepo, logger)
	notifier := notify.NewLogNotifier(logger)
	projector := access.NewProjector(userRepo, logger)

	claimService := claim.NewService(claimRepo, policyStore, userRepo, projector, seq, blobs, auditSink, notifier, logger)
	leaveService := leave.NewService(leaveRepo, seq, cfg.Leave.Approver1, cfg.Leave.Approver2, auditSink, notifier, logger)
	reporter := report.NewSettlementReporter(claimRepo, logger)

	handlers := httpapi.NewHandlers(claimService, leaveService, policyStore, reporter, cfg.Report.OutputDir, logger)
	server := httpapi.NewServer(cfg.Server, handlers, userRepo, logger)

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newBlobStore selects the attachment backend from configuration
func newBlobStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.BlobStore, error) {
	switch cfg.Driver {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		}, logger)
	default:
		return storage.NewLocalStore(cfg.LocalDir, logger)
	}
}
