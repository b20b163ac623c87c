package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/audit"
	"github.com/phonologic/brain-engine/pkg/auth"
	"github.com/phonologic/brain-engine/pkg/config"
	"github.com/phonologic/brain-engine/pkg/database"
	"github.com/phonologic/brain-engine/pkg/extraction"
	"github.com/phonologic/brain-engine/pkg/handlers"
	"github.com/phonologic/brain-engine/pkg/llm"
	"github.com/phonologic/brain-engine/pkg/logging"
	"github.com/phonologic/brain-engine/pkg/mcp"
	mcpauth "github.com/phonologic/brain-engine/pkg/mcp/auth"
	"github.com/phonologic/brain-engine/pkg/mcp/tools"
	"github.com/phonologic/brain-engine/pkg/middleware"
	"github.com/phonologic/brain-engine/pkg/repositories"
	"github.com/phonologic/brain-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsPath = "migrations"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(Version)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.Bool("llm_phrasing", cfg.LLM.EnablePhrasing),
		zap.String("database", cfg.Database.Database))

	ctx := context.Background()

	// Docker containers cannot reach the host through localhost.
	cfg.Database.Host = config.ResolveHostForDocker(cfg.Database.Host)

	// Migrations run through database/sql; the application itself talks to
	// PostgreSQL through the pgx pool.
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open database for migrations", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, migrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		// The DSN carries the password; never log the raw error.
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	// Repositories
	knowledgeRepo := repositories.NewKnowledgeRepository(db)
	contributionRepo := repositories.NewContributionRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Services
	auditService := services.NewAuditService(auditRepo, logger)
	securityAuditor := audit.NewSecurityAuditor(logger)
	extractor := extraction.NewExtractor(logger)

	conflictDetector := services.NewConflictDetector(&services.ConflictDetectorDeps{
		KnowledgeRepo:    knowledgeRepo,
		ContributionRepo: contributionRepo,
		Config:           cfg.Curation,
		Logger:           logger,
	})

	stagingService := services.NewStagingService(&services.StagingServiceDeps{
		ContributionRepo: contributionRepo,
		AuditService:     auditService,
		Config:           cfg.Curation,
		Logger:           logger,
	})

	resolutionService := services.NewResolutionService(&services.ResolutionServiceDeps{
		KnowledgeRepo:    knowledgeRepo,
		ContributionRepo: contributionRepo,
		AuditService:     auditService,
		Logger:           logger,
	})

	curationService := services.NewCurationService(&services.CurationServiceDeps{
		KnowledgeRepo:    knowledgeRepo,
		Extractor:        extractor,
		ConflictDetector: conflictDetector,
		StagingService:   stagingService,
		AuditService:     auditService,
		SecurityAuditor:  securityAuditor,
		Config:           cfg.Curation,
		Logger:           logger,
	})

	llmClient, err := llm.NewClientFromConfig(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	queryService := services.NewQueryService(&services.QueryServiceDeps{
		KnowledgeRepo: knowledgeRepo,
		Config:        cfg.Query,
		Logger:        logger,
		LLMClient:     llmClient,
	})

	seedingService := services.NewSeedingService(knowledgeRepo, auditService, logger)
	if err := seedingService.SeedIfEmpty(ctx, cfg.SeedPath); err != nil {
		logger.Fatal("Failed to seed knowledge store", zap.Error(err))
	}

	// Authentication. The JWKS client is built even with verification off
	// so that bearer tokens still parse into claims in dev mode.
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()
	authService := auth.NewAuthService(jwksClient, cfg.Auth.EnableVerification, cfg.Auth.DevIdentity, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	// HTTP API
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewContributionHandler(curationService, stagingService, resolutionService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewEntriesHandler(knowledgeRepo, auditService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewQueryHandler(queryService, logger).RegisterRoutes(mux, authMiddleware)

	// MCP surface, sharing the services with the HTTP API
	mcpAudit := mcp.NewAuditLogger(logger)
	mcpServer := mcp.NewServer("brain-engine", cfg.Version, mcpAudit, logger)
	tools.RegisterHealthTool(mcpServer.MCP(), "brain-engine", cfg.Version)
	tools.RegisterContributeTool(mcpServer.MCP(), &tools.ContributeToolDeps{
		CurationService: curationService,
		Logger:          logger,
	})
	tools.RegisterQueryTool(mcpServer.MCP(), &tools.QueryToolDeps{
		QueryService: queryService,
		Logger:       logger,
	})
	tools.RegisterContributionTools(mcpServer.MCP(), &tools.ContributionToolDeps{
		StagingService:    stagingService,
		ResolutionService: resolutionService,
		Logger:            logger,
	})
	tools.RegisterEntryTools(mcpServer.MCP(), &tools.EntryToolDeps{
		KnowledgeRepo: knowledgeRepo,
		Logger:        logger,
	})

	mcpAuthMiddleware := mcpauth.NewMiddleware(authService, logger)
	mcpHTTPServer := mcpServer.NewStreamableHTTPServer()
	mux.Handle("/mcp", middleware.MCPRequestLogger(logger)(mcpAuthMiddleware.RequireAuth(mcpHTTPServer)))

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting brain-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
