package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/api/handlers"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/config"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/database"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/jobs"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/repository"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/server"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/service"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/storage"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/telemetry"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/zhipu"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the smartservice API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	var (
		knowledgeStore repository.KnowledgeStore
		projectStore   repository.ProjectStore
		jobStore       jobs.VectorizeJobStore
		jobEnqueuer    handlers.VectorizeEnqueuer
	)

	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		log.Println("connected to database")

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		knowledgeStore = repository.NewKnowledgeRepository(pool)
		projectStore = repository.NewProjectRepository(pool)
		jobRepo := repository.NewVectorizeJobRepository(pool)
		jobStore = jobRepo
		jobEnqueuer = jobRepo
	} else {
		// No database means the in-memory store: fine for demos and tests,
		// knowledge does not survive a restart.
		log.Println("no DATABASE_URL configured, using in-memory knowledge store")
		knowledgeStore = repository.NewMemoryKnowledgeStore()
		projectStore = repository.NewMemoryProjectStore()
		memJobs := repository.NewMemoryVectorizeJobStore()
		jobStore = memJobs
		jobEnqueuer = memJobs
	}

	glm := zhipu.NewClient(zhipu.Config{
		APIKey:              cfg.ZhipuAPIKey,
		BaseURL:             cfg.ZhipuBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDims,
		ChatModel:           cfg.ChatModel,
		VisionModel:         cfg.VisionModel,
	})

	var embedder service.EmbeddingClient
	var streamer service.CompletionStreamer
	var vision service.VisionAnalyzer
	var vectorizeWorker *jobs.Worker

	if cfg.HasZhipu() {
		embedder = glm
		streamer = &glmStreamerAdapter{client: glm}
		vision = glm

		vectorizeSvc := service.NewVectorizeService(glm, knowledgeStore)
		processor := jobs.NewVectorizeWorker(jobStore, vectorizeSvc)
		vectorizeWorker = jobs.NewWorker(processor, 10*time.Second)
		go vectorizeWorker.Start(ctx)
		log.Println("vectorize worker started")
	} else {
		log.Println("no ZHIPU_API_KEY configured, chat degrades to canned replies")
	}

	retriever := service.NewRetrieverWithConfig(embedder, service.RetrieverConfig{
		SimilarityThreshold: cfg.SimilarityThreshold,
		TopK:                cfg.TopK,
		LazyVectorize:       true,
	})

	orchestrator := service.NewOrchestratorWithConfig(retriever, streamer, vision, service.OrchestratorConfig{
		CoalesceInterval: cfg.CoalesceInterval,
		RespondTimeout:   cfg.RespondTimeout,
	})

	var mediaHandler *handlers.MediaHandler
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		mediaHandler = handlers.NewMediaHandler(s3Client)
	}

	routerCfg := server.RouterConfig{
		ChatHandler:      handlers.NewChatHandler(orchestrator, projectStore, knowledgeStore),
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeStore, jobEnqueuer),
		RetrieveHandler:  handlers.NewRetrieveHandler(retriever, knowledgeStore),
		EmbedHandler:     handlers.NewEmbedHandler(glm),
		ProjectHandler:   handlers.NewProjectHandler(projectStore),
		MediaHandler:     mediaHandler,
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if vectorizeWorker != nil {
		vectorizeWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// glmStreamerAdapter narrows the provider client to the orchestrator's
// streaming interface.
type glmStreamerAdapter struct {
	client *zhipu.Client
}

func (a *glmStreamerAdapter) HasCredential() bool {
	return a.client.HasCredential()
}

func (a *glmStreamerAdapter) StreamCompletion(ctx context.Context, req service.CompletionRequest) (service.ChunkStream, error) {
	return a.client.StreamChatCompletion(ctx, zhipu.ChatStreamRequest{
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		History:      req.History,
	})
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql connection
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
