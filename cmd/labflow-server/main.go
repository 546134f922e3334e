package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/labflow/labflow/internal/config"
	"github.com/labflow/labflow/internal/domain/analysis"
	"github.com/labflow/labflow/internal/domain/reference"
	"github.com/labflow/labflow/internal/domain/report"
	"github.com/labflow/labflow/internal/platform/ai"
	"github.com/labflow/labflow/internal/platform/auth"
	"github.com/labflow/labflow/internal/platform/blobstore"
	"github.com/labflow/labflow/internal/platform/db"
	"github.com/labflow/labflow/internal/platform/extract"
	"github.com/labflow/labflow/internal/platform/middleware"
	"github.com/labflow/labflow/internal/platform/ocr"
	"github.com/labflow/labflow/internal/platform/progress"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "labflow-server",
		Short: "Lab report analysis API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "25M"))
	e.Use(middleware.RequestTimeout(5 * time.Minute))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		}))
	}

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Blob storage for uploaded documents. MinIO when configured, otherwise
	// an in-memory store suitable for development.
	var blobs blobstore.BlobStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := blobstore.NewMinioBlobStore(blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create MinIO blob store")
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure MinIO bucket")
		}
		blobs = minioStore
		logger.Info().Str("endpoint", cfg.MinioEndpoint).Str("bucket", cfg.MinioBucket).Msg("using MinIO blob store")
	} else {
		blobs = blobstore.NewInMemoryBlobStore()
		logger.Warn().Msg("MINIO_ENDPOINT not set; uploaded documents are kept in memory")
	}

	// Extraction pipeline: direct PDF text layer with OCR fallback.
	ocrEngine := ocr.NewEngine(ocr.Config{
		Pdftoppm:    cfg.OCRPdftoppm,
		Tesseract:   cfg.OCRTesseract,
		Lang:        cfg.OCRLang,
		DPI:         cfg.OCRDPI,
		PageTimeout: cfg.OCRPageTimeout(),
	}, logger)
	extractor := extract.NewDocumentExtractor(cfg.MinTextChars, ocrEngine, logger)

	// AI interpretation client
	aiClient := ai.NewClient(ai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemp,
		Timeout:     cfg.OpenAITimeout(),
	}, logger)

	// Progress hub for websocket viewers
	hub := progress.NewHub(logger)
	wsHandler := progress.NewWebSocketHandler(hub)
	wsHandler.RegisterRoutes(e.Group("/ws"))

	// -- Register Domain Handlers --

	// Reference catalog
	refRepo := reference.NewRepoPG(pool)
	refSvc := reference.NewService(refRepo)
	refHandler := reference.NewHandler(refSvc)
	refHandler.RegisterRoutes(apiV1)

	// Reports (share-token surface)
	reportRepo := report.NewRepoPG(pool)
	runTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	reportSvc := report.NewService(reportRepo, runTx, cfg.ShareTokenTTL(), logger)
	reportHandler := report.NewHandler(reportSvc)
	reportHandler.RegisterRoutes(apiV1)

	// Analysis pipeline
	analysisRepo := analysis.NewRepoPG(pool)
	analysisSvc := analysis.NewService(analysisRepo, refSvc, extractor, aiClient, reportSvc, blobs, hub, logger)
	analysisHandler := analysis.NewHandler(analysisSvc)
	analysisHandler.RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	// Tell connected viewer tabs the stream is ending before sockets drop.
	hub.BroadcastAll(progress.Event{
		Type:      progress.EventError,
		Message:   "server shutting down",
		Timestamp: time.Now().UTC(),
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
