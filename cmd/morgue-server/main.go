package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/morgue/morgue/internal/config"
	"github.com/morgue/morgue/internal/domain/casefile"
	"github.com/morgue/morgue/internal/domain/debt"
	"github.com/morgue/morgue/internal/domain/exitlog"
	"github.com/morgue/morgue/internal/domain/legalfile"
	"github.com/morgue/morgue/internal/domain/retrieval"
	"github.com/morgue/morgue/internal/domain/tray"
	"github.com/morgue/morgue/internal/platform/auth"
	"github.com/morgue/morgue/internal/platform/db"
	"github.com/morgue/morgue/internal/platform/docstore"
	"github.com/morgue/morgue/internal/platform/metrics"
	"github.com/morgue/morgue/internal/platform/middleware"
)

// legalGateAdapter adapts the legal file service to the case
// lifecycle's release gate, avoiding a circular import between the
// casefile and legalfile packages.
type legalGateAdapter struct {
	svc *legalfile.Service
}

func (a *legalGateAdapter) Open(ctx context.Context, caseID uuid.UUID) (uuid.UUID, error) {
	f, err := a.svc.OpenFile(ctx, caseID)
	if err != nil {
		return uuid.Nil, err
	}
	return f.ID, nil
}

func (a *legalGateAdapter) Authorized(ctx context.Context, caseID uuid.UUID) (uuid.UUID, bool, error) {
	f, err := a.svc.GetFileByCase(ctx, caseID)
	if errors.Is(err, legalfile.ErrFileNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return f.ID, f.Authorized(), nil
}

// retrievalGateAdapter adapts the retrieval service the same way. A
// case with no authorization on file simply does not pass the gate.
type retrievalGateAdapter struct {
	svc *retrieval.Service
}

func (a *retrievalGateAdapter) FullySigned(ctx context.Context, caseID uuid.UUID) (uuid.UUID, bool, error) {
	authz, err := a.svc.GetByCase(ctx, caseID)
	if errors.Is(err, retrieval.ErrAuthorizationNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return authz.ID, authz.FullySigned(), nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "morgue-server",
		Short: "Mortuary case management API server",
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
			if dir == "" {
				dir = cfg.MigrationsDir
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
	upCmd.Flags().String("dir", "", "Path to migrations directory")
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
			if dir == "" {
				dir = cfg.MigrationsDir
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
	statusCmd.Flags().String("dir", "", "Path to migrations directory")
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
		logger.Fatal().Err(err).Msg("invalid configuration")
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
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	apiV1 := e.Group("/api/v1")

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health and metrics
	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	m := metrics.New()

	// -- Register Domain Handlers --

	// Storage trays
	trayRepo := tray.NewTrayRepoPG(pool)
	traySvc := tray.NewService(trayRepo)
	tray.NewHandler(traySvc, cfg.OccupancyAlertHours).RegisterRoutes(apiV1)

	// Debt ledgers
	financialRepo := debt.NewFinancialRepoPG(pool)
	bloodRepo := debt.NewBloodRepoPG(pool)
	debtSvc := debt.NewService(financialRepo, bloodRepo)
	debt.NewHandler(debtSvc).RegisterRoutes(apiV1)

	// Legal case files
	legalRepo := legalfile.NewLegalFileRepoPG(pool)
	legalSvc := legalfile.NewService(legalRepo)
	legalfile.NewHandler(legalSvc).RegisterRoutes(apiV1)

	// Retrieval authorizations
	retrRepo := retrieval.NewAuthorizationRepoPG(pool)
	retrSvc := retrieval.NewService(retrRepo)
	retrieval.NewHandler(retrSvc).RegisterRoutes(apiV1)

	// Exit log
	exitRepo := exitlog.NewExitRecordRepoPG(pool)
	exitSvc := exitlog.NewService(exitRepo)
	exitlog.NewHandler(exitSvc).RegisterRoutes(apiV1)

	// Case lifecycle, wired to the other services through its gates
	caseRepo := casefile.NewCaseRepoPG(pool)
	ticketRepo := casefile.NewTicketRepoPG(pool)
	caseSvc := casefile.NewService(caseRepo, ticketRepo, traySvc, debtSvc,
		&legalGateAdapter{svc: legalSvc}, &retrievalGateAdapter{svc: retrSvc},
		exitSvc, m)
	casefile.NewHandler(caseSvc).RegisterRoutes(apiV1)

	// Document store (scanned paperwork uploads)
	docHandler := docstore.NewHandler(docstore.NewMemStore())
	docHandler.RegisterRoutes(apiV1)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
