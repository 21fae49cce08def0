package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fleurease/fleurease-api/internal/auth"
	"github.com/fleurease/fleurease-api/internal/background"
	"github.com/fleurease/fleurease-api/internal/cache"
	"github.com/fleurease/fleurease-api/internal/config"
	"github.com/fleurease/fleurease-api/internal/database"
	"github.com/fleurease/fleurease-api/internal/handlers"
	"github.com/fleurease/fleurease-api/internal/mail"
	"github.com/fleurease/fleurease-api/internal/metrics"
	middlewareCustom "github.com/fleurease/fleurease-api/internal/middleware"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/repositories"
	"github.com/fleurease/fleurease-api/internal/routes"
	"github.com/fleurease/fleurease-api/internal/services"
	"github.com/fleurease/fleurease-api/internal/storage"
	pkgauth "github.com/fleurease/fleurease-api/pkg/auth"
	pkghttp "github.com/fleurease/fleurease-api/pkg/http"
	pkglogger "github.com/fleurease/fleurease-api/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(startCtx, db.Pool, logger); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	productRepo := repositories.NewProductRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	wishlistRepo := repositories.NewWishlistRepository(db)

	// External collaborators
	avatarStore, err := storage.NewMinioAvatarStore(startCtx,
		cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey,
		cfg.Storage.Bucket, cfg.Storage.UseSSL, cfg.Storage.PublicBaseURL, logger)
	if err != nil {
		logger.Error("failed to initialize avatar storage", slog.Any("error", err))
		os.Exit(1)
	}

	sender, err := newMailSender(startCtx, cfg.Email, logger)
	if err != nil {
		logger.Error("failed to initialize email sender", slog.Any("error", err))
		os.Exit(1)
	}
	notifier := mail.NewNotifier(sender, cfg.Email.APIBaseURL, cfg.Email.FrontendBaseURL)

	var orphans cache.OrphanQueue = cache.NewMemoryOrphanQueue()
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(startCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		orphans = cache.NewRedisOrphanQueue(rdb, cfg.Redis.QueueKey)
	} else {
		logger.Warn("REDIS_ADDR not set, orphan queue is in-memory")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Services
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, accountRepo)
	auditLogger := pkglogger.NewAuditLogger(logger)
	tokenService := services.NewTokenService(accountRepo, cfg.Auth.VerificationTTL, cfg.Auth.ResetTTL, m, logger)

	accountService := services.NewAccountService(services.AccountServiceDeps{
		Accounts:     accountRepo,
		Tokens:       tokenService,
		Avatars:      avatarStore,
		Mailer:       notifier,
		Sessions:     tokenManager,
		Orphans:      orphans,
		Audit:        auditLogger,
		Metrics:      m,
		Logger:       logger,
		AvatarFolder: cfg.Storage.AvatarFolder,
		AvatarWidth:  cfg.Storage.AvatarWidth,
	})
	userService := services.NewUserService(accountRepo, wishlistRepo, productRepo, avatarStore, notifier, auditLogger, logger)
	dashboardService := services.NewDashboardService(productRepo, orderRepo, accountRepo, cfg.Report.OrdersCap, m, logger)

	// Handlers
	accountHandler := handlers.NewAccountHandler(accountService, cfg.Email.FrontendBaseURL)
	userHandler := handlers.NewUserHandler(userService)
	adminHandler := handlers.NewAdminHandler(dashboardService)

	if err := ensureAdminUser(startCtx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}

	cleanupManager := background.NewCleanupManager(accountRepo, avatarStore, orphans, m, logger, background.CleanupConfig{
		Interval:    cfg.Auth.CleanupInterval,
		GracePeriod: cfg.Auth.UnverifiedGrace,
		SweepLimit:  cfg.Auth.OrphanBatchSize,
	})

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Email.FrontendBaseURL)
	corsConfig.AllowedOrigins = append(corsConfig.AllowedOrigins, cfg.Server.AllowedOrigins...)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger, m, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	limits := routes.DefaultLimits()
	limits.Auth.RequestsPerMinute = cfg.Auth.AuthRatePerMinute
	limits.IP = ipConfig

	router.Route("/api/v1", func(r chi.Router) {
		routes.RegisterRoutes(r, accountHandler, userHandler, adminHandler, tokenManager, accountRepo, limits)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			pkghttp.WriteError(w, http.StatusServiceUnavailable, "unhealthy", "database is down")
			return
		}
		pending, _ := orphans.Len(r.Context())
		pkghttp.WriteOK(w, map[string]any{"status": "healthy", "database": "up", "orphans_pending": pending})
	})
	if m != nil {
		router.Handle("/metrics", m.Handler())
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func newMailSender(ctx context.Context, cfg config.EmailConfig, logger *slog.Logger) (mail.Sender, error) {
	switch cfg.Provider {
	case "ses":
		return mail.NewSESSender(ctx, cfg.SESRegion, cfg.FromAddress, logger)
	case "smtp":
		return mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromAddress, logger)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first admin if ADMIN_EMAIL and ADMIN_PASSWORD
// are set and no account with that email exists.
func ensureAdminUser(ctx context.Context, accounts *repositories.AccountRepository, logger *slog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := accounts.GetByEmail(ctx, email)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	tokenKey, err := pkgauth.GenerateTokenKey()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := accounts.Create(ctx, &models.Account{
		Email:             email,
		Name:              "Admin",
		PasswordHash:      hash,
		Role:              models.RoleAdmin,
		IsVerified:        true,
		TokenKey:          tokenKey,
		PasswordChangedAt: &now,
	}); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}
