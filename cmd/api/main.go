package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/config"
	"github.com/credithub/credithub-api/internal/domain/admin"
	"github.com/credithub/credithub-api/internal/domain/audit"
	"github.com/credithub/credithub-api/internal/domain/auth"
	"github.com/credithub/credithub-api/internal/domain/ledger"
	"github.com/credithub/credithub-api/internal/domain/order"
	"github.com/credithub/credithub-api/internal/domain/product"
	"github.com/credithub/credithub-api/internal/domain/recharge"
	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/domain/user"
	"github.com/credithub/credithub-api/internal/middleware"
	"github.com/credithub/credithub-api/internal/pkg/database"
	"github.com/credithub/credithub-api/internal/pkg/jwt"
	"github.com/credithub/credithub-api/internal/pkg/logger"
	"github.com/credithub/credithub-api/internal/pkg/mercadopago"
	"github.com/credithub/credithub-api/internal/pkg/queue"
	pkgresponse "github.com/credithub/credithub-api/internal/pkg/response"
	"github.com/credithub/credithub-api/internal/pkg/vault"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting CreditHub API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	credentialVault, err := vault.New(cfg.VaultEncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid VAULT_ENCRYPTION_KEY")
	}

	jobs, err := queue.NewClient(cfg.RedisURL, cfg.QueueMaxRetry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create queue client")
	}
	defer jobs.Close()

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	tenantRepo := tenant.NewRepository(db)
	userRepo := user.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	productRepo := product.NewRepository(db)
	orderRepo := order.NewRepository(db)
	auditRepo := audit.NewRepository(db)

	// ---------- Services ----------
	tenantDirectory := tenant.NewDirectory(tenantRepo, tenant.NewRedisStore(redis), tenant.DefaultCacheTTL)
	ledgerService := ledger.NewService(ledgerRepo)
	fulfillment := order.NewFulfillment(db, orderRepo, ledgerRepo)
	authService := auth.NewService(db, tenantRepo, userRepo, jwtService)

	mercadoPago := mercadopago.NewClient(cfg.MercadoPagoAccessToken)

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	rechargeHandler := recharge.NewHandler(ledgerService, jobs)
	productHandler := product.NewHandler(productRepo)
	orderHandler := order.NewHandler(productRepo, orderRepo, credentialVault, mercadoPago)
	webhookHandler := order.NewWebhookHandler(tenantRepo, fulfillment, mercadoPago, jobs, cfg.MercadoPagoWebhookSecret)
	adminHandler := admin.NewHandler(tenantRepo, credentialVault, ledgerService, auditRepo, productRepo, cfg.MonnifyWebhookURL)

	authMiddleware := middleware.Auth(jwtService)
	resolveTenant := tenant.Resolver(tenantDirectory)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Mount("/auth", authHandler.PlatformRoutes())
	r.Mount("/webhooks", webhookHandler.WebhookRoutes())

	r.Route("/{tenantSlug}", func(r chi.Router) {
		r.Use(resolveTenant)

		r.Mount("/auth", authHandler.TenantRoutes(authMiddleware))
		r.Mount("/products", productHandler.Routes())
		r.Mount("/reseller", rechargeHandler.Routes(authMiddleware))
		r.Mount("/admin", adminHandler.Routes(authMiddleware))
		r.Mount("/", orderHandler.Routes(authMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
