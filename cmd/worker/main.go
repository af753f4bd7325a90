package main

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/config"
	"github.com/credithub/credithub-api/internal/domain/audit"
	"github.com/credithub/credithub-api/internal/domain/ledger"
	"github.com/credithub/credithub-api/internal/domain/order"
	"github.com/credithub/credithub-api/internal/domain/recharge"
	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/pkg/database"
	"github.com/credithub/credithub-api/internal/pkg/logger"
	"github.com/credithub/credithub-api/internal/pkg/queue"
	"github.com/credithub/credithub-api/internal/pkg/vault"
	"github.com/credithub/credithub-api/internal/pkg/warez"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Int("concurrency", cfg.WorkerConcurrency).
		Msg("Starting CreditHub worker")

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

	tenantRepo := tenant.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	ledgerService := ledger.NewService(ledgerRepo)
	auditRepo := audit.NewRepository(db)

	provider := warez.NewClient(warez.Config{
		BaseURL: cfg.WarezBaseURL,
		Timeout: time.Duration(cfg.WarezTimeoutSeconds) * time.Second,
	}, warez.NewRedisTokenStore(redis, cfg.WarezTokenTTL), auditRepo)

	rechargeProcessor := recharge.NewProcessor(ledgerService, tenantRepo, credentialVault, provider)

	fulfillment := order.NewFulfillment(db, order.NewRepository(db), ledgerRepo)
	confirmProcessor := order.NewConfirmProcessor(fulfillment)

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid REDIS_URL")
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues: map[string]int{
			queue.QueueRecharge: cfg.RechargeQueueWeight,
			queue.QueuePayment:  cfg.PaymentQueueWeight,
		},
		RetryDelayFunc: queue.ExponentialBackoff(cfg.QueueBackoffDelay),
		ErrorHandler:   queue.DeadLetterLogger(),
	})

	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeRechargeExecute, rechargeProcessor)
	mux.Handle(queue.TypePaymentConfirm, confirmProcessor)

	// Run blocks until SIGINT/SIGTERM and drains in-flight tasks.
	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("Worker stopped")
	}

	log.Info().Msg("Worker exited properly")
}
