package main

import (
	"context"
	"log"
	"time"

	"coteri/config"
	"coteri/internal/billing"
	"coteri/internal/handler"
	"coteri/internal/metrics"
	"coteri/internal/passtoken"
	"coteri/internal/redis"
	"coteri/internal/repository"
	"coteri/internal/server"
	"coteri/internal/services"
	"coteri/internal/storage"
	"coteri/internal/wallet"
	"coteri/internal/websocket"
	"coteri/pkg/database"
	"coteri/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logMode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		logMode = logger.ProductionMode
	}
	l := logger.New(logMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	db := database.Connect(cfg)
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	if err := redis.Ping(pingCtx, redisClient); err != nil {
		l.Warnf("Redis unavailable at startup, rate limiting fails open: %v", err)
	}
	pingCancel()

	metrics.Register()

	memberships := repository.NewMembershipRepository(db)
	staff := repository.NewStaffRepository(db)
	venues := repository.NewVenueRepository(db)
	verificationEvents := repository.NewVerificationEventRepository(db)
	webhookEvents := repository.NewWebhookEventRepository(db)

	if cfg.QRSigningSecret == "" {
		l.Warnf("QR_SIGNING_SECRET is not set, every signed pass will fail verification")
	}
	signer := passtoken.NewSigner(cfg.QRSigningSecret)
	tokens := passtoken.NewVerifier(cfg.QRSigningSecret)

	authService := services.NewAuthService(staff, cfg.AuthJWTSecret)

	rateCfg := redis.DefaultRateLimitConfig()
	if cfg.VerifyRateLimit > 0 {
		rateCfg.VerifyLimit = cfg.VerifyRateLimit
	}
	limiter := redis.NewRateLimiter(redisClient, rateCfg)

	verificationService := services.NewVerificationService(services.VerificationDeps{
		Memberships: memberships,
		Events:      verificationEvents,
		Tokens:      tokens,
		Cache:       redis.NewResultCache(redisClient, redis.DefaultResultTTL),
		Feed:        redis.NewPublisher(redisClient),
		Logger:      l,
	})

	webhookDeps := services.WebhookDeps{
		Provider: billing.NewStripeProvider(billing.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Timeout:       cfg.StripeTimeout,
		}),
		Events:      webhookEvents,
		Memberships: memberships,
		Logger:      l,
	}
	if cfg.S3Bucket != "" {
		archive, err := storage.NewWebhookArchive(ctx, storage.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			l.Warnf("Webhook archive disabled: %v", err)
		} else {
			webhookDeps.Archive = archive
		}
	}
	webhookService := services.NewWebhookService(webhookDeps)

	var walletLinker services.WalletLinker
	googleIssuer, err := wallet.NewGoogleIssuer(wallet.GoogleConfig{
		IssuerID:           cfg.GoogleWalletIssuerID,
		ServiceAccountJSON: cfg.GoogleWalletServiceAccount,
		Origin:             cfg.SiteURL,
	})
	if err != nil {
		l.Infof("Google Wallet links disabled: %v", err)
	} else {
		walletLinker = googleIssuer
	}
	passService := services.NewPassService(memberships, venues, signer, walletLinker, l)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	bridge := websocket.NewRedisBridge(redis.NewSubscriber(redisClient), hub)
	go func() {
		if err := bridge.Run(ctx); err != nil {
			l.ErrorCtx(ctx, "verification feed bridge stopped", zap.Error(err))
		}
	}()

	srv := server.New(cfg, l)
	srv.AddHealthCheck("redis", func(ctx context.Context) error {
		return redis.Ping(ctx, redisClient)
	})
	srv.SetupRoutes(&server.Handlers{
		Verify:  handler.NewVerifyHandler(verificationService),
		Webhook: handler.NewWebhookHandler(webhookService, cfg.ReplayToken),
		Pass:    handler.NewPassHandler(passService),
		Feed:    websocket.NewHandler(authService, hub, cfg.SiteURL, l),
	}, server.Guards{
		Auth:    authService,
		Staff:   authService,
		Limiter: limiter,
	})

	if err := srv.Start(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	cancel()
	verificationService.Wait()
}
