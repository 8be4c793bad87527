package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "mailpilot-backend/cmd/api"
	authDelivery "mailpilot-backend/internal/auth/delivery"
	authRepo "mailpilot-backend/internal/auth/repository"
	authUsecase "mailpilot-backend/internal/auth/usecase"
	emailRepo "mailpilot-backend/internal/email/repository"
	"mailpilot-backend/internal/email/scheduler"
	emailUsecase "mailpilot-backend/internal/email/usecase"
	"mailpilot-backend/internal/notification"
	"mailpilot-backend/internal/schema"
	"mailpilot-backend/pkg/classifier"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/database"
	"mailpilot-backend/pkg/fcm"
	"mailpilot-backend/pkg/gmail"
	"mailpilot-backend/pkg/logger"
	"mailpilot-backend/pkg/rate"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(schema.Models()...); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(db)
	subscriptionRepo := emailRepo.NewWatchSubscriptionRepository(db)
	labelRepo := emailRepo.NewMessageLabelRepository(db)
	replyStatusRepo := emailRepo.NewThreadReplyStatusRepository(db)
	settingsRepo := emailRepo.NewDraftSettingsRepository(db)
	dispatchRepo := emailRepo.NewDispatchLogRepository(db)

	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, fcmTokenRepo, cfg)

	// Gmail calls share one rate limiter across users
	limiter := rate.NewTokenBucket(cfg.GmailRequestsPerSecond)
	gmailService := gmail.NewService(limiter)

	// Classification dispatch workers
	dispatchWorker := emailUsecase.NewDispatchWorkerService(
		classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout),
		dispatchRepo,
		cfg.DispatchWorkers,
		cfg.DispatchQueueSize,
		cfg.ClassifierTimeout,
	)
	dispatchWorker.Start()

	// Reply notifications are optional
	var replyNotifier emailUsecase.ReplyNotifier
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize FCM client, reply notifications disabled")
		} else {
			replyNotifier = notification.NewReplyNotifier(fcmClient, fcmTokenRepo)
		}
	} else {
		log.Info().Msg("No Firebase credentials configured, reply notifications disabled")
	}

	emailUsecaseInstance := emailUsecase.NewEmailUsecase(emailUsecase.Dependencies{
		UserRepo:        userRepo,
		Tokens:          authUsecaseInstance,
		Provider:        gmailService,
		SubRepo:         subscriptionRepo,
		LabelRepo:       labelRepo,
		ReplyStatusRepo: replyStatusRepo,
		SettingsRepo:    settingsRepo,
		DispatchRepo:    dispatchRepo,
		Dispatcher:      dispatchWorker,
		Notifier:        replyNotifier,
	}, emailUsecase.Options{
		LabelPrefix:         cfg.LabelPrefix,
		WatchTopic:          cfg.PubSubTopicName(),
		BackfillMaxCount:    cfg.BackfillMaxCount,
		BackfillConcurrency: cfg.BackfillConcurrency,
	})

	// Watch renewal
	watchScheduler := scheduler.NewWatchRenewalScheduler(emailUsecaseInstance, cfg.WatchRenewalInterval, 24*time.Hour)
	watchScheduler.Start()

	// Pull receiver, only when a subscription is configured
	if cfg.GoogleProjectID != "" && cfg.GooglePubSubSubscription != "" {
		notifService, err := notification.NewService(ctx, cfg.GoogleProjectID, cfg.PubSubTopicName(),
			cfg.GooglePubSubSubscription, cfg.GoogleCredentials, emailUsecaseInstance)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Pub/Sub receiver")
		} else {
			defer notifService.Close()
			go func() {
				if err := notifService.Start(ctx); err != nil {
					log.Error().Err(err).Msg("Pub/Sub receiver stopped")
				}
			}()
		}
	} else {
		log.Info().Msg("Pub/Sub pull subscription not configured, relying on push webhook")
	}

	// Push authentication
	var pushValidator authDelivery.TokenValidator
	if cfg.PubSubPushAudience != "" {
		var opts []option.ClientOption
		if cfg.GoogleCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentials))
		}
		validator, err := idtoken.NewValidator(ctx, opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize push token validator")
		}
		pushValidator = validator
	}

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, emailUsecaseInstance, cfg, pushValidator)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	watchScheduler.Stop()
	dispatchWorker.Stop()
}
