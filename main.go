package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	api "welcome-agent/cmd/api"
	activitydelivery "welcome-agent/internal/activity/delivery"
	activityrepo "welcome-agent/internal/activity/repository"
	activityusecase "welcome-agent/internal/activity/usecase"
	agentdelivery "welcome-agent/internal/agent/delivery"
	agentrepo "welcome-agent/internal/agent/repository"
	agentusecase "welcome-agent/internal/agent/usecase"
	authdomain "welcome-agent/internal/auth/domain"
	authrepo "welcome-agent/internal/auth/repository"
	authusecase "welcome-agent/internal/auth/usecase"
	connectiondelivery "welcome-agent/internal/connection/delivery"
	connectionrepo "welcome-agent/internal/connection/repository"
	connectionusecase "welcome-agent/internal/connection/usecase"
	emaildelivery "welcome-agent/internal/email/delivery"
	emailrepo "welcome-agent/internal/email/repository"
	emailusecase "welcome-agent/internal/email/usecase"
	generationdelivery "welcome-agent/internal/generation/delivery"
	generationusecase "welcome-agent/internal/generation/usecase"
	"welcome-agent/internal/maintenance"
	"welcome-agent/internal/notification"
	workspacedelivery "welcome-agent/internal/workspace/delivery"
	workspacerepo "welcome-agent/internal/workspace/repository"
	workspaceusecase "welcome-agent/internal/workspace/usecase"
	"welcome-agent/pkg/ai"
	"welcome-agent/pkg/config"
	"welcome-agent/pkg/crawler"
	"welcome-agent/pkg/database"
	"welcome-agent/pkg/fcm"
	"welcome-agent/pkg/gmail"
	"welcome-agent/pkg/logger"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.WithModule("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Config{Driver: cfg.DatabaseDriver, DSN: cfg.DatabaseURL})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Repositories
	userRepo := authrepo.NewUserRepository(db)
	fcmTokenRepo := authrepo.NewFCMTokenRepository(db)
	workspaceRepo := workspacerepo.NewWorkspaceRepository(db)
	agentRepo := agentrepo.NewAgentRepository(db)
	connectionRepo := connectionrepo.NewConnectionRepository(db)
	recordRepo := emailrepo.NewRecordRepository(db)
	logRepo := activityrepo.NewLogRepository(db)

	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)

	chat, err := ai.NewChatClient(ctx, ai.Config{
		Provider:          ai.ProviderType(cfg.AIProvider),
		OpenRouterAPIKey:  cfg.OpenRouterAPIKey,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		GeminiAPIKey:      cfg.GeminiAPIKey,
		Timeout:           cfg.LLMTimeout,
	})
	if err != nil {
		log.Fatal("failed to initialize AI provider", zap.String("provider", cfg.AIProvider), zap.Error(err))
	}
	models := ai.NewModelSettings(cfg.ResearchModel, cfg.WriterModel)

	// Use cases
	authUc := authusecase.NewAuthUsecase(userRepo, fcmTokenRepo, cfg)
	workspaceUc := workspaceusecase.NewWorkspaceUsecase(db, workspaceRepo, userRepo)
	connectionUc := connectionusecase.NewConnectionUsecase(db, connectionRepo, gmailService, workspaceUc, cfg.SessionSecret)
	agentUc := agentusecase.NewAgentUsecase(db, agentRepo, workspaceUc, connectionUc)
	emailUc := emailusecase.NewEmailUsecase(recordRepo, connectionUc, workspaceUc)
	activityUc := activityusecase.NewActivityUsecase(logRepo, workspaceUc)
	generationUc := generationusecase.NewGenerationUsecase(generationusecase.Deps{
		Chat:        chat,
		Models:      models,
		Agents:      agentUc,
		Workspaces:  workspaceUc,
		Records:     emailUc,
		Mailer:      connectionUc,
		Connections: connectionUc,
		Activity:    activityUc,
		Crawler:     crawler.New(30 * time.Second),
	})

	// Every signed-in user owns at least one workspace.
	authUc.SetLoginHook(func(ctx context.Context, user *authdomain.User) {
		if _, err := workspaceUc.EnsureDefault(ctx, user); err != nil {
			log.Warn("default workspace provisioning failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	})

	var pusher notification.Pusher
	if cfg.FirebaseCredentials != "" {
		client, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Warn("push notifications disabled", zap.Error(err))
		} else {
			pusher = client
		}
	}
	generationUc.SetNotifier(notification.NewReviewNotifier(workspaceUc, fcmTokenRepo, pusher, connectionUc, cfg.FrontendURL))

	if cfg.GoogleProjectID != "" {
		// Accept a full resource name as well as the short topic id.
		topicName := cfg.SignupTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}

		intake, err := notification.NewService(ctx, cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, generationUc)
		if err != nil {
			log.Error("signup intake disabled", zap.Error(err))
		} else {
			go intake.Start(ctx)
			defer intake.Close()
		}
	} else {
		log.Warn("GOOGLE_PROJECT_ID not configured, signup intake disabled")
	}

	scheduler := maintenance.NewScheduler(db, workspaceUc, connectionUc, userRepo,
		maintenance.WithUsageSchedule(cfg.UsageResetSchedule),
		maintenance.WithSweepSchedule(cfg.ConnectionSweepSchedule),
	)
	if err := scheduler.Start(); err != nil {
		log.Fatal("failed to start maintenance scheduler", zap.Error(err))
	}

	handler := api.NewHandler(authUc, cfg, api.Handlers{
		Workspaces:  workspacedelivery.NewWorkspaceHandler(workspaceUc),
		Agents:      agentdelivery.NewAgentHandler(agentUc),
		Connections: connectiondelivery.NewConnectionHandler(connectionUc, cfg.FrontendURL),
		Emails:      emaildelivery.NewEmailHandler(emailUc),
		Generation:  generationdelivery.NewGenerationHandler(generationUc),
		Activity:    activitydelivery.NewActivityHandler(activityUc),
		Settings:    api.NewSettingsHandler(models),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
	}
}
