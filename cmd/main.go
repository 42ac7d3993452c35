package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/adapters"
	"github.com/satriahrh/echocoach/adapters/llm"
	mongoadapter "github.com/satriahrh/echocoach/adapters/mongo"
	"github.com/satriahrh/echocoach/adapters/postgres"
	"github.com/satriahrh/echocoach/adapters/stt"
	"github.com/satriahrh/echocoach/adapters/tts"
	"github.com/satriahrh/echocoach/domain/repositories"
	"github.com/satriahrh/echocoach/internal/api"
	"github.com/satriahrh/echocoach/internal/auth"
	"github.com/satriahrh/echocoach/internal/config"
	"github.com/satriahrh/echocoach/internal/metrics"
	"github.com/satriahrh/echocoach/internal/phonetics"
	"github.com/satriahrh/echocoach/internal/websocket"
	"github.com/satriahrh/echocoach/usecase"
)

func main() {
	// A missing .env is fine; the process environment still applies
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	// Initialize adapters
	coach, err := newCoach(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize coach", zap.Error(err))
	}

	conversationRepo, closeRepo, err := newConversationRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize conversation storage", zap.Error(err))
	}
	defer closeRepo()

	var speechToText repositories.SpeechToText
	if cfg.LiveTranscriptEnabled {
		speechToText = stt.NewGoogleSpeechToText(logger)
		logger.Info("Live transcripts enabled", zap.String("language", cfg.LiveTranscriptLanguage))
	}

	var synthesizer api.Synthesizer
	if cfg.ElevenLabsAPIKey != "" {
		elevenLabs, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.ElevenLabsVoiceID,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize text to speech", zap.Error(err))
		}
		synthesizer = elevenLabs
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("JWT_SECRET is not set; tokens will not survive a restart")
	}
	issuer, err := auth.NewIssuer(secret)
	if err != nil {
		logger.Fatal("Failed to initialize token issuer", zap.Error(err))
	}

	catalog, err := phonetics.Default()
	if err != nil {
		logger.Fatal("Failed to load phonetics catalog", zap.Error(err))
	}

	// Initialize usecase services
	analysisService := usecase.NewAnalysisService(coach, m, logger)
	conversationService := usecase.NewConversationService(conversationRepo, coach, m, logger)

	cleanupService := usecase.NewConversationCleanupService(conversationRepo, cfg.ConversationCleanupPeriod, m, logger)
	cleanupService.Start()
	defer cleanupService.Stop()

	hub := websocket.NewHub(analysisService, conversationService, issuer, m, websocket.HubConfig{
		CoachTimeout:       cfg.CoachTimeout,
		SpeechToText:       speechToText,
		TranscriptLanguage: cfg.LiveTranscriptLanguage,
	}, logger)
	go hub.Run(ctx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Hub:           hub,
		Issuer:        issuer,
		Analyzer:      analysisService,
		Conversations: conversationService,
		Catalog:       catalog,
		Speech:        synthesizer,
		Logger:        logger,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("coach", cfg.CoachProvider),
		zap.String("storage", cfg.StorageBackend))

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newCoach(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Coach, error) {
	if cfg.CoachProvider == config.CoachProviderMock {
		logger.Warn("Using mock coach; feedback is canned")
		return llm.NewMockCoach(), nil
	}

	temperature := cfg.GeminiTemperature
	coach, err := llm.NewGeminiCoach(ctx, llm.GeminiConfig{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.GeminiModel,
		Temperature: &temperature,
	}, logger)
	if err != nil {
		return nil, err
	}
	return coach, nil
}

// newConversationRepository returns the configured store and a func that releases it
func newConversationRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.ConversationRepository, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageMongo:
		client, err := mongoadapter.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Error("Failed to close MongoDB connection", zap.Error(err))
			}
		}
		return mongoadapter.NewConversationRepository(client.Database, logger), closeFn, nil

	case config.StoragePostgres:
		repo, err := postgres.NewConversationRepository(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := repo.Close(); err != nil {
				logger.Error("Failed to close PostgreSQL pool", zap.Error(err))
			}
		}
		return repo, closeFn, nil

	default:
		return adapters.NewMemoryConversationRepository(), func() {}, nil
	}
}
