package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/somiapp/somi-core/adapters/backend"
	"github.com/somiapp/somi-core/adapters/llm"
	"github.com/somiapp/somi-core/adapters/mongo"
	"github.com/somiapp/somi-core/adapters/stt"
	"github.com/somiapp/somi-core/adapters/tts"
	"github.com/somiapp/somi-core/domain/repositories"
	"github.com/somiapp/somi-core/internal/api"
	"github.com/somiapp/somi-core/internal/auth"
	"github.com/somiapp/somi-core/internal/config"
	"github.com/somiapp/somi-core/internal/turn"
	"github.com/somiapp/somi-core/internal/websocket"
	"github.com/somiapp/somi-core/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	backendClient, err := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendURL,
		APIKey:  cfg.BackendAPIKey,
		Timeout: cfg.BackendTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create backend client", zap.Error(err))
	}

	ctx := context.Background()

	transcriber, err := buildTranscriber(ctx, cfg, backendClient, logger)
	if err != nil {
		logger.Fatal("Failed to create transcriber", zap.Error(err))
	}
	responder, err := buildResponder(ctx, cfg, backendClient, logger)
	if err != nil {
		logger.Fatal("Failed to create responder", zap.Error(err))
	}
	synthesizer, err := buildSynthesizer(cfg, backendClient, logger)
	if err != nil {
		logger.Fatal("Failed to create synthesizer", zap.Error(err))
	}
	var conversationRepo repositories.ConversationRepository = backendClient
	if cfg.ConversationProvider == config.ProviderMongo {
		mongoClient, err := mongo.NewClient(mongo.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer mongoClient.Close(context.Background())
		conversationRepo = mongo.NewConversationRepository(mongoClient.Database)
	}

	tokenIssuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to create token issuer", zap.Error(err))
	}

	services := turn.Services{
		Transcriber:   transcriber,
		Emotions:      backendClient,
		Responder:     responder,
		Synthesizer:   synthesizer,
		Conversations: conversationRepo,
	}
	turnConfig := turn.Config{
		MaxCaptureSeconds:       cfg.MaxCaptureSeconds,
		ResponseDisplayDelay:    cfg.ResponseDisplayDelay,
		RemoteTimeout:           cfg.BackendTimeout,
		MinTranscriptConfidence: cfg.MinTranscriptConfidence,
		NoSpeechArtifacts:       cfg.NoSpeechArtifacts,
		Language:                cfg.Language,
		RepromptText:            cfg.RepromptText,
	}

	conversations := usecase.NewConversationService(conversationRepo, logger)

	hub := websocket.NewHub(services, turnConfig, conversations, logger)
	go hub.Run()

	reaper := websocket.NewIdleReaper(hub, cfg.MaxIdle, logger)
	reaper.Start()
	defer reaper.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Deps{
		Hub:          hub,
		TokenIssuer:  tokenIssuer,
		Guardians:    backendClient,
		ClientSecret: cfg.ClientSecret,
		Logger:       logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("transcriber", cfg.TranscriberProvider),
		zap.String("responder", cfg.ResponderProvider),
		zap.String("synthesizer", cfg.SynthesizerProvider),
		zap.String("conversations", cfg.ConversationProvider))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func buildTranscriber(ctx context.Context, cfg *config.Config, backendClient *backend.Client, logger *zap.Logger) (repositories.Transcriber, error) {
	switch cfg.TranscriberProvider {
	case config.ProviderGoogle:
		transcriber, err := stt.NewGoogleTranscriber(ctx, logger)
		if err != nil {
			return nil, err
		}
		return transcriber, nil
	default:
		return backendClient, nil
	}
}

func buildResponder(ctx context.Context, cfg *config.Config, backendClient *backend.Client, logger *zap.Logger) (repositories.ResponseGenerator, error) {
	switch cfg.ResponderProvider {
	case config.ProviderGemini:
		responder, err := llm.NewGeminiResponder(ctx, llm.GeminiConfig{APIKey: cfg.GeminiAPIKey}, logger)
		if err != nil {
			return nil, err
		}
		return responder, nil
	case config.ProviderOpenAI:
		responder, err := llm.NewOpenAIResponder(llm.OpenAIConfig{APIKey: cfg.OpenAIAPIKey}, logger)
		if err != nil {
			return nil, err
		}
		return responder, nil
	default:
		return backendClient, nil
	}
}

func buildSynthesizer(cfg *config.Config, backendClient *backend.Client, logger *zap.Logger) (repositories.Synthesizer, error) {
	switch cfg.SynthesizerProvider {
	case config.ProviderElevenLabs:
		synthesizer, err := tts.NewElevenLabsSynthesizer(tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.ElevenLabsVoiceID,
		}, logger)
		if err != nil {
			return nil, err
		}
		return synthesizer, nil
	default:
		return backendClient, nil
	}
}
