package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"grounded-chat/internal/agent"
	"grounded-chat/internal/config"
	apihttp "grounded-chat/internal/http"
	"grounded-chat/internal/repository"
	"grounded-chat/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	agentClient, err := agent.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiThinkingBudget)
	if err != nil {
		logger.Fatal("agent client init", zap.Error(err))
	}

	sessionRepo := repository.NewMemorySessionRepository()
	attachmentSvc := service.NewAttachmentService()
	conversationSvc := service.NewConversationService(logger, sessionRepo, agentClient, attachmentSvc)

	chatHandler := apihttp.NewChatHandler(logger, conversationSvc, attachmentSvc)
	router := apihttp.NewRouter(logger, chatHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("model", cfg.GeminiModel))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
