package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/gogo/therapy/internal/adapter/llm"
	"github.com/xiaot623/gogo/therapy/internal/config"
	"github.com/xiaot623/gogo/therapy/internal/dispatch"
	"github.com/xiaot623/gogo/therapy/internal/logging"
	"github.com/xiaot623/gogo/therapy/internal/pipeline"
	"github.com/xiaot623/gogo/therapy/internal/policy"
	"github.com/xiaot623/gogo/therapy/internal/repository"
	"github.com/xiaot623/gogo/therapy/internal/service"
	"github.com/xiaot623/gogo/therapy/internal/stream"
	handler "github.com/xiaot623/gogo/therapy/internal/transport/http"
	"github.com/xiaot623/gogo/therapy/internal/transport/rpc"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Output: os.Stderr,
		Pretty: cfg.LogPretty,
	})

	logging.Info().
		Int("http_port", cfg.HTTPPort).
		Int("internal_port", cfg.InternalPort).
		Int("rpc_port", cfg.RPCPort).
		Str("database", cfg.DatabaseURL).
		Str("llm_provider", cfg.LLMProvider).
		Msg("starting therapy orchestrator")

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer db.Close()

	// Initialize model client and stages
	llmClient := llm.NewLLMClient(cfg.LLMProvider, cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ResponseTimeout)
	analyzer := pipeline.NewLLMAnalyzer(llmClient, cfg.AnalysisModel, cfg.AnalysisTimeout)
	responder := pipeline.NewLLMResponder(llmClient, pipeline.ResponderConfig{
		Model:      cfg.ResponseModel,
		Timeout:    cfg.ResponseTimeout,
		MaxRetries: cfg.LLMMaxRetries,
	})

	// Initialize policy engine
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize policy engine")
	}

	// Live stream hub and event dispatcher
	hub := stream.NewHub()
	go hub.Run(ctx)

	dispatcher, err := dispatch.New(dispatch.NewHubSink(hub))
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize event dispatcher")
	}
	if webhook := dispatch.NewWebhookSink(cfg.EventWebhookURL, cfg.EventWebhookTimeout); webhook != nil {
		dispatcher.AddSink(webhook)
		logging.Info().Str("url", cfg.EventWebhookURL).Msg("event webhook enabled")
	}
	go dispatcher.Run(ctx)

	// Initialize service
	svc := service.New(db, analyzer, responder, policyEngine, dispatcher, cfg)

	streamServer := stream.NewServer(stream.Config{
		PingInterval: cfg.WSPingInterval,
		WriteTimeout: cfg.WSWriteTimeout,
		ReadTimeout:  cfg.WSReadTimeout,
	}, hub)

	externalServer := handler.NewExternalServer(svc, streamServer)
	internalServer := handler.NewInternalServer(svc)
	rpcServer, err := rpc.NewServer(svc)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize RPC server")
	}

	// Start external server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := externalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("failed to start external server")
		}
	}()

	// Start internal server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.InternalPort)
		if err := internalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("failed to start internal server")
		}
	}()

	// Start RPC server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.RPCPort)
		if err := rpcServer.Start(addr); err != nil {
			logging.Fatal().Err(err).Msg("failed to start RPC server")
		}
	}()

	logging.Info().Msg("therapy orchestrator started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down therapy orchestrator")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("failed to shutdown external server gracefully")
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("failed to shutdown internal server gracefully")
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("failed to shutdown RPC server gracefully")
	}

	stop()
	if err := dispatcher.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close event dispatcher")
	}

	logging.Info().Msg("therapy orchestrator stopped")
}
