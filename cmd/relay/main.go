package main

import (
	"TradeTalk/internal/ai"
	"TradeTalk/internal/config"
	"TradeTalk/internal/prompt"
	"TradeTalk/internal/relay"
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg := config.NewConfig()

	logger := newLogger(cfg.DebugMode)
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	sugar.Infow(
		"Starting relay",
		"DebugMode", cfg.DebugMode,
		"provider", cfg.Relay.Provider,
		"providerTimeout", cfg.Relay.ProviderTimeout.String(),
	)

	client, err := ai.New(cfg, &http.Client{}, sugar)
	if err != nil {
		sugar.Fatalw("Failed to create generation client", "error", err)
	}
	if cfg.Relay.Provider == config.ProviderGemini && cfg.Gemini.Auth == config.GeminiAuthAPIKey && cfg.Gemini.APIKey == "" {
		// Не фатально: каждый вызов вернёт ConfigurationFailure.
		sugar.Warnw("GEMINI_API_KEY is not set, every relay call will fail with internal_error")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := relay.NewMetrics(reg)

	pipeline := relay.NewPipeline(
		prompt.NewAssembler(cfg.Generation.Settings()),
		client,
		cfg.Relay.ProviderTimeout,
		metrics,
		sugar,
	)
	server := relay.NewServer(
		cfg.Relay,
		relay.NewHandler(pipeline, cfg.Relay.MaxBodyBytes, sugar),
		relay.NewSessionHandler(pipeline, cfg.Client.HistoryWindow, metrics, sugar),
		reg,
		sugar,
	)

	// Graceful shutdown on Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		sugar.Fatalw("Failed to start relay", "error", err)
	}
	sugar.Infow("Relay ready", "url", "http://"+server.Addr()+cfg.Relay.Path)
	<-ctx.Done()
	// Stop ждёт ту же остановку, что запущена отменой ctx внутри сервера.
	if err := server.Stop(context.Background()); err != nil {
		sugar.Errorw("Relay shutdown error", "error", err)
	}
}

func newLogger(debug bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
