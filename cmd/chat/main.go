package main

import (
	"TradeTalk/internal/adapter/relayclient"
	"TradeTalk/internal/app/chat"
	"TradeTalk/internal/config"
	"TradeTalk/internal/service/image"
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	cfg := config.NewConfig()

	// Лог в stderr, чтобы не мешать диалогу в stdout.
	zcfg := zap.NewDevelopmentConfig()
	if !cfg.DebugMode {
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	identity := chat.NewIdentity(cfg.Client.UserID, cfg.Client.UserEmail, func(context.Context) error {
		// Сессию держит внешний провайдер, локально только забываем пользователя.
		sugar.Infow("Sign-out requested", "user", cfg.Client.UserID)
		return nil
	})

	if identity.Anonymous() {
		sugar.Warnw("No user identity configured, chatting as guest", "hint", "set USER_ID or USER_EMAIL")
	}

	app := chat.New(
		relayclient.New(cfg.Client.RelayURL, cfg.Client.RelayTimeout, sugar),
		image.NewEncoder(),
		identity,
		chat.Options{HistoryWindow: cfg.Client.HistoryWindow},
		os.Stdin,
		os.Stdout,
		sugar,
	)
	if err := app.Run(ctx); err != nil {
		sugar.Errorw("Chat stopped with error", "error", err)
		os.Exit(1)
	}
}
