package main

import (
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/edgard/chatpulse/internal/analytics"
	"github.com/edgard/chatpulse/internal/bot"
	"github.com/edgard/chatpulse/internal/bot/handlers"
	"github.com/edgard/chatpulse/internal/bot/tasks"
	"github.com/edgard/chatpulse/internal/config"
	"github.com/edgard/chatpulse/internal/database"
	"github.com/edgard/chatpulse/internal/ingest"
	"github.com/edgard/chatpulse/internal/logger"
	"github.com/edgard/chatpulse/internal/telegram"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot until interrupted (default)",
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

func openStore(cfg *config.Config, log *slog.Logger) (*database.DB, database.Store, error) {
	db, err := database.NewDB(cfg.Database.Path, database.Options{
		ReaderConns: cfg.Database.ReaderConns,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	return db, database.NewStore(db, log), nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := slog.Default()

	db, store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer database.CloseDB(db)

	sink := ingest.MultiSink{
		ingest.LogSink{Logger: log.With("component", "dead_letters")},
		ingest.NewStoreSink(store, log, cfg.Database.OperationTimeout),
	}
	pipeline := ingest.NewPipeline(store, sink, log, ingest.Options{
		Workers:     cfg.Ingest.Workers,
		QueueSize:   cfg.Ingest.QueueSize,
		StepTimeout: cfg.Ingest.StepTimeout,
	})

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Ingestor: pipeline,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), handlers.IngestMiddleware(hDeps)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
		tgbot.WithAllowedUpdates(tgbot.AllowedUpdates{"message"}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		return err
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	hDeps.Analytics = analytics.NewService(store, telegram.NewResolver(store, tg, log), log, analytics.Options{
		TopLimit:     cfg.Stats.TopLimit,
		FriendsLimit: cfg.Stats.FriendsLimit,
		Location:     cfg.Stats.Location(),
	})

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}
	telegram.PublishCommands(ctx, tg, log, cmdHandlers)

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{Logger: log, Store: store, Config: cfg})
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, cfg.Stats.Location(), taskMap)
	if err != nil {
		return err
	}

	log.Info("Starting bot...")
	runErr := bot.NewBot(log, tg, pipeline, sched).Run(ctx)
	if runErr != nil {
		return fmt.Errorf("bot stopped: %w", runErr)
	}

	log.Info("Bot stopped gracefully")
	// let buffered log output reach stdout
	time.Sleep(100 * time.Millisecond)
	return nil
}
