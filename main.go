package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gateway/internal/broker"
	"gateway/internal/config"
	"gateway/internal/gateway"
	"gateway/internal/heartbeat"
	"gateway/internal/models"
	"gateway/internal/permissions"
	"gateway/internal/queue"
	"gateway/internal/registry"
	"gateway/internal/repository"
	"gateway/internal/server"
)

const moduleVersion = "4.0.0"

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	chatRepo := repository.NewChatRepository(db, logger)
	instanceRepo := repository.NewInstanceRepository(db, logger)
	moduleRepo := repository.NewModuleRepository(db, logger)

	// Register this instance; the record is the heartbeat other services see.
	instance := &models.Instance{
		InstanceID: uuid.NewString(),
		ModuleID:   "telegram-gateway",
		Version:    moduleVersion,
		StartedAt:  time.Now().UTC(),
		Status:     models.InstanceStartup,
	}
	if err := instanceRepo.RegisterInstance(instance); err != nil {
		logger.Fatal("Failed to register instance", zap.Error(err))
	}
	logger.Info("Instance registered", zap.String("instance_id", instance.InstanceID))

	// Platform client
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal("Failed to create Telegram client", zap.Error(err))
	}
	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	// Broker connection
	bus, err := broker.Connect(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to broker", zap.Error(err))
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Outbound side: per-destination queues feeding the action executor.
	executor := queue.NewExecutor(api, logger)
	queues := queue.NewManager(queue.ManagerConfig{
		ControlChatID:   cfg.Telegram.ControlChatID,
		GroupCapacity:   cfg.Queues.GroupPerMinute,
		PrivateCapacity: cfg.Queues.PrivatePerMinute,
		Tick:            time.Duration(cfg.Queues.TickMillis) * time.Millisecond,
	}, executor, logger)

	// Inbound side: permission cache, chat registry, dispatcher.
	perms := permissions.NewCache(api, api.Self.ID, logger)
	chats := registry.New()
	known, err := chatRepo.GetAllChats()
	if err != nil {
		logger.Fatal("Failed to load registered chats", zap.Error(err))
	}
	for _, chat := range known {
		chats.Set(chat)
		if chat.Status == models.ChatActive {
			queues.EnsureGroupQueue(chat)
		}
	}
	logger.Info("Chat registry loaded", zap.Int("chats", chats.Len()))

	routes := gateway.LoadRoutes(moduleRepo, logger)
	dispatcher := gateway.NewDispatcher(api, bus, chats, perms, chatRepo, queues, routes, gateway.Settings{
		ControlChatID:   cfg.Telegram.ControlChatID,
		CommandPrefix:   cfg.Telegram.DefaultCommandPrefix,
		LegacyMigration: cfg.Telegram.LegacyMigration,
		LegacyChats:     cfg.Telegram.LegacyChats,
		ChatDefaults:    cfg.ChatDefaults,
		UpdateWorkers:   cfg.Telegram.UpdateWorkers,
	}, logger)

	// Consume outbound instructions and fanout control messages.
	if err := bus.Consume(ctx, cfg.RabbitMQ.ResultsQueue, dispatcher.HandleResult); err != nil {
		logger.Fatal("Failed to consume results queue", zap.Error(err))
	}
	if err := bus.Consume(ctx, cfg.RabbitMQ.FanoutQueue, dispatcher.HandleFanout); err != nil {
		logger.Fatal("Failed to consume fanout queue", zap.Error(err))
	}

	// Update stream
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(ctx, updates)
	}()

	if cfg.UptimeMonitor.URL != "" {
		hb := heartbeat.New(cfg.UptimeMonitor.URL, time.Duration(cfg.UptimeMonitor.Seconds)*time.Second, logger)
		go hb.Run(ctx)
	}

	ops := server.NewServer(instance, chats, queues, logger)
	go func() {
		if err := ops.Run(":" + cfg.Server.Port); err != nil {
			logger.Error("Ops server stopped", zap.Error(err))
		}
	}()

	instance.Status = models.InstanceOperational
	if err := instanceRepo.UpdateInstance(instance); err != nil {
		logger.Warn("Failed to mark instance operational", zap.Error(err))
	}
	logger.Info("Gateway is operational")

	<-ctx.Done()
	logger.Info("Shutting down")

	api.StopReceivingUpdates()
	<-dispatcherDone

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := queues.Shutdown(drainCtx); err != nil {
		logger.Warn("Queue drain incomplete", zap.Error(err))
	}

	now := time.Now().UTC()
	instance.Status = models.InstanceStopped
	instance.StoppedAt = &now
	if err := instanceRepo.UpdateInstance(instance); err != nil {
		logger.Warn("Failed to mark instance stopped", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
