package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"Shop-Telegram-bot/config"
	"Shop-Telegram-bot/internal/admin"
	"Shop-Telegram-bot/internal/bot"
	"Shop-Telegram-bot/internal/chat"
	"Shop-Telegram-bot/internal/db"
	"Shop-Telegram-bot/internal/engine"
	"Shop-Telegram-bot/internal/logger"
	"Shop-Telegram-bot/internal/reconciler"
	"Shop-Telegram-bot/internal/throttle"
	"Shop-Telegram-bot/internal/watcher"
)

func main() {
	config.LoadConfig()
	db.InitDB()
	admin.Init(config.AppCfg.AdminIDs)

	botapi, err := tgbotapi.NewBotAPI(config.AppCfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	logger.InitNotifier(botapi, config.AppCfg.AdminGroup)

	// Log to file and console.
	logFile, err := os.OpenFile("bot.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	// One cooperative cancellation signal for every background loop.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := chat.NewBot(botapi)
	registry := throttle.NewRegistry()

	eng := engine.New(client, registry)
	eng.AdminGroup = config.AppCfg.AdminGroup
	eng.VouchChannel = config.AppCfg.VouchChannel
	eng.SupportURL = config.AppCfg.SupportURL
	eng.FallbackBTC = config.AppCfg.BTCAddress
	eng.FallbackLTC = config.AppCfg.LTCAddress

	// Blockchain watcher with ordered provider fall-back chains.
	w := watcher.New(client, registry, config.AppCfg.AdminGroup,
		time.Duration(config.AppCfg.BlockchainCheckIntervalMs)*time.Millisecond)
	w.BTCProviders = []watcher.Provider{
		&watcher.EsploraProvider{ProviderName: "blockstream", BaseURL: config.AppCfg.BlockstreamURL},
		&watcher.EsploraProvider{ProviderName: "mempool", BaseURL: config.AppCfg.MempoolURL},
		&watcher.BlockchairProvider{BaseURL: config.AppCfg.BlockchairURL, Chain: "bitcoin", APIKey: config.AppCfg.BlockchairAPIKey},
	}
	w.LTCProviders = []watcher.Provider{
		&watcher.BlockchairProvider{BaseURL: config.AppCfg.BlockchairURL, Chain: "litecoin", APIKey: config.AppCfg.BlockchairAPIKey},
		&watcher.BlockcypherProvider{BaseURL: config.AppCfg.BlockcypherURL, APIKey: config.AppCfg.BlockcypherAPIKey},
	}
	if err := w.LoadAddresses(); err != nil {
		logger.Error("failed to load watched addresses", zap.Error(err))
	}
	go w.Run(ctx)

	rec := reconciler.New(client, config.AppCfg.BatchSize,
		time.Duration(config.AppCfg.BatchPauseMs)*time.Millisecond,
		config.AppCfg.ProgressEditInterval)

	adminHandler := &admin.Handler{
		Chat:       client,
		Engine:     eng,
		Reconciler: rec,
		AdminGroup: config.AppCfg.AdminGroup,
	}

	// Nightly directory reconciliation.
	loc, err := time.LoadLocation(config.AppCfg.MergerTimezone)
	if err != nil {
		log.Fatalf("Bad MERGER_TIMEZONE: %v", err)
	}
	c := cron.New(cron.WithLocation(loc))
	c.AddFunc(config.AppCfg.MergerCron, func() {
		defer logger.NotifyOnPanic("scheduled merger")
		report, err := rec.Run(ctx, config.AppCfg.AdminGroup)
		if err != nil {
			logger.Error("scheduled reconciliation failed", zap.Error(err))
			return
		}
		logger.Info("scheduled reconciliation done", zap.String("run_id", report.RunID))
	})
	c.Start()
	defer c.Stop()

	router := &bot.Router{
		Chat:     client,
		Engine:   eng,
		Registry: registry,
		Admin:    adminHandler,
	}
	bot.StartBotWithInstance(ctx, botapi, router)
}
