package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/database"
	"github.com/kudoai/billing_go_server/internal/pkg/cron"
	"github.com/kudoai/billing_go_server/internal/pkg/notifier"
	"github.com/kudoai/billing_go_server/internal/repository"
	"github.com/kudoai/billing_go_server/internal/service"
)

// 订阅清扫进程：定期把过期订阅清零并给快到期的用户发提醒
func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)

	accountService := service.NewAccountService(db, userRepo, txRepo)
	catalogService := service.NewCatalogService(&cfg.Pricing)
	subscriptionService := service.NewSubscriptionService(db, accountService, catalogService, subRepo, userRepo)

	var notify notifier.Notifier = notifier.NewNoopNotifier()
	if cfg.Telegram.BotToken != "" {
		notify = notifier.NewTelegramNotifier(&cfg.Telegram)
		log.Println("Telegram notifier enabled")
	}

	sweeper := cron.NewService(
		subscriptionService,
		subRepo,
		notify,
		cfg.Sweeper.IntervalMinutes,
		cfg.Sweeper.WarnDaysBefore,
	)
	sweeper.Start()
	log.Println("Sweeper started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	sweeper.Stop()
	log.Println("Sweeper shutdown complete")
}
