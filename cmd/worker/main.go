package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/database"
	"github.com/kudoai/billing_go_server/internal/pkg/notifier"
	"github.com/kudoai/billing_go_server/internal/pkg/provider"
	"github.com/kudoai/billing_go_server/internal/pkg/pubsub"
	"github.com/kudoai/billing_go_server/internal/pkg/queue"
	"github.com/kudoai/billing_go_server/internal/pkg/session"
	"github.com/kudoai/billing_go_server/internal/repository"
	"github.com/kudoai/billing_go_server/internal/service"
	"github.com/kudoai/billing_go_server/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 Queue 和 Pub/Sub
	taskQueue := queue.NewQueue(rdb, cfg.Queue.TaskQueue)
	publisher := pubsub.NewPublisher(rdb)
	sessions := session.NewStore(rdb)

	// 初始化 Repository 和 Service
	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	accountService := service.NewAccountService(db, userRepo, txRepo)
	pricingService := service.NewPricingService(&cfg.Pricing.Video)
	billingService := service.NewBillingService(accountService, pricingService, userRepo)
	generationService := service.NewGenerationService(billingService, taskRepo, taskQueue, sessions, publisher)

	// 生成服务商
	providers := provider.NewRegistry(
		provider.NewSoraClient(&cfg.Providers.Sora),
		provider.NewVeoClient(&cfg.Providers.Veo),
	)

	// Telegram 通知，未配置 token 时静默
	var notify notifier.Notifier = notifier.NewNoopNotifier()
	if cfg.Telegram.BotToken != "" {
		notify = notifier.NewTelegramNotifier(&cfg.Telegram)
		log.Println("Telegram notifier enabled")
	}

	// 任务处理器和轮询器
	processor := worker.NewProcessor(taskRepo, generationService, providers, publisher, notify, cfg)
	poller := worker.NewPoller(taskRepo, generationService, providers, processor, cfg)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	// 轮询：已派发任务的状态、超时任务、卡在 requested 的任务
	go poller.Run(ctx)

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					// 从队列获取任务
					msg, err := taskQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop task: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: processing task %d", workerID, msg.TaskID)
					if err := processor.Process(ctx, msg); err != nil {
						log.Printf("Worker %d: task %d failed: %v", workerID, msg.TaskID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
