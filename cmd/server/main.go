package main

import (
	"context"
	"fmt"
	"log"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/api"
	"github.com/kudoai/billing_go_server/internal/api/handler"
	"github.com/kudoai/billing_go_server/internal/database"
	"github.com/kudoai/billing_go_server/internal/pkg/payment"
	"github.com/kudoai/billing_go_server/internal/pkg/pubsub"
	"github.com/kudoai/billing_go_server/internal/pkg/queue"
	"github.com/kudoai/billing_go_server/internal/pkg/session"
	"github.com/kudoai/billing_go_server/internal/pkg/ws"
	"github.com/kudoai/billing_go_server/internal/repository"
	"github.com/kudoai/billing_go_server/internal/service"
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

	// 初始化 Queue / Pub-Sub / Session
	taskQueue := queue.NewQueue(rdb, cfg.Queue.TaskQueue)
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)
	sessions := session.NewStore(rdb)

	// 初始化 WebSocket Hub，订阅任务进度并转发给在线用户
	wsHub := ws.NewHub()
	go wsHub.RunProgressRelay(context.Background(), subscriber)
	log.Println("WebSocket hub started")

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// 初始化 Service
	accountService := service.NewAccountService(db, userRepo, txRepo)
	pricingService := service.NewPricingService(&cfg.Pricing.Video)
	catalogService := service.NewCatalogService(&cfg.Pricing)
	billingService := service.NewBillingService(accountService, pricingService, userRepo)
	subscriptionService := service.NewSubscriptionService(db, accountService, catalogService, subRepo, userRepo)
	statsService := service.NewStatsService(txRepo)
	generationService := service.NewGenerationService(billingService, taskRepo, taskQueue, sessions, publisher)
	gateway := payment.NewClient(&cfg.Payment)
	paymentService := service.NewPaymentService(accountService, subscriptionService, catalogService, txRepo, userRepo, gateway)

	// 初始化 Handler
	balanceHandler := handler.NewBalanceHandler(accountService, billingService, statsService)
	taskHandler := handler.NewTaskHandler(generationService)
	paymentHandler := handler.NewPaymentHandler(paymentService, subscriptionService, &cfg.Pricing)
	webhookHandler := handler.NewWebhookHandler(paymentService, generationService)
	adminHandler := handler.NewAdminHandler(accountService, userRepo, &cfg.JWT)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins)

	// 初始化 Router
	router := api.NewRouter(
		balanceHandler,
		taskHandler,
		paymentHandler,
		webhookHandler,
		adminHandler,
		websocketHandler,
		userRepo,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
