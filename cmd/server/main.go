package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accountsystem/internal/config"
	"accountsystem/internal/handler"
	"accountsystem/internal/infrastructure/cache"
	"accountsystem/internal/infrastructure/database"
	"accountsystem/internal/infrastructure/lock"
	"accountsystem/internal/infrastructure/mq"
	"accountsystem/internal/job"
	"accountsystem/internal/logger"
	"accountsystem/internal/repository"
	"accountsystem/internal/service"
	"accountsystem/pkg/idgen"

	"github.com/gin-gonic/gin"
)

func main() {
	log := logger.New(os.Stdout)

	// 加载配置
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.WithError(err).Fatal("加载配置失败")
	}
	gin.SetMode(cfg.Server.Mode)

	// 初始化 ID 生成器
	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		log.WithError(err).Fatal("初始化 ID 生成器失败")
	}

	// 初始化 MySQL
	db, err := database.InitMySQL(&cfg.MySQL, log)
	if err != nil {
		log.WithError(err).Fatal("初始化 MySQL 失败")
	}
	store := repository.NewDBStore(db)

	// 账户锁：多实例部署用 Redis，单实例可用进程内锁
	var locker lock.Locker
	switch cfg.Lock.Backend {
	case config.LockBackendRedis:
		redisClient, err := cache.InitRedis(&cfg.Redis, log)
		if err != nil {
			log.WithError(err).Fatal("初始化 Redis 失败")
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.Lock.Expiration, cfg.Lock.RetryInterval, cfg.Lock.MaxRetries)
	default:
		locker = lock.NewLocalLocker()
	}

	// 初始化 Kafka
	producer, err := mq.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.WithError(err).Fatal("初始化 Kafka 失败")
	}
	defer producer.Close()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(
		store.Outbox(),
		producer,
		log,
		cfg.Business.OutboxInterval,
		cfg.Business.OutboxBatchSize,
		cfg.Business.MaxRetryCount,
	)
	go outboxSender.Start(ctx)

	accountService := service.NewAccountService(store, locker, log)
	transactionService := service.NewTransactionService(store, locker, log, cfg.Kafka.Topic.TransactionResult)

	// 设置路由
	router := handler.SetupRouter(handler.NewHandler(accountService, transactionService, log))

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("服务启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("服务启动失败")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("服务关闭异常")
	}

	log.Info("服务已关闭")
}
