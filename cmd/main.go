package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/DainoJung/brawl-star/internal/alarm"
	"github.com/DainoJung/brawl-star/internal/config"
	"github.com/DainoJung/brawl-star/internal/handlers"
	"github.com/DainoJung/brawl-star/internal/middleware"
	"github.com/DainoJung/brawl-star/internal/push"
	"github.com/DainoJung/brawl-star/internal/queue"
	"github.com/DainoJung/brawl-star/internal/store"
	"github.com/DainoJung/brawl-star/pkg/logger"
	"github.com/DainoJung/brawl-star/pkg/redis"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", err)
	}

	zlog, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to initialize logger", err)
	}
	defer zlog.Sync()

	if !cfg.HasVAPIDKeys() {
		zlog.Warn("VAPID keys are not configured, push delivery will fail until they are set")
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		zlog.Fatal("invalid scheduler timezone", zap.String("timezone", cfg.Scheduler.Timezone), zap.Error(err))
	}

	redisClient, err := redis.InitRedis(cfg.Redis)
	if err != nil {
		zlog.Fatal("failed to connect to redis", zap.Error(err))
	}
	zlog.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	var events alarm.EventPublisher
	var rabbitClient *queue.RabbitMqClient
	if cfg.RabbitMQ.URL != "" {
		rabbitClient, err = queue.NewRabbitMqService(cfg.RabbitMQ)
		if err != nil {
			zlog.Warn("failed to connect to rabbitmq, alarm event feed disabled", zap.Error(err))
		} else {
			defer rabbitClient.CloseConnection()
			events = rabbitClient
			zlog.Info("rabbitmq connected", zap.String("exchange", cfg.RabbitMQ.Exchange))
		}
	}

	subscriptions := store.NewSubscriptionStore(redisClient)
	medicines := store.NewMedicineStore(redisClient)
	dispatcher := push.NewDispatcher(subscriptions, cfg.Push, zlog)
	scheduler := alarm.NewScheduler(medicines, dispatcher, events, loc, cfg.Scheduler.MaxConcurrent, zlog)

	pushHandler := handlers.NewPushHandler(subscriptions, dispatcher, cfg.Push.VAPIDPublicKey, zlog)
	medicineHandler := handlers.NewMedicineHandler(medicines, zlog)
	healthHandler := handlers.NewHealthHandler(redisClient, rabbitClient, scheduler, cfg.HasVAPIDKeys())

	r := gin.Default()
	r.Use(middleware.CorrelationID())

	r.GET("/health", healthHandler.HealthCheck)

	api := r.Group("/api")
	api.GET("/push/vapid-public-key", pushHandler.GetVAPIDPublicKey)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	{
		protected.POST("/push/subscribe", pushHandler.Subscribe)
		protected.POST("/push/unsubscribe", pushHandler.Unsubscribe)
		protected.POST("/push/test", pushHandler.TestPush)

		protected.GET("/medicines", medicineHandler.List)
		protected.POST("/medicines", medicineHandler.Create)
		protected.GET("/medicines/:id", medicineHandler.Get)
		protected.PATCH("/medicines/:id", medicineHandler.Update)
		protected.DELETE("/medicines/:id", medicineHandler.Delete)
	}

	scheduler.Start()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		zlog.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
	}

	// Stop the alarm loop last so an in-flight tick finishes before exit.
	scheduler.Stop()
}
