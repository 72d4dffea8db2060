package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/DainoJung/brawl-star/internal/alarm"
	"github.com/DainoJung/brawl-star/internal/queue"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	redis          *redis.Client
	queue          *queue.RabbitMqClient
	scheduler      *alarm.Scheduler
	pushConfigured bool
}

func NewHealthHandler(redisClient *redis.Client, queueClient *queue.RabbitMqClient, scheduler *alarm.Scheduler, pushConfigured bool) *HealthHandler {
	return &HealthHandler{
		redis:          redisClient,
		queue:          queueClient,
		scheduler:      scheduler,
		pushConfigured: pushConfigured,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)

	// Check Redis
	if err := h.redis.Ping(ctx).Err(); err == nil {
		checks["redis"] = "healthy"
	} else {
		checks["redis"] = "unhealthy"
	}

	// Check RabbitMQ (optional dependency)
	if h.queue == nil {
		checks["rabbitmq"] = "disabled"
	} else if h.queue.IsConnected() {
		checks["rabbitmq"] = "healthy"
	} else {
		checks["rabbitmq"] = "unhealthy"
	}

	// Check the alarm scheduler loop
	if h.scheduler.Running() {
		checks["scheduler"] = "healthy"
	} else {
		checks["scheduler"] = "unhealthy"
	}

	// Push delivery is degraded, not down, without a signing identity
	if h.pushConfigured {
		checks["push"] = "healthy"
	} else {
		checks["push"] = "degraded"
	}

	// Determine overall status
	overallStatus := "healthy"
	for _, status := range checks {
		if status == "unhealthy" {
			overallStatus = "unhealthy"
			break
		} else if status == "degraded" {
			overallStatus = "degraded"
		}
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    overallStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
		"version":   "1.0.0",
	})
}
