package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/DainoJung/brawl-star/internal/models"
	"github.com/DainoJung/brawl-star/internal/push"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SubscriptionRegistry is the registry surface the push API exposes.
type SubscriptionRegistry interface {
	Upsert(ctx context.Context, endpoint, userID, p256dh, auth string) error
	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	RemoveByUserAndEndpoint(ctx context.Context, userID, endpoint string) error
}

// UserSender performs the ad-hoc test dispatch.
type UserSender interface {
	SendToUser(ctx context.Context, userID, title, body string, payload models.AlarmPayload, tag string) (models.DispatchResult, error)
}

type PushHandler struct {
	registry  SubscriptionRegistry
	sender    UserSender
	publicKey string
	log       *zap.Logger
}

func NewPushHandler(registry SubscriptionRegistry, sender UserSender, vapidPublicKey string, log *zap.Logger) *PushHandler {
	return &PushHandler{
		registry:  registry,
		sender:    sender,
		publicKey: vapidPublicKey,
		log:       log.Named("push_handler"),
	}
}

// GetVAPIDPublicKey hands the frontend the key it needs to create a
// subscription.
func (h *PushHandler) GetVAPIDPublicKey(c *gin.Context) {
	if h.publicKey == "" {
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "VAPID keys are not configured",
			Message: "Push notifications unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.publicKey})
}

func (h *PushHandler) Subscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}

	err := h.registry.Upsert(
		c.Request.Context(),
		req.Subscription.Endpoint,
		req.UserID,
		req.Subscription.Keys.P256dh,
		req.Subscription.Keys.Auth,
	)
	if err != nil {
		h.log.Error("failed to register subscription", zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to store subscription",
			Message: "Internal Server Error",
		})
		return
	}

	h.log.Info("subscription registered", zap.String("user_id", req.UserID))
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Push subscription registered",
	})
}

func (h *PushHandler) Unsubscribe(c *gin.Context) {
	var req models.UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}

	if err := h.registry.RemoveByUserAndEndpoint(c.Request.Context(), req.UserID, req.Endpoint); err != nil {
		h.log.Error("failed to remove subscription", zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to remove subscription",
			Message: "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Push subscription removed",
	})
}

// TestPush is the operational entry point: one ad-hoc send to every
// device of one user, outside the scheduler's tick cycle.
func (h *PushHandler) TestPush(c *gin.Context) {
	var req models.TestPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}
	if req.Title == "" {
		req.Title = "💊 복약 시간입니다!"
	}
	if req.Body == "" {
		req.Body = "약을 복용해주세요."
	}

	ctx := c.Request.Context()
	subs, err := h.registry.ListByUser(ctx, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to list subscriptions",
			Message: "Internal Server Error",
		})
		return
	}
	if len(subs) == 0 {
		c.JSON(http.StatusNotFound, models.APIResponse{
			Success: false,
			Error:   "no push subscriptions registered",
			Message: "Not Found",
		})
		return
	}

	result, err := h.sender.SendToUser(ctx, req.UserID, req.Title, req.Body,
		models.AlarmPayload{Type: "test"}, "")
	if err != nil {
		status := http.StatusInternalServerError
		msg := "Internal Server Error"
		if errors.Is(err, push.ErrMissingVAPIDKeys) {
			msg = "Push notifications unavailable"
		}
		c.JSON(status, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: msg,
		})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Test push dispatched",
		Data:    result,
	})
}
