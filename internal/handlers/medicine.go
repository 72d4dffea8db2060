package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/DainoJung/brawl-star/internal/models"
	"github.com/DainoJung/brawl-star/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MedicineRepository interface {
	Create(ctx context.Context, req models.MedicineCreateRequest) (*models.Medicine, error)
	Get(ctx context.Context, id string) (*models.Medicine, error)
	ListByUser(ctx context.Context, userID string) ([]models.Medicine, error)
	Update(ctx context.Context, id string, req models.MedicineUpdateRequest) (*models.Medicine, error)
	Delete(ctx context.Context, id string) error
}

type MedicineHandler struct {
	medicines MedicineRepository
	log       *zap.Logger
}

func NewMedicineHandler(medicines MedicineRepository, log *zap.Logger) *MedicineHandler {
	return &MedicineHandler{
		medicines: medicines,
		log:       log.Named("medicine_handler"),
	}
}

func (h *MedicineHandler) List(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   "user_id query parameter is required",
			Message: "Invalid Request",
		})
		return
	}

	meds, err := h.medicines.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("failed to list medicines", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to list medicines",
			Message: "Internal Server Error",
		})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "OK",
		Data:    meds,
	})
}

func (h *MedicineHandler) Get(c *gin.Context) {
	med, err := h.medicines.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.APIResponse{
			Success: false,
			Error:   "medicine not found",
			Message: "Not Found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to read medicine",
			Message: "Internal Server Error",
		})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "OK",
		Data:    med,
	})
}

func (h *MedicineHandler) Create(c *gin.Context) {
	var req models.MedicineCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}

	med, err := h.medicines.Create(c.Request.Context(), req)
	if err != nil {
		h.log.Error("failed to create medicine", zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to create medicine",
			Message: "Internal Server Error",
		})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Medicine registered",
		Data:    med,
	})
}

func (h *MedicineHandler) Update(c *gin.Context) {
	var req models.MedicineUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}

	med, err := h.medicines.Update(c.Request.Context(), c.Param("id"), req)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.APIResponse{
			Success: false,
			Error:   "medicine not found",
			Message: "Not Found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to update medicine",
			Message: "Internal Server Error",
		})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Medicine updated",
		Data:    med,
	})
}

func (h *MedicineHandler) Delete(c *gin.Context) {
	err := h.medicines.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.APIResponse{
			Success: false,
			Error:   "medicine not found",
			Message: "Not Found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to delete medicine",
			Message: "Internal Server Error",
		})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Medicine deleted",
	})
}
