package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DainoJung/brawl-star/internal/models"
	"github.com/DainoJung/brawl-star/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMedicineRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	handler := NewMedicineHandler(store.NewMedicineStore(rdb), zap.NewNop())

	router := gin.New()
	router.GET("/api/medicines", handler.List)
	router.POST("/api/medicines", handler.Create)
	router.GET("/api/medicines/:id", handler.Get)
	router.PATCH("/api/medicines/:id", handler.Update)
	router.DELETE("/api/medicines/:id", handler.Delete)
	return router
}

func createMedicine(t *testing.T, router *gin.Engine, req models.MedicineCreateRequest) models.Medicine {
	t.Helper()
	body, _ := json.Marshal(req)

	w := httptest.NewRecorder()
	httpReq, _ := http.NewRequest("POST", "/api/medicines", bytes.NewBuffer(body))
	httpReq.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, httpReq)

	require.Equal(t, http.StatusOK, w.Code)

	var response models.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data, _ := json.Marshal(response.Data)
	var med models.Medicine
	require.NoError(t, json.Unmarshal(data, &med))
	return med
}

func TestMedicine_CreateAndList(t *testing.T) {
	router := setupMedicineRouter(t)

	med := createMedicine(t, router, models.MedicineCreateRequest{
		UserID: "u1",
		Name:   "아스피린",
		Timing: "after_meal",
		Times:  []string{"08:00", "20:00"},
		Days:   []string{"월", "수"},
	})
	assert.NotEmpty(t, med.ID)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/medicines?user_id=u1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.APIResponse
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.True(t, response.Success)

	data, _ := json.Marshal(response.Data)
	var meds []models.Medicine
	json.Unmarshal(data, &meds)
	require.Len(t, meds, 1)
	assert.Equal(t, "아스피린", meds[0].Name)
}

func TestMedicine_ListRequiresUserID(t *testing.T) {
	router := setupMedicineRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/medicines", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMedicine_GetMissing(t *testing.T) {
	router := setupMedicineRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/medicines/does-not-exist", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMedicine_PartialUpdate(t *testing.T) {
	router := setupMedicineRouter(t)

	med := createMedicine(t, router, models.MedicineCreateRequest{
		UserID: "u1",
		Name:   "아스피린",
		Times:  []string{"08:00"},
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/api/medicines/"+med.ID, bytes.NewBufferString(`{"times":["09:00"]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.APIResponse
	json.Unmarshal(w.Body.Bytes(), &response)
	data, _ := json.Marshal(response.Data)
	var updated models.Medicine
	json.Unmarshal(data, &updated)
	assert.Equal(t, []string{"09:00"}, updated.Times)
	assert.Equal(t, "아스피린", updated.Name)
}

func TestMedicine_Delete(t *testing.T) {
	router := setupMedicineRouter(t)

	med := createMedicine(t, router, models.MedicineCreateRequest{UserID: "u1", Name: "아스피린"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/medicines/"+med.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/medicines/"+med.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
