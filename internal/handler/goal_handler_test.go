package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCreateGoalAndFetch(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	payload := map[string]any{
		"user_id":      "user-1",
		"primary_type": "exercise",
		"name":         "力量训练",
		"frequency":    "weekly",
		"by_week_day":  []string{"MO", "WE", "FR"},
		"start_date":   "2024-01-01",
	}

	w := postJSON(t, api.CreateGoal, "/api/goals", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		Goal struct {
			ID        uint     `json:"id"`
			Name      string   `json:"name"`
			ByWeekDay []string `json:"by_week_day"`
			Status    string   `json:"status"`
		} `json:"goal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Goal.ID == 0 {
		t.Fatal("expected created goal to have ID")
	}
	if len(created.Goal.ByWeekDay) != 3 {
		t.Fatalf("unexpected weekday list: %v", created.Goal.ByWeekDay)
	}
	if created.Goal.Status != "active" {
		t.Fatalf("expected default active status, got %s", created.Goal.Status)
	}

	// 按 ID 取回
	idText := strconv.Itoa(int(created.Goal.ID))
	w2 := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w2)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/goals/"+idText, nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: idText}}

	api.GetGoal(c)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w2.Code)
	}
}

func TestCreateGoalInvalidRule(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	// weekly 缺少 by_week_day
	payload := map[string]any{
		"user_id":      "user-1",
		"primary_type": "exercise",
		"name":         "测试",
		"frequency":    "weekly",
		"start_date":   "2024-01-01",
	}

	w := postJSON(t, api.CreateGoal, "/api/goals", payload)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateGoalMissingFields(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	payload := map[string]any{
		"user_id":      "user-1",
		"primary_type": "exercise",
		"frequency":    "daily",
		"start_date":   "2024-01-01",
	}

	w := postJSON(t, api.CreateGoal, "/api/goals", payload)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing name, got %d", w.Code)
	}
}

func TestGetGoalNotFound(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/goals/9999", nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: "9999"}}

	api.GetGoal(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestDeleteGoalCascades(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	eventID := seedCancellableOccurrence(t, api)

	var goalID uint = 1
	idText := strconv.Itoa(int(goalID))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodDelete, "/api/goals/"+idText, nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: idText}}

	api.DeleteGoal(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	// 删除后取消其实例仍按成功返回
	w2 := postJSON(t, api.DeleteScheduledEvent, "/deleteScheduledEvent", map[string]any{"event_id": eventID})
	if w2.Code != http.StatusOK {
		t.Fatalf("expected idempotent cancellation after delete, got %d", w2.Code)
	}
}
