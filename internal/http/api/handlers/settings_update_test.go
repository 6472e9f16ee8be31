package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSettingsRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:settingsapi_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.UserSetting{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	handler := NewSettingsHandler(conn)
	router := gin.New()
	router.GET("/v1/settings", handler.Get)
	router.PUT("/v1/settings", handler.Update)
	return router
}

func TestSettingsGetSeedsDefaults(t *testing.T) {
	router := setupSettingsRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if body["base_currency"] != "USD" || body["autopilot_mode"] != models.ModeSuggestOnly {
		t.Fatalf("unexpected defaults %v", body)
	}
	if body["guardrail_risk_pause_threshold"] != 0.6 {
		t.Fatalf("unexpected risk threshold %v", body["guardrail_risk_pause_threshold"])
	}
}

func TestSettingsUpdateAppliesFields(t *testing.T) {
	router := setupSettingsRouter(t)

	payload := `{
		"autopilot_mode": "auto_create_tasks",
		"guardrail_min_checking_floor": 500,
		"guardrail_max_category_daily": 150
	}`
	req := httptest.NewRequest(http.MethodPut, "/v1/settings", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if body["autopilot_mode"] != models.ModeAutoCreateTasks {
		t.Fatalf("unexpected mode %v", body["autopilot_mode"])
	}
	if body["guardrail_min_checking_floor"] != float64(500) {
		t.Fatalf("unexpected floor %v", body["guardrail_min_checking_floor"])
	}
	if body["guardrail_max_category_daily"] != float64(150) {
		t.Fatalf("unexpected cap %v", body["guardrail_max_category_daily"])
	}
	// Untouched fields keep their defaults.
	if body["base_currency"] != "USD" {
		t.Fatalf("unexpected base currency %v", body["base_currency"])
	}
}

func TestSettingsUpdateValidatesInput(t *testing.T) {
	router := setupSettingsRouter(t)

	cases := []string{
		`{"guardrail_risk_pause_threshold": 1.5}`,
		`{"autopilot_mode": "full_send"}`,
		`not json`,
	}
	for _, payload := range cases {
		req := httptest.NewRequest(http.MethodPut, "/v1/settings", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: expected 400, got %d", payload, rec.Code)
		}
	}
}
