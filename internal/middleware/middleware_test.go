package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-occurrences-api/internal/models"
	"github.com/noah-isme/sma-occurrences-api/internal/service"
)

func TestFollowUpRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		header   string
		query    string
		wantCode int
		wantRole models.FollowUpRole
	}{
		{name: "default view", wantCode: http.StatusOK, wantRole: models.RoleView},
		{name: "header", header: "Tutor-Role", wantCode: http.StatusOK, wantRole: models.RoleTutor},
		{name: "query", query: "edit-all", wantCode: http.StatusOK, wantRole: models.RoleEditAll},
		{name: "header wins", header: "management", query: "tutor", wantCode: http.StatusOK, wantRole: models.RoleManagement},
		{name: "unknown", header: "principal", wantCode: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got models.FollowUpRole
			router := gin.New()
			router.GET("/x", FollowUpRole(), func(c *gin.Context) {
				got = RoleFromContext(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/x?role="+tc.query, nil)
			if tc.header != "" {
				req.Header.Set(RoleHeader, tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.wantCode, w.Code)
			if tc.wantCode == http.StatusOK {
				assert.Equal(t, tc.wantRole, got)
			}
		})
	}
}

func TestRoleFromContextDefaultsToView(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, models.RoleView, RoleFromContext(c))
}

func TestLogFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var withRole, anonymous []zap.Field
	router := gin.New()
	router.PATCH("/occurrences/:id/follow-up", FollowUpRole(), func(c *gin.Context) {
		withRole = LogFields(c)
		c.Status(http.StatusOK)
	})
	router.GET("/rooms", func(c *gin.Context) {
		anonymous = LogFields(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPatch, "/occurrences/12/follow-up", nil)
	req.Header.Set(RoleHeader, "tutor")
	router.ServeHTTP(httptest.NewRecorder(), req)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rooms", nil))

	assert.Equal(t, []zap.Field{
		zap.String("follow_up_role", string(models.RoleTutor)),
		zap.String("occurrence_id", "12"),
	}, withRole)
	assert.Empty(t, anonymous)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/x", RateLimit(0.001, 2), func(c *gin.Context) { c.Status(http.StatusCreated) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/x", RateLimit(0, 0), func(c *gin.Context) { c.Status(http.StatusCreated) })

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
		require.Equal(t, http.StatusCreated, w.Code)
	}
}

func TestMetricsRecordsRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/occurrences/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/occurrences/12", nil))

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `path="/occurrences/:id"`)
}

func TestMetricsCollapsesUnmatchedPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/123", nil))

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `path="unmatched"`)
	assert.NotContains(t, w.Body.String(), "/random/123")
}
