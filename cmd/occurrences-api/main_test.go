package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-occurrences-api/internal/service"
	"github.com/noah-isme/sma-occurrences-api/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{APIPrefix: "/api/v1"}
}

func TestRoutesDegradeWithoutStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	occurrences := buildOccurrenceService(nil, nil, metrics, zap.NewNop(), time.UTC)

	r := gin.New()
	registerRoutes(r, testConfig(), occurrences, metrics)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/occurrences", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "notices")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	body := bytes.NewBufferString(`{"teacher":"Ana","room":"1A","student":"Bruno","description":"late"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/occurrences", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/v1/occurrences/1/follow-up?role=principal", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoutesReadThroughStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer rawDB.Close()
	db := sqlx.NewDb(rawDB, "sqlmock")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "NOME" FROM rooms`)).
		WillReturnRows(sqlmock.NewRows([]string{"NOME"}).AddRow("1A").AddRow("2B"))

	metrics := service.NewMetricsService()
	occurrences := buildOccurrenceService(db, nil, metrics, zap.NewNop(), time.UTC)
	r := gin.New()
	registerRoutes(r, testConfig(), occurrences, metrics)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/references/rooms", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"name":"2B"`)
	}
	assert.NoError(t, mock.ExpectationsWereMet())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.Contains(t, w.Body.String(), `"hits":1`)
}
