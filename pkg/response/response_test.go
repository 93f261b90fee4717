package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-occurrences-api/pkg/errors"
)

func TestWithNotices(t *testing.T) {
	assert.Nil(t, WithNotices(nil))
	assert.Equal(t, map[string]interface{}{"notices": []string{"rooms: down"}}, WithNotices([]string{"rooms: down"}))
}

func TestJSONWithNotices(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	JSON(c, http.StatusOK, []string{}, nil, WithNotices([]string{"occurrences: down"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "meta")
}

func TestListFlagsDegradedData(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	List(c, []string{}, nil, []string{"students: down"})
	assert.Equal(t, "true", w.Header().Get(DegradedHeader))
	assert.Contains(t, w.Body.String(), "students: down")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	List(c, []string{"1A"}, nil, nil)
	assert.Empty(t, w.Header().Get(DegradedHeader))
	assert.NotContains(t, w.Body.String(), "meta")
}

func TestErrorRecordsOnContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.ErrStoreQueryFailed)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Len(t, c.Errors, 1)
	assert.Contains(t, w.Body.String(), "STORE_QUERY_FAILED")
}
