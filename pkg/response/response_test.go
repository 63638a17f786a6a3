package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/todo-api/pkg/errors"
)

func TestErrorWritesCodeAndMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.ErrRateLimited)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body["error"])
	assert.Equal(t, "Too many requests. Please try again later.", body["message"])
}

func TestErrorKeepsInternalCauseServerSide(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	cause := errors.New("pq: connection refused")
	Error(c, appErrors.Wrap(cause, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list todos"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	require.Len(t, c.Errors, 1)
	assert.ErrorIs(t, c.Errors[0].Err, cause)
}

func TestErrorDoesNotTrackClientErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.Clone(appErrors.ErrNotFound, "todo not found"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, c.Errors)
}

func TestJSONWrapsData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	JSON(c, http.StatusOK, map[string]string{"id": "1"}, map[string]interface{}{"total": 1})

	var body struct {
		Data map[string]string      `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "1", body.Data["id"])
	assert.EqualValues(t, 1, body.Meta["total"])
}
