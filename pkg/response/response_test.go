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

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func TestErrorCarriesConflictDetails(t *testing.T) {
	c, w := testContext()
	conflicts := []string{"teacher t1 double booked on Saturday period 1"}
	Error(c, appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "schedule has conflicts"), conflicts))

	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, appErrors.ErrConflict.Code, body["error"]["code"])
	assert.Len(t, body["error"]["details"], 1)
}

func TestErrorWrapsUnknownAsInternal(t *testing.T) {
	c, w := testContext()
	Error(c, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestJSONWithMeta(t *testing.T) {
	c, w := testContext()
	JSON(c, http.StatusOK, []int{1, 2}, nil, map[string]interface{}{"total": 2})

	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body.Meta["total"])
	assert.Nil(t, body.Error)
}

func TestAttachment(t *testing.T) {
	c, w := testContext()
	Attachment(c, "timetable_school.csv", "text/csv; charset=utf-8", []byte("Day\n"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="timetable_school.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Day\n", w.Body.String())
}
