package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntugo/ntugo/internal/api/middleware"
	"github.com/ntugo/ntugo/internal/api/models"
	"github.com/ntugo/ntugo/internal/api/response"
)

// tracedRequest returns a request that went through RequestID.
func tracedRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	var traced *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		traced = r
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))
	require.NotNil(t, traced)
	return traced
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req := tracedRequest(t, http.MethodGet, "/api/map/youbike")
	rec := httptest.NewRecorder()

	response.OK(rec, req, models.StatusResponse{Success: true, Message: "快取已清除"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, middleware.GetRequestID(req.Context()), rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"message":"快取已清除"}`, rec.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.OK(rec, httptest.NewRequest(http.MethodGet, "/api/ops/health", http.NoBody), map[string]string{"status": "OK"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestJSON_NilData(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, tracedRequest(t, http.MethodGet, "/api/ops/health"), http.StatusAccepted, nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestCreated_SetsLocation(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Created(rec, tracedRequest(t, http.MethodPost, "/api/auth/register"), "/api/auth/me", map[string]string{"token": "t"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/auth/me", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestBadRequest_FieldErrors(t *testing.T) {
	req := tracedRequest(t, http.MethodPost, "/api/auth/register")
	rec := httptest.NewRecorder()

	response.BadRequest(rec, req, "請檢查輸入資料", []models.FieldError{
		{Field: "email", Message: "格式不正確"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, models.ErrorCodeBadRequest, body["error"])
	assert.Equal(t, "請檢查輸入資料", body["message"])
	assert.Equal(t, middleware.GetRequestID(req.Context()), body["traceId"])
	assert.Len(t, body["errors"], 1)
}

func TestNewError_CarriesExtraFields(t *testing.T) {
	req := tracedRequest(t, http.MethodGet, "/api/tdx/metro-exits")
	rec := httptest.NewRecorder()

	e := response.NewError(req, http.StatusTooManyRequests, "API 請求過於頻繁", "請稍後再試").
		With("Exits", []any{})
	response.Error(rec, req, e)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, []any{}, body["Exits"])
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), body["traceId"])
}

func TestErrorHelpers_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request, string)
		status int
		code   string
	}{
		{"unauthorized", response.Unauthorized, http.StatusUnauthorized, models.ErrorCodeUnauthorized},
		{"forbidden", response.Forbidden, http.StatusForbidden, models.ErrorCodeForbidden},
		{"not found", response.NotFound, http.StatusNotFound, models.ErrorCodeNotFound},
		{"conflict", response.Conflict, http.StatusConflict, models.ErrorCodeConflict},
		{"too many requests", response.TooManyRequests, http.StatusTooManyRequests, models.ErrorCodeTooManyRequests},
		{"internal", response.InternalError, http.StatusInternalServerError, models.ErrorCodeInternal},
		{"unavailable", response.ServiceUnavailable, http.StatusServiceUnavailable, models.ErrorCodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, tracedRequest(t, http.MethodGet, "/api/ops/status"), "訊息")

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.code, body["error"])
			assert.Equal(t, "訊息", body["message"])
			assert.NotEmpty(t, body["traceId"])
		})
	}
}
