package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudoai/billing_go_server/internal/pkg/jwt"
	"github.com/kudoai/billing_go_server/internal/pkg/response"
)

const authTestSecret = "auth-test-secret"

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(authTestSecret), func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.ServerError(c, "no user in context")
			return
		}
		response.Success(c, gin.H{"user_id": userID})
	})
	return r
}

func authEnvelope(t *testing.T, w *httptest.ResponseRecorder) *response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func TestAuth_ValidToken(t *testing.T) {
	r := authTestRouter()

	// 机器人后台代 chat 424242 签发的 token
	token, err := jwt.GenerateToken(424242, authTestSecret, 24)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := authEnvelope(t, w)
	assert.Equal(t, response.CodeSuccess, resp.Code)
	assert.Contains(t, w.Body.String(), "424242")
}

func TestAuth_MissingHeader(t *testing.T) {
	r := authTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeAuthFailed, authEnvelope(t, w).Code)
}

func TestAuth_BadScheme(t *testing.T) {
	r := authTestRouter()
	token, err := jwt.GenerateToken(1, authTestSecret, 24)
	require.NoError(t, err)

	for _, header := range []string{token, "Basic " + token, "Bearer "} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", header)
		r.ServeHTTP(w, req)

		assert.Equal(t, response.CodeAuthFailed, authEnvelope(t, w).Code, "header %q", header)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	r := authTestRouter()

	token, err := jwt.GenerateToken(424242, "another-secret", 24)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, response.CodeAuthFailed, authEnvelope(t, w).Code)
}

func TestAuth_CaseInsensitiveScheme(t *testing.T) {
	r := authTestRouter()

	token, err := jwt.GenerateToken(7, authTestSecret, 24)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, response.CodeSuccess, authEnvelope(t, w).Code)
}

func TestGetUserID_Empty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := GetUserID(c)
	assert.False(t, ok)
}
