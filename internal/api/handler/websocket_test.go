package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudoai/billing_go_server/internal/pkg/jwt"
	"github.com/kudoai/billing_go_server/internal/pkg/ws"
)

func setupWebSocketServer(t *testing.T, allowedOrigins []string) (*ws.Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := ws.NewHub()
	h := NewWebSocketHandler(hub, "ws-test-secret", allowedOrigins)

	r := gin.New()
	r.GET("/ws", h.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, srv
}

func TestWebSocketHandler_MissingToken(t *testing.T) {
	_, srv := setupWebSocketServer(t, []string{"*"})

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketHandler_InvalidToken(t *testing.T) {
	_, srv := setupWebSocketServer(t, []string{"*"})

	resp, err := http.Get(srv.URL + "/ws?token=garbage")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketHandler_ConnectAndRegister(t *testing.T) {
	hub, srv := setupWebSocketServer(t, []string{"*"})

	token, err := jwt.GenerateToken(424242, "ws-test-secret", 24)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsOnline(424242) },
		time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_RejectsDisallowedOrigin(t *testing.T) {
	_, srv := setupWebSocketServer(t, []string{"https://webapp.example.com"})

	token, err := jwt.GenerateToken(1, "ws-test-secret", 24)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	header := http.Header{"Origin": []string{"https://evil.example.com"}}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	if resp != nil {
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
