package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kudoai/billing_go_server/internal/pkg/jwt"
	"github.com/kudoai/billing_go_server/internal/pkg/ws"
)

const (
	wsReadLimit    = 512 // 客户端只发 ping，不接受业务消息
	wsPongTimeout  = 90 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocketHandler 任务进度推送连接。
// 浏览器的 WebSocket API 不能带 Authorization 头，token 走查询参数
type WebSocketHandler struct {
	hub       *ws.Hub
	jwtSecret string
	upgrader  websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, jwtSecret string, allowedOrigins []string) *WebSocketHandler {
	wildcard := false
	exact := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
			continue
		}
		exact[origin] = true
	}

	return &WebSocketHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 非浏览器客户端不带 Origin，直接放行
				return origin == "" || wildcard || exact[origin]
			},
		},
	}
}

// Handle 建立进度推送连接
// GET /api/v1/ws?token=xxx
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := jwt.ParseToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级 WebSocket 连接失败 user=%d: %v", claims.UserID, err)
		return
	}

	client := &ws.Client{
		UserID: claims.UserID,
		Conn:   conn,
	}
	h.hub.Register(client)

	go h.keepAlive(conn)
	go h.readLoop(client, conn)
}

// keepAlive 周期发 ping，客户端断连靠 pong 超时发现
func (h *WebSocketHandler) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			return
		}
	}
}

// readLoop 丢弃客户端消息，只用读失败来感知断开
func (h *WebSocketHandler) readLoop(client *ws.Client, conn *websocket.Conn) {
	defer h.hub.Unregister(client)

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
