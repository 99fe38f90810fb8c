package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kudoai/billing_go_server/config"
)

// Notifier 用户通知出口。任务完成、失败、订阅到期提醒都从这里发
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendVideo(ctx context.Context, chatID int64, videoURL, caption string) error
}

// TelegramNotifier 通过 Telegram Bot API 推送通知
type TelegramNotifier struct {
	cfg        *config.TelegramConfig
	httpClient *http.Client
}

func NewTelegramNotifier(cfg *config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // 发视频可能比较慢
		},
	}
}

// SendMessage 发送文本消息
func (n *TelegramNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	return n.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

// SendVideo 按 URL 发送视频，Telegram 侧负责拉取
func (n *TelegramNotifier) SendVideo(ctx context.Context, chatID int64, videoURL, caption string) error {
	return n.call(ctx, "sendVideo", map[string]interface{}{
		"chat_id": chatID,
		"video":   videoURL,
		"caption": caption,
	})
}

func (n *TelegramNotifier) call(ctx context.Context, method string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	apiBase := n.cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	url := fmt.Sprintf("%s/bot%s/%s", apiBase, n.cfg.BotToken, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram 返回 %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// NoopNotifier 空实现，测试和未配置 bot token 时使用
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (n *NoopNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	return nil
}

func (n *NoopNotifier) SendVideo(ctx context.Context, chatID int64, videoURL, caption string) error {
	return nil
}
