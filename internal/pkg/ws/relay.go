package ws

import (
	"context"
	"log"

	"github.com/kudoai/billing_go_server/internal/pkg/pubsub"
)

// RunProgressRelay 订阅任务进度并转发给对应用户的 WebSocket 连接。
// worker 进程发布到 Redis，server 进程在这里消费，两个进程解耦
func (h *Hub) RunProgressRelay(ctx context.Context, subscriber *pubsub.Subscriber) {
	err := subscriber.Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
		if !h.IsOnline(msg.UserID) {
			return
		}
		if err := h.SendToUser(msg.UserID, &Message{
			Type: msg.Type,
			Data: msg,
		}); err != nil {
			log.Printf("Progress relay: send to user %d failed: %v", msg.UserID, err)
		}
	})
	if err != nil && err != context.Canceled {
		log.Printf("Progress relay stopped: %v", err)
	}
}
