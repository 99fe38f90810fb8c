package testutil

import (
	"context"
	"sync"
)

// SentMessage 记录的文本通知
type SentMessage struct {
	ChatID int64
	Text   string
}

// SentVideo 记录的视频通知
type SentVideo struct {
	ChatID   int64
	VideoURL string
	Caption  string
}

// RecordingNotifier 测试用通知器，记录所有发送并可注入失败
type RecordingNotifier struct {
	mu       sync.Mutex
	Messages []SentMessage
	Videos   []SentVideo
	FailWith error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailWith != nil {
		return n.FailWith
	}
	n.Messages = append(n.Messages, SentMessage{ChatID: chatID, Text: text})
	return nil
}

func (n *RecordingNotifier) SendVideo(ctx context.Context, chatID int64, videoURL, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailWith != nil {
		return n.FailWith
	}
	n.Videos = append(n.Videos, SentVideo{ChatID: chatID, VideoURL: videoURL, Caption: caption})
	return nil
}

// MessageCount 已发送文本条数
func (n *RecordingNotifier) MessageCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Messages)
}

// VideoCount 已发送视频条数
func (n *RecordingNotifier) VideoCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Videos)
}
