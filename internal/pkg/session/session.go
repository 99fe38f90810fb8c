package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix  = "session:last_task:"
	defaultTTL = 24 * time.Hour
)

// LastRequest 用户最近一次生成请求的参数，供"重新生成"复用
type LastRequest struct {
	Provider    string `json:"provider"`
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration"`
	AspectRatio string `json:"aspect_ratio"`
	WithAudio   bool   `json:"with_audio"`
}

// Store 基于 Redis 的会话存储，带 TTL 自动过期
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, ttl: defaultTTL}
}

// SaveLastRequest 记录用户最近一次生成请求
func (s *Store) SaveLastRequest(ctx context.Context, userID int64, req *LastRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(userID), data, s.ttl).Err()
}

// GetLastRequest 取用户最近一次生成请求，没有时返回 (nil, nil)
func (s *Store) GetLastRequest(ctx context.Context, userID int64) (*LastRequest, error) {
	data, err := s.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var req LastRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Clear 清除用户的会话记录
func (s *Store) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, key(userID)).Err()
}

func key(userID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}
