package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kudoai/billing_go_server/config"
)

// VeoClient Veo 视频生成接口客户端。
// 协议和 Sora 网关类似但字段不同：veo 没有独立的音频开关，
// 音频由模型档位决定（quality 档带音频）
type VeoClient struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
}

func NewVeoClient(cfg *config.ProviderConfig) *VeoClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VeoClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *VeoClient) Name() string { return NameVeo }

type veoCreatePayload struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspectRatio"`
	Seconds     int    `json:"seconds"`
	CallbackURL string `json:"callBackUrl,omitempty"`
	EnableAudio bool   `json:"enableAudio"`
}

type veoEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID       string `json:"taskId"`
		SuccessFlag  int    `json:"successFlag"` // 0 生成中, 1 成功, 2/3 失败
		ErrorMessage string `json:"errorMessage"`
		Response     struct {
			ResultURLs []string `json:"resultUrls"`
		} `json:"response"`
	} `json:"data"`
}

// CreateTask 提交生成任务
func (c *VeoClient) CreateTask(ctx context.Context, req *CreateTaskRequest) (*Task, error) {
	payload := veoCreatePayload{
		Prompt:      req.Prompt,
		Model:       c.cfg.Model,
		AspectRatio: req.AspectRatio,
		Seconds:     req.Duration,
		CallbackURL: req.CallbackURL,
		EnableAudio: req.WithAudio,
	}

	env, err := c.do(ctx, http.MethodPost, "/api/v1/veo/generate", payload)
	if err != nil {
		return nil, err
	}
	if env.Data.TaskID == "" {
		return nil, fmt.Errorf("%w: 响应缺少 taskId", ErrRejected)
	}
	return &Task{ID: env.Data.TaskID, Status: StatusPending}, nil
}

// FetchTask 查询任务状态
func (c *VeoClient) FetchTask(ctx context.Context, providerTaskID string) (*Task, error) {
	path := "/api/v1/veo/record-info?taskId=" + url.QueryEscape(providerTaskID)
	env, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	task := &Task{ID: providerTaskID}
	switch env.Data.SuccessFlag {
	case 1:
		task.Status = StatusSucceeded
		if len(env.Data.Response.ResultURLs) > 0 {
			task.ResultURL = env.Data.Response.ResultURLs[0]
		}
	case 2, 3:
		task.Status = StatusFailed
		task.ErrorMessage = env.Data.ErrorMessage
	default:
		task.Status = StatusPending
	}
	return task, nil
}

func (c *VeoClient) do(ctx context.Context, method, path string, payload interface{}) (*veoEnvelope, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, string(respBody))
	}

	var env veoEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if env.Code != 200 {
		return nil, fmt.Errorf("%w: code=%d msg=%s", ErrRejected, env.Code, env.Msg)
	}
	return &env, nil
}
