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

// SoraClient Sora 视频生成接口客户端
type SoraClient struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
}

func NewSoraClient(cfg *config.ProviderConfig) *SoraClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SoraClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *SoraClient) Name() string { return NameSora }

type soraCreatePayload struct {
	Model       string        `json:"model"`
	CallbackURL string        `json:"callBackUrl,omitempty"`
	Input       soraTaskInput `json:"input"`
}

type soraTaskInput struct {
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration"`
	AspectRatio string `json:"aspect_ratio"`
	WithAudio   bool   `json:"with_audio"`
}

type soraEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID     string `json:"taskId"`
		State      string `json:"state"` // waiting, success, fail
		ResultJSON string `json:"resultJson"`
		FailMsg    string `json:"failMsg"`
	} `json:"data"`
}

type soraResult struct {
	ResultURLs []string `json:"resultUrls"`
}

// CreateTask 提交生成任务
func (c *SoraClient) CreateTask(ctx context.Context, req *CreateTaskRequest) (*Task, error) {
	payload := soraCreatePayload{
		Model:       c.cfg.Model,
		CallbackURL: req.CallbackURL,
		Input: soraTaskInput{
			Prompt:      req.Prompt,
			Duration:    req.Duration,
			AspectRatio: req.AspectRatio,
			WithAudio:   req.WithAudio,
		},
	}

	env, err := c.do(ctx, http.MethodPost, "/api/v1/jobs/createTask", payload)
	if err != nil {
		return nil, err
	}
	if env.Data.TaskID == "" {
		return nil, fmt.Errorf("%w: 响应缺少 taskId", ErrRejected)
	}
	return &Task{ID: env.Data.TaskID, Status: StatusPending}, nil
}

// FetchTask 查询任务状态
func (c *SoraClient) FetchTask(ctx context.Context, providerTaskID string) (*Task, error) {
	path := "/api/v1/jobs/recordInfo?taskId=" + url.QueryEscape(providerTaskID)
	env, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	task := &Task{ID: providerTaskID}
	switch env.Data.State {
	case "success":
		task.Status = StatusSucceeded
		var result soraResult
		if err := json.Unmarshal([]byte(env.Data.ResultJSON), &result); err == nil && len(result.ResultURLs) > 0 {
			task.ResultURL = result.ResultURLs[0]
		}
	case "fail":
		task.Status = StatusFailed
		task.ErrorMessage = env.Data.FailMsg
	default:
		task.Status = StatusPending
	}
	return task, nil
}

func (c *SoraClient) do(ctx context.Context, method, path string, payload interface{}) (*soraEnvelope, error) {
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

	var env soraEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if env.Code != 200 {
		return nil, fmt.Errorf("%w: code=%d msg=%s", ErrRejected, env.Code, env.Msg)
	}
	return &env, nil
}
