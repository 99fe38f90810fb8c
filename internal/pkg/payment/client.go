package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kudoai/billing_go_server/config"
)

// Client 支付网关客户端（YooKassa 协议）。
// 创建支付时带 Idempotence-Key，网关侧去重
type Client struct {
	cfg        *config.PaymentConfig
	httpClient *http.Client
}

func NewClient(cfg *config.PaymentConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateRequest 创建支付的参数
type CreateRequest struct {
	AmountRub   int
	Description string
	Metadata    map[string]string
}

// CreateResult 网关返回的支付对象
type CreateResult struct {
	PaymentID       string
	ConfirmationURL string
	Status          string
}

type createPayload struct {
	Amount       amountPayload       `json:"amount"`
	Confirmation confirmationPayload `json:"confirmation"`
	Capture      bool                `json:"capture"`
	Description  string              `json:"description"`
	Metadata     map[string]string   `json:"metadata,omitempty"`
}

type amountPayload struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmationPayload struct {
	Type      string `json:"type"`
	ReturnURL string `json:"return_url"`
}

type createResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
	Description string `json:"description"`
}

// Create 创建一笔支付，返回支付 ID 和确认页地址
func (c *Client) Create(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	payload := createPayload{
		Amount: amountPayload{
			Value:    fmt.Sprintf("%d.00", req.AmountRub),
			Currency: "RUB",
		},
		Confirmation: confirmationPayload{
			Type:      "redirect",
			ReturnURL: c.cfg.ReturnURL,
		},
		Capture:     true,
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(c.cfg.ShopID, c.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求支付网关失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("支付网关返回 %d: %s", resp.StatusCode, string(respBody))
	}

	var result createResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	return &CreateResult{
		PaymentID:       result.ID,
		ConfirmationURL: result.Confirmation.ConfirmationURL,
		Status:          result.Status,
	}, nil
}
