package imageapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"nanobanana_backend/internal/pkg/config"
)

// ErrGenerationFailed 上游生成服务返回失败
var ErrGenerationFailed = errors.New("image generation failed")

// GenerateInput 生成请求
type GenerateInput struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// GenerateResult 生成结果
type GenerateResult struct {
	ImageURL string `json:"image_url"`
	Model    string `json:"model"`
}

// Client 图像生成服务客户端抽象，便于测试替换
type Client interface {
	Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error)
}

type httpClient struct {
	cfg    config.GenerateConfig
	client *http.Client
}

// NewClient 创建 HTTP 客户端，超时由配置控制
func NewClient(cfg config.GenerateConfig) Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	ImageURL string `json:"image_url"`
	Model    string `json:"model"`
}

func (c *httpClient) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generation api: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("parse generation response: %w", err)
	}
	if apiResp.Code != 0 || apiResp.ImageURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, apiResp.Message)
	}

	return &GenerateResult{ImageURL: apiResp.ImageURL, Model: apiResp.Model}, nil
}
