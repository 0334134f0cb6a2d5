package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

type AnthropicClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
	model   string
}

func NewAnthropicClient(model string, timeout time.Duration) *AnthropicClient {
	return &AnthropicClient{
		http:    &http.Client{Timeout: timeout},
		apiKey:  os.Getenv("ANTHROPIC_API_KEY"),
		baseURL: defaultAnthropicURL,
		model:   model,
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicMsgReq struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMsgResp struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *AnthropicClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.send(ctx, []anthropicBlock{{Type: "text", Text: prompt}})
}

func (c *AnthropicClient) GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	blocks := []anthropicBlock{
		{Type: "image", Source: &anthropicSource{
			Type:      "base64",
			MediaType: mimeType,
			Data:      base64.StdEncoding.EncodeToString(image),
		}},
		{Type: "text", Text: prompt},
	}
	return c.send(ctx, blocks)
}

func (c *AnthropicClient) send(ctx context.Context, blocks []anthropicBlock) (string, error) {
	if c.apiKey == "" {
		return "", &ProviderError{Provider: c.Name(), Message: "missing ANTHROPIC_API_KEY"}
	}

	payload := anthropicMsgReq{
		Model:     c.model,
		MaxTokens: 4096,
		Messages:  []anthropicMessage{{Role: "user", Content: blocks}},
	}
	body, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Message: err.Error()}
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ProviderError{Provider: c.Name(), StatusCode: resp.StatusCode, Message: string(b)}
	}

	var r anthropicMsgResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", &ProviderError{Provider: c.Name(), Message: "decode response: " + err.Error()}
	}
	if len(r.Content) == 0 {
		return "", ErrEmptyResponse
	}
	return r.Content[0].Text, nil
}
