package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta"

type GeminiClient struct {
	http        *http.Client
	apiKey      string
	baseURL     string
	textModel   string
	visionModel string
}

func NewGeminiClient(textModel, visionModel string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		http:        &http.Client{Timeout: timeout},
		apiKey:      os.Getenv("GEMINI_API_KEY"),
		baseURL:     defaultGeminiBase,
		textModel:   textModel,
		visionModel: visionModel,
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateReq struct {
	Contents []geminiContent `json:"contents"`
}

type geminiGenerateResp struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, c.textModel, []geminiPart{{Text: prompt}})
}

func (c *GeminiClient) GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	parts := []geminiPart{
		{InlineData: &geminiInlineData{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
		{Text: prompt},
	}
	return c.generate(ctx, c.visionModel, parts)
}

func (c *GeminiClient) generate(ctx context.Context, model string, parts []geminiPart) (string, error) {
	if c.apiKey == "" {
		return "", &ProviderError{Provider: c.Name(), Message: "missing GEMINI_API_KEY"}
	}

	payload := geminiGenerateReq{Contents: []geminiContent{{Parts: parts}}}
	body, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Message: err.Error()}
	}
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

	var r geminiGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", &ProviderError{Provider: c.Name(), Message: "decode response: " + err.Error()}
	}
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var out string
	for _, p := range r.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out, nil
}
