package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIClient calls the chat completions endpoint.
type OpenAIClient struct {
	client *resty.Client
}

// NewOpenAIClient builds a client against baseURL. A zero timeout leaves the
// call bounded only by the request context.
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration) *OpenAIClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &OpenAIClient{client: c}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var out chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&body).
		SetResult(&out).
		SetError(&out).
		Post("/v1/chat/completions")
	if err != nil {
		return "", unavailable("openai request failed", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", unavailable("openai request failed", fmt.Errorf("status %d: %s", resp.StatusCode(), msg))
	}
	if len(out.Choices) == 0 {
		return checkEmpty("")
	}
	return checkEmpty(out.Choices[0].Message.Content)
}
