package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/airspace-copilot/internal/httpkit"
)

// DefaultOpenAIBaseURL points at Groq's OpenAI-compatible endpoint.
const DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1"

// OpenAIClient talks to any OpenAI-compatible chat completions API
// (Groq, OpenAI, vLLM, LM Studio).
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a client for the API rooted at baseURL.
func NewOpenAIClient(baseURL, apiKey string, logger *slog.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.With("provider", "openai"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

type openaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, opts Options) (*ChatResponse, error) {
	req := openaiRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: opts.maxTokens(),
	}
	if opts.Temperature > 0 {
		temp := opts.Temperature
		req.Temperature = &temp
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("openai API error %d: %s", resp.StatusCode, errBody)
	}

	var wire openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("openai API returned no choices")
	}

	out := &ChatResponse{
		Model:         wire.Model,
		CreatedAt:     time.Unix(wire.Created, 0),
		Message:       wire.Choices[0].Message,
		InputTokens:   wire.Usage.PromptTokens,
		OutputTokens:  wire.Usage.CompletionTokens,
		TotalDuration: time.Since(start),
	}
	c.logger.Debug("response received",
		"model", out.Model,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"finish_reason", wire.Choices[0].FinishReason,
	)
	return out, nil
}

// Ping lists models to verify the endpoint and key.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 64*1024)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai API error %d", resp.StatusCode)
	}
	return nil
}

func (c *OpenAIClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
