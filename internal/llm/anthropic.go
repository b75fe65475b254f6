package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nugget/airspace-copilot/internal/httpkit"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicClient is a client for the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	endpoint   string
	pingModel  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicClient creates a new Anthropic client. pingModel is the
// model used for the minimal request Ping sends.
func NewAnthropicClient(apiKey, pingModel string, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &AnthropicClient{
		apiKey:    apiKey,
		endpoint:  anthropicAPIURL,
		pingModel: pingModel,
		logger:    logger.With("provider", "anthropic"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat sends a chat completion request. System messages are lifted
// into the top-level system field.
func (c *AnthropicClient) Chat(ctx context.Context, model string, messages []Message, opts Options) (*ChatResponse, error) {
	req := toAnthropicRequest(model, messages, opts)

	c.logger.Debug("preparing request",
		"model", model,
		"messages", len(req.Messages),
		"system_len", len(req.System),
	)

	var resp anthropicResponse
	start := time.Now()
	if err := c.post(ctx, req, &resp); err != nil {
		return nil, err
	}

	out := fromAnthropic(&resp)
	out.TotalDuration = time.Since(start)

	c.logger.Debug("response received",
		"model", out.Model,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"stop_reason", resp.StopReason,
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", out.Message.Content)
	return out, nil
}

// Ping sends a one-token request to verify the API key.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	req := anthropicRequest{
		Model:     c.pingModel,
		Messages:  []anthropicMessage{{Role: RoleUser, Content: "ping"}},
		MaxTokens: 1,
	}
	return c.post(ctx, req, nil)
}

func (c *AnthropicClient) post(ctx context.Context, req anthropicRequest, out *anthropicResponse) error {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		httpkit.DrainAndClose(resp.Body, 4096)
		return fmt.Errorf("anthropic: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, errBody)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func toAnthropicRequest(model string, messages []Message, opts Options) anthropicRequest {
	system, rest := splitSystem(messages)
	req := anthropicRequest{
		Model:     model,
		System:    system,
		MaxTokens: opts.maxTokens(),
		Messages:  make([]anthropicMessage, 0, len(rest)),
	}
	if opts.Temperature > 0 {
		temp := opts.Temperature
		req.Temperature = &temp
	}
	for _, m := range rest {
		req.Messages = append(req.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return req
}

func fromAnthropic(resp *anthropicResponse) *ChatResponse {
	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return &ChatResponse{
		Model:        resp.Model,
		CreatedAt:    time.Now(),
		Message:      Message{Role: RoleAssistant, Content: content},
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
}
