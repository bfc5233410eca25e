// Package llmclient provides a provider-agnostic client for vision-capable
// language models. All supported providers (OpenAI, Gemini, Ollama) are
// reached through an OpenAI-compatible chat-completions endpoint.
package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/config"
)

// Default endpoints per provider, overridable via config.
const (
	openAIEndpoint = "https://api.openai.com/v1"
	geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/openai"
	ollamaEndpoint = "http://127.0.0.1:11434/v1"
)

// Client implements schemas.LLMClient over HTTP. It is safe for concurrent
// use; the per-call timeout comes from the injected configuration, not from
// a process-wide singleton.
type Client struct {
	cfg        config.LLMModelConfig
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

var _ schemas.LLMClient = (*Client)(nil)

// New builds a client from the model configuration.
func New(cfg config.LLMModelConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := strings.TrimRight(cfg.Endpoint, "/")
	if baseURL == "" {
		switch cfg.Provider {
		case config.ProviderOpenAI:
			baseURL = openAIEndpoint
		case config.ProviderGemini:
			baseURL = geminiEndpoint
		case config.ProviderOllama:
			baseURL = ollamaEndpoint
		default:
			return nil, fmt.Errorf("no endpoint known for provider %q", cfg.Provider)
		}
	}

	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger.Named("llmclient"),
	}, nil
}

// -- Wire types (OpenAI chat completions) --

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate performs one chat-completion call. Transport failures and 5xx
// responses are retried with exponential backoff; the final error is
// returned to the caller, who is expected to degrade rather than abort.
func (c *Client) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), uint64(c.maxRetries())), ctx)

	var content string
	operation := func() error {
		var opErr error
		content, opErr = c.doRequest(ctx, payload)
		return opErr
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) maxRetries() int {
	if c.cfg.MaxRetries < 0 {
		return 0
	}
	return c.cfg.MaxRetries
}

func (c *Client) buildRequest(req schemas.GenerationRequest) chatRequest {
	out := chatRequest{
		Model:       c.cfg.Model,
		Temperature: firstNonZero(req.Temperature, c.cfg.Temperature),
		TopP:        firstNonZero(req.TopP, c.cfg.TopP),
		MaxTokens:   firstNonZeroInt(req.MaxTokens, c.cfg.MaxTokens),
	}

	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{
			Role:    "system",
			Content: []contentPart{{Type: "text", Text: req.System}},
		})
	}

	user := chatMessage{Role: "user"}
	user.Content = append(user.Content, contentPart{Type: "text", Text: req.Prompt})
	if len(req.ImagePNG) > 0 {
		encoded := base64.StdEncoding.EncodeToString(req.ImagePNG)
		user.Content = append(user.Content, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/png;base64," + encoded},
		})
	}
	out.Messages = append(out.Messages, user)
	return out
}

// doRequest performs a single HTTP round trip. Server-side errors (5xx and
// 429) are returned as retryable; everything else is permanent.
func (c *Client) doRequest(ctx context.Context, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network-level failures are worth retrying.
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read llm response: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Debug("Retryable LLM response", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("llm returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", backoff.Permanent(fmt.Errorf("llm returned status %d: %s",
			resp.StatusCode, truncate(string(body), 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to decode llm response: %w", err))
	}
	if parsed.Error != nil {
		return "", backoff.Permanent(fmt.Errorf("llm error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", backoff.Permanent(fmt.Errorf("llm returned no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func firstNonZero(vals ...float32) float32 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonZeroInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
