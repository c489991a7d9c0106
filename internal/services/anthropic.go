package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jwebster45206/gm-engine/pkg/chat"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"

	DefaultAnthropicTemperature = 0.7
	DefaultAnthropicMaxTokens   = 2048
)

// ErrEmptyReply is returned when the game master answered with no text.
var ErrEmptyReply = errors.New("game master returned no text")

// APIError is a failure reported by the Messages API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API request failed with status %d: %s: %s", e.StatusCode, e.Type, e.Message)
}

// Overloaded reports whether the failure is transient on Anthropic's side.
func (e *APIError) Overloaded() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == 529 || e.Type == "overloaded_error"
}

// AnthropicService implements TextSource over the Anthropic Messages API.
type AnthropicService struct {
	apiKey      string
	modelName   string
	baseURL     string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ TextSource = (*AnthropicService)(nil)

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []chat.ChatMessage `json:"messages"`
}

func NewAnthropicService(apiKey string, modelName string, logger *slog.Logger) *AnthropicService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicService{
		apiKey:      apiKey,
		modelName:   modelName,
		baseURL:     anthropicBaseURL,
		maxTokens:   DefaultAnthropicMaxTokens,
		temperature: DefaultAnthropicTemperature,
		// Per-turn deadlines come from the caller's context.
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger.With("llm_provider", "anthropic"),
	}
}

// WithBaseURL points the service at another Messages API endpoint, such as a
// proxy or a test server. An empty url keeps the default.
func (a *AnthropicService) WithBaseURL(url string) *AnthropicService {
	if url != "" {
		a.baseURL = strings.TrimRight(url, "/")
	}
	return a
}

// prepareMessages moves every system message into one system prompt and
// shapes the rest the way the Messages API wants them: the conversation opens
// with a user turn and roles alternate. A trimmed history window can start on
// a game master reply, so leading replies are dropped, and back-to-back
// messages from one role are merged.
func prepareMessages(messages []chat.ChatMessage) (string, []chat.ChatMessage) {
	var system []string
	turns := make([]chat.ChatMessage, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.Role == chat.ChatRoleSystem:
			system = append(system, msg.Content)
		case len(turns) == 0 && msg.Role != chat.ChatRoleUser:
			continue
		case len(turns) > 0 && turns[len(turns)-1].Role == msg.Role:
			turns[len(turns)-1].Content += "\n\n" + msg.Content
		default:
			turns = append(turns, msg)
		}
	}
	return strings.Join(system, "\n\n"), turns
}

// Chat sends the conversation and returns the game master's reply text.
func (a *AnthropicService) Chat(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	system, turns := prepareMessages(messages)
	if len(turns) == 0 {
		return "", fmt.Errorf("no user message to send")
	}

	temperature := a.temperature
	reqBody, err := json.Marshal(anthropicRequest{
		Model:       a.modelName,
		MaxTokens:   a.maxTokens,
		Temperature: &temperature,
		System:      system,
		Messages:    turns,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if gjson.ValidBytes(body) {
			if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
				apiErr.Type = gjson.GetBytes(body, "error.type").String()
				apiErr.Message = msg.String()
			}
		}
		return "", apiErr
	}

	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("failed to parse response: invalid JSON")
	}
	parsed := gjson.ParseBytes(body)
	if parsed.Get("type").String() == "error" {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Type:       parsed.Get("error.type").String(),
			Message:    parsed.Get("error.message").String(),
		}
	}

	var text strings.Builder
	for _, block := range parsed.Get(`content.#(type=="text")#.text`).Array() {
		text.WriteString(block.String())
	}

	a.logger.Debug("Anthropic response received",
		"model", parsed.Get("model").String(),
		"stop_reason", parsed.Get("stop_reason").String(),
		"input_tokens", parsed.Get("usage.input_tokens").Int(),
		"output_tokens", parsed.Get("usage.output_tokens").Int(),
		"duration", time.Since(start))

	if parsed.Get("stop_reason").String() == "max_tokens" {
		// The json block is usually last, so a cut-off reply tends to lose it.
		a.logger.Warn("Game master reply hit the token limit", "max_tokens", a.maxTokens)
	}
	if text.Len() == 0 {
		return "", ErrEmptyReply
	}
	return text.String(), nil
}
