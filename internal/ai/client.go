package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/nocsi/drip-api-sub008/internal/config"
)

// ErrNoToken is returned when neither the config nor the environment has an API key
var ErrNoToken = errors.New("no API token provided: set --ai-token flag or ANTHROPIC_API_KEY environment variable")

// Completer sends one system and user prompt pair to a model
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int64) (text string, tokens int, err error)
}

// Client is a Completer backed by the Anthropic Messages API
type Client struct {
	api     *anthropic.Client
	model   string
	timeout time.Duration
}

var modelIDs = map[string]string{
	"haiku":  "claude-3-5-haiku-latest",
	"sonnet": "claude-sonnet-4-20250514",
	"opus":   "claude-opus-4-20250514",
}

// NewClient creates a client from the AI config. The token falls back to
// ANTHROPIC_API_KEY.
func NewClient(cfg config.AIConfig) (*Client, error) {
	token := cfg.APIToken
	if token == "" {
		token = os.Getenv("ANTHROPIC_API_KEY")
	}
	if token == "" {
		return nil, ErrNoToken
	}

	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Client{
		api:     anthropic.NewClient(option.WithAPIKey(token)),
		model:   mapModelName(cfg.Model),
		timeout: timeout,
	}, nil
}

// mapModelName resolves haiku, sonnet or opus to a model ID; anything else is sonnet
func mapModelName(name string) string {
	if id, ok := modelIDs[strings.ToLower(name)]; ok {
		return id
	}
	return modelIDs["sonnet"]
}

// Model returns the resolved model ID
func (c *Client) Model() string {
	return c.model
}

// Complete implements Completer
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int64) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(c.model),
		MaxTokens: anthropic.F(maxTokens),
		System:    anthropic.F([]anthropic.TextBlockParam{anthropic.NewTextBlock(system)}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		}),
	}
	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", 0, fmt.Errorf("triage request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", 0, errors.New("model returned no text")
	}
	return text.String(), int(msg.Usage.InputTokens + msg.Usage.OutputTokens), nil
}

// parseTriageResponse decodes the model's verdict object
func parseTriageResponse(text string, threatID string) (*TriageResponse, error) {
	var raw struct {
		Verdict     string   `json:"verdict"`
		Confidence  int      `json:"confidence"`
		Explanation string   `json:"explanation"`
		Indicators  []string `json:"indicators"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil {
		return nil, err
	}

	return &TriageResponse{
		ThreatID:    threatID,
		Verdict:     ParseVerdict(raw.Verdict),
		Confidence:  raw.Confidence,
		Explanation: raw.Explanation,
		Indicators:  raw.Indicators,
	}, nil
}

// extractJSON returns the outermost JSON object in text, unwrapping a fenced block
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if open := strings.Index(text, "```"); open != -1 {
		body := text[open+3:]
		if nl := strings.IndexByte(body, '\n'); nl != -1 {
			body = body[nl+1:]
		}
		if end := strings.LastIndex(body, "```"); end != -1 {
			body = body[:end]
		}
		text = body
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start != -1 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
