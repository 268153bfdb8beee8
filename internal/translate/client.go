// Package translate is the Ollama chat client used for subtitle
// translation with local reasoning models.
package translate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultModel is the local translation model pulled by default.
const DefaultModel = "deepseek-r1:1.5b"

// DefaultBaseURL is the standard local Ollama endpoint.
const DefaultBaseURL = "http://localhost:11434"

var thinkBlockRE = regexp.MustCompile(`(?is)<think>.*?</think>`)
var thinkTagRE = regexp.MustCompile(`(?i)</?think[^>]*>`)

// Client talks to an Ollama server's chat API.
type Client struct {
	http    *resty.Client
	baseURL string
	model   string
}

// New creates a client for the given Ollama base URL and model. Empty
// arguments fall back to the defaults.
func New(baseURL, model string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}

	return &Client{
		http:    resty.New().SetTimeout(2 * time.Minute),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

// Translate translates one piece of subtitle text between languages.
// Reasoning blocks emitted by thinking models are stripped from the reply.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	system := fmt.Sprintf(
		"You are a professional translator. Translate the following text from %s to %s. "+
			"Return only the translation, no explanations or additional text.",
		sourceLang, targetLang)

	body := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": text},
		},
		"stream":  false,
		"options": map[string]any{"temperature": 0.1},
	}

	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post(c.baseURL + "/api/chat")
	if err != nil {
		return "", fmt.Errorf("ollama translate on %s: %w", c.baseURL, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ollama translate: %s; body: %s", resp.Status(), resp.String())
	}

	translated := cleanReasoningResponse(out.Message.Content)
	if translated == "" {
		return "", fmt.Errorf("ollama returned an empty translation")
	}
	return translated, nil
}

// Ping verifies the Ollama server is reachable and lists models.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get(c.baseURL + "/api/tags")
	if err != nil {
		return fmt.Errorf("ollama unreachable on %s: %w", c.baseURL, err)
	}
	if resp.IsError() {
		return fmt.Errorf("ollama on %s: %s", c.baseURL, resp.Status())
	}
	return nil
}

// cleanReasoningResponse removes <think> blocks and collapses whitespace.
// Falls back to the raw reply when stripping leaves nothing.
func cleanReasoningResponse(raw string) string {
	cleaned := thinkBlockRE.ReplaceAllString(raw, "")
	cleaned = thinkTagRE.ReplaceAllString(cleaned, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return strings.TrimSpace(raw)
	}
	return cleaned
}
