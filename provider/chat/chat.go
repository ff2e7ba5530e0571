// Package chat provides prompt optimization through the chat-completion endpoint.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pverdu/genstudio/provider"
)

// DefaultModel is the chat model used for prompt optimization.
const DefaultModel = "gpt-4o-mini"

// ErrBaseURLRequired is returned when the base URL is not provided.
var ErrBaseURLRequired = errors.New("chat: base URL is required")

// optimizeSystemPrompt instructs the model to expand a short description into
// a detailed generation prompt and return nothing else.
const optimizeSystemPrompt = "You are an expert at optimizing prompts for " +
	"generative video models. Rewrite the user's short description into a " +
	"detailed, vivid generation prompt: keep the core subject, add detail " +
	"(color, light, mood, motion), improve composition and camera language. " +
	"Return only the optimized prompt with no explanation."

// batchSystemPrompt asks for five variations of one scene separated by ---.
const batchSystemPrompt = "You are an expert at optimizing prompts for " +
	"generative image models. The user wants a batch of the same scene: " +
	"produce 5 variant prompts differing in framing, lighting, art style, " +
	"color tone and mood while keeping the core subject. Return exactly the " +
	"5 prompts separated by \"---\" with no other content."

// batchSize is how many prompt variants BatchOptimize produces.
const batchSize = 5

// Client calls the chat-completion endpoint for prompt optimization.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithModel selects the chat model.
func WithModel(model string) Option {
	return func(cl *Client) {
		cl.model = model
	}
}

// New creates a chat client.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &Client{
		baseURL:    baseURL,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Optimize rewrites a prompt into a richer one. The input prompt is returned
// when the model answers with empty content.
func (c *Client) Optimize(ctx context.Context, token, prompt string) (string, error) {
	body := completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: optimizeSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	}

	var resp completionResponse
	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	if err := provider.DoJSON(ctx, c.httpClient, http.MethodPost, url, token, body, &resp); err != nil {
		return "", fmt.Errorf("chat: optimize prompt: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return prompt, nil
	}
	return resp.Choices[0].Message.Content, nil
}

// BatchOptimize produces five variant prompts for a batch generation of the
// same scene. It degrades gracefully: a malformed reply falls back to line
// splitting, then to padding with the original prompt, and a transport error
// yields five copies of the input.
func (c *Client) BatchOptimize(ctx context.Context, token, prompt string) []string {
	body := completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: batchSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.9,
		MaxTokens:   2000,
	}

	var resp completionResponse
	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	if err := provider.DoJSON(ctx, c.httpClient, http.MethodPost, url, token, body, &resp); err != nil {
		return repeat(prompt, batchSize)
	}

	if len(resp.Choices) == 0 {
		return repeat(prompt, batchSize)
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return repeat(prompt, batchSize)
	}

	prompts := splitNonEmpty(content, "---", 0)
	if len(prompts) >= 2 {
		return cap5(prompts)
	}

	// Model ignored the separator; try one prompt per line.
	lines := splitNonEmpty(content, "\n", 10)
	if len(lines) >= 2 {
		return cap5(lines)
	}

	return cap5([]string{content, prompt, prompt, prompt, prompt})
}

// splitNonEmpty splits on sep, trims each part, and drops parts at or below
// minLen characters.
func splitNonEmpty(s, sep string, minLen int) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if len(part) > minLen {
			out = append(out, part)
		}
	}
	return out
}

func cap5(prompts []string) []string {
	if len(prompts) > batchSize {
		return prompts[:batchSize]
	}
	return prompts
}

func repeat(prompt string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prompt
	}
	return out
}
