// Package llm provides the OpenAI chat-completions client that turns
// market data summaries into free-text analysis.
//
// The LLM is an opaque text-generation boundary: failures are returned
// as user-visible messages through Analyze-style helpers and never
// abort the pipeline.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyperflow/hyperflow/configs"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client talks to the OpenAI chat completions API.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *logrus.Entry
}

// NewClient creates an LLM client from configuration.
func NewClient(cfg configs.OpenAIConfig, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:     defaultBaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      logger.WithField("component", "llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeMarketData answers a free-text question about a data summary.
// On failure it returns a user-visible error message, not an error.
func (c *Client) AnalyzeMarketData(ctx context.Context, summary any, question string) string {
	prompt := fmt.Sprintf(
		"You are analyzing cryptocurrency market data. Here's the data summary:\n\n%s\n\nQuestion: %s\n\nProvide a clear, concise answer based on the data.",
		compactJSON(summary), question)
	return c.complete(ctx,
		"You are a crypto market analyst. Provide clear, concise, and trader-friendly insights.",
		prompt)
}

// GenerateMarketSummary produces a short narrative summary of the data.
func (c *Client) GenerateMarketSummary(ctx context.Context, summary any) string {
	prompt := fmt.Sprintf(
		"Summarize the current state of this cryptocurrency market data:\n\n%s\n\nHighlight notable price moves, volatility and volume behavior.",
		compactJSON(summary))
	return c.complete(ctx,
		"You are a crypto market analyst. Provide a clear and insightful market summary.",
		prompt)
}

// DetectPatterns asks for pattern and trend observations in the data.
func (c *Client) DetectPatterns(ctx context.Context, summary any) string {
	prompt := fmt.Sprintf(
		"Identify patterns and trends in this cryptocurrency market data:\n\n%s",
		compactJSON(summary))
	return c.complete(ctx,
		"You are a crypto market analyst. Identify patterns and trends in the data.",
		prompt)
}

// complete issues one chat completion. Failures surface as text.
func (c *Client) complete(ctx context.Context, system, user string) string {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return c.failure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return c.failure(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.failure(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.failure(err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return c.failure(err)
	}
	if parsed.Error != nil {
		return c.failure(fmt.Errorf("api error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return c.failure(fmt.Errorf("empty completion response"))
	}
	return parsed.Choices[0].Message.Content
}

func (c *Client) failure(err error) string {
	c.logger.WithError(err).Error("completion failed")
	return fmt.Sprintf("Sorry, I encountered an error while analyzing the data: %v", err)
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
