package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/app/observability/metrics"
	"github.com/xco2/tripspot/internal/types"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

var _ Generator = (*OpenAIClient)(nil)

// NewOpenAIClient targets baseURL, or the OpenAI API when it is empty.
func NewOpenAIClient(apiKey, baseURL, model string, httpClient *http.Client) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIClient) Model() string { return c.model }

// Generate sends one chat completion. If the endpoint rejects response_format
// the request is retried once without it.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "OpenAIGenerate", trace.WithAttributes(
		attribute.String("model", c.model),
		attribute.Int("prompt.length", len(req.Prompt)),
		attribute.Bool("json", req.JSON),
	))
	defer span.End()

	m := metrics.Get()
	t0 := time.Now()

	body := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.JSON {
		body.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, body)
	if err != nil && body.ResponseFormat != nil && rejectsResponseFormat(err) {
		span.AddEvent("retry without response_format")
		body.ResponseFormat = nil
		resp, err = c.client.CreateChatCompletion(ctx, body)
	}
	if err != nil {
		m.ObserveExternal(ctx, "llm", "chat_completion", "error", t0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		m.ObserveExternal(ctx, "llm", "chat_completion", "empty", t0)
		span.SetStatus(codes.Error, "no choices")
		return "", fmt.Errorf("chat completion: %w: no choices", types.ErrMalformedResponse)
	}

	m.ObserveExternal(ctx, "llm", "chat_completion", "ok", t0)
	text := resp.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("response.length", len(text)))
	span.SetStatus(codes.Ok, "completion received")
	return text, nil
}

func rejectsResponseFormat(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusBadRequest && strings.Contains(apiErr.Message, "response_format")
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusBadRequest && strings.Contains(reqErr.Error(), "response_format")
	}
	return false
}

// classifyOpenAIError reports every API failure as an unavailable service.
// A rejected key keeps its status code in the message so the user can act on it.
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("chat completion: %w: key rejected (http %d): %w", types.ErrServiceUnavailable, status, err)
	}
	return fmt.Errorf("chat completion: %w: %w", types.ErrServiceUnavailable, err)
}
