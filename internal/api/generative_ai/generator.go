package generativeAI

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/xco2/tripspot/internal/types"
)

// Request is a single system+user completion.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	// MaxTokens of zero leaves the provider default.
	MaxTokens int
	// JSON asks the provider for a JSON document.
	JSON bool
	// Schema describes the expected JSON for providers that support structured output.
	Schema *genai.Schema
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// Factory builds a Generator from the settings current at call time.
type Factory interface {
	NewGenerator(ctx context.Context, settings types.Settings) (Generator, error)
}

// ClientFactory picks the provider from the configured model and base URL.
type ClientFactory struct {
	http *http.Client
}

var _ Factory = (*ClientFactory)(nil)

// NewClientFactory returns a factory whose generators share one traced HTTP client.
func NewClientFactory(httpClient *http.Client, timeout time.Duration) *ClientFactory {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &ClientFactory{http: httpClient}
}

// NewGenerator returns types.ErrConfiguration when no API key is set.
// Gemini models without a custom base URL go through the Gemini API,
// everything else through an OpenAI-compatible endpoint.
func (f *ClientFactory) NewGenerator(ctx context.Context, settings types.Settings) (Generator, error) {
	if !settings.LLMConfigured() {
		return nil, fmt.Errorf("llm api key: %w", types.ErrConfiguration)
	}
	model := settings.Model()
	if IsGeminiModel(model) && settings.LLMBaseURL == "" {
		return NewGeminiClient(ctx, settings.LLMAPIKey, model, f.http)
	}
	return NewOpenAIClient(settings.LLMAPIKey, settings.LLMBaseURL, model, f.http), nil
}

// IsGeminiModel reports whether model names a Gemini model.
func IsGeminiModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "gemini")
}

// CleanJSONResponse strips markdown fences and any prose around the JSON value.
func CleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	start := strings.IndexAny(response, "[{")
	if start == -1 {
		return response
	}
	closing := byte('}')
	if response[start] == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(response, closing)
	if end <= start {
		return response
	}
	return strings.TrimSpace(response[start : end+1])
}
