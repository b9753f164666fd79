//go:build integration

package generativeAI

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiClient_Integration(t *testing.T) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping integration test: GOOGLE_GEMINI_API_KEY not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := NewGeminiClient(ctx, apiKey, "gemini-2.0-flash", nil)
	require.NoError(t, err)

	text, err := c.Generate(ctx, Request{
		System:      "Answer with a single word.",
		Prompt:      "What is the capital of Sichuan province?",
		Temperature: 0.1,
		MaxTokens:   20,
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Chengdu")
}
