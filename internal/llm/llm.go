// Package llm wraps the Gemini API for embeddings and structured generation,
// and provides a deterministic fallback embedder for offline use and tests.
package llm

import (
	"context"
	"fmt"
	"os"

	"curateai/internal/core"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model for angle generation.
	DefaultModel = "gemini-flash-lite-latest"
	// DefaultEmbeddingModel is the default model for generating embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
)

// Client represents a client for interacting with the Gemini API.
type Client struct {
	modelName      string
	embeddingModel string
	gClient        *genai.Client
}

// NewClient creates a new LLM client. The API key comes from the argument or,
// when empty, the GEMINI_API_KEY environment variable.
func NewClient(ctx context.Context, apiKey, modelName, embeddingModel string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required; set GEMINI_API_KEY or ai.gemini.api_key in config")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName:      modelName,
		embeddingModel: embeddingModel,
		gClient:        gClient,
	}, nil
}

// Embed generates a vector embedding for the given text using the configured
// embedding model, truncated to 768 dimensions via Matryoshka.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
	}}
	dims := int32(core.EmbeddingDimensions)
	config := &genai.EmbedContentConfig{OutputDimensionality: &dims}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, val := range values {
		embedding[i] = float64(val)
	}
	return embedding, nil
}

// Dimensions returns the fixed embedding dimension.
func (c *Client) Dimensions() int { return core.EmbeddingDimensions }

// GenerateStructured generates JSON output conforming to the given schema
// and returns the raw JSON text.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	temp := float32(0.3) // lower temperature for structured output
	config := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate structured output: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// ModelName returns the configured generation model.
func (c *Client) ModelName() string { return c.modelName }
