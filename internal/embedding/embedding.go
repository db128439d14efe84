package embedding

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Dimensions is the vector length of the embedding model. The search index
// schema is pinned to it.
const Dimensions = 1536

// Provider turns text into a fixed-length vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIProvider computes embeddings with OpenAI's ada-002 model.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a provider using the given API key.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

// Embed returns the embedding vector for the given text. Newlines are
// replaced with spaces, which measurably improves ada-002 results.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	response, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.AdaEmbeddingV2,
		Input: []string{strings.ReplaceAll(text, "\n", " ")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	return response.Data[0].Embedding, nil
}
