package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingsClient is the subset of *openai.Client used here.
type EmbeddingsClient interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

var _ EmbeddingsClient = (*openai.Client)(nil)

// OpenAI embeds text with the OpenAI embeddings API.
type OpenAI struct {
	client EmbeddingsClient
	model  openai.EmbeddingModel
}

// NewOpenAI builds a provider from an API key and optional base URL.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("embedding: openai api key required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIWithClient(openai.NewClientWithConfig(cfg), model), nil
}

// NewOpenAIWithClient wraps an existing client.
func NewOpenAIWithClient(client EmbeddingsClient, model string) *OpenAI {
	m := openai.SmallEmbedding3
	if model != "" {
		m = openai.EmbeddingModel(model)
	}
	return &OpenAI{client: client, model: m}
}

// Model returns the embedding model name.
func (o *OpenAI) Model() string {
	return string(o.model)
}

// Embed implements Provider.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float64, bool, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: o.model,
	})
	if err != nil {
		return nil, false, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, false, nil
	}
	raw := resp.Data[0].Embedding
	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return vec, true, nil
}
