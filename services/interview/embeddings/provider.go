// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package embeddings indexes recorded interview answers for downstream
// similarity search.
//
// # Description
//
// Each recorded answer is embedded and written to the Answer class in
// Weaviate together with its question label, category, and session.
// Indexing is a purely downstream analytics concern: it runs
// asynchronously and its failure never blocks or alters an interview
// turn.
package embeddings

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// EmbeddingProvider converts answer text into a vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIProvider embeds text through an OpenAI-compatible embeddings
// endpoint. Pointing BaseURL at a local Ollama instance works, since
// Ollama serves the same API shape.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// OpenAIProviderConfig configures the provider.
type OpenAIProviderConfig struct {
	// APIKey authenticates against the endpoint. May be a placeholder
	// for local servers that ignore authentication.
	APIKey string

	// BaseURL overrides the OpenAI API endpoint. Empty means the
	// public OpenAI API.
	BaseURL string

	// Model is the embedding model name.
	// Default: "nomic-embed-text".
	Model string
}

// NewOpenAIProvider creates a provider.
func NewOpenAIProvider(cfg OpenAIProviderConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(model),
	}
}

// Embed implements EmbeddingProvider.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no vectors")
	}
	return resp.Data[0].Embedding, nil
}
