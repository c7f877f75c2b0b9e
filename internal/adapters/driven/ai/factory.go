// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"fmt"
	"time"

	ollamaembed "github.com/communitykit/communitybot/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/communitykit/communitybot/internal/adapters/driven/embedding/openai"
	openaiimage "github.com/communitykit/communitybot/internal/adapters/driven/image/openai"
	anthropicllm "github.com/communitykit/communitybot/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/communitykit/communitybot/internal/adapters/driven/llm/ollama"
	openaillm "github.com/communitykit/communitybot/internal/adapters/driven/llm/openai"
	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// CompletionConfig selects and configures the completion provider.
type CompletionConfig struct {
	// Provider is one of openai, anthropic, ollama (default: openai).
	Provider string

	// APIKey authenticates hosted providers. Unused for ollama.
	APIKey string

	// Model overrides the provider's default chat model.
	Model string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Timeout is the request timeout. Zero means the provider default.
	Timeout time.Duration
}

// EmbeddingConfig selects and configures the embedding provider.
// Anthropic has no embedding API, so the choice here is openai or ollama.
type EmbeddingConfig struct {
	// Provider is one of openai, ollama (default: openai).
	Provider string

	// APIKey authenticates hosted providers. Unused for ollama.
	APIKey string

	// Model overrides the provider's default embedding model.
	Model string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Dimensions overrides the embedding vector size.
	Dimensions int
}

// ImageConfig selects and configures the image generation provider.
// Only openai serves image generation today.
type ImageConfig struct {
	// Provider is openai (default).
	Provider string

	// APIKey authenticates the provider.
	APIKey string

	// Model overrides the provider's default image model.
	Model string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Timeout is the request timeout. Zero means the provider default.
	Timeout time.Duration
}

// NewCompletionService creates the configured completion service.
func NewCompletionService(cfg CompletionConfig) (driven.CompletionService, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		svc, err := openaillm.NewCompletionService(openaillm.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
		}
		return svc, nil

	case ProviderAnthropic:
		svc, err := anthropicllm.NewCompletionService(anthropicllm.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
		}
		return svc, nil

	case ProviderOllama:
		return ollamallm.NewCompletionService(ollamallm.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil

	default:
		return nil, fmt.Errorf("%w: unknown completion provider %q",
			domain.ErrLLMUnavailable, cfg.Provider)
	}
}

// NewEmbeddingService creates the configured embedding service.
func NewEmbeddingService(cfg EmbeddingConfig) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		return svc, nil

	case ProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil

	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q",
			domain.ErrEmbeddingUnavailable, cfg.Provider)
	}
}

// NewImageService creates the configured image generation service.
func NewImageService(cfg ImageConfig) (driven.ImageService, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		svc, err := openaiimage.NewImageService(openaiimage.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrImageUnavailable, err)
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: unknown image provider %q",
			domain.ErrImageUnavailable, cfg.Provider)
	}
}
