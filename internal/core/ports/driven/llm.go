package driven

import "context"

// CompletionService generates chat completions.
type CompletionService interface {
	// Complete returns the model's reply for a system prompt and user
	// message pair.
	Complete(ctx context.Context, system, user string) (string, error)
}

// ImageService generates images from text prompts.
type ImageService interface {
	// Generate returns the raw bytes of a square image rendered from the
	// prompt.
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
