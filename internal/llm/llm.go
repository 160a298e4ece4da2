package llm

import "context"

// Model abstracts the external generative model used by the analysis service.
// Implementations must be safe for concurrent use.
type Model interface {
	// Generate submits prompt text and returns the model's raw reply text.
	Generate(ctx context.Context, prompt string) (string, error)
	// Name returns a short provider label for logs and metrics, e.g. "gemini".
	Name() string
}

// ModelFunc adapts a plain function to Model.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

func (f ModelFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func (f ModelFunc) Name() string { return "func" }
