package analysis

import "context"

// Prompt is a structured generation request.
type Prompt struct {
	Instructions string
	Input        string
}

// ModelConfig selects the model and bounds its output.
type ModelConfig struct {
	Model           string
	MaxOutputTokens int
	Temperature     float64
}

// Generator renders natural language from a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt Prompt, cfg ModelConfig) (string, error)
}
