package llm

import (
	"fmt"

	"patentwatch/internal/config"
)

// NewAdapter instantiates the backend variant selected by configuration.
// Callers never learn which variant is active.
func NewAdapter(cfg config.ModelConfig) (Adapter, error) {
	switch cfg.Type {
	case "openai":
		return NewOpenAIAdapter(cfg.OpenAI)
	case "ollama":
		return NewOllamaAdapter(cfg.Ollama), nil
	default:
		return nil, fmt.Errorf("unsupported model type: %q", cfg.Type)
	}
}
