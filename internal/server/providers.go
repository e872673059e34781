package server

import (
	"fmt"

	"creatordesk/internal/llm"
	"creatordesk/internal/llm/anthropic"
	"creatordesk/internal/llm/openai"
)

// DefaultFactory builds a client for the providers a workspace can store a
// key for. An empty model selects the provider default.
func DefaultFactory(provider, apiKey, model string) (llm.Client, error) {
	switch provider {
	case anthropic.ProviderName:
		return anthropic.New(apiKey, model), nil
	case openai.ProviderName:
		return openai.New(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}
