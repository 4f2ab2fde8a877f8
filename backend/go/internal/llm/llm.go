package llm

import (
	"AgentOffice/backend/go/internal/config"
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned when the selected provider has no API key.
var ErrNotConfigured = errors.New("llm provider not configured")

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is a provider independent chat completion request.
type CompletionRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// LLM is implemented by every provider client.
type LLM interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}

// NewClient builds the client for cfg.Provider.
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLM, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, ErrNotConfigured
		}
		return NewOpenAI(cfg.OpenAI)
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, ErrNotConfigured
		}
		return NewGemini(ctx, cfg.Gemini)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// Prompt is a convenience for single-turn requests.
func Prompt(system, user string, maxTokens int) CompletionRequest {
	return CompletionRequest{
		System:      system,
		Messages:    []Message{{Role: RoleUser, Content: user}},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}
}
