package llm

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider turns a message list into a single assistant reply.
type Provider interface {
	Chat(messages []Message) (string, error)
}

// OllamaProvider talks to a local Ollama daemon.
type OllamaProvider struct {
	http        *resty.Client
	model       string
	temperature float64
}

// NewOllamaProvider creates an Ollama chat provider.
func NewOllamaProvider(baseURL, model string, temperature float64, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		http:        resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		model:       model,
		temperature: temperature,
	}
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Chat sends a non-streaming chat request.
func (p *OllamaProvider) Chat(messages []Message) (string, error) {
	resp, err := p.http.R().
		SetBody(map[string]any{
			"model":    p.model,
			"messages": messages,
			"stream":   false,
			"options":  map[string]any{"temperature": p.temperature},
		}).
		SetResult(&ollamaChatResponse{}).
		Post("/api/chat")
	if err != nil {
		return "", fmt.Errorf("failed to call ollama: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("ollama HTTP %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	return resp.Result().(*ollamaChatResponse).Message.Content, nil
}

// OpenRouterProvider talks to the OpenRouter OpenAI-compatible API.
type OpenRouterProvider struct {
	http        *resty.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenRouterProvider creates an OpenRouter chat provider.
func NewOpenRouterProvider(baseURL, apiKey, model string, temperature float64, maxTokens int, timeout time.Duration) *OpenRouterProvider {
	return &OpenRouterProvider{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Authorization", "Bearer "+apiKey),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends an OpenAI-style chat completion request.
func (p *OpenRouterProvider) Chat(messages []Message) (string, error) {
	resp, err := p.http.R().
		SetBody(map[string]any{
			"model":       p.model,
			"messages":    messages,
			"temperature": p.temperature,
			"max_tokens":  p.maxTokens,
		}).
		SetResult(&openRouterResponse{}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to call openrouter: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("openrouter HTTP %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	body := resp.Result().(*openRouterResponse)
	if len(body.Choices) == 0 {
		return "", fmt.Errorf("openrouter returned no choices")
	}
	return body.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
