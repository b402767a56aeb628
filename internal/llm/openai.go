package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/i474232898/weathera/internal/common"
)

const (
	// GroqBaseURL is Groq's OpenAI-compatible endpoint root.
	GroqBaseURL = "https://api.groq.com/openai/v1"

	detailLimit = 300
)

// DefaultGroqModels is the model order tried for every Groq key.
var DefaultGroqModels = []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant", "gemma2-9b-it"}

// OpenAIProvider talks to any OpenAI-compatible chat completions API (Groq).
type OpenAIProvider struct {
	name        string
	client      *resty.Client
	temperature float64
	maxTokens   int
}

// NewGroq returns an OpenAIProvider for Groq. baseURL may be empty.
func NewGroq(baseURL string, timeout time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	return NewOpenAIProvider("groq", baseURL, timeout)
}

func NewOpenAIProvider(name, baseURL string, timeout time.Duration) *OpenAIProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &OpenAIProvider{
		name:        name,
		client:      client,
		temperature: 0.7,
		maxTokens:   2048,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, model, credential string) (Result, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(credential).
		SetBody(chatRequest{
			Model:       model,
			Messages:    messages,
			Temperature: p.temperature,
			MaxTokens:   p.maxTokens,
		}).
		Post("/chat/completions")
	if err != nil {
		return Result{}, err
	}

	body := resp.Body()
	if !resp.IsSuccess() {
		return Result{
			Outcome: Classify(resp.StatusCode(), body),
			Status:  resp.StatusCode(),
			Detail:  common.Truncate(string(body), detailLimit),
		}, nil
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{Outcome: OutcomeFailed, Status: resp.StatusCode(), Detail: "malformed body: " + common.Truncate(string(body), detailLimit)}, nil
	}
	if len(parsed.Choices) == 0 {
		return Result{Outcome: OutcomeEmpty, Status: resp.StatusCode(), Detail: "no choices"}, nil
	}
	return Result{Outcome: OutcomeSuccess, Status: resp.StatusCode(), Text: parsed.Choices[0].Message.Content}, nil
}
