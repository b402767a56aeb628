package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/i474232898/weathera/internal/common"
)

// GeminiBaseURL is the Generative Language API root.
const GeminiBaseURL = "https://generativelanguage.googleapis.com"

// DefaultGeminiModel is the fallback model when none is configured.
const DefaultGeminiModel = "gemini-1.5-flash-001"

// GeminiProvider calls Google's generateContent endpoint. The API key goes in
// the query string; the system prompt is sent as systemInstruction.
type GeminiProvider struct {
	client *resty.Client
}

// NewGemini returns a GeminiProvider. baseURL may be empty.
func NewGemini(baseURL string, timeout time.Duration) *GeminiProvider {
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	return &GeminiProvider{
		client: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
	}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
}

// geminiRequestFor maps chat messages to Gemini contents. Assistant turns use
// the "model" role; system messages are merged into systemInstruction.
func geminiRequestFor(messages []Message) geminiRequest {
	var req geminiRequest
	req.GenerationConfig.Temperature = 0.7
	req.GenerationConfig.MaxOutputTokens = 2048
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if req.SystemInstruction == nil {
				req.SystemInstruction = &geminiContent{}
			}
			req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, geminiPart{Text: m.Content})
		case RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	return req
}

func (p *GeminiProvider) Complete(ctx context.Context, messages []Message, model, credential string) (Result, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("model", model).
		SetQueryParam("key", credential).
		SetBody(geminiRequestFor(messages)).
		Post("/v1beta/models/{model}:generateContent")
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

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{Outcome: OutcomeFailed, Status: resp.StatusCode(), Detail: "malformed body: " + common.Truncate(string(body), detailLimit)}, nil
	}
	if len(parsed.Candidates) == 0 || parsed.Candidates[0].Content == nil || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Result{Outcome: OutcomeEmpty, Status: resp.StatusCode(), Detail: "no candidates"}, nil
	}
	return Result{Outcome: OutcomeSuccess, Status: resp.StatusCode(), Text: parsed.Candidates[0].Content.Parts[0].Text}, nil
}
