package llm

import (
	"context"
	"errors"
)

// ErrAllProvidersExhausted is returned when no attempt in the plan produced a reply.
var ErrAllProvidersExhausted = errors.New("all llm providers exhausted")

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Outcome classifies a single completion attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeModelUnavailable
	OutcomeFailed
	OutcomeTransportError
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeModelUnavailable:
		return "model_unavailable"
	case OutcomeFailed:
		return "failed"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Result is what a provider returns for a request that reached the upstream.
type Result struct {
	Outcome Outcome
	Status  int
	Text    string
	// Detail is a truncated upstream body, for logs only.
	Detail string
}

// Provider is one LLM backend. Complete returns an error only when the request
// could not be delivered or answered at the transport level; upstream refusals
// are reported through Result.Outcome.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []Message, model, credential string) (Result, error)
}
