package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/weathera/internal/common"
	"github.com/rs/zerolog/log"
)

// DefaultAttemptTimeout bounds a single provider call.
const DefaultAttemptTimeout = 8 * time.Second

// Attempt is one entry of the fallback plan: a provider called with one
// credential and one model.
type Attempt struct {
	Provider   Provider
	Credential string
	Model      string
}

// String identifies the attempt with the credential masked.
func (a Attempt) String() string {
	return fmt.Sprintf("%s/%s (key %s)", a.Provider.Name(), a.Model, common.MaskSecret(a.Credential))
}

// BuildPlan expands the primary provider into credential x model attempts,
// credentials outermost, and appends the fallback attempts. Blank credentials
// and models are skipped.
func BuildPlan(primary Provider, credentials, models []string, fallbacks ...Attempt) []Attempt {
	var plan []Attempt
	if primary != nil {
		for _, cred := range credentials {
			if strings.TrimSpace(cred) == "" {
				continue
			}
			for _, model := range models {
				if strings.TrimSpace(model) == "" {
					continue
				}
				plan = append(plan, Attempt{Provider: primary, Credential: cred, Model: model})
			}
		}
	}
	for _, fb := range fallbacks {
		if fb.Provider == nil || strings.TrimSpace(fb.Credential) == "" || strings.TrimSpace(fb.Model) == "" {
			continue
		}
		plan = append(plan, fb)
	}
	return plan
}

// AttemptObserver is notified after every attempt.
type AttemptObserver func(a Attempt, outcome Outcome, elapsed time.Duration)

// Orchestrator walks a plan until one attempt yields a non-empty reply.
type Orchestrator struct {
	plan     []Attempt
	timeout  time.Duration
	observer AttemptObserver
}

// NewOrchestrator creates an Orchestrator. A non-positive timeout uses
// DefaultAttemptTimeout.
func NewOrchestrator(plan []Attempt, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	return &Orchestrator{plan: plan, timeout: timeout}
}

// Observe registers an AttemptObserver.
func (o *Orchestrator) Observe(fn AttemptObserver) {
	o.observer = fn
}

// Plan returns a copy of the attempt order.
func (o *Orchestrator) Plan() []Attempt {
	return append([]Attempt(nil), o.plan...)
}

// Complete sends [system, history..., user] to each attempt in order and
// returns the first non-empty reply. It fails with ErrAllProvidersExhausted
// once the plan is used up, or with the context error if ctx ends first.
func (o *Orchestrator) Complete(ctx context.Context, system string, history []Message, user string) (string, error) {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: user})

	for i, a := range o.plan {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		start := time.Now()
		text, outcome, detail := o.try(ctx, a, messages)
		if o.observer != nil {
			o.observer(a, outcome, time.Since(start))
		}
		if outcome == OutcomeSuccess {
			if i > 0 {
				log.Info().Str("attempt", a.String()).Int("index", i).Msg("llm fallback succeeded")
			}
			return text, nil
		}

		ev := log.Warn()
		if outcome == OutcomeRateLimited || outcome == OutcomeModelUnavailable {
			ev = log.Info()
		}
		ev.Str("attempt", a.String()).Str("outcome", outcome.String()).Str("detail", detail).Msg("llm attempt failed; advancing")
	}

	log.Error().Int("attempts", len(o.plan)).Msg("all llm providers exhausted")
	return "", ErrAllProvidersExhausted
}

func (o *Orchestrator) try(ctx context.Context, a Attempt, messages []Message) (string, Outcome, string) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := a.Provider.Complete(ctx, messages, a.Model, a.Credential)
	if err != nil {
		return "", OutcomeTransportError, err.Error()
	}
	if res.Outcome != OutcomeSuccess {
		return "", res.Outcome, res.Detail
	}
	if strings.TrimSpace(res.Text) == "" {
		return "", OutcomeEmpty, "blank reply"
	}
	return res.Text, OutcomeSuccess, ""
}
