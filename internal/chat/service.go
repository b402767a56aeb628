package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/i474232898/weathera/internal/common"
	"github.com/i474232898/weathera/internal/llm"
	"github.com/i474232898/weathera/internal/weather"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxMessageRunes is the longest user message forwarded to the model.
	MaxMessageRunes = 500
	// RecentTurnLimit is how many previous turns are replayed to the model.
	RecentTurnLimit = 6
)

// ErrEmptyMessage is returned when the message is blank after trimming.
var ErrEmptyMessage = errors.New("message is empty")

// Completer produces the assistant reply for a composed conversation.
type Completer interface {
	Complete(ctx context.Context, system string, history []llm.Message, user string) (string, error)
}

// Request is one chat call.
type Request struct {
	SessionID string
	Message   string
	Context   WeatherContext
}

// Config wires the Service collaborators.
type Config struct {
	Enricher *Enricher
	History  *HistoryRetriever
	Turns    TurnStore
	LLM      Completer
	// Zone is the server zone used for the day period and the history digest.
	Zone *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
	// PersistTimeout bounds the background turn write. Defaults to 5s.
	PersistTimeout time.Duration
}

// Service runs the chat pipeline for one message at a time. It is safe for
// concurrent use.
type Service struct {
	enricher       *Enricher
	history        *HistoryRetriever
	turns          TurnStore
	llm            Completer
	zone           *time.Location
	now            func() time.Time
	persistTimeout time.Duration

	pending sync.WaitGroup
}

func NewService(cfg Config) *Service {
	s := &Service{
		enricher:       cfg.Enricher,
		history:        cfg.History,
		turns:          cfg.Turns,
		llm:            cfg.LLM,
		zone:           cfg.Zone,
		now:            cfg.Now,
		persistTimeout: cfg.PersistTimeout,
	}
	if s.enricher == nil {
		s.enricher = NewEnricher(nil, 0)
	}
	if s.history == nil {
		s.history = NewHistoryRetriever(nil)
	}
	if s.zone == nil {
		s.zone = DefaultZone
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.persistTimeout <= 0 {
		s.persistTimeout = 5 * time.Second
	}
	return s
}

// Reply answers req. The only errors are ErrEmptyMessage and the completer's
// terminal error; every other collaborator failure degrades to a default.
func (s *Service) Reply(ctx context.Context, req Request) (string, error) {
	message := strings.TrimSpace(common.Truncate(req.Message, MaxMessageRunes))
	if message == "" {
		return "", ErrEmptyMessage
	}
	if s.llm == nil {
		return "", llm.ErrAllProvidersExhausted
	}
	session := strings.TrimSpace(req.SessionID)
	if session == "" {
		session = DefaultSessionID
	}

	wc := req.Context.Clone()
	wc.Normalize()

	records := s.gatherContext(ctx, message, &wc)

	now := s.now()
	system := Compose(PromptInput{
		Context:    wc,
		History:    Digest(records, s.zone),
		Advisory:   ResolveAdvice(wc.Condition),
		Now:        now,
		ServerZone: s.zone,
	})

	var previous []Turn
	if s.turns != nil {
		var err error
		previous, err = s.turns.RecentTurns(ctx, session, RecentTurnLimit)
		if err != nil {
			log.Warn().Err(err).Str("session", session).Msg("loading conversation history failed")
			previous = nil
		}
	}

	reply, err := s.llm.Complete(ctx, system, TurnMessages(previous), message)
	if err != nil {
		return "", err
	}

	s.persist(Turn{
		ID:          uuid.NewString(),
		SessionID:   session,
		UserMessage: message,
		AIReply:     reply,
		Timestamp:   now.UTC(),
		Context:     wc.Clone(),
	})
	return reply, nil
}

// gatherContext runs the context switch and the history lookup concurrently
// and returns the history for the location wc ends up on.
func (s *Service) gatherContext(ctx context.Context, message string, wc *WeatherContext) []weather.LogRecord {
	original := wc.Location
	candidate, switching := s.enricher.Candidate(message, wc)
	lookup := original
	if switching {
		lookup = candidate
	}

	var (
		records  []weather.LogRecord
		switched bool
	)
	// Both lookups degrade instead of failing, so the group only joins them.
	var g errgroup.Group
	if switching {
		g.Go(func() error {
			switched = s.enricher.Switch(ctx, candidate, wc)
			return nil
		})
	}
	g.Go(func() error {
		records = s.history.Recent(ctx, lookup)
		return nil
	})
	g.Wait()

	switch {
	case switching && !switched:
		records = s.history.Recent(ctx, original)
	case switched && !common.ContainsFold(wc.Location, candidate):
		records = s.history.Recent(ctx, wc.Location)
	}
	return records
}

func (s *Service) persist(turn Turn) {
	if s.turns == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()
		if err := s.turns.AppendTurn(ctx, turn); err != nil {
			log.Error().Err(err).Str("session", turn.SessionID).Msg("saving chat turn failed")
		}
	}()
}

// Wait blocks until every background turn write has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// TurnMessages flattens turns into alternating user/assistant messages.
func TurnMessages(turns []Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.UserMessage},
			llm.Message{Role: llm.RoleAssistant, Content: t.AIReply},
		)
	}
	return msgs
}
