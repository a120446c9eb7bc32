package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"tarot/internal/llm"
	"tarot/internal/metrics"
	"tarot/internal/repository"
)

// ReadingPromptName is the prompts row holding the reading system prompt.
const ReadingPromptName = "tarot_reading"

const defaultReadingPrompt = `You are an experienced, warm tarot reader.
Interpret the drawn cards for the querent's question. Address each card in its
position, note whether it is upright or reversed, then weave the cards into one
coherent reading and close with practical, gentle guidance.
Answer in the language of the question. Do not make medical, legal or financial
predictions.`

type Card struct {
	Name     string
	Position string
	Reversed bool
}

type ReadingInput struct {
	Question   string
	Spread     string
	Cards      []Card
	TopicTitle string
}

type Reading struct {
	Text  string
	Model string
}

// ReadingService asks the LLM for a tarot interpretation.
type ReadingService interface {
	Generate(ctx context.Context, userID string, in ReadingInput) (*Reading, error)
}

type readingService struct {
	store  repository.Store
	llm    llm.Completer
	logger zerolog.Logger
}

func NewReadingService(store repository.Store, completer llm.Completer, logger zerolog.Logger) ReadingService {
	return &readingService{
		store:  store,
		llm:    completer,
		logger: logger.With().Str("service", "ReadingService").Logger(),
	}
}

func (s *readingService) systemPrompt(ctx context.Context) string {
	p, err := s.store.Prompts().Get(ctx, ReadingPromptName)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Failed to load reading prompt, using built-in prompt")
		}
		return defaultReadingPrompt
	}
	if strings.TrimSpace(p.Content) == "" {
		return defaultReadingPrompt
	}
	return p.Content
}

// userPrompt renders the question and the drawn cards.
func userPrompt(in ReadingInput) string {
	var b strings.Builder
	if in.TopicTitle != "" {
		fmt.Fprintf(&b, "Topic: %s\n", in.TopicTitle)
	}
	fmt.Fprintf(&b, "Question: %s\n", in.Question)
	if in.Spread != "" {
		fmt.Fprintf(&b, "Spread: %s\n", in.Spread)
	}
	b.WriteString("Cards:\n")
	for i, c := range in.Cards {
		orientation := "upright"
		if c.Reversed {
			orientation = "reversed"
		}
		position := c.Position
		if position == "" {
			position = fmt.Sprintf("card %d", i+1)
		}
		fmt.Fprintf(&b, "%d. %s: %s (%s)\n", i+1, position, c.Name, orientation)
	}
	return b.String()
}

func (s *readingService) Generate(ctx context.Context, userID string, in ReadingInput) (*Reading, error) {
	completion, err := s.llm.Complete(ctx, s.systemPrompt(ctx), userPrompt(in))
	if err != nil {
		metrics.ReadingsGeneratedTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Reading completion failed")
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	metrics.ReadingsGeneratedTotal.WithLabelValues("ok").Inc()
	metrics.LLMTokensTotal.WithLabelValues("prompt").Add(float64(completion.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues("completion").Add(float64(completion.CompletionTokens))
	s.logger.Info().
		Str("user_id", userID).
		Str("model", completion.Model).
		Int("prompt_tokens", completion.PromptTokens).
		Int("completion_tokens", completion.CompletionTokens).
		Msg("Reading generated")
	return &Reading{Text: completion.Text, Model: completion.Model}, nil
}
