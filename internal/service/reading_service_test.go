package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarot/internal/llm"
	"tarot/internal/model"
)

type fakeCompleter struct {
	system, user string
	err          error
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (*llm.Completion, error) {
	f.system, f.user = system, user
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Text: "The Tower speaks of sudden change.", Model: "deepseek-chat", PromptTokens: 120, CompletionTokens: 40}, nil
}

func TestReadingUsesBuiltInPromptByDefault(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	f := &fakeCompleter{}
	svc := NewReadingService(st, f, nopLogger)

	r, err := svc.Generate(context.Background(), "u1", ReadingInput{
		Question: "Should I change jobs?",
		Spread:   "three-card",
		Cards: []Card{
			{Name: "The Tower", Position: "past"},
			{Name: "Six of Cups", Position: "present", Reversed: true},
			{Name: "The Star"},
		},
		TopicTitle: "Career",
	})
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", r.Model)
	assert.Equal(t, defaultReadingPrompt, f.system)
	assert.Contains(t, f.user, "Topic: Career")
	assert.Contains(t, f.user, "1. past: The Tower (upright)")
	assert.Contains(t, f.user, "2. present: Six of Cups (reversed)")
	assert.Contains(t, f.user, "3. card 3: The Star (upright)")
}

func TestReadingUsesStoredPrompt(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	require.NoError(t, st.Prompts().Upsert(context.Background(), &model.Prompt{Name: ReadingPromptName, Content: "Be brief."}))
	f := &fakeCompleter{}
	svc := NewReadingService(st, f, nopLogger)

	_, err := svc.Generate(context.Background(), "u1", ReadingInput{Question: "q", Cards: []Card{{Name: "The Fool"}}})
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", f.system)
}

func TestReadingUpstreamFailure(t *testing.T) {
	c := newClock()
	f := &fakeCompleter{err: errors.New("503 from provider")}
	svc := NewReadingService(newTestStore(c), f, nopLogger)

	_, err := svc.Generate(context.Background(), "u1", ReadingInput{Question: "q"})
	assert.ErrorIs(t, err, ErrLLMUnavailable)
}
