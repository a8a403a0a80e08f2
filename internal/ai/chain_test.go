package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alekspetrov/ideabot/internal/idea"
)

// fakeProvider records calls and returns canned results.
type fakeProvider struct {
	name       string
	transcript string
	cat        *idea.Categorization
	insights   *idea.Insights
	err        error
	calls      int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Transcribe(ctx context.Context, audio Audio) (string, error) {
	f.calls++
	return f.transcript, f.err
}

func (f *fakeProvider) Categorize(ctx context.Context, text string, existing []string) (*idea.Categorization, error) {
	f.calls++
	return f.cat, f.err
}

func (f *fakeProvider) GenerateInsights(ctx context.Context, ideas []*idea.Idea) (*idea.Insights, error) {
	f.calls++
	return f.insights, f.err
}

func goodCat() *idea.Categorization {
	return &idea.Categorization{Category: "Business", Confidence: 0.8, Tags: []string{"pricing", "billing"}}
}

func TestChainFirstSuccessWins(t *testing.T) {
	for k := 1; k <= 4; k++ {
		providers := make([]*fakeProvider, 4)
		list := make([]Provider, 4)
		for i := range providers {
			providers[i] = &fakeProvider{name: string(rune('a' + i)), err: errors.New("down")}
			if i == k-1 {
				providers[i].err = nil
				providers[i].cat = &idea.Categorization{Category: providers[i].name, Confidence: 0.5, Tags: []string{"x"}}
			}
			list[i] = providers[i]
		}

		got, err := NewChain(list, nil).Categorize(context.Background(), "text", nil)
		require.NoError(t, err)
		assert.Equal(t, providers[k-1].name, got.Category)

		for i, p := range providers {
			if i < k {
				assert.Equal(t, 1, p.calls, "provider %d should be tried once", i)
			} else {
				assert.Zero(t, p.calls, "provider %d should not be tried", i)
			}
		}
	}
}

func TestChainExhausted(t *testing.T) {
	first := &fakeProvider{name: "groq", err: errors.New("timeout")}
	last := &fakeProvider{name: "openai", err: errors.New("quota exceeded")}

	_, err := NewChain([]Provider{first, last}, nil).Categorize(context.Background(), "text", nil)
	require.Error(t, err)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, OpCategorize, ex.Op)
	require.Len(t, ex.Errs, 2)
	assert.Contains(t, err.Error(), "quota exceeded")

	var pe *ProviderError
	require.ErrorAs(t, ex.Last(), &pe)
	assert.Equal(t, "openai", pe.Provider)
	assert.Equal(t, OpCategorize, pe.Op)
}

func TestChainNoProviders(t *testing.T) {
	_, err := NewChain(nil, nil).Transcribe(context.Background(), Audio{Data: []byte{1}})

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestChainMalformedFallsBack(t *testing.T) {
	bad := &fakeProvider{name: "bad", cat: &idea.Categorization{Category: "", Tags: []string{"x"}}}
	noTags := &fakeProvider{name: "notags", cat: &idea.Categorization{Category: "Idea", Tags: []string{"!!"}}}
	good := &fakeProvider{name: "good", cat: goodCat()}

	got, err := NewChain([]Provider{bad, noTags, good}, nil).Categorize(context.Background(), "text", nil)
	require.NoError(t, err)
	assert.Equal(t, "Business", got.Category)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, noTags.calls)
}

func TestChainAcceptsNovelCategory(t *testing.T) {
	p := &fakeProvider{name: "p", cat: &idea.Categorization{Category: "Gardening", Confidence: 1.7, Tags: []string{"Soil"}}}

	got, err := NewChain([]Provider{p}, nil).Categorize(context.Background(), "text", []string{"Business"})
	require.NoError(t, err)
	assert.Equal(t, "Gardening", got.Category)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, []string{"soil"}, got.Tags)
}

func TestChainTranscribe(t *testing.T) {
	t.Run("unsupported falls through", func(t *testing.T) {
		first := &fakeProvider{name: "anthropic", err: ErrUnsupported}
		second := &fakeProvider{name: "openai", transcript: "  hello world \n"}

		text, err := NewChain([]Provider{first, second}, nil).Transcribe(context.Background(), Audio{Data: []byte{1}})
		require.NoError(t, err)
		assert.Equal(t, "hello world", text)
	})

	t.Run("blank transcript is not retried", func(t *testing.T) {
		first := &fakeProvider{name: "groq", transcript: "   "}
		second := &fakeProvider{name: "openai", transcript: "should not run"}

		_, err := NewChain([]Provider{first, second}, nil).Transcribe(context.Background(), Audio{Data: []byte{1}})
		assert.ErrorIs(t, err, ErrEmptyTranscription)
		assert.Zero(t, second.calls)
	})
}

func TestChainInsights(t *testing.T) {
	bad := &fakeProvider{name: "bad", insights: &idea.Insights{Themes: []string{"x"}}}
	good := &fakeProvider{name: "good", insights: &idea.Insights{
		Themes:      []string{"pricing", "onboarding", "growth", "hiring"},
		Observation: "Most ideas are about revenue.",
	}}

	got, err := NewChain([]Provider{bad, good}, nil).GenerateInsights(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, got.Themes, 3)
	assert.Equal(t, []string{}, got.Connections)
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	p := &fakeProvider{name: "p", cat: goodCat()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain([]Provider{p}, nil).Categorize(ctx, "text", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.calls)
}

func TestChainMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	failing := &fakeProvider{name: "groq", err: errors.New("boom")}
	ok := &fakeProvider{name: "openai", cat: goodCat()}
	_, err := NewChain([]Provider{failing, ok}, m).Categorize(context.Background(), "text", nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsTotal.WithLabelValues("groq", OpCategorize, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsTotal.WithLabelValues("openai", OpCategorize, "success")))

	_, _ = NewChain([]Provider{failing}, m).Categorize(context.Background(), "text", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exhausted.WithLabelValues(OpCategorize)))
}

func TestChainProviders(t *testing.T) {
	c := NewChain([]Provider{&fakeProvider{name: "groq"}, &fakeProvider{name: "openai"}}, nil)
	assert.Equal(t, []string{"groq", "openai"}, c.Providers())
}
