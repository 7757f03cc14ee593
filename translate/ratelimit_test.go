package translate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyTranslator fails with the queued errors before answering
type flakyTranslator struct {
	errs  []error
	calls int
}

func (f *flakyTranslator) Translate(ctx context.Context, sourceLang, targetLang string, texts []string) ([]string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return texts, nil
}

func fastRetries(tr Translator, maxRetries int) *RateLimitedTranslator {
	r := NewRateLimitedTranslator(tr, RateLimitConfig{MaxRetries: maxRetries})
	r.backoffMin = time.Millisecond
	r.backoffMax = 5 * time.Millisecond
	return r
}

func TestRateLimitedTranslator(t *testing.T) {
	recoverable := &ServiceError{Provider: "mock", StatusCode: 503}
	fatal := &ServiceError{Provider: "mock", StatusCode: 403, Fatal: true}

	tests := []struct {
		name      string
		errs      []error
		retries   int
		wantErr   bool
		wantCalls int
	}{
		{"success first time", nil, 3, false, 1},
		{"recovers after retries", []error{recoverable, recoverable}, 3, false, 3},
		{"gives up", []error{recoverable, recoverable, recoverable}, 2, true, 3},
		{"fatal is not retried", []error{fatal}, 3, true, 1},
		{"retries disabled", []error{recoverable}, -1, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &flakyTranslator{errs: tt.errs}
			r := fastRetries(inner, tt.retries)

			out, err := r.Translate(context.Background(), "TR", "EN", []string{"Merhaba"})
			assert.Equal(t, tt.wantCalls, inner.calls)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"Merhaba"}, out)
		})
	}
}

func TestRateLimitedTranslatorKeepsFatalClassification(t *testing.T) {
	inner := &flakyTranslator{errs: []error{&ServiceError{Provider: "mock", StatusCode: 456, Fatal: true}}}
	_, err := fastRetries(inner, 3).Translate(context.Background(), "TR", "EN", []string{"Merhaba"})
	assert.True(t, IsFatal(err))
}

func TestRateLimitedTranslatorContextCancel(t *testing.T) {
	inner := &flakyTranslator{errs: []error{errors.New("boom"), errors.New("boom")}}
	r := NewRateLimitedTranslator(inner, RateLimitConfig{MaxRetries: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Translate(ctx, "TR", "EN", []string{"Merhaba"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.calls)
}

func TestNewRateLimitedTranslatorDefaults(t *testing.T) {
	r := NewRateLimitedTranslator(&flakyTranslator{}, RateLimitConfig{RequestsPerMinute: 60})
	assert.Equal(t, 3, r.maxRetries)
	assert.Equal(t, 30*time.Second, r.backoffMax)
	require.NotNil(t, r.rateLimiter)
	assert.InDelta(t, 1.0, float64(r.rateLimiter.Limit()), 1e-9)

	r = NewRateLimitedTranslator(&flakyTranslator{}, RateLimitConfig{})
	assert.Nil(t, r.rateLimiter)
}

func TestNewTranslator(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"deepl", Config{Provider: "deepl", DeepLAPIKey: "key:fx"}, ""},
		{"deepl is default", Config{DeepLAPIKey: "key"}, ""},
		{"deepl without key", Config{Provider: "deepl"}, "DEEPL_API_KEY"},
		{"ollama", Config{Provider: "ollama", Model: "llama3"}, ""},
		{"openai without key", Config{Provider: "openai", Model: "gpt-4o-mini"}, "OpenAI API key"},
		{"llm without model", Config{Provider: "ollama"}, "LLM_MODEL"},
		{"googleai without key", Config{Provider: "googleai", Model: "gemini-2.0-flash"}, "GOOGLEAI_API_KEY"},
		{"unknown", Config{Provider: "babelfish"}, "unsupported translation provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTranslator(context.Background(), tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &RateLimitedTranslator{}, tr)
		})
	}
}
