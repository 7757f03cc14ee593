package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pdf-translator/internal/constants"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var log = logrus.New()

// Translator translates a batch of strings. The result has the same order as
// texts and at most the same length; a shorter result means the tail is missing.
type Translator interface {
	Translate(ctx context.Context, sourceLang, targetLang string, texts []string) ([]string, error)
}

// ServiceError is returned by translators for failures of the remote service.
// Fatal errors fail every later call as well (bad credentials, exhausted quota).
type ServiceError struct {
	Provider   string
	StatusCode int
	Message    string
	Fatal      bool
	Cause      error
}

func (e *ServiceError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Provider)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " returned status %d", e.StatusCode)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err wraps a fatal ServiceError.
func IsFatal(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Fatal
}

// Config selects and configures a translation backend
type Config struct {
	// Provider is one of "deepl", "openai", "ollama", "googleai"
	Provider string

	// DeepL settings
	DeepLAPIKey string
	DeepLAPIURL string // Optional, derived from the key when empty

	// LLM settings
	Model         string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaHost    string
	GoogleAPIKey  string

	// Rate limiting applied around the backend
	RequestsPerMinute float64
	MaxRetries        int
	BackoffMaxWait    time.Duration
}

// NewTranslator creates the configured backend wrapped with rate limiting and retries.
func NewTranslator(ctx context.Context, config Config) (Translator, error) {
	provider := strings.ToLower(config.Provider)
	log.WithField("provider", provider).Info("Initializing translation provider")

	var backend Translator
	switch provider {
	case "deepl", "":
		t, err := NewDeepLTranslator(config.DeepLAPIKey, config.DeepLAPIURL)
		if err != nil {
			return nil, err
		}
		backend = t

	case "openai", "ollama", "googleai":
		model, err := createLLM(ctx, provider, config)
		if err != nil {
			return nil, err
		}
		t, err := NewLLMTranslator(model, provider)
		if err != nil {
			return nil, err
		}
		backend = t

	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", config.Provider)
	}

	return NewRateLimitedTranslator(backend, RateLimitConfig{
		RequestsPerMinute: config.RequestsPerMinute,
		MaxRetries:        config.MaxRetries,
		BackoffMaxWait:    config.BackoffMaxWait,
	}), nil
}

func createLLM(ctx context.Context, provider string, config Config) (llms.Model, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for the %s translation provider", provider)
	}
	switch provider {
	case "openai":
		token := config.OpenAIAPIKey
		if token == "" && config.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("OpenAI API key is not set")
		}
		if token == "" {
			token = constants.DummyAPIKey
		}
		opts := []openai.Option{
			openai.WithModel(config.Model),
			openai.WithToken(token),
		}
		if config.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.OpenAIBaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		host := config.OllamaHost
		if host == "" {
			host = "http://127.0.0.1:11434"
		}
		return ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(host),
		)
	case "googleai":
		return NewGoogleAIModel(ctx, config.Model, config.GoogleAPIKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// SetLogLevel sets the logging level for the translate package
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}
