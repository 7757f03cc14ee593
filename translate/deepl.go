package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const (
	deeplFreeURL = "https://api-free.deepl.com"
	deeplProURL  = "https://api.deepl.com"

	// DeepL answers 456 when the character quota is used up
	statusQuotaExceeded = 456
)

// DeepLTranslator implements Translator with the DeepL REST API
type DeepLTranslator struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

type deeplRequest struct {
	Text       []string `json:"text"`
	SourceLang string   `json:"source_lang,omitempty"`
	TargetLang string   `json:"target_lang"`
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

type deeplErrorResponse struct {
	Message string `json:"message"`
}

// NewDeepLTranslator creates a DeepL client. Free-plan keys end in ":fx" and
// use the free endpoint unless baseURL overrides it.
func NewDeepLTranslator(apiKey, baseURL string) (*DeepLTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("DEEPL_API_KEY is not set")
	}
	if baseURL == "" {
		baseURL = deeplProURL
		if strings.HasSuffix(apiKey, ":fx") {
			baseURL = deeplFreeURL
		}
	}

	logger := log.WithFields(logrus.Fields{
		"provider": "deepl",
		"url":      baseURL,
	})
	logger.Info("Creating new DeepL translator")

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 10 * time.Second
	client.Logger = logger
	// Keep the last response so its status can be classified
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient = newAuthHTTPClient(client.HTTPClient, "DeepL-Auth-Key", apiKey)

	return &DeepLTranslator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}, nil
}

// Translate sends one batch to /v2/translate.
func (t *DeepLTranslator) Translate(ctx context.Context, sourceLang, targetLang string, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	body, err := json.Marshal(deeplRequest{
		Text:       texts,
		SourceLang: strings.ToUpper(sourceLang),
		TargetLang: strings.ToUpper(targetLang),
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", t.baseURL+"/v2/translate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Provider: "deepl", Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Provider: "deepl", StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(respBody))
		var errResp deeplErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			message = errResp.Message
		}
		return nil, &ServiceError{
			Provider:   "deepl",
			StatusCode: resp.StatusCode,
			Message:    message,
			Fatal:      isFatalStatus(resp.StatusCode),
		}
	}

	var result deeplResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ServiceError{Provider: "deepl", StatusCode: resp.StatusCode, Message: "invalid response", Cause: err}
	}

	translations := make([]string, 0, len(result.Translations))
	for _, tr := range result.Translations {
		translations = append(translations, tr.Text)
	}
	return translations, nil
}

// Available checks the key against the usage endpoint.
func (t *DeepLTranslator) Available(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", t.baseURL+"/v2/usage", nil)
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &ServiceError{Provider: "deepl", Message: "not reachable", Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &ServiceError{Provider: "deepl", StatusCode: resp.StatusCode, Fatal: isFatalStatus(resp.StatusCode)}
	}
	return nil
}

func isFatalStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, statusQuotaExceeded:
		return true
	}
	return false
}
