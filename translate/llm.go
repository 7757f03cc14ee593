package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/tmc/langchaingo/llms"
)

const defaultPromptTemplate = `You are a professional translator working on text taken from a PDF page.
Translate every string of the JSON array below from {{ .SourceLang | upper }} to {{ .TargetLang | upper }}.
Keep numbers, codes and proper names unchanged. Do not merge or split entries.
Answer with a JSON array of exactly {{ len .Texts }} strings in the same order and nothing else.

{{ .Texts | toJson }}
`

// LLMTranslator implements Translator on top of any langchaingo model
type LLMTranslator struct {
	llm      llms.Model
	provider string
	prompt   *template.Template
}

// NewLLMTranslator creates a translator with the default prompt.
func NewLLMTranslator(llm llms.Model, provider string) (*LLMTranslator, error) {
	return NewLLMTranslatorWithPrompt(llm, provider, defaultPromptTemplate)
}

// NewLLMTranslatorWithPrompt creates a translator with a custom prompt template.
// The template receives SourceLang, TargetLang and Texts.
func NewLLMTranslatorWithPrompt(llm llms.Model, provider, prompt string) (*LLMTranslator, error) {
	if llm == nil {
		return nil, fmt.Errorf("no LLM given")
	}
	tmpl, err := template.New("translate").Funcs(sprig.FuncMap()).Parse(prompt)
	if err != nil {
		return nil, fmt.Errorf("error parsing translation prompt: %w", err)
	}
	return &LLMTranslator{llm: llm, provider: provider, prompt: tmpl}, nil
}

func (t *LLMTranslator) Translate(ctx context.Context, sourceLang, targetLang string, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	var promptBuffer bytes.Buffer
	err := t.prompt.Execute(&promptBuffer, map[string]interface{}{
		"SourceLang": sourceLang,
		"TargetLang": targetLang,
		"Texts":      texts,
	})
	if err != nil {
		return nil, fmt.Errorf("error executing translation template: %w", err)
	}

	prompt := promptBuffer.String()
	log.Debugf("Translation prompt: %s", prompt)

	completion, err := t.llm.GenerateContent(ctx, []llms.MessageContent{
		{
			Parts: []llms.ContentPart{
				llms.TextContent{
					Text: prompt,
				},
			},
			Role: llms.ChatMessageTypeHuman,
		},
	})
	if err != nil {
		return nil, &ServiceError{Provider: t.provider, Message: "error getting response from LLM", Cause: err}
	}
	if completion == nil || len(completion.Choices) == 0 {
		return nil, &ServiceError{Provider: t.provider, Message: "LLM returned no choices"}
	}

	translations, err := parseTranslations(completion.Choices[0].Content)
	if err != nil {
		return nil, &ServiceError{Provider: t.provider, Message: "unusable LLM response", Cause: err}
	}
	if len(translations) > len(texts) {
		translations = translations[:len(texts)]
	}
	return translations, nil
}

// parseTranslations reads the JSON array out of a model answer.
func parseTranslations(content string) ([]string, error) {
	content = stripCodeFence(stripReasoning(content))

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var translations []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &translations); err != nil {
		return nil, fmt.Errorf("error decoding JSON array: %w", err)
	}
	return translations, nil
}

// stripReasoning removes the reasoning from the content indicated by <think> and </think> tags.
func stripReasoning(content string) string {
	reasoningStart := strings.Index(content, "<think>")
	if reasoningStart != -1 {
		reasoningEnd := strings.Index(content, "</think>")
		if reasoningEnd != -1 {
			content = content[:reasoningStart] + content[reasoningEnd+len("</think>"):]
		}
	}
	return strings.TrimSpace(content)
}

// stripCodeFence unwraps a ``` fenced block.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.Index(content, "\n"); nl != -1 {
		content = content[nl+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
