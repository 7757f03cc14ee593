package translate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"pdf-translator/internal/layout"
	"pdf-translator/internal/stage"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize   = 10
	DefaultPacingDelay = 500 * time.Millisecond
)

// Orchestrator translates the groups of a page in bounded batches. Batch
// failures never escape: the affected texts keep their original wording.
// An Orchestrator serves one job and is not safe for concurrent use.
type Orchestrator struct {
	translator  Translator
	sourceLang  string
	targetLang  string
	batchSize   int
	pacingDelay time.Duration

	// fatal is the first fatal service error of the job; later batches skip the service
	fatal error
	// paceNext is set after a successful call and holds across pages
	paceNext bool
}

// NewOrchestrator creates an orchestrator. A batch size below 1 uses the
// default, a negative pacing delay disables pacing.
func NewOrchestrator(translator Translator, sourceLang, targetLang string, batchSize int, pacingDelay time.Duration) *Orchestrator {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if pacingDelay < 0 {
		pacingDelay = 0
	}
	return &Orchestrator{
		translator:  translator,
		sourceLang:  sourceLang,
		targetLang:  targetLang,
		batchSize:   batchSize,
		pacingDelay: pacingDelay,
	}
}

// IsPassThrough reports whether text is not worth translating: a single
// character or digits only.
func IsPassThrough(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= 1 {
		return true
	}
	for _, r := range text {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Translate returns exactly one TranslatedGroup per group, in input order.
func (o *Orchestrator) Translate(ctx context.Context, page int, groups []layout.TextGroup) (result []layout.TranslatedGroup, outcome stage.Outcome) {
	logger := log.WithFields(logrus.Fields{
		"page":        page,
		"groups":      len(groups),
		"source_lang": o.sourceLang,
		"target_lang": o.targetLang,
	})

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Translation step failed, passing every group through")
			result = passThroughAll(groups)
			outcome = stage.Degrade(stage.Translate, page, "translation step failed: %v", r)
		}
	}()

	result = make([]layout.TranslatedGroup, len(groups))
	var pending []int
	for i, g := range groups {
		result[i] = layout.TranslatedGroup{TextGroup: g, TranslatedText: g.Text}
		if IsPassThrough(g.Text) {
			result[i].PassThrough = true
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 {
		logger.Debug("Nothing to translate on page")
		return result, stage.Ok(stage.Translate, page)
	}

	batches := (len(pending) + o.batchSize - 1) / o.batchSize
	logger.WithField("texts", len(pending)).Infof("Translating in %d batch(es)", batches)

	var failed []string
	var stopped error
	for b := 0; b < batches; b++ {
		start := b * o.batchSize
		end := min(start+o.batchSize, len(pending))
		indexes := pending[start:end]
		batchLogger := logger.WithField("batch", fmt.Sprintf("%d/%d", b+1, batches))

		if o.fatal != nil || stopped != nil {
			failed = append(failed, fmt.Sprintf("batch %d skipped", b+1))
			continue
		}
		if o.paceNext && o.pacingDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.pacingDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			stopped = err
			failed = append(failed, fmt.Sprintf("batch %d: %v", b+1, err))
			continue
		}

		texts := make([]string, len(indexes))
		for j, idx := range indexes {
			texts[j] = groups[idx].Text
		}

		translations, err := o.translator.Translate(ctx, o.sourceLang, o.targetLang, texts)
		if err != nil {
			batchLogger.WithError(err).Warn("Batch translation failed, keeping original text")
			failed = append(failed, fmt.Sprintf("batch %d: %v", b+1, err))
			o.paceNext = false
			if IsFatal(err) {
				o.fatal = err
			}
			continue
		}
		o.paceNext = true

		if len(translations) < len(texts) {
			batchLogger.WithFields(logrus.Fields{
				"requested": len(texts),
				"received":  len(translations),
			}).Warn("Translation service returned fewer results, keeping original text for the rest")
		}
		for j, idx := range indexes {
			if j >= len(translations) {
				break
			}
			if t := strings.TrimSpace(translations[j]); t != "" {
				result[idx].TranslatedText = t
			}
		}
		batchLogger.Debug("Batch translated")
	}

	if o.fatal != nil || stopped != nil {
		logger.WithError(firstErr(o.fatal, stopped)).Warn("Translation stopped early, remaining batches keep original text")
	}
	if len(failed) > 0 {
		return result, stage.Degrade(stage.Translate, page, "%d of %d batches fell back to original text: %s",
			len(failed), batches, strings.Join(failed, "; "))
	}
	return result, stage.Ok(stage.Translate, page)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func passThroughAll(groups []layout.TextGroup) []layout.TranslatedGroup {
	out := make([]layout.TranslatedGroup, len(groups))
	for i, g := range groups {
		out[i] = layout.TranslatedGroup{TextGroup: g, TranslatedText: g.Text, PassThrough: true}
	}
	return out
}
