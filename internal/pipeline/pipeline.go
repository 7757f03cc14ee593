// Package pipeline runs one translation job end to end: source checks,
// extraction, grouping, translation, reconstruction and output finalization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pdf-translator/internal/constants"
	"pdf-translator/internal/extract"
	"pdf-translator/internal/layout"
	"pdf-translator/internal/reconstruct"
	"pdf-translator/internal/render"
	"pdf-translator/internal/stage"
	"pdf-translator/ocr"
	"pdf-translator/translate"
)

var log = logrus.New()

// SetLogLevel sets the logging level for the pipeline package
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

// Config holds the job settings that do not change between documents.
type Config struct {
	BatchSize        int
	PacingDelay      time.Duration
	OCRDPI           float64
	ColorDPI         float64
	FontPath         string
	ExtractWorkers   int
	MaxGroupDistance float64
	MinOutputSize    int64
	SkipOptimize     bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BatchSize:        translate.DefaultBatchSize,
		PacingDelay:      translate.DefaultPacingDelay,
		OCRDPI:           extract.DefaultOCRDPI,
		ColorDPI:         reconstruct.DefaultColorDPI,
		ExtractWorkers:   1,
		MaxGroupDistance: layout.DefaultMaxDistance,
		MinOutputSize:    constants.MinOutputSize,
	}
}

// Mode tells how the output document was produced.
type Mode string

const (
	ModeTranslated Mode = "translated"
	ModeCopied     Mode = "copied"
)

// ProgressFunc is called after each page has been translated.
type ProgressFunc func(pagesDone, totalPages int)

// Request describes one document to translate.
type Request struct {
	InputPath  string
	SourceLang string
	TargetLang string
	OutputDir  string
	UseOCR     bool
	Progress   ProgressFunc
}

// Result describes the produced document.
type Result struct {
	OutputPath string          `json:"output_path"`
	Mode       Mode            `json:"mode"`
	Status     stage.Status    `json:"status"`
	Pages      int             `json:"pages"`
	Groups     int             `json:"groups"`
	Overflows  int             `json:"overflows"`
	Conditions []ErrorCode     `json:"conditions,omitempty"`
	Outcomes   []stage.Outcome `json:"outcomes,omitempty"`
}

// Pipeline translates documents. It holds no per-job state and may run
// several jobs at once.
type Pipeline struct {
	translator translate.Translator
	ocr        ocr.Provider
	cfg        Config
}

// New creates a pipeline. provider may be nil when no OCR engine is configured.
func New(translator translate.Translator, provider ocr.Provider, cfg Config) *Pipeline {
	defaults := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = defaults.OCRDPI
	}
	if cfg.ColorDPI <= 0 {
		cfg.ColorDPI = defaults.ColorDPI
	}
	if cfg.ExtractWorkers < 1 {
		cfg.ExtractWorkers = defaults.ExtractWorkers
	}
	if cfg.MaxGroupDistance <= 0 {
		cfg.MaxGroupDistance = defaults.MaxGroupDistance
	}
	if cfg.MinOutputSize <= 0 {
		cfg.MinOutputSize = defaults.MinOutputSize
	}
	return &Pipeline{translator: translator, ocr: provider, cfg: cfg}
}

// TranslateDocument translates inputPath and returns the path of the output
// document, outputDir/translated_<name>.
func (p *Pipeline) TranslateDocument(ctx context.Context, inputPath, sourceLang, targetLang, outputDir string, useOCR bool) (string, error) {
	result, err := p.Run(ctx, Request{
		InputPath:  inputPath,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		OutputDir:  outputDir,
		UseOCR:     useOCR,
	})
	if err != nil {
		return "", err
	}
	return result.OutputPath, nil
}

// Run executes one job. The returned error is the context error when the job
// was cancelled, or an *Error with code SOURCE_UNREADABLE or OUTPUT_INVALID.
// Every other problem is recovered and reported through the result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	logger := log.WithFields(logrus.Fields{
		"input":       req.InputPath,
		"source_lang": req.SourceLang,
		"target_lang": req.TargetLang,
		"use_ocr":     req.UseOCR,
	})
	if req.SourceLang == "" || req.TargetLang == "" {
		return nil, fmt.Errorf("source and target language are required")
	}

	data, err := readSource(logger, req.InputPath)
	if err != nil {
		return nil, err
	}
	doc, err := render.Open(req.InputPath)
	if err != nil {
		return nil, NewSourceUnreadableError(req.InputPath, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total == 0 {
		return nil, NewSourceUnreadableError(req.InputPath, errors.New("document has no pages"))
	}

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, NewOutputInvalidError("cannot create output directory", err)
	}
	result := &Result{
		OutputPath: OutputPath(req.InputPath, req.OutputDir),
		Pages:      total,
	}
	logger = logger.WithField("output", result.OutputPath)
	logger.WithField("pages", total).Info("Starting translation job")

	extractor := extract.New(doc, p.ocr, extract.Options{UseOCR: req.UseOCR, OCRDPI: p.cfg.OCRDPI})
	pageUnits, outcomes, err := p.extractPages(ctx, extractor, total)
	if err != nil {
		return nil, err
	}
	result.Outcomes = outcomes

	orchestrator := translate.NewOrchestrator(p.translator, req.SourceLang, req.TargetLang, p.cfg.BatchSize, p.cfg.PacingDelay)
	content := layout.Document{Pages: make([]layout.PageContent, 0, total)}
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			logger.WithField("page", i).Info("Job cancelled")
			return nil, err
		}

		page := layout.PageContent{Index: i}
		if groups := layout.Group(pageUnits[i], p.cfg.MaxGroupDistance); len(groups) > 0 {
			translated, outcome := orchestrator.Translate(ctx, i, groups)
			page.Groups = translated
			result.Outcomes = append(result.Outcomes, outcome)
		}
		content.Pages = append(content.Pages, page)

		if req.Progress != nil {
			req.Progress(i+1, total)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Groups = content.TotalGroups()
	if result.Groups == 0 {
		logger.Warn("No text found in document, copying the source")
		result.Outcomes = append(result.Outcomes, stage.Degrade(stage.Finalize, -1, "no text found, source copied"))
		result.Conditions = append(result.Conditions, ErrorExtractionEmpty)
		return p.copyFallback(logger, data, result, nil)
	}

	report, finalOutcomes, err := p.writeTranslated(ctx, logger, data, doc, content, result.OutputPath)
	result.Outcomes = append(result.Outcomes, report.Outcomes...)
	result.Outcomes = append(result.Outcomes, finalOutcomes...)
	result.Overflows = report.Overflows
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			logger.Info("Job cancelled during reconstruction")
			return nil, err
		}
		logger.WithError(err).Error("Could not produce translated document, copying the source")
		if CodeOf(err) == ErrorOutputInvalid {
			result.Outcomes = append(result.Outcomes, stage.Fail(stage.Finalize, -1, "%v", err))
		} else {
			result.Outcomes = append(result.Outcomes, stage.Degrade(stage.Finalize, -1, "%v", err))
		}
		result.Conditions = append(result.Conditions, CodeOf(err))
		return p.copyFallback(logger, data, result, err)
	}

	result.Mode = ModeTranslated
	result.Conditions = append(conditions(result.Outcomes), result.Conditions...)
	result.Status = stage.Worst(result.Outcomes)
	logger.WithFields(logrus.Fields{
		"groups":    result.Groups,
		"overflows": result.Overflows,
		"status":    result.Status,
	}).Info("Translation job finished")
	return result, nil
}

func (p *Pipeline) extractPages(ctx context.Context, extractor *extract.Extractor, total int) ([][]layout.TextUnit, []stage.Outcome, error) {
	units := make([][]layout.TextUnit, total)
	outcomes := make([]stage.Outcome, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ExtractWorkers)
	for i := 0; i < total; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			units[i], outcomes[i] = extractor.Page(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return units, outcomes, nil
}

// copyFallback copies the source as the job output. cause is the error that
// made the fallback necessary, nil when there was nothing to translate.
func (p *Pipeline) copyFallback(logger *logrus.Entry, data []byte, result *Result, cause error) (*Result, error) {
	if err := copySource(data, result.OutputPath); err != nil {
		logger.WithError(err).Error("Could not copy source document")
		if cause != nil {
			err = errors.Join(cause, err)
		}
		return nil, NewOutputInvalidError("no output document could be written", err)
	}
	result.Mode = ModeCopied
	result.Conditions = append(conditions(result.Outcomes), result.Conditions...)
	result.Status = stage.Worst(result.Outcomes)
	logger.WithField("status", result.Status).Info("Source document copied as output")
	return result, nil
}

// conditions maps degraded stage outcomes to the recovered error codes.
func conditions(outcomes []stage.Outcome) []ErrorCode {
	seen := make(map[ErrorCode]bool)
	var codes []ErrorCode
	add := func(code ErrorCode) {
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	for _, o := range outcomes {
		if o.Status != stage.Degraded {
			continue
		}
		switch o.Stage {
		case stage.Extract:
			if strings.Contains(o.Reason, "OCR") {
				add(ErrorOCRUnavailable)
			}
		case stage.Translate:
			add(ErrorTranslationService)
		case stage.Layout:
			add(ErrorLayoutOverflow)
		}
	}
	return codes
}
