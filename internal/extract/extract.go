// Package extract turns the text of one page into positioned text units,
// from the vector text layer or from OCR word boxes.
package extract

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"unicode/utf8"

	"pdf-translator/internal/layout"
	"pdf-translator/internal/render"
	"pdf-translator/internal/stage"
	"pdf-translator/ocr"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogLevel sets the logging level for the extract package
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

const (
	DefaultOCRDPI = 300.0

	// OCRFontSize is assigned to every OCR word; pixel height is not used to guess a size.
	OCRFontSize = 11.0

	// PlainTextFontSize is used for the single unit of the plain text fallback.
	PlainTextFontSize = 11.0

	estimatedCharWidth = 0.6
)

// placeholderBox is used for spans that carry neither a box nor an origin.
var placeholderBox = layout.Rect{X0: 0, Y0: 0, X1: 100, Y1: 20}

// PageSource is the part of the rendering engine the extractor needs.
type PageSource interface {
	PageSize(page int) (float64, float64, error)
	Spans(page int) ([]render.Span, error)
	PlainText(page int) (string, error)
	Raster(page int, dpi float64) (*image.RGBA, error)
}

// Options controls one extraction job.
type Options struct {
	UseOCR bool
	OCRDPI float64
}

// Extractor extracts the pages of one document. Page may be called from
// several goroutines.
type Extractor struct {
	source   PageSource
	provider ocr.Provider
	opts     Options

	availableOnce sync.Once
	availableErr  error
}

// New creates an extractor. provider may be nil when no OCR engine is configured.
func New(source PageSource, provider ocr.Provider, opts Options) *Extractor {
	if opts.OCRDPI <= 0 {
		opts.OCRDPI = DefaultOCRDPI
	}
	return &Extractor{source: source, provider: provider, opts: opts}
}

// Page extracts the text units of one page in source reading order.
// A page without text yields no units and an Extracted outcome.
func (e *Extractor) Page(ctx context.Context, page int) ([]layout.TextUnit, stage.Outcome) {
	logger := log.WithFields(logrus.Fields{
		"page":    page,
		"use_ocr": e.opts.UseOCR,
	})

	var reasons []string
	degrade := func(format string, args ...interface{}) {
		reason := fmt.Sprintf(format, args...)
		logger.Warn(reason)
		reasons = append(reasons, reason)
	}
	outcome := func(units []layout.TextUnit) ([]layout.TextUnit, stage.Outcome) {
		logger.WithField("units", len(units)).Debug("Page extracted")
		if len(reasons) > 0 {
			return units, stage.Degrade(stage.Extract, page, "%s", strings.Join(reasons, "; "))
		}
		return units, stage.Ok(stage.Extract, page)
	}

	if e.opts.UseOCR {
		if err := e.ocrAvailable(ctx); err != nil {
			degrade("OCR unavailable, using the text layer: %v", err)
		} else {
			units, err := e.ocrPage(ctx, page)
			switch {
			case err != nil:
				degrade("OCR failed, using the text layer: %v", err)
			case len(units) > 0:
				return outcome(units)
			default:
				logger.Info("OCR found no words, using the text layer")
			}
		}
	}

	spans, err := e.source.Spans(page)
	if err != nil {
		degrade("text layer unreadable: %v", err)
	}
	if units := FromSpans(spans); len(units) > 0 {
		return outcome(units)
	}

	if units, ok := e.plainTextPage(page, &reasons); ok {
		logger.Info("No positioned text, using the plain page text")
		return outcome(units)
	}

	if !e.opts.UseOCR {
		if err := e.ocrAvailable(ctx); err != nil {
			logger.WithError(err).Info("Page has no text and OCR is not available")
			return outcome(nil)
		}
		logger.Info("Page has no text, trying OCR")
		units, err := e.ocrPage(ctx, page)
		if err != nil {
			degrade("OCR of textless page failed: %v", err)
			return outcome(nil)
		}
		return outcome(units)
	}

	return outcome(nil)
}

func (e *Extractor) ocrAvailable(ctx context.Context) error {
	if e.provider == nil {
		return fmt.Errorf("no OCR provider configured")
	}
	e.availableOnce.Do(func() {
		e.availableErr = e.provider.Available(ctx)
	})
	return e.availableErr
}

func (e *Extractor) ocrPage(ctx context.Context, page int) ([]layout.TextUnit, error) {
	pageWidth, _, err := e.source.PageSize(page)
	if err != nil {
		return nil, err
	}
	raster, err := e.source.Raster(page, e.opts.OCRDPI)
	if err != nil {
		return nil, err
	}
	img, err := ocr.PreprocessImage(raster)
	if err != nil {
		return nil, err
	}

	result, err := e.provider.ProcessImage(ctx, img, page+1)
	if err != nil {
		return nil, err
	}

	imageWidth := float64(raster.Bounds().Dx())
	if result.ImageWidth > 0 {
		imageWidth = float64(result.ImageWidth)
	}
	if imageWidth <= 0 {
		return nil, fmt.Errorf("OCR image of page %d has no width", page)
	}
	return FromWords(result.Words, pageWidth/imageWidth), nil
}

func (e *Extractor) plainTextPage(page int, reasons *[]string) ([]layout.TextUnit, bool) {
	text, err := e.source.PlainText(page)
	if err != nil {
		*reasons = append(*reasons, fmt.Sprintf("plain text unreadable: %v", err))
		return nil, false
	}
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	width, height, err := e.source.PageSize(page)
	if err != nil {
		*reasons = append(*reasons, fmt.Sprintf("page size unreadable: %v", err))
		return nil, false
	}
	unit, ok := layout.NewTextUnit(text, layout.Rect{X0: 0, Y0: 0, X1: width, Y1: height}, PlainTextFontSize)
	if !ok {
		return nil, false
	}
	return []layout.TextUnit{unit}, true
}

// FromSpans converts engine spans into units, dropping blank spans. The box is
// the native one when known, else approximated from the origin, else a placeholder.
func FromSpans(spans []render.Span) []layout.TextUnit {
	units := make([]layout.TextUnit, 0, len(spans))
	for _, s := range spans {
		var bbox layout.Rect
		switch {
		case s.BBox != nil:
			bbox = *s.BBox
		case s.Origin != nil:
			size := s.Size
			if size <= 0 {
				size = layout.DefaultFontSize
			}
			width := s.Advance
			if width <= 0 {
				width = float64(utf8.RuneCountInString(s.Text)) * size * estimatedCharWidth
			}
			bbox = layout.Rect{
				X0: s.Origin.X,
				Y0: s.Origin.Y - size,
				X1: s.Origin.X + width,
				Y1: s.Origin.Y + size*0.3,
			}
		default:
			bbox = placeholderBox
		}
		if unit, ok := layout.NewTextUnit(s.Text, bbox, s.Size); ok {
			units = append(units, unit)
		}
	}
	return units
}

// FromWords converts OCR words into units. scale maps image pixels to page points.
func FromWords(words []ocr.Word, scale float64) []layout.TextUnit {
	units := make([]layout.TextUnit, 0, len(words))
	for _, w := range words {
		bbox := layout.Rect{
			X0: w.Left,
			Y0: w.Top,
			X1: w.Left + w.Width,
			Y1: w.Top + w.Height,
		}.Scale(scale)
		if unit, ok := layout.NewTextUnit(w.Text, bbox, OCRFontSize); ok {
			units = append(units, unit)
		}
	}
	return units
}
