package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/gardar/ocrchestra/pkg/hocr"
	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"
)

const defaultTesseractLanguage = "tur"

// TesseractProvider implements OCR with a local Tesseract installation
type TesseractProvider struct {
	languages []string
}

func newTesseractProvider(config Config) (*TesseractProvider, error) {
	lang := config.TesseractLanguage
	if lang == "" {
		lang = defaultTesseractLanguage
	}

	var languages []string
	for _, l := range strings.Split(lang, "+") {
		if l = strings.TrimSpace(l); l != "" {
			languages = append(languages, l)
		}
	}
	if len(languages) == 0 {
		return nil, fmt.Errorf("invalid Tesseract language: %q", config.TesseractLanguage)
	}

	return &TesseractProvider{languages: languages}, nil
}

// Available checks that every configured language is installed.
func (p *TesseractProvider) Available(ctx context.Context) error {
	installed, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("tesseract is not available: %w", err)
	}
	have := make(map[string]bool, len(installed))
	for _, l := range installed {
		have[l] = true
	}
	for _, l := range p.languages {
		if !have[l] {
			return fmt.Errorf("tesseract language %q is not installed", l)
		}
	}
	return nil
}

// ProcessImage runs Tesseract and reads the word boxes from its hOCR output
func (p *TesseractProvider) ProcessImage(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error) {
	logger := log.WithFields(logrus.Fields{
		"provider":    "tesseract",
		"languages":   p.languages,
		"page_number": pageNumber,
		"data_size":   len(imageContent),
	})
	logger.Debug("Starting Tesseract processing")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(p.languages...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(imageContent); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	hocrText, err := client.HOCRText()
	if err != nil {
		logger.WithError(err).Error("Tesseract OCR failed")
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	doc, err := hocr.ParseHOCR([]byte(hocrText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hOCR output: %w", err)
	}

	result := &OCRResult{
		Text:     strings.TrimSpace(hocr.ExtractHOCRText(&doc)),
		Metadata: map[string]string{"provider": "tesseract", "language": strings.Join(p.languages, "+")},
	}
	for _, page := range doc.Pages {
		result.Words = append(result.Words, pageWords(page)...)
		if result.ImageWidth == 0 {
			result.ImageWidth = int(page.BBox.X2 - page.BBox.X1)
			result.ImageHeight = int(page.BBox.Y2 - page.BBox.Y1)
		}
	}

	logger.WithField("num_words", len(result.Words)).Info("Successfully processed image with Tesseract")
	return result, nil
}

// pageWords flattens the hOCR hierarchy into words in document order.
func pageWords(page hocr.Page) []Word {
	var words []Word
	add := func(ws []hocr.Word) {
		for _, w := range ws {
			if strings.TrimSpace(w.Text) == "" {
				continue
			}
			words = append(words, Word{
				Text:       w.Text,
				Left:       w.BBox.X1,
				Top:        w.BBox.Y1,
				Width:      w.BBox.X2 - w.BBox.X1,
				Height:     w.BBox.Y2 - w.BBox.Y1,
				Confidence: w.Confidence,
			})
		}
	}
	lines := func(ls []hocr.Line) {
		for _, l := range ls {
			add(l.Words)
		}
	}
	paragraphs := func(ps []hocr.Paragraph) {
		for _, para := range ps {
			add(para.Words)
			lines(para.Lines)
		}
	}

	for _, area := range page.Areas {
		add(area.Words)
		lines(area.Lines)
		paragraphs(area.Paragraphs)
	}
	paragraphs(page.Paragraphs)
	lines(page.Lines)
	return words
}
